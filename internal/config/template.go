package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// varTag має форму {{var "name" default required}}
var varTag = regexp.MustCompile(`\{\{var\s+"([^"]+)"\s+("[^"]*"|[^\s}]+)\s+(true|false)\s*\}\}`)

// GenerateConfigFromTemplate генерує HCL конфігурацію з шаблону, підставляючи змінні
func GenerateConfigFromTemplate(templatePath, outputPath string, vars map[string]interface{}) error {
	content, err := os.ReadFile(templatePath)
	if err != nil {
		return fmt.Errorf("failed to read template: %w", err)
	}

	rendered, err := RenderTemplate(string(content), vars)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	// конфігурація містить ключ підпису
	if err := os.WriteFile(outputPath, []byte(rendered), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// RenderTemplate підставляє значення змінних у шаблон.
// Обов'язкова змінна без значення і без дефолту дає помилку з переліком усіх таких змінних.
func RenderTemplate(content string, vars map[string]interface{}) (string, error) {
	missing := map[string]struct{}{}

	rendered := varTag.ReplaceAllStringFunc(content, func(match string) string {
		parts := varTag.FindStringSubmatch(match)
		name, defaultValue, required := parts[1], parts[2], parts[3] == "true"

		if value, exists := vars[name]; exists {
			return formatValue(value)
		}
		if required && (defaultValue == `""` || defaultValue == "") {
			missing[name] = struct{}{}
			return match
		}
		return formatValue(parseDefaultValue(defaultValue))
	})

	if len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for name := range missing {
			names = append(names, name)
		}
		sort.Strings(names)
		return "", fmt.Errorf("required template variables not set: %s", strings.Join(names, ", "))
	}
	return rendered, nil
}

// formatValue форматує значення як HCL вираз
func formatValue(value interface{}) string {
	switch v := value.(type) {
	case []string:
		quoted := make([]string, 0, len(v))
		for _, item := range v {
			quoted = append(quoted, strconv.Quote(item))
		}
		return "[" + strings.Join(quoted, ", ") + "]"
	case string:
		return strconv.Quote(v)
	case int, int32, int64:
		return fmt.Sprintf("%d", v)
	case bool:
		return strconv.FormatBool(v)
	default:
		return strconv.Quote(fmt.Sprintf("%v", v))
	}
}

// parseDefaultValue розбирає дефолт із шаблону: рядок у лапках, ціле число, bool
func parseDefaultValue(defaultValue string) interface{} {
	if strings.HasPrefix(defaultValue, `"`) && strings.HasSuffix(defaultValue, `"`) {
		return strings.Trim(defaultValue, `"`)
	}
	if intVal, err := strconv.Atoi(defaultValue); err == nil {
		return intVal
	}
	if boolVal, err := strconv.ParseBool(defaultValue); err == nil {
		return boolVal
	}
	return defaultValue
}
