package config

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
)

// checkDuration перевіряє, що поле або порожнє, або містить додатну тривалість
func checkDuration(field, value string) error {
	if value == "" {
		return nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", field, err)
	}
	if parsed <= 0 {
		return fmt.Errorf("invalid %s: must be positive", field)
	}
	return nil
}

// durationOr повертає тривалість або fallback, якщо значення порожнє чи невалідне
func durationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

// evalContext дає HCL файлам функції env(name, default) і duration(value)
func evalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Functions: map[string]function.Function{
			"env":      envFunc,
			"duration": durationFunc,
		},
	}
}

var envFunc = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "name", Type: cty.String},
		{Name: "default", Type: cty.String},
	},
	Type: function.StaticReturnType(cty.String),
	Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
		if value := os.Getenv(args[0].AsString()); value != "" {
			return cty.StringVal(value), nil
		}
		return args[1], nil
	},
})

// durationFunc нормалізує рядок тривалості, щоб помилка була видна вже при розборі файлу
var durationFunc = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "value", Type: cty.String},
	},
	Type: function.StaticReturnType(cty.String),
	Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
		parsed, err := time.ParseDuration(args[0].AsString())
		if err != nil {
			return cty.NilVal, err
		}
		return cty.StringVal(parsed.String()), nil
	},
})
