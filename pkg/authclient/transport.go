package authclient

import (
	"bytes"
	"io"
	"net/http"
)

// transport підставляє access token і CSRF токен у запити до сервера
// авторизації. На 401 виконує одне спільне оновлення токена і
// повторює запит рівно один раз.
type transport struct {
	client *Client
	base   http.RoundTripper
}

func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !t.client.owns(req) {
		return t.base.RoundTrip(req)
	}

	getBody, err := replayableBody(req)
	if err != nil {
		return nil, err
	}

	used := t.client.session.snapshot()
	resp, err := t.attempt(req, getBody, used.token)
	if err != nil || resp.StatusCode != http.StatusUnauthorized || used.token == "" {
		return resp, err
	}
	drainAndClose(resp)

	token, err := t.client.renew(req.Context(), used)
	if err != nil {
		return nil, err
	}
	return t.attempt(req, getBody, token)
}

func (t *transport) attempt(req *http.Request, getBody func() (io.ReadCloser, error), token string) (*http.Response, error) {
	out := req.Clone(req.Context())
	if getBody != nil {
		body, err := getBody()
		if err != nil {
			return nil, err
		}
		out.Body = body
	}

	if token != "" {
		out.Header.Set("Authorization", "Bearer "+token)
	}

	csrf := ""
	if !isSafeMethod(out.Method) {
		var err error
		if csrf, err = t.client.ensureCSRF(req.Context()); err != nil {
			return nil, err
		}
		out.Header.Set(CSRFHeaderName, csrf)
	}

	// cookies з jar могли змінитися після оновлення токена або видачі CSRF
	out.Header.Del("Cookie")
	for _, cookie := range t.client.jar.Cookies(out.URL) {
		out.AddCookie(cookie)
	}

	resp, err := t.base.RoundTrip(out)
	if err != nil {
		return nil, err
	}
	t.client.observe(resp)
	if resp.StatusCode == http.StatusForbidden && csrf != "" {
		t.client.dropCSRF(csrf)
	}
	return resp, nil
}

// replayableBody дозволяє відправити тіло запиту повторно
func replayableBody(req *http.Request) (func() (io.ReadCloser, error), error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	if req.GetBody != nil {
		req.Body.Close()
		return req.GetBody, nil
	}

	data, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return nil, err
	}
	return func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}, nil
}

func drainAndClose(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}
