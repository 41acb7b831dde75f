package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrUnsupportedMethod is returned for methods outside SupportedMethods.
var ErrUnsupportedMethod = errors.New("unsupported HTTP method")

// SupportedMethods lists the methods a script may use.
var SupportedMethods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodDelete,
	http.MethodPatch,
	http.MethodHead,
}

// NormalizeMethod upper-cases method and checks it is supported. An empty
// method means GET.
func NormalizeMethod(method string) (string, error) {
	if method == "" {
		return http.MethodGet, nil
	}
	upper := strings.ToUpper(method)
	for _, m := range SupportedMethods {
		if m == upper {
			return upper, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedMethod, method)
}

// Request represents a single fetch issued by a script
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    string
}

// NewRequest creates a request, validating the method.
func NewRequest(method, url string) (*Request, error) {
	m, err := NormalizeMethod(method)
	if err != nil {
		return nil, err
	}
	return &Request{
		Method:  m,
		URL:     url,
		Headers: make(map[string]string),
	}, nil
}

// WithHeader adds a header to the request
func (r *Request) WithHeader(key, value string) *Request {
	r.Headers[key] = value
	return r
}

// WithBody sets the body of the request
func (r *Request) WithBody(body string) *Request {
	r.Body = body
	return r
}

// Build constructs an http.Request bound to ctx.
func (r *Request) Build(ctx context.Context) (*http.Request, error) {
	if r.URL == "" {
		return nil, errors.New("empty URL")
	}

	var body *strings.Reader
	if r.Body != "" {
		body = strings.NewReader(r.Body)
	}

	var (
		req *http.Request
		err error
	)
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, r.Method, r.URL, body)
	} else {
		req, err = http.NewRequestWithContext(ctx, r.Method, r.URL, nil)
	}
	if err != nil {
		return nil, err
	}

	for key, value := range r.Headers {
		req.Header.Set(key, value)
	}
	return req, nil
}
