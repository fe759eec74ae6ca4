// Package http holds the JSON request and response helpers of the HTTP
// ingress.
//
//	req := gohttp.NewRequest(r)
//	var cmd PlaceOrder
//	if err := req.BindAll(&cmd); err != nil {
//	    gohttp.NewResponse(w).Error(http.StatusBadRequest, err.Error())
//	    return
//	}
package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const maxMemory = 32 << 20 // 32 MB

// ErrEmptyBody is returned by Bind for a request without a body.
var ErrEmptyBody = errors.New("empty request body")

// Request wraps *http.Request with binding and input helpers.
type Request struct {
	raw *http.Request
}

// NewRequest wraps a standard *http.Request.
func NewRequest(r *http.Request) *Request {
	return &Request{raw: r}
}

// Raw returns the underlying *http.Request.
func (req *Request) Raw() *http.Request { return req.raw }

// ── Binding ──────────────────────────────────────────────────────────────────

// Bind decodes the request body into v.
// Supports JSON and application/x-www-form-urlencoded / multipart.
// Fields map via their `json` tags in every case.
func (req *Request) Bind(v any) error {
	ct := req.ContentType()

	switch {
	case strings.Contains(ct, "application/json"):
		return req.bindJSON(v)
	case strings.Contains(ct, "multipart/form-data"):
		if err := req.raw.ParseMultipartForm(maxMemory); err != nil {
			return err
		}
		return bindValues(req.raw.MultipartForm.Value, v)
	default:
		if err := req.raw.ParseForm(); err != nil {
			return err
		}
		return bindValues(req.raw.PostForm, v)
	}
}

// BindParams copies query-string values and chi route parameters into v.
// Route parameters win over query values with the same name. Only string
// fields can receive them.
func (req *Request) BindParams(v any) error {
	values := map[string][]string(req.raw.URL.Query())
	if rctx := chi.RouteContext(req.raw.Context()); rctx != nil {
		for i, key := range rctx.URLParams.Keys {
			if key == "*" || i >= len(rctx.URLParams.Values) {
				continue
			}
			values[key] = []string{rctx.URLParams.Values[i]}
		}
	}
	if len(values) == 0 {
		return nil
	}
	return bindValues(values, v)
}

// BindAll binds the body when the request has one, then the query string
// and route parameters.
func (req *Request) BindAll(v any) error {
	if req.HasBody() {
		if err := req.Bind(v); err != nil {
			return err
		}
	}
	return req.BindParams(v)
}

// HasBody reports whether the request carries a body worth decoding.
func (req *Request) HasBody() bool {
	switch req.Method() {
	case http.MethodGet, http.MethodHead, http.MethodDelete, http.MethodOptions:
		return false
	}
	return req.raw.Body != nil && req.raw.Body != http.NoBody && req.raw.ContentLength != 0
}

func (req *Request) bindJSON(v any) error {
	defer req.raw.Body.Close()
	body, err := io.ReadAll(req.raw.Body)
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return ErrEmptyBody
	}
	return json.Unmarshal(body, v)
}

// bindValues maps form values onto a struct through a JSON round-trip, so
// `json` tags decide the field names.
func bindValues(values map[string][]string, v any) error {
	m := make(map[string]any, len(values))
	for k, vals := range values {
		if len(vals) == 1 {
			m[k] = vals[0]
		} else {
			m[k] = vals
		}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// ── Input helpers ────────────────────────────────────────────────────────────

// RouteParam returns a URL route parameter (chi).
func (req *Request) RouteParam(key string) string {
	return chi.URLParam(req.raw, key)
}

// Header returns a request header value.
func (req *Request) Header(key string) string {
	return req.raw.Header.Get(key)
}

// BearerToken extracts the token from Authorization: Bearer <token>.
func (req *Request) BearerToken() string {
	auth := req.Header("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// RequestID is the id assigned by chi's RequestID middleware, or the
// X-Request-Id header when the middleware is not installed.
func (req *Request) RequestID() string {
	if id := middleware.GetReqID(req.raw.Context()); id != "" {
		return id
	}
	return req.raw.Header.Get(middleware.RequestIDHeader)
}

// Method returns the HTTP method.
func (req *Request) Method() string { return req.raw.Method }

// Path returns the URL path.
func (req *Request) Path() string { return req.raw.URL.Path }

// ContentType returns the Content-Type header value.
func (req *Request) ContentType() string {
	return req.Header("Content-Type")
}

// IsJSON returns true when the request expects a JSON response.
func (req *Request) IsJSON() bool {
	return strings.Contains(req.Header("Accept"), "application/json") ||
		strings.Contains(req.ContentType(), "application/json")
}
