package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/km-arc/go-bootstrap/framework/errs"
	"github.com/km-arc/go-bootstrap/framework/http/validation"
)

// StatusCoder is implemented by handler errors that pick their own status.
//
//	type NotFoundError struct{ ID string }
//	func (e NotFoundError) Error() string   { return "order " + e.ID + " not found" }
//	func (e NotFoundError) StatusCode() int { return http.StatusNotFound }
type StatusCoder interface {
	StatusCode() int
}

// ── Response ─────────────────────────────────────────────────────────────────

// Response wraps http.ResponseWriter with JSON helpers.
type Response struct {
	w http.ResponseWriter
}

// NewResponse wraps a ResponseWriter.
func NewResponse(w http.ResponseWriter) *Response {
	return &Response{w: w}
}

// Raw returns the underlying ResponseWriter.
func (res *Response) Raw() http.ResponseWriter { return res.w }

// JSON sends a JSON response.
//
//	res.JSON(http.StatusOK, map[string]any{"message": "ok"})
func (res *Response) JSON(status int, data any) {
	res.w.Header().Set("Content-Type", "application/json")
	res.w.WriteHeader(status)
	_ = json.NewEncoder(res.w).Encode(data)
}

// Success sends 200 JSON: {"data": v}
func (res *Response) Success(v any) {
	res.JSON(http.StatusOK, envelope{"data": v})
}

// Created sends 201 JSON: {"data": v}
func (res *Response) Created(v any) {
	res.JSON(http.StatusCreated, envelope{"data": v})
}

// NoContent sends 204 with no body.
func (res *Response) NoContent() {
	res.w.WriteHeader(http.StatusNoContent)
}

// Error sends a JSON error response.
//
//	res.Error(http.StatusNotFound, "Resource not found")
func (res *Response) Error(status int, message string) {
	res.JSON(status, envelope{"message": message})
}

// NotFound sends 404.
func (res *Response) NotFound(message ...string) {
	res.Error(http.StatusNotFound, first(message, "Not found."))
}

// ServerError sends 500.
func (res *Response) ServerError(message ...string) {
	res.Error(http.StatusInternalServerError, first(message, "Server Error."))
}

// ValidationError sends 422 with the error bag.
func (res *Response) ValidationError(bag *validation.Errors) {
	res.JSON(http.StatusUnprocessableEntity, bag)
}

// Failure maps a dispatch error to a response:
//
//	validation failures        422 {"errors": {...}}
//	StatusCoder                its status, {"message": err}
//	configuration errors       500 {"message": "Server Error.", "code": CODE}
//	deadline exceeded          504
//	anything else              500 {"message": "Server Error."}
//
// It returns the status written.
func (res *Response) Failure(err error) int {
	if bag, ok := validation.From(err); ok {
		res.ValidationError(bag)
		return http.StatusUnprocessableEntity
	}
	var sc StatusCoder
	if errors.As(err, &sc) {
		status := sc.StatusCode()
		res.Error(status, err.Error())
		return status
	}
	if code := errs.CodeOf(err); code != "" {
		res.JSON(http.StatusInternalServerError, envelope{"message": "Server Error.", "code": code})
		return http.StatusInternalServerError
	}
	if errors.Is(err, context.DeadlineExceeded) {
		res.Error(http.StatusGatewayTimeout, "Request timed out.")
		return http.StatusGatewayTimeout
	}
	res.ServerError()
	return http.StatusInternalServerError
}

// ── Helpers ──────────────────────────────────────────────────────────────────

type envelope map[string]any

func first(ss []string, fallback string) string {
	if len(ss) > 0 && ss[0] != "" {
		return ss[0]
	}
	return fallback
}
