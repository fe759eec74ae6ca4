package routing

import (
	"errors"
	"net/http"

	"github.com/km-arc/go-bootstrap/framework/bus"
	gohttp "github.com/km-arc/go-bootstrap/framework/http"
	"github.com/km-arc/go-bootstrap/framework/pipeline"
)

// Endpoint binds the body, query string and route parameters into a Req,
// sends it through the dispatcher and writes the Res as {"data": ...}: 201
// for POST, 200 otherwise. Void requests (Res is pipeline.Unit) answer 204.
// Dispatch errors are mapped by Response.Failure.
func Endpoint[Req, Res any](d *bus.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res := gohttp.NewResponse(w)

		var request Req
		if !bind(r, res, &request) {
			return
		}

		response, err := bus.Send[Req, Res](withRequestID(r), d, request)
		if err != nil {
			res.Failure(err)
			return
		}
		write(r, res, response)
	}
}

// Dispatch is Endpoint for a request whose response type is inferred from the
// single handler registered for Req.
func Dispatch[Req any](d *bus.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res := gohttp.NewResponse(w)

		var request Req
		if !bind(r, res, &request) {
			return
		}

		response, err := d.Dispatch(withRequestID(r), request)
		if err != nil {
			res.Failure(err)
			return
		}
		write(r, res, response)
	}
}

func bind(r *http.Request, res *gohttp.Response, v any) bool {
	if err := gohttp.NewRequest(r).BindAll(v); err != nil {
		msg := "Malformed request."
		if errors.Is(err, gohttp.ErrEmptyBody) {
			msg = "Request body is empty."
		}
		res.Error(http.StatusBadRequest, msg)
		return false
	}
	return true
}

func write(r *http.Request, res *gohttp.Response, response any) {
	switch response.(type) {
	case nil, pipeline.Unit:
		res.NoContent()
		return
	}
	if gohttp.NewRequest(r).Method() == http.MethodPost {
		res.Created(response)
		return
	}
	res.Success(response)
}
