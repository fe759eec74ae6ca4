package routing_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-bootstrap/framework/app"
	"github.com/km-arc/go-bootstrap/framework/bus"
	"github.com/km-arc/go-bootstrap/framework/config"
	"github.com/km-arc/go-bootstrap/framework/container"
	"github.com/km-arc/go-bootstrap/framework/logging"
	"github.com/km-arc/go-bootstrap/framework/pipeline"
	"github.com/km-arc/go-bootstrap/framework/routing"
)

type PlaceOrder struct {
	Item string `json:"item" validate:"required"`
	Qty  int    `json:"qty" validate:"gte=1"`
}

type OrderPlaced struct {
	ID   string `json:"id"`
	Item string `json:"item"`
	Qty  int    `json:"qty"`
}

type GetOrder struct {
	ID string `json:"id"`
}

type Order struct {
	ID string `json:"id"`
}

type CancelOrder struct {
	ID string `json:"id"`
}

type orderNotFound struct{ id string }

func (e orderNotFound) Error() string   { return "order " + e.id + " not found" }
func (e orderNotFound) StatusCode() int { return http.StatusNotFound }

// metricsRegistry points the stock metrics at a private registry.
type metricsRegistry struct {
	container.BaseProvider
	reg *prometheus.Registry
}

func (p *metricsRegistry) Register(cat *container.Catalog) error {
	if _, err := cat.Instance(container.Key[prometheus.Registerer](), p.reg); err != nil {
		return err
	}
	_, err := cat.Instance(container.Key[prometheus.Gatherer](), p.reg)
	return err
}

func orderDescriptors(cancelled *[]string) []container.Descriptor {
	return []container.Descriptor{
		pipeline.HandlerDescriptor("PlaceOrderHandler", func(container.Activation) (pipeline.RequestHandler[PlaceOrder, OrderPlaced], error) {
			return pipeline.RequestHandlerFunc[PlaceOrder, OrderPlaced](func(_ context.Context, o PlaceOrder) (OrderPlaced, error) {
				return OrderPlaced{ID: "o-1", Item: o.Item, Qty: o.Qty}, nil
			}), nil
		}),
		pipeline.HandlerDescriptor("GetOrderHandler", func(container.Activation) (pipeline.RequestHandler[GetOrder, Order], error) {
			return pipeline.RequestHandlerFunc[GetOrder, Order](func(_ context.Context, q GetOrder) (Order, error) {
				if q.ID == "missing" {
					return Order{}, orderNotFound{id: q.ID}
				}
				return Order{ID: q.ID}, nil
			}), nil
		}),
		pipeline.HandlerDescriptor("CancelOrderHandler", func(container.Activation) (pipeline.RequestHandler[CancelOrder, pipeline.Unit], error) {
			return pipeline.RequestHandlerFunc[CancelOrder, pipeline.Unit](func(_ context.Context, c CancelOrder) (pipeline.Unit, error) {
				*cancelled = append(*cancelled, c.ID)
				return pipeline.Unit{}, nil
			}), nil
		}),
	}
}

type ingress struct {
	app       *app.Application
	router    *routing.Router
	out       *bytes.Buffer
	cancelled []string
}

func newIngress(t *testing.T) *ingress {
	t.Helper()
	in := &ingress{out: &bytes.Buffer{}}

	application, err := app.Bootstrap(context.Background(), app.Options{
		Config: &config.Config{
			App:      config.AppConfig{Name: "Orders", Env: "testing", Port: "0"},
			Log:      config.LogConfig{Level: "debug", Format: config.FormatText},
			Dispatch: config.DispatchConfig{Validate: true, Metrics: true},
		},
		Registry:    logging.NewRegistry(),
		LogOutput:   in.out,
		Descriptors: orderDescriptors(&in.cancelled),
		Providers: []container.ServiceProvider{
			&metricsRegistry{reg: prometheus.NewRegistry()},
			&routing.Provider{
				MetricsPath: "/metrics",
				Addr:        "127.0.0.1:0",
				Routes: func(r *routing.Router, d *bus.Dispatcher) {
					r.Prefix("/orders", func(orders *routing.Router) {
						orders.Post("/", routing.Endpoint[PlaceOrder, OrderPlaced](d))
						orders.Get("/{id}", routing.Dispatch[GetOrder](d))
						orders.Delete("/{id}", routing.Endpoint[CancelOrder, pipeline.Unit](d))
					})
				},
			},
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Shutdown() })

	in.app = application
	in.router, err = container.Resolve[*routing.Router](application.Root())
	require.NoError(t, err)
	return in
}

func (in *ingress) do(method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	in.router.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&m))
	return m
}

// ── Endpoint ──────────────────────────────────────────────────────────────────

func TestEndpoint_PostCreates(t *testing.T) {
	in := newIngress(t)

	rr := in.do(http.MethodPost, "/orders/", `{"item":"tea","qty":2}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, map[string]any{"id": "o-1", "item": "tea", "qty": float64(2)}, decode(t, rr)["data"])
}

func TestEndpoint_ValidationFailureIs422(t *testing.T) {
	in := newIngress(t)

	rr := in.do(http.MethodPost, "/orders/", `{"qty":0}`)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	bag, ok := decode(t, rr)["errors"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []any{"The item field is required."}, bag["item"])
	assert.Equal(t, []any{"The qty must be greater than or equal to 1."}, bag["qty"])
}

func TestEndpoint_MalformedBodyIs400(t *testing.T) {
	in := newIngress(t)

	rr := in.do(http.MethodPost, "/orders/", `{"item":`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Malformed request.", decode(t, rr)["message"])
}

func TestEndpoint_UnitAnswersNoContent(t *testing.T) {
	in := newIngress(t)

	rr := in.do(http.MethodDelete, "/orders/o-9", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, []string{"o-9"}, in.cancelled)
}

func TestEndpoint_StampsRequestIDOnDispatchLogs(t *testing.T) {
	in := newIngress(t)

	req := httptest.NewRequest(http.MethodDelete, "/orders/o-3", nil)
	req.Header.Set("X-Request-Id", "req-77")
	in.router.ServeHTTP(httptest.NewRecorder(), req)

	assert.Contains(t, in.out.String(), "[req-77][LoggingBehavior<CancelOrder,Unit>]  Handling CancelOrder")
}

// ── Dispatch ──────────────────────────────────────────────────────────────────

func TestDispatch_InfersResponseType(t *testing.T) {
	in := newIngress(t)

	rr := in.do(http.MethodGet, "/orders/o-5", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, map[string]any{"id": "o-5"}, decode(t, rr)["data"])
}

func TestDispatch_HandlerStatusCode(t *testing.T) {
	in := newIngress(t)

	rr := in.do(http.MethodGet, "/orders/missing", "")
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "order missing not found", decode(t, rr)["message"])
}

// ── Provider ──────────────────────────────────────────────────────────────────

func TestProvider_MetricsEndpointServesDispatchCounters(t *testing.T) {
	in := newIngress(t)
	in.do(http.MethodGet, "/orders/o-1", "")

	rr := in.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `dispatch_requests_total{outcome="success",request="GetOrder"} 1`)
}

func TestProvider_ServerIsLongRunningService(t *testing.T) {
	in := newIngress(t)
	require.NoError(t, in.app.Start(context.Background()))

	services, err := container.ResolveAll[app.LongRunningService](in.app.Root(), app.LongRunningServiceKey())
	require.NoError(t, err)
	require.Len(t, services, 1)
	srv, ok := services[0].(*routing.Server)
	require.True(t, ok)

	resp, err := http.Get("http://" + srv.Addr() + "/orders/o-8")
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, in.out.String(), "[HttpServer]  Listening on 127.0.0.1:")

	require.NoError(t, in.app.Shutdown())
	_, err = http.Get("http://" + srv.Addr() + "/orders/o-8")
	assert.Error(t, err)
}

// ── Server ────────────────────────────────────────────────────────────────────

func TestServer_StartTwiceFails(t *testing.T) {
	srv := routing.NewServer("127.0.0.1:0", http.NotFoundHandler(), nil)
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() { _ = srv.Dispose() })

	assert.Error(t, srv.Start(context.Background()))
}

func TestServer_DisposeIsIdempotent(t *testing.T) {
	srv := routing.NewServer("127.0.0.1:0", http.NotFoundHandler(), nil)
	require.NoError(t, srv.Start(context.Background()))

	require.NoError(t, srv.Dispose())
	require.NoError(t, srv.Dispose())
	assert.ErrorIs(t, srv.Start(context.Background()), http.ErrServerClosed)
}
