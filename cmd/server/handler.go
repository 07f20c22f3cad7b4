package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/linnemanlabs/go-core/httpmw"
	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/packassist/internal/authmw"
	"github.com/linnemanlabs/packassist/internal/chatapi"
)

const (
	healthyPath = "/-/healthy"
	readyPath   = "/-/ready"

	// larger than chatapi's own per-request limit so that one answers with JSON
	maxRequestBody = 64 * 1024
)

// handlerDeps is everything the public listener needs.
type handlerDeps struct {
	logger      log.Logger
	chat        chatapi.ChatService
	apiToken    string
	trustedHops int
	healthz     http.HandlerFunc
	readyz      http.HandlerFunc
	// metrics wraps the whole stack when set.
	metrics func(http.Handler) http.Handler
}

// newAPIHandler builds the chat API router and wraps it in the middleware
// stack. Wrappers applied later run earlier on the request.
func newAPIHandler(d handlerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Compress(5, "application/json"))
	r.Use(httpmw.AnnotateHTTPRoute)
	r.Use(httpmw.AccessLog())
	r.Use(httpmw.MaxBody(maxRequestBody))

	// probes stay unauthenticated for the load balancer
	r.Get(healthyPath, d.healthz)
	r.Get(readyPath, d.readyz)

	api := chatapi.New(d.logger, d.chat)
	r.Group(func(r chi.Router) {
		r.Use(authmw.BearerToken(d.apiToken))
		api.RegisterRoutes(r)
	})

	var h http.Handler = r
	h = httpmw.WithLogger(d.logger)(h)
	h = httpmw.TraceResponseHeaders("X-Trace-Id", "X-Span-Id")(h)
	h = otelhttp.NewHandler(h, "http.server",
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != healthyPath && r.URL.Path != readyPath
		}),
		// AnnotateHTTPRoute renames the span to the chi pattern once routed
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
		otelhttp.WithPublicEndpointFn(func(_ *http.Request) bool { return true }),
	)
	if d.metrics != nil {
		h = d.metrics(h)
	}
	h = httpmw.ClientIPWithOptions(httpmw.ClientIPOptions{TrustedHops: d.trustedHops})(h)
	h = httpmw.RequestID("X-Request-Id")(h)
	h = httpmw.Recover(d.logger, nil)(h)
	h = httpmw.SecurityHeaders(h)
	return h
}
