package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"

	apicontract "github.com/tuanvumaihuynh/stock-ledger/api-contract"
	"github.com/tuanvumaihuynh/stock-ledger/internal/apperr"
	"github.com/tuanvumaihuynh/stock-ledger/internal/config"
	"github.com/tuanvumaihuynh/stock-ledger/internal/http/apierr"
	"github.com/tuanvumaihuynh/stock-ledger/internal/http/metric"
	"github.com/tuanvumaihuynh/stock-ledger/internal/http/middleware"
	"github.com/tuanvumaihuynh/stock-ledger/internal/http/swagger"
	"github.com/tuanvumaihuynh/stock-ledger/internal/service"
)

var tracer = otel.Tracer("internal/http")

const APIPrefix = "/api/v1"

// Services are the command/query handlers the REST adapter exposes.
type Services struct {
	Products ProductService
	Stock    StockService
	Serials  SerialService
	Orders   OrderService
	Bulk     BulkService
	// Health is optional; without it /healthz always answers ok.
	Health HealthChecker
}

type HealthChecker interface {
	IsHealthy(ctx context.Context) (bool, error)
}

// ServicesFrom exposes the full command/query API.
func ServicesFrom(svcs *service.Services) Services {
	return Services{
		Products: svcs.Products,
		Stock:    svcs.Ledger,
		Serials:  svcs.Serials,
		Orders:   svcs.Orders,
		Bulk:     svcs.Bulk,
	}
}

// Service represents the HTTP service.
type Service struct {
	cfg      config.HTTP
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *metric.Metrics

	svcs Services
}

type CleanupFunc func(ctx context.Context) error

func New(
	cfg config.HTTP,
	log *slog.Logger,
	svcs Services,
) *Service {
	registry := prometheus.NewRegistry()
	return &Service{
		cfg:      cfg,
		logger:   log.With(slog.String("service", "http")),
		registry: registry,
		metrics:  metric.New(registry),
		svcs:     svcs,
	}
}

func (s *Service) Run(ctx context.Context) (CleanupFunc, error) {
	handler, err := s.Handler(ctx)
	if err != nil {
		return nil, err
	}
	return s.RunWithServer(ctx, handler)
}

// Handler builds the router. The embedded API contract is validated first
// when docs are served.
func (s *Service) Handler(ctx context.Context) (http.Handler, error) {
	r := chi.NewRouter()
	s.RegisterMiddlewares(r)

	if s.cfg.Swagger {
		doc, err := apicontract.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("api contract: %w", err)
		}
		if err := swagger.Register(r, doc); err != nil {
			return nil, fmt.Errorf("register swagger: %w", err)
		}
	}

	s.RegisterHandlers(r)
	return r, nil
}

func (s *Service) RunWithServer(ctx context.Context, handler http.Handler) (CleanupFunc, error) {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 16, // 64 KB
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", srv.Addr, err)
	}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.ErrorContext(ctx, "http server stopped unexpectedly", slog.Any("error", err))
		}
	}()

	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}, nil
}

func (s *Service) RegisterMiddlewares(r chi.Router) {
	r.Use(
		middleware.Recoverer(s.logger),
		middleware.Trace(tracer),
		middleware.Metrics(s.metrics),
		middleware.CorrelationID(),
		middleware.Cors(s.cfg.AllowedOrigins),
		middleware.Logging(s.logger),
	)
}

func (s *Service) RegisterHandlers(r chi.Router) {
	r.Get("/healthz", s.health)

	r.Route(APIPrefix, func(r chi.Router) {
		newProductHandler(s, s.svcs.Products).register(r)
		newStockHandler(s, s.svcs.Stock).register(r)
		newSerialHandler(s, s.svcs.Serials).register(r)
		newOrderHandler(s, s.svcs.Orders).register(r)
		newBulkHandler(s, s.svcs.Bulk).register(r)
	})

	r.Handle(middleware.MetricsPath, promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		ErrorLog: log.Default(),
	}))
}

func (s *Service) health(w http.ResponseWriter, r *http.Request) {
	if s.svcs.Health != nil {
		if ok, err := s.svcs.Health.IsHealthy(r.Context()); !ok {
			s.logger.WarnContext(r.Context(), "health check failed", slog.Any("error", err))
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlerFunc is an endpoint that reports failures instead of writing them.
type handlerFunc func(w http.ResponseWriter, r *http.Request) error

func (s *Service) handle(fn handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			s.handleResponseError(w, r, err)
		}
	}
}

func (s *Service) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WarnContext(r.Context(), "error encoding response", slog.Any("error", err))
	}
}

func (s *Service) handleResponseError(w http.ResponseWriter, r *http.Request, err error) {
	res := apierr.New(err)

	logLevel := slog.LevelInfo
	if res.StatusCode >= 500 {
		logLevel = slog.LevelError
	} else if res.StatusCode >= 400 {
		logLevel = slog.LevelWarn
	}
	s.logger.Log(r.Context(), logLevel, "http response error", slog.Any("error", err))

	s.writeJSON(w, r, res.StatusCode, res)
}

// decodeBody reads a JSON request body into dst, rejecting unknown fields.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperr.NewValidation("invalid request body: %v", err).WrapParent(err)
	}
	return nil
}
