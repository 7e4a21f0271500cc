// Package api is the HTTP surface of the PDV backend.
package api

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/safar/go-pdv/internal/auth"
	"github.com/safar/go-pdv/internal/idempotency"
	"github.com/safar/go-pdv/internal/logger"
	"github.com/safar/go-pdv/internal/metrics"
	"github.com/safar/go-pdv/internal/orders"
	"go.uber.org/zap"
)

const msgUnauthorized = "Para acessar este recurso um token de autenticação válido deve ser enviado."

type Deps struct {
	DB       *sql.DB
	Orders   *orders.Service
	Users    *auth.Service
	Verifier auth.Verifier
	Metrics  *metrics.Metrics
	Log      *zap.Logger

	// Idempotency is optional; nil disables Idempotency-Key handling.
	Idempotency *idempotency.Store

	RequestTimeout time.Duration
}

type Handler struct {
	db      *sql.DB
	orders  *orders.Service
	users   *auth.Service
	gate    *auth.Gate
	metrics *metrics.Metrics
	idem    *idempotency.Store
	log     *zap.Logger
	timeout time.Duration
}

func New(d Deps) *Handler {
	h := &Handler{
		db:      d.DB,
		orders:  d.Orders,
		users:   d.Users,
		metrics: d.Metrics,
		idem:    d.Idempotency,
		log:     d.Log,
		timeout: d.RequestTimeout,
	}
	if h.log == nil {
		h.log = zap.NewNop()
	}
	if h.timeout <= 0 {
		h.timeout = 30 * time.Second
	}
	h.gate = auth.NewGate(d.Verifier, h.deny)
	return h
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(logger.RequestID)
	r.Use(logger.Middleware(h.log))
	r.Use(h.metrics.Middleware)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health)
	r.Handle("/metrics", h.metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(h.timeout))

		r.Post("/usuario", h.registerUser)
		r.Post("/login", h.login)
		r.Get("/usuario", h.gate.Protect(h.profile))

		r.Get("/categoria", h.gate.Protect(h.listCategories))
		r.Get("/produto/{id}", h.gate.Protect(h.getProduct))
		r.Delete("/produto/{id}", h.gate.Protect(h.deleteProduct))

		r.Post("/pedido", h.gate.Protect(h.idempotent(h.createOrder)))
		r.Get("/pedido", h.gate.Protect(h.listOrders))
	})

	return r
}

func (h *Handler) deny(w http.ResponseWriter, r *http.Request, err error) {
	logger.FromContext(r.Context()).Info("unauthorized request", zap.Error(err))
	respondMessage(w, r, http.StatusUnauthorized, msgUnauthorized)
}

// idempotent runs next behind the Idempotency-Key middleware when Redis
// is configured.
func (h *Handler) idempotent(next auth.HandlerFunc) auth.HandlerFunc {
	if h.idem == nil {
		return next
	}
	mw := idempotency.Middleware(h.idem)
	return func(w http.ResponseWriter, r *http.Request, id auth.Identity) {
		mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next(w, r, id)
		})).ServeHTTP(w, r)
	}
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok", "database": "ok"}
	code := http.StatusOK

	if err := h.db.PingContext(r.Context()); err != nil {
		logger.FromContext(r.Context()).Error("database ping failed", zap.Error(err))
		status["status"], status["database"] = "degraded", "unreachable"
		code = http.StatusServiceUnavailable
	}
	if h.idem != nil {
		status["redis"] = "ok"
		if err := h.idem.Ping(r.Context()); err != nil {
			logger.FromContext(r.Context()).Warn("redis ping failed", zap.Error(err))
			status["redis"] = "unreachable"
		}
	}

	respondJSON(w, r, code, status)
}
