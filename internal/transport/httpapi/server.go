// Package httpapi exposes client sessions and their recurring orders over
// HTTP. Errors are JSON objects of the form {"error": msg, "code": code}.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"reorder/internal/cart"
	"reorder/internal/recurring/scheduler"
	logx "reorder/pkg/logx"
)

// Sessions is the session registry the API drives.
type Sessions interface {
	Activate(ctx context.Context, clientID string) (*scheduler.Driver, bool, error)
	Deactivate(ctx context.Context, clientID string) error
	Driver(clientID string) (*scheduler.Driver, error)
	List() []scheduler.Snapshot
}

// Carts gives access to each client's cart.
type Carts interface {
	For(clientID string) *cart.Cart
}

type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Pprof        bool
}

type Server struct {
	cfg      Config
	sessions Sessions
	carts    Carts
	log      logx.Logger

	srv *http.Server
}

func New(cfg Config, sessions Sessions, carts Carts, log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = "127.0.0.1:8080"
	}
	return &Server{cfg: cfg, sessions: sessions, carts: carts, log: log}
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)
	r.NotFound(notFound)
	r.MethodNotAllowed(methodNotAllowed)

	r.Get("/healthz", s.handleHealth)
	if s.cfg.Pprof {
		r.Mount("/debug", middleware.Profiler())
	}

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.handleListSessions)
		r.Put("/{clientID}", s.handleActivate)
		r.Delete("/{clientID}", s.handleDeactivate)
	})

	r.Route("/clients/{clientID}", func(r chi.Router) {
		r.Get("/recurring-orders", s.handleListOrders)
		r.Post("/recurring-orders", s.handleCreateOrder)
		r.Get("/recurring-orders/{id}", s.handleGetOrder)
		r.Patch("/recurring-orders/{id}", s.handleUpdateOrder)
		r.Delete("/recurring-orders/{id}", s.handleDeleteOrder)
		r.Post("/recurring-orders/{id}/toggle", s.handleToggleOrder)
		r.Post("/recurring-orders/{id}/execute", s.handleExecuteOrder)
		r.Post("/scan", s.handleScan)
		r.Get("/due-count", s.handleDueCount)
		r.Get("/cart", s.handleCart)
	})
	return r
}

// Serve listens on the configured address until ctx ends, then shuts down
// gracefully within shutdownTimeout.
func (s *Server) Serve(ctx context.Context, shutdownTimeout time.Duration) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.srv = &http.Server{
		Handler:           s.Handler(),
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(ln) }()
	s.log.Info("http api listening", logx.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(sctx); err != nil {
		s.log.Warn("http api shutdown incomplete", logx.Err(err))
		_ = s.srv.Close()
	}
	s.log.Info("http api stopped")
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// fail writes the response for err. Unclassified errors are logged and
// reported without detail.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, ok := classify(err)
	if !ok {
		s.log.Error("request error", logx.String("method", r.Method), logx.String("path", r.URL.Path), logx.Err(err))
		writeError(w, status, code, "internal error")
		return
	}
	writeError(w, status, code, err.Error())
}

// driver resolves the session driver named by the {clientID} route param.
func (s *Server) driver(w http.ResponseWriter, r *http.Request) (*scheduler.Driver, bool) {
	d, err := s.sessions.Driver(chi.URLParam(r, "clientID"))
	if err != nil {
		s.fail(w, r, err)
		return nil, false
	}
	return d, true
}
