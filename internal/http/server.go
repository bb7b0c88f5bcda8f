// Package http exposes the budget service as a JSON API.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"budget/internal/services"
)

type Server struct {
	httpServer   *http.Server
	limits       *services.LimitService
	transactions *services.TransactionService
	categories   *services.CategoryService
	limiter      *rateLimiter
}

func NewServer(addr string, limits *services.LimitService, transactions *services.TransactionService, categories *services.CategoryService) *Server {
	s := &Server{
		limits:       limits,
		transactions: transactions,
		categories:   categories,
		limiter:      newRateLimiter(),
	}

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("GET /api/limit", s.handleGetLimit)
	mux.HandleFunc("POST /api/limit", s.handleSetLimit)
	mux.HandleFunc("DELETE /api/limit", s.handleRemoveLimit)
	mux.HandleFunc("GET /api/limit/future", s.handleGetFutureLimit)
	mux.HandleFunc("POST /api/limit/future", s.handleSetFutureLimit)
	mux.HandleFunc("PUT /api/limit/future", s.handleReplaceFutureLimit)
	mux.HandleFunc("POST /api/limit/check", s.handleCheckLimit)

	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("POST /api/transactions", s.handleAddTransaction)
	mux.HandleFunc("GET /api/transactions/{id}", s.handleGetTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)
	mux.HandleFunc("GET /api/report", s.handleReport)

	mux.HandleFunc("GET /api/categories", s.handleListCategories)
	mux.HandleFunc("POST /api/categories", s.handleCreateCategory)
	mux.HandleFunc("GET /api/categories/{id}", s.handleGetCategory)
	mux.HandleFunc("PUT /api/categories/{id}", s.handleUpdateCategory)
	mux.HandleFunc("DELETE /api/categories/{id}", s.handleDeleteCategory)

	return withRequestLog(s.limiter.middleware(withSecurityHeaders(mux)))
}

// withSecurityHeaders sets the response headers appropriate for a JSON API.
func withSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) Start() error {
	slog.Info("HTTP server listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down HTTP server")
	s.limiter.stop()
	return s.httpServer.Shutdown(ctx)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready"))
}
