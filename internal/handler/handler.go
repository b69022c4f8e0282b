// Package handler exposes the service over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pahanaedu/bookstore-billing/internal/auth"
	"github.com/pahanaedu/bookstore-billing/internal/handler/config"
	"github.com/pahanaedu/bookstore-billing/internal/logger"
	"github.com/pahanaedu/bookstore-billing/internal/model"
	"github.com/pahanaedu/bookstore-billing/internal/policy"
	"github.com/pahanaedu/bookstore-billing/internal/service"
)

func Serve(cfg config.Config, auth auth.Auth, service service.Service, policies policy.PolicyStore, zaplog *zap.Logger) error {
	h := newHandler(auth, service, policies, zaplog)

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      h.newRouter(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt)
		<-c
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			zaplog.Error("server shutdown", zap.Error(err))
		}
		close(idleConnsClosed)
	}()

	zaplog.Info("starting billing service", zap.String("addr", cfg.ServerAddr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-idleConnsClosed
	return nil
}

type handler struct {
	auth     auth.Auth
	service  service.Service
	policies policy.PolicyStore
	zaplog   *zap.Logger
}

func newHandler(auth auth.Auth, service service.Service, policies policy.PolicyStore, zaplog *zap.Logger) *handler {
	return &handler{
		auth:     auth,
		service:  service,
		policies: policies,
		zaplog:   zaplog,
	}
}

func (h *handler) newRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(logger.RequestLogMdlw(h.zaplog))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Post("/api/auth/register", h.auth.Register)
	r.Post("/api/auth/login", h.auth.Login)

	r.Group(func(r chi.Router) {
		r.Use(h.auth.Middleware)

		r.Route("/api/clients", func(r chi.Router) {
			r.Post("/", h.createClient)
			r.Get("/", h.listClients)
			r.Get("/account/{number}", h.getClientByAccount)
			r.Get("/{id}", h.getClient)
			r.Put("/{id}", h.updateClient)
			r.Delete("/{id}", h.deleteClient)
		})

		r.Route("/api/books", func(r chi.Router) {
			r.Post("/", h.createBook)
			r.Get("/", h.listBooks)
			r.Get("/{id}", h.getBook)
		})

		r.Route("/api/billing/invoices", func(r chi.Router) {
			r.Post("/", h.createInvoice)
			r.Get("/", h.listInvoices)
			r.Get("/{id}", h.getInvoice)
			r.Delete("/{id}", h.deleteInvoice)
			r.Post("/{id}/complete", h.completeInvoice)
			r.Post("/{id}/cancel", h.cancelInvoice)
			r.Post("/{id}/email", h.emailInvoice)
		})

		r.Route("/api/admin/loyalty", func(r chi.Router) {
			r.Use(h.auth.RequireManager)
			r.Get("/", h.getActivePolicy)
			r.Post("/", h.activatePolicy)
			r.Get("/history", h.policyHistory)
			r.Get("/tiers", h.tierStatistics)
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// serviceError maps service sentinel errors to HTTP statuses.
func (h *handler) serviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInsufficientData),
		errors.Is(err, service.ErrBadAccountNumber):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, service.ErrClientNotFound),
		errors.Is(err, service.ErrBookNotFound),
		errors.Is(err, service.ErrInvoiceNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, service.ErrAlreadyExists):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, service.ErrInvalidStatus):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, service.ErrLedgerUpdateFailed):
		// the invoice exists but its points were not applied; the
		// operator must see this distinctly, not as a plain 500
		h.zaplog.Error("ledger out of sync", zap.Error(err))
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func urlID(r *http.Request) (int, error) {
	return strconv.Atoi(chi.URLParam(r, "id"))
}

// Clients

type clientJSON struct {
	ID            int    `json:"id"`
	AccountNumber string `json:"account_number"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	Email         string `json:"email,omitempty"`
	Phone         string `json:"phone"`
	PointBalance  int    `json:"point_balance"`
	TierLevel     string `json:"tier_level"`
}

func toClientJSON(c model.Client) clientJSON {
	return clientJSON{
		ID:            c.ID,
		AccountNumber: c.AccountNumber,
		FirstName:     c.FirstName,
		LastName:      c.LastName,
		Email:         c.Email,
		Phone:         c.Phone,
		PointBalance:  c.PointBalance,
		TierLevel:     c.TierLevel,
	}
}

func (h *handler) createClient(w http.ResponseWriter, r *http.Request) {
	var req clientJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	client, err := h.service.CreateClient(r.Context(), model.Client{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
	})
	if err != nil {
		h.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toClientJSON(client))
}

func (h *handler) listClients(w http.ResponseWriter, r *http.Request) {
	var (
		clients []model.Client
		err     error
	)
	if term := r.URL.Query().Get("search"); term != "" {
		clients, err = h.service.SearchClients(r.Context(), term)
	} else {
		clients, err = h.service.ListClients(r.Context())
	}
	if err != nil {
		h.serviceError(w, err)
		return
	}

	out := make([]clientJSON, 0, len(clients))
	for _, client := range clients {
		out = append(out, toClientJSON(client))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) getClient(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	client, err := h.service.GetClient(r.Context(), id)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toClientJSON(client))
}

func (h *handler) getClientByAccount(w http.ResponseWriter, r *http.Request) {
	client, err := h.service.GetClientByAccountNumber(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		h.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toClientJSON(client))
}

func (h *handler) updateClient(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var req clientJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = h.service.UpdateClient(r.Context(), model.Client{
		ID:        id,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
	})
	if err != nil {
		h.serviceError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *handler) deleteClient(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.service.DeleteClient(r.Context(), id); err != nil {
		h.serviceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Books

type bookJSON struct {
	ID       int    `json:"id"`
	ISBN     string `json:"isbn"`
	Title    string `json:"title"`
	Author   string `json:"author,omitempty"`
	Category string `json:"category,omitempty"`
	Price    string `json:"price"`
	Stock    int    `json:"stock"`
}

func toBookJSON(b model.Book) bookJSON {
	return bookJSON{
		ID:       b.ID,
		ISBN:     b.ISBN,
		Title:    b.Title,
		Author:   b.Author,
		Category: b.Category,
		Price:    b.Price.StringFixed(2),
		Stock:    b.Stock,
	}
}

func (h *handler) createBook(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ISBN     string      `json:"isbn"`
		Title    string      `json:"title"`
		Author   string      `json:"author"`
		Category string      `json:"category"`
		Price    json.Number `json:"price"`
		Stock    int         `json:"stock"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	price, err := parseAmount(req.Price)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	book, err := h.service.CreateBook(r.Context(), model.Book{
		ISBN:     req.ISBN,
		Title:    req.Title,
		Author:   req.Author,
		Category: req.Category,
		Price:    price,
		Stock:    req.Stock,
	})
	if err != nil {
		h.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBookJSON(book))
}

func (h *handler) listBooks(w http.ResponseWriter, r *http.Request) {
	var (
		books []model.Book
		err   error
	)
	if term := r.URL.Query().Get("search"); term != "" {
		books, err = h.service.SearchBooks(r.Context(), term)
	} else {
		books, err = h.service.ListBooks(r.Context())
	}
	if err != nil {
		h.serviceError(w, err)
		return
	}

	out := make([]bookJSON, 0, len(books))
	for _, book := range books {
		out = append(out, toBookJSON(book))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) getBook(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	book, err := h.service.GetBook(r.Context(), id)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookJSON(book))
}

func (h *handler) tierStatistics(w http.ResponseWriter, r *http.Request) {
	counts, err := h.service.TierStatistics(r.Context())
	if err != nil {
		h.serviceError(w, err)
		return
	}

	type tierCountJSON struct {
		TierLevel string `json:"tier_level"`
		Clients   int    `json:"clients"`
	}
	out := make([]tierCountJSON, 0, len(counts))
	for _, count := range counts {
		out = append(out, tierCountJSON{TierLevel: count.TierLevel, Clients: count.Clients})
	}
	writeJSON(w, http.StatusOK, out)
}
