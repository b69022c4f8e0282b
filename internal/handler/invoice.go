package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pahanaedu/bookstore-billing/internal/auth"
	"github.com/pahanaedu/bookstore-billing/internal/model"
	"github.com/pahanaedu/bookstore-billing/internal/service"
)

type invoiceItemJSON struct {
	BookID    int    `json:"book_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price,omitempty"`
	LineTotal string `json:"line_total,omitempty"`
}

type invoiceJSON struct {
	ID            int               `json:"id"`
	InvoiceNumber string            `json:"invoice_number"`
	ClientID      int               `json:"client_id,omitempty"`
	Status        string            `json:"status"`
	Subtotal      string            `json:"subtotal"`
	Discount      string            `json:"discount"`
	TotalAmount   string            `json:"total_amount"`
	CashGiven     string            `json:"cash_given"`
	ChangeAmount  string            `json:"change_amount"`
	PointsEarned  int               `json:"points_earned"`
	Items         []invoiceItemJSON `json:"items,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

func toInvoiceJSON(inv model.Invoice) invoiceJSON {
	out := invoiceJSON{
		ID:            inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		ClientID:      inv.ClientID,
		Status:        inv.Status,
		Subtotal:      inv.Subtotal.StringFixed(2),
		Discount:      inv.Discount.StringFixed(2),
		TotalAmount:   inv.TotalAmount.StringFixed(2),
		CashGiven:     inv.CashGiven.StringFixed(2),
		ChangeAmount:  inv.ChangeAmount.StringFixed(2),
		PointsEarned:  inv.PointsEarned,
		CreatedAt:     inv.CreatedAt,
	}
	for _, item := range inv.Items {
		out.Items = append(out.Items, invoiceItemJSON{
			BookID:    item.BookID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.StringFixed(2),
			LineTotal: item.LineTotal.StringFixed(2),
		})
	}
	return out
}

func parseAmount(raw json.Number) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw.String())
}

func (h *handler) createInvoice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ClientID  int               `json:"client_id"`
		CashGiven json.Number       `json:"cash_given"`
		Items     []invoiceItemJSON `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	cashGiven, err := parseAmount(req.CashGiven)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	staffID, _ := strconv.Atoi(r.Header.Get(auth.HeaderStaffIDKey))

	createReq := service.CreateInvoiceRequest{
		ClientID:  req.ClientID,
		StaffID:   staffID,
		CashGiven: cashGiven,
	}
	for _, item := range req.Items {
		createReq.Items = append(createReq.Items, service.CreateInvoiceItem{
			BookID:   item.BookID,
			Quantity: item.Quantity,
		})
	}

	invoice, err := h.service.CreateInvoice(r.Context(), createReq)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toInvoiceJSON(invoice))
}

func (h *handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	var (
		invoices []model.Invoice
		err      error
	)
	query := r.URL.Query()
	if term := query.Get("search"); term != "" {
		invoices, err = h.service.SearchInvoices(r.Context(), term, query.Get("type"))
	} else {
		limit, _ := strconv.Atoi(query.Get("limit"))
		offset, _ := strconv.Atoi(query.Get("offset"))
		invoices, err = h.service.ListInvoices(r.Context(), limit, offset)
	}
	if err != nil {
		h.serviceError(w, err)
		return
	}

	out := make([]invoiceJSON, 0, len(invoices))
	for _, invoice := range invoices {
		out = append(out, toInvoiceJSON(invoice))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	invoice, err := h.service.GetInvoice(r.Context(), id)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceJSON(invoice))
}

func (h *handler) deleteInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.service.DeleteInvoice(r.Context(), id); err != nil {
		h.serviceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) completeInvoice(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.CompleteInvoice)
}

func (h *handler) cancelInvoice(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.CancelInvoice)
}

func (h *handler) transition(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, id int) error) {
	id, err := urlID(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := apply(r.Context(), id); err != nil {
		h.serviceError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *handler) emailInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.service.EmailInvoice(r.Context(), id); err != nil {
		h.serviceError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
