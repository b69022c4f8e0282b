package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/pahanaedu/bookstore-billing/internal/billing"
	"github.com/pahanaedu/bookstore-billing/internal/loyalty"
	"github.com/pahanaedu/bookstore-billing/internal/model"
	"github.com/pahanaedu/bookstore-billing/internal/store"
)

type CreateInvoiceRequest struct {
	ClientID  int // 0 for a walk-in sale
	StaffID   int
	CashGiven decimal.Decimal
	Items     []CreateInvoiceItem
}

type CreateInvoiceItem struct {
	BookID   int
	Quantity int
}

// CreateInvoice runs the billing sequence: snapshot the active policy
// and the client's balance, classify, compute totals, persist the
// invoice with its points frozen in, then credit the ledger. The
// discount reflects the tier at time of purchase; later point or policy
// changes never alter a computed invoice.
func (service *service) CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (model.Invoice, error) {
	activePolicy := service.policies.GetActive()

	var client model.Client
	discountPercent := decimal.Zero
	if req.ClientID > 0 {
		var err error
		client, err = service.GetClient(ctx, req.ClientID)
		if err != nil {
			return model.Invoice{}, err
		}
		_, discountPercent = loyalty.Classify(activePolicy, client.PointBalance)
	}

	items, err := service.resolveItems(ctx, req.Items)
	if err != nil {
		return model.Invoice{}, err
	}

	result, err := billing.Compute(items, discountPercent, activePolicy)
	if err != nil {
		return model.Invoice{}, err
	}
	for i := range items {
		items[i].LineTotal = result.LineTotals[i]
	}

	// a walk-in sale has no ledger to credit; the frozen points must
	// stay zero so they always equal what was actually credited
	if req.ClientID == 0 {
		result.PointsEarned = 0
	}

	number, err := service.store.InvoiceNextNumber(ctx)
	if err != nil {
		return model.Invoice{}, err
	}

	invoice := model.Invoice{
		InvoiceNumber: number,
		ClientID:      req.ClientID,
		StaffID:       req.StaffID,
		Status:        model.InvoiceStatusPending,
		Subtotal:      result.Subtotal,
		Discount:      result.Discount,
		TotalAmount:   result.TotalAmount,
		CashGiven:     req.CashGiven.Round(2),
		ChangeAmount:  billing.Change(result.TotalAmount, req.CashGiven),
		PointsEarned:  result.PointsEarned,
		Items:         items,
	}

	invoice.ID, err = service.store.InvoiceCreate(ctx, invoice)
	if err != nil {
		return model.Invoice{}, err
	}

	// The invoice row is durable from here on. A failed credit leaves
	// its frozen points out of sync with the ledger, which must reach
	// the caller as the distinct ledger failure, not a generic error.
	if req.ClientID > 0 && result.PointsEarned > 0 {
		if _, err := service.ledger.Credit(ctx, req.ClientID, result.PointsEarned); err != nil {
			return invoice, fmt.Errorf("%w: invoice %s: %s", ErrLedgerUpdateFailed, number, err)
		}
	}

	return invoice, nil
}

func (service *service) resolveItems(ctx context.Context, reqItems []CreateInvoiceItem) ([]model.InvoiceItem, error) {
	var items []model.InvoiceItem
	for _, reqItem := range reqItems {
		if reqItem.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity must be positive", billing.ErrInvalidLineItem)
		}
		book, err := service.GetBook(ctx, reqItem.BookID)
		if err != nil {
			return nil, err
		}
		items = append(items, model.InvoiceItem{
			BookID:    book.ID,
			Quantity:  reqItem.Quantity,
			UnitPrice: book.Price,
		})
	}
	return items, nil
}

func (service *service) GetInvoice(ctx context.Context, id int) (model.Invoice, error) {
	invoice, err := service.store.InvoiceByID(ctx, id)
	if errors.Is(err, store.ErrNoRows) {
		return model.Invoice{}, ErrInvoiceNotFound
	}
	return invoice, err
}

func (service *service) ListInvoices(ctx context.Context, limit, offset int) ([]model.Invoice, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return service.store.InvoiceList(ctx, limit, offset)
}

func (service *service) SearchInvoices(ctx context.Context, term, searchType string) ([]model.Invoice, error) {
	if term == "" {
		return nil, ErrInsufficientData
	}
	switch searchType {
	case "phone":
		return service.store.InvoiceSearchByClientPhone(ctx, term)
	case "number", "":
		return service.store.InvoiceSearchByNumber(ctx, term)
	default:
		return nil, fmt.Errorf("%w: unknown search type %q", ErrInsufficientData, searchType)
	}
}

// DeleteInvoice reverses the frozen points before removing the row, so
// a failure in between leaves the invoice behind as evidence of the
// incomplete reversal. Deleting an absent invoice is an error, not a
// no-op.
func (service *service) DeleteInvoice(ctx context.Context, id int) error {
	lock := service.deleteLock(id)
	lock.Lock()
	defer lock.Unlock()

	invoice, err := service.GetInvoice(ctx, id)
	if err != nil {
		return err
	}

	if invoice.ClientID > 0 && invoice.PointsEarned > 0 {
		if _, err := service.ledger.Debit(ctx, invoice.ClientID, invoice.PointsEarned); err != nil {
			// tolerate a client removed since the sale; anything else
			// keeps the invoice in place
			if !errors.Is(err, store.ErrNoRows) {
				return fmt.Errorf("%w: invoice %s: %s", ErrLedgerUpdateFailed, invoice.InvoiceNumber, err)
			}
		}
	}

	return service.store.InvoiceDelete(ctx, id)
}

// CompleteInvoice and CancelInvoice move a PENDING invoice to its final
// status. Point accounting is untouched: points are credited at
// creation and reversed only by deletion, cancellation included.
func (service *service) CompleteInvoice(ctx context.Context, id int) error {
	return service.transition(ctx, id, model.InvoiceStatusCompleted)
}

func (service *service) CancelInvoice(ctx context.Context, id int) error {
	return service.transition(ctx, id, model.InvoiceStatusCancelled)
}

func (service *service) transition(ctx context.Context, id int, status string) error {
	invoice, err := service.GetInvoice(ctx, id)
	if err != nil {
		return err
	}
	if invoice.Status != model.InvoiceStatusPending {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatus, invoice.Status, status)
	}
	return service.store.InvoiceSetStatus(ctx, id, status)
}

// EmailInvoice ships the frozen invoice figures to the mail gateway.
func (service *service) EmailInvoice(ctx context.Context, id int) error {
	if service.mailer == nil {
		return ErrMailerNotConfigured
	}

	invoice, err := service.GetInvoice(ctx, id)
	if err != nil {
		return err
	}
	if invoice.ClientID == 0 {
		return fmt.Errorf("%w: walk-in invoice has no recipient", ErrInsufficientData)
	}
	client, err := service.GetClient(ctx, invoice.ClientID)
	if err != nil {
		return err
	}
	if client.Email == "" {
		return fmt.Errorf("%w: client has no email address", ErrInsufficientData)
	}

	return service.mailer.SendReceipt(invoice, client)
}
