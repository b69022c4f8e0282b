// Package service holds the application operations on top of the
// store: client and book management, and the invoice lifecycle with its
// loyalty accounting.
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/theplant/luhn"

	"github.com/pahanaedu/bookstore-billing/internal/ledger"
	"github.com/pahanaedu/bookstore-billing/internal/loyalty"
	"github.com/pahanaedu/bookstore-billing/internal/mailer"
	"github.com/pahanaedu/bookstore-billing/internal/model"
	"github.com/pahanaedu/bookstore-billing/internal/policy"
	"github.com/pahanaedu/bookstore-billing/internal/store"
)

var (
	ErrInsufficientData     = errors.New("insufficient data")
	ErrAlreadyExists        = errors.New("already exists")
	ErrClientNotFound       = errors.New("client not found")
	ErrBookNotFound         = errors.New("book not found")
	ErrInvoiceNotFound      = errors.New("invoice not found")
	ErrInvalidStatus        = errors.New("invalid invoice status transition")
	ErrBadAccountNumber     = errors.New("account number failed check digit")
	ErrMailerNotConfigured  = errors.New("mail gateway is not configured")
	// ErrLedgerUpdateFailed marks an invoice whose frozen points do not
	// match the client's ledger. It must never be folded into a generic
	// failure: the caller retries the ledger step, not the invoice.
	ErrLedgerUpdateFailed = errors.New("loyalty ledger update failed")
)

type Service interface {
	CreateClient(ctx context.Context, client model.Client) (model.Client, error)
	GetClient(ctx context.Context, id int) (model.Client, error)
	GetClientByAccountNumber(ctx context.Context, accountNumber string) (model.Client, error)
	ListClients(ctx context.Context) ([]model.Client, error)
	SearchClients(ctx context.Context, term string) ([]model.Client, error)
	UpdateClient(ctx context.Context, client model.Client) error
	DeleteClient(ctx context.Context, id int) error
	TierStatistics(ctx context.Context) ([]model.TierCount, error)

	CreateBook(ctx context.Context, book model.Book) (model.Book, error)
	GetBook(ctx context.Context, id int) (model.Book, error)
	ListBooks(ctx context.Context) ([]model.Book, error)
	SearchBooks(ctx context.Context, term string) ([]model.Book, error)

	CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (model.Invoice, error)
	GetInvoice(ctx context.Context, id int) (model.Invoice, error)
	ListInvoices(ctx context.Context, limit, offset int) ([]model.Invoice, error)
	SearchInvoices(ctx context.Context, term, searchType string) ([]model.Invoice, error)
	DeleteInvoice(ctx context.Context, id int) error
	CompleteInvoice(ctx context.Context, id int) error
	CancelInvoice(ctx context.Context, id int) error
	EmailInvoice(ctx context.Context, id int) error
}

type service struct {
	store    store.Store
	policies policy.PolicyStore
	ledger   ledger.Ledger
	mailer   mailer.Mailer

	mu          sync.Mutex
	deleteLocks map[int]*sync.Mutex
}

func NewService(store store.Store, policies policy.PolicyStore, ledger ledger.Ledger, mailer mailer.Mailer) Service {
	return &service{
		store:       store,
		policies:    policies,
		ledger:      ledger,
		mailer:      mailer,
		deleteLocks: make(map[int]*sync.Mutex),
	}
}

// deleteLock serializes deletion per invoice; two concurrent deletes
// could otherwise both read the invoice and debit its points twice.
func (service *service) deleteLock(invoiceID int) *sync.Mutex {
	service.mu.Lock()
	defer service.mu.Unlock()
	lock, ok := service.deleteLocks[invoiceID]
	if !ok {
		lock = &sync.Mutex{}
		service.deleteLocks[invoiceID] = lock
	}
	return lock
}

// Clients

func (service *service) CreateClient(ctx context.Context, client model.Client) (model.Client, error) {
	if client.FirstName == "" || client.LastName == "" || client.Phone == "" {
		return model.Client{}, ErrInsufficientData
	}

	accountNumber, err := service.nextAccountNumber(ctx)
	if err != nil {
		return model.Client{}, err
	}

	client.AccountNumber = accountNumber
	client.PointBalance = 0
	client.TierLevel, _ = loyalty.Classify(service.policies.GetActive(), 0)

	id, err := service.store.ClientCreate(ctx, client)
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return model.Client{}, ErrAlreadyExists
		}
		return model.Client{}, err
	}
	client.ID = id
	return client, nil
}

// nextAccountNumber builds a sequential account number with a trailing
// Luhn check digit; account numbers are typed at the counter, and the
// check digit catches transposed digits before a lookup goes wrong.
func (service *service) nextAccountNumber(ctx context.Context) (string, error) {
	seq, err := service.store.ClientNextAccountSeq(ctx)
	if err != nil {
		return "", err
	}
	base := 100000000 + seq
	return strconv.Itoa(base*10 + luhn.CalculateLuhn(base)), nil
}

func (service *service) GetClient(ctx context.Context, id int) (model.Client, error) {
	client, err := service.store.ClientByID(ctx, id)
	if errors.Is(err, store.ErrNoRows) {
		return model.Client{}, ErrClientNotFound
	}
	return client, err
}

func (service *service) GetClientByAccountNumber(ctx context.Context, accountNumber string) (model.Client, error) {
	number, err := strconv.Atoi(accountNumber)
	if err != nil || !luhn.Valid(number) {
		return model.Client{}, ErrBadAccountNumber
	}

	clients, err := service.store.ClientSearch(ctx, accountNumber)
	if err != nil {
		return model.Client{}, err
	}
	for _, client := range clients {
		if client.AccountNumber == accountNumber {
			return client, nil
		}
	}
	return model.Client{}, ErrClientNotFound
}

func (service *service) ListClients(ctx context.Context) ([]model.Client, error) {
	return service.store.ClientList(ctx)
}

func (service *service) SearchClients(ctx context.Context, term string) ([]model.Client, error) {
	if term == "" {
		return nil, ErrInsufficientData
	}
	return service.store.ClientSearch(ctx, term)
}

func (service *service) UpdateClient(ctx context.Context, client model.Client) error {
	if client.ID == 0 || client.FirstName == "" || client.LastName == "" || client.Phone == "" {
		return ErrInsufficientData
	}
	err := service.store.ClientUpdate(ctx, client)
	switch {
	case errors.Is(err, store.ErrNoRows):
		return ErrClientNotFound
	case errors.Is(err, store.ErrAlreadyExists):
		return ErrAlreadyExists
	}
	return err
}

func (service *service) DeleteClient(ctx context.Context, id int) error {
	err := service.store.ClientDelete(ctx, id)
	if errors.Is(err, store.ErrNoRows) {
		return ErrClientNotFound
	}
	return err
}

func (service *service) TierStatistics(ctx context.Context) ([]model.TierCount, error) {
	return service.store.ClientTierCounts(ctx)
}

// Books

func (service *service) CreateBook(ctx context.Context, book model.Book) (model.Book, error) {
	if book.ISBN == "" || book.Title == "" {
		return model.Book{}, ErrInsufficientData
	}
	if book.Price.IsNegative() {
		return model.Book{}, fmt.Errorf("%w: negative price", ErrInsufficientData)
	}

	id, err := service.store.BookCreate(ctx, book)
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return model.Book{}, ErrAlreadyExists
		}
		return model.Book{}, err
	}
	book.ID = id
	return book, nil
}

func (service *service) GetBook(ctx context.Context, id int) (model.Book, error) {
	book, err := service.store.BookByID(ctx, id)
	if errors.Is(err, store.ErrNoRows) {
		return model.Book{}, ErrBookNotFound
	}
	return book, err
}

func (service *service) ListBooks(ctx context.Context) ([]model.Book, error) {
	return service.store.BookList(ctx)
}

func (service *service) SearchBooks(ctx context.Context, term string) ([]model.Book, error) {
	if term == "" {
		return nil, ErrInsufficientData
	}
	return service.store.BookSearch(ctx, term)
}
