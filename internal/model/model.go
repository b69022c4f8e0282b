package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Clients

type Client struct {
	ID            int
	AccountNumber string
	FirstName     string
	LastName      string
	Email         string
	Phone         string
	PointBalance  int
	TierLevel     string
	CreatedAt     time.Time
}

func (c Client) FullName() string {
	return c.FirstName + " " + c.LastName
}

// Books

type Book struct {
	ID       int
	ISBN     string
	Title    string
	Author   string
	Category string
	Price    decimal.Decimal
	Stock    int
}

// Invoices

const (
	InvoiceStatusPending   = "PENDING"
	InvoiceStatusCompleted = "COMPLETED"
	InvoiceStatusCancelled = "CANCELLED"
)

type Invoice struct {
	ID            int
	InvoiceNumber string
	ClientID      int // 0 for walk-in sales
	StaffID       int
	Status        string
	Subtotal      decimal.Decimal
	Discount      decimal.Decimal
	TotalAmount   decimal.Decimal
	CashGiven     decimal.Decimal
	ChangeAmount  decimal.Decimal
	PointsEarned  int // frozen at creation; exactly what the ledger was credited
	Items         []InvoiceItem
	CreatedAt     time.Time
}

type InvoiceItem struct {
	ID        int
	InvoiceID int
	BookID    int
	Quantity  int
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

// Staff

const (
	StaffRoleCashier = "CASHIER"
	StaffRoleManager = "MANAGER"
)

type Staff struct {
	ID           int
	Login        string
	PasswordHash string
	Role         string
}

// TierCount is one row of the manager dashboard tier breakdown.
type TierCount struct {
	TierLevel string
	Clients   int
}
