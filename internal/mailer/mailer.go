// Package mailer is the client for the external receipt mail gateway.
// The gateway renders and sends the mail; this client only ships the
// frozen invoice figures to it.
package mailer

import (
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"

	"github.com/pahanaedu/bookstore-billing/internal/mailer/config"
	"github.com/pahanaedu/bookstore-billing/internal/model"
)

type ReceiptRequest struct {
	To            string `json:"to"`
	From          string `json:"from"`
	InvoiceNumber string `json:"invoice_number"`
	ClientName    string `json:"client_name"`
	Subtotal      string `json:"subtotal"`
	Discount      string `json:"discount"`
	TotalAmount   string `json:"total_amount"`
	PointsEarned  int    `json:"points_earned"`
	TierLevel     string `json:"tier_level"`
}

type Mailer interface {
	SendReceipt(invoice model.Invoice, client model.Client) error
}

type mailer struct {
	gatewayAddr string
	fromAddress string
	client      *resty.Client
}

func NewMailer(cfg config.Config) Mailer {
	return &mailer{
		gatewayAddr: cfg.GatewayAddr,
		fromAddress: cfg.FromAddress,
		client:      resty.New(),
	}
}

func (m *mailer) SendReceipt(invoice model.Invoice, client model.Client) error {
	const path = "/api/mail/receipt"

	receipt := ReceiptRequest{
		To:            client.Email,
		From:          m.fromAddress,
		InvoiceNumber: invoice.InvoiceNumber,
		ClientName:    client.FullName(),
		Subtotal:      invoice.Subtotal.StringFixed(2),
		Discount:      invoice.Discount.StringFixed(2),
		TotalAmount:   invoice.TotalAmount.StringFixed(2),
		PointsEarned:  invoice.PointsEarned,
		TierLevel:     client.TierLevel,
	}

	resp, err := m.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(receipt).
		Post(m.gatewayAddr + path)
	if err != nil {
		return err
	}
	if resp.StatusCode() != http.StatusOK && resp.StatusCode() != http.StatusAccepted {
		return fmt.Errorf("mail gateway status: %d", resp.StatusCode())
	}
	return nil
}
