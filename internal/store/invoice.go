package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pahanaedu/bookstore-billing/internal/model"
)

const invoiceColumns = "id, invoice_number, COALESCE(client_id, 0), COALESCE(staff_id, 0), status, subtotal, discount, total_amount, cash_given, change_amount, points_earned, created_at"

func scanInvoice(row interface{ Scan(...any) error }) (model.Invoice, error) {
	var inv model.Invoice
	err := row.Scan(&inv.ID, &inv.InvoiceNumber, &inv.ClientID, &inv.StaffID,
		&inv.Status, &inv.Subtotal, &inv.Discount, &inv.TotalAmount,
		&inv.CashGiven, &inv.ChangeAmount, &inv.PointsEarned, &inv.CreatedAt)
	return inv, err
}

// InvoiceNextNumber produces the next zero-padded sequential invoice
// number, "0000000001" for an empty table.
func (store *store) InvoiceNextNumber(ctx context.Context) (string, error) {
	row := store.database.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(CAST(invoice_number AS BIGINT)), 0) FROM invoices")
	var max int64
	if err := row.Scan(&max); err != nil {
		return "", err
	}
	return fmt.Sprintf("%010d", max+1), nil
}

// InvoiceCreate inserts the invoice row and all its line items in one
// transaction.
func (store *store) InvoiceCreate(ctx context.Context, invoice model.Invoice) (int, error) {
	tx, err := store.database.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	clientID := sql.NullInt64{Int64: int64(invoice.ClientID), Valid: invoice.ClientID > 0}
	staffID := sql.NullInt64{Int64: int64(invoice.StaffID), Valid: invoice.StaffID > 0}

	row := tx.QueryRowContext(ctx,
		"INSERT INTO invoices"+
			" (invoice_number, client_id, staff_id, status, subtotal, discount, total_amount, cash_given, change_amount, points_earned)"+
			" VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)"+
			" RETURNING id",
		invoice.InvoiceNumber, clientID, staffID, invoice.Status,
		invoice.Subtotal, invoice.Discount, invoice.TotalAmount,
		invoice.CashGiven, invoice.ChangeAmount, invoice.PointsEarned)

	var id int
	if err := row.Scan(&id); err != nil {
		if isUniqueViolation(err) {
			return 0, ErrAlreadyExists
		}
		return 0, err
	}

	for _, item := range invoice.Items {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO invoice_items (invoice_id, book_id, quantity, unit_price, line_total)"+
				" VALUES ($1, $2, $3, $4, $5)",
			id, item.BookID, item.Quantity, item.UnitPrice, item.LineTotal); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

func (store *store) InvoiceByID(ctx context.Context, id int) (model.Invoice, error) {
	row := store.database.QueryRowContext(ctx,
		"SELECT "+invoiceColumns+" FROM invoices WHERE id = $1", id)
	invoice, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Invoice{}, ErrNoRows
		}
		return model.Invoice{}, err
	}

	invoice.Items, err = store.invoiceItems(ctx, id)
	if err != nil {
		return model.Invoice{}, err
	}
	return invoice, nil
}

func (store *store) invoiceItems(ctx context.Context, invoiceID int) ([]model.InvoiceItem, error) {
	rows, err := store.database.QueryContext(ctx,
		"SELECT id, invoice_id, book_id, quantity, unit_price, line_total"+
			" FROM invoice_items WHERE invoice_id = $1 ORDER BY id",
		invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.InvoiceItem
	for rows.Next() {
		var item model.InvoiceItem
		if err := rows.Scan(&item.ID, &item.InvoiceID, &item.BookID,
			&item.Quantity, &item.UnitPrice, &item.LineTotal); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (store *store) InvoiceList(ctx context.Context, limit int, offset int) ([]model.Invoice, error) {
	return store.queryInvoices(ctx,
		"SELECT "+invoiceColumns+" FROM invoices ORDER BY id DESC LIMIT $1 OFFSET $2",
		limit, offset)
}

func (store *store) InvoiceSearchByNumber(ctx context.Context, number string) ([]model.Invoice, error) {
	return store.queryInvoices(ctx,
		"SELECT "+invoiceColumns+" FROM invoices WHERE invoice_number = $1",
		number)
}

func (store *store) InvoiceSearchByClientPhone(ctx context.Context, phone string) ([]model.Invoice, error) {
	return store.queryInvoices(ctx,
		"SELECT "+invoiceColumns+" FROM invoices"+
			" WHERE client_id IN (SELECT id FROM clients WHERE phone = $1)"+
			" ORDER BY id DESC",
		phone)
}

func (store *store) queryInvoices(ctx context.Context, query string, args ...any) ([]model.Invoice, error) {
	rows, err := store.database.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []model.Invoice
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, invoice)
	}
	return invoices, rows.Err()
}

func (store *store) InvoiceSetStatus(ctx context.Context, id int, status string) error {
	res, err := store.database.ExecContext(ctx,
		"UPDATE invoices SET status = $1 WHERE id = $2",
		status, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// InvoiceDelete removes the line items and the invoice row together.
func (store *store) InvoiceDelete(ctx context.Context, id int) error {
	tx, err := store.database.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM invoice_items WHERE invoice_id = $1", id); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM invoices WHERE id = $1", id)
	if err != nil {
		return err
	}
	if err := requireRow(res); err != nil {
		return err
	}

	return tx.Commit()
}
