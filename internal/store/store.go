// Package store wraps Postgres persistence for clients, books,
// invoices and loyalty policies. Composite writes (invoice create and
// delete, policy activation) run inside a single transaction.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/pahanaedu/bookstore-billing/internal/loyalty"
	"github.com/pahanaedu/bookstore-billing/internal/model"
	"github.com/pahanaedu/bookstore-billing/internal/store/config"
)

var (
	ErrNoRows        = errors.New("no rows")
	ErrAlreadyExists = errors.New("already exists")
)

const pgUniqueViolation = "23505"

type Store interface {
	StaffRegister(ctx context.Context, staff model.Staff) (int, error)
	StaffByLogin(ctx context.Context, login string) (model.Staff, error)

	ClientCreate(ctx context.Context, client model.Client) (int, error)
	ClientByID(ctx context.Context, id int) (model.Client, error)
	ClientList(ctx context.Context) ([]model.Client, error)
	ClientSearch(ctx context.Context, term string) ([]model.Client, error)
	ClientUpdate(ctx context.Context, client model.Client) error
	ClientDelete(ctx context.Context, id int) error
	ClientUpdateLoyalty(ctx context.Context, id int, pointBalance int, tierLevel string) error
	ClientNextAccountSeq(ctx context.Context) (int, error)
	ClientTierCounts(ctx context.Context) ([]model.TierCount, error)

	BookCreate(ctx context.Context, book model.Book) (int, error)
	BookByID(ctx context.Context, id int) (model.Book, error)
	BookList(ctx context.Context) ([]model.Book, error)
	BookSearch(ctx context.Context, term string) ([]model.Book, error)

	PolicyActivate(ctx context.Context, policy loyalty.Policy) (int, error)
	PolicyActive(ctx context.Context) (loyalty.Policy, error)
	PolicyList(ctx context.Context) ([]loyalty.Policy, error)

	InvoiceCreate(ctx context.Context, invoice model.Invoice) (int, error)
	InvoiceByID(ctx context.Context, id int) (model.Invoice, error)
	InvoiceList(ctx context.Context, limit int, offset int) ([]model.Invoice, error)
	InvoiceSearchByNumber(ctx context.Context, number string) ([]model.Invoice, error)
	InvoiceSearchByClientPhone(ctx context.Context, phone string) ([]model.Invoice, error)
	InvoiceNextNumber(ctx context.Context) (string, error)
	InvoiceSetStatus(ctx context.Context, id int, status string) error
	InvoiceDelete(ctx context.Context, id int) error
}

type store struct {
	database *sql.DB
}

func NewStore(cfg config.Config) (Store, error) {
	db, err := sql.Open("pgx", cfg.DatabaseURI)
	if err != nil {
		return nil, err
	}

	for _, ddl := range []string{
		`CREATE TABLE IF NOT EXISTS staff (
			id SERIAL PRIMARY KEY,
			login VARCHAR(50) UNIQUE NOT NULL,
			password_hash VARCHAR(100) NOT NULL,
			role VARCHAR(10) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS clients (
			id SERIAL PRIMARY KEY,
			account_number VARCHAR(20) UNIQUE NOT NULL,
			first_name VARCHAR(50) NOT NULL,
			last_name VARCHAR(50) NOT NULL,
			email VARCHAR(100),
			phone VARCHAR(20) UNIQUE NOT NULL,
			point_balance INTEGER NOT NULL DEFAULT 0,
			tier_level VARCHAR(10) NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS books (
			id SERIAL PRIMARY KEY,
			isbn VARCHAR(20) UNIQUE NOT NULL,
			title VARCHAR(200) NOT NULL,
			author VARCHAR(100),
			category VARCHAR(50),
			price NUMERIC(10,2) NOT NULL,
			stock INTEGER NOT NULL DEFAULT 0
		)`,
		// Replaced policies stay in this table flagged inactive; at most
		// one row is active at a time.
		`CREATE TABLE IF NOT EXISTS loyalty_policies (
			id SERIAL PRIMARY KEY,
			points_per_100 INTEGER NOT NULL,
			silver_discount NUMERIC(5,2) NOT NULL,
			gold_threshold INTEGER NOT NULL,
			gold_discount NUMERIC(5,2) NOT NULL,
			platinum_threshold INTEGER NOT NULL,
			platinum_discount NUMERIC(5,2) NOT NULL,
			active BOOLEAN NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS invoices (
			id SERIAL PRIMARY KEY,
			invoice_number VARCHAR(10) UNIQUE NOT NULL,
			client_id INTEGER,
			staff_id INTEGER,
			status VARCHAR(10) NOT NULL,
			subtotal NUMERIC(12,2) NOT NULL,
			discount NUMERIC(12,2) NOT NULL,
			total_amount NUMERIC(12,2) NOT NULL,
			cash_given NUMERIC(12,2) NOT NULL,
			change_amount NUMERIC(12,2) NOT NULL,
			points_earned INTEGER NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS invoice_items (
			id SERIAL PRIMARY KEY,
			invoice_id INTEGER NOT NULL REFERENCES invoices (id),
			book_id INTEGER NOT NULL,
			quantity INTEGER NOT NULL,
			unit_price NUMERIC(10,2) NOT NULL,
			line_total NUMERIC(12,2) NOT NULL
		)`,
	} {
		if _, err := db.Exec(ddl); err != nil {
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}

	return &store{database: db}, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// Staff

func (store *store) StaffRegister(ctx context.Context, staff model.Staff) (int, error) {
	row := store.database.QueryRowContext(ctx,
		"INSERT INTO staff (login, password_hash, role)"+
			" VALUES ($1, $2, $3)"+
			" RETURNING id",
		staff.Login, staff.PasswordHash, staff.Role)

	var id int
	if err := row.Scan(&id); err != nil {
		if isUniqueViolation(err) {
			return 0, ErrAlreadyExists
		}
		return 0, err
	}
	return id, nil
}

func (store *store) StaffByLogin(ctx context.Context, login string) (model.Staff, error) {
	row := store.database.QueryRowContext(ctx,
		"SELECT id, login, password_hash, role FROM staff"+
			" WHERE login = $1",
		login)

	var staff model.Staff
	err := row.Scan(&staff.ID, &staff.Login, &staff.PasswordHash, &staff.Role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Staff{}, ErrNoRows
		}
		return model.Staff{}, err
	}
	return staff, nil
}

// Clients

const clientColumns = "id, account_number, first_name, last_name, email, phone, point_balance, tier_level, created_at"

func scanClient(row interface{ Scan(...any) error }) (model.Client, error) {
	var c model.Client
	err := row.Scan(&c.ID, &c.AccountNumber, &c.FirstName, &c.LastName,
		&c.Email, &c.Phone, &c.PointBalance, &c.TierLevel, &c.CreatedAt)
	return c, err
}

func (store *store) ClientCreate(ctx context.Context, client model.Client) (int, error) {
	row := store.database.QueryRowContext(ctx,
		"INSERT INTO clients (account_number, first_name, last_name, email, phone, point_balance, tier_level)"+
			" VALUES ($1, $2, $3, $4, $5, $6, $7)"+
			" RETURNING id",
		client.AccountNumber, client.FirstName, client.LastName,
		client.Email, client.Phone, client.PointBalance, client.TierLevel)

	var id int
	if err := row.Scan(&id); err != nil {
		if isUniqueViolation(err) {
			return 0, ErrAlreadyExists
		}
		return 0, err
	}
	return id, nil
}

func (store *store) ClientByID(ctx context.Context, id int) (model.Client, error) {
	row := store.database.QueryRowContext(ctx,
		"SELECT "+clientColumns+" FROM clients WHERE id = $1", id)
	client, err := scanClient(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Client{}, ErrNoRows
		}
		return model.Client{}, err
	}
	return client, nil
}

func (store *store) ClientList(ctx context.Context) ([]model.Client, error) {
	rows, err := store.database.QueryContext(ctx,
		"SELECT "+clientColumns+" FROM clients ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clients []model.Client
	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, client)
	}
	return clients, rows.Err()
}

func (store *store) ClientSearch(ctx context.Context, term string) ([]model.Client, error) {
	pattern := "%" + term + "%"
	rows, err := store.database.QueryContext(ctx,
		"SELECT "+clientColumns+" FROM clients"+
			" WHERE first_name ILIKE $1 OR last_name ILIKE $1"+
			"    OR phone ILIKE $1 OR account_number ILIKE $1"+
			" ORDER BY id",
		pattern)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clients []model.Client
	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, client)
	}
	return clients, rows.Err()
}

func (store *store) ClientUpdate(ctx context.Context, client model.Client) error {
	res, err := store.database.ExecContext(ctx,
		"UPDATE clients SET first_name = $1, last_name = $2, email = $3, phone = $4"+
			" WHERE id = $5",
		client.FirstName, client.LastName, client.Email, client.Phone, client.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return err
	}
	return requireRow(res)
}

func (store *store) ClientDelete(ctx context.Context, id int) error {
	res, err := store.database.ExecContext(ctx,
		"DELETE FROM clients WHERE id = $1", id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// ClientUpdateLoyalty writes the point balance and tier level in one
// statement so the pair is never observable half-updated.
func (store *store) ClientUpdateLoyalty(ctx context.Context, id int, pointBalance int, tierLevel string) error {
	res, err := store.database.ExecContext(ctx,
		"UPDATE clients SET point_balance = $1, tier_level = $2 WHERE id = $3",
		pointBalance, tierLevel, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (store *store) ClientNextAccountSeq(ctx context.Context) (int, error) {
	row := store.database.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(id), 0) + 1 FROM clients")
	var seq int
	if err := row.Scan(&seq); err != nil {
		return 0, err
	}
	return seq, nil
}

func (store *store) ClientTierCounts(ctx context.Context) ([]model.TierCount, error) {
	rows, err := store.database.QueryContext(ctx,
		"SELECT tier_level, COUNT(*) FROM clients GROUP BY tier_level ORDER BY tier_level")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []model.TierCount
	for rows.Next() {
		var tc model.TierCount
		if err := rows.Scan(&tc.TierLevel, &tc.Clients); err != nil {
			return nil, err
		}
		counts = append(counts, tc)
	}
	return counts, rows.Err()
}

// Books

const bookColumns = "id, isbn, title, author, category, price, stock"

func scanBook(row interface{ Scan(...any) error }) (model.Book, error) {
	var b model.Book
	err := row.Scan(&b.ID, &b.ISBN, &b.Title, &b.Author, &b.Category, &b.Price, &b.Stock)
	return b, err
}

func (store *store) BookCreate(ctx context.Context, book model.Book) (int, error) {
	row := store.database.QueryRowContext(ctx,
		"INSERT INTO books (isbn, title, author, category, price, stock)"+
			" VALUES ($1, $2, $3, $4, $5, $6)"+
			" RETURNING id",
		book.ISBN, book.Title, book.Author, book.Category, book.Price, book.Stock)

	var id int
	if err := row.Scan(&id); err != nil {
		if isUniqueViolation(err) {
			return 0, ErrAlreadyExists
		}
		return 0, err
	}
	return id, nil
}

func (store *store) BookByID(ctx context.Context, id int) (model.Book, error) {
	row := store.database.QueryRowContext(ctx,
		"SELECT "+bookColumns+" FROM books WHERE id = $1", id)
	book, err := scanBook(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Book{}, ErrNoRows
		}
		return model.Book{}, err
	}
	return book, nil
}

func (store *store) BookList(ctx context.Context) ([]model.Book, error) {
	return store.queryBooks(ctx,
		"SELECT "+bookColumns+" FROM books ORDER BY title")
}

func (store *store) BookSearch(ctx context.Context, term string) ([]model.Book, error) {
	pattern := "%" + term + "%"
	return store.queryBooks(ctx,
		"SELECT "+bookColumns+" FROM books"+
			" WHERE title ILIKE $1 OR author ILIKE $1 OR isbn ILIKE $1"+
			" ORDER BY title",
		pattern)
}

func (store *store) queryBooks(ctx context.Context, query string, args ...any) ([]model.Book, error) {
	rows, err := store.database.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var books []model.Book
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	return books, rows.Err()
}

// requireRow maps "zero rows affected" to ErrNoRows.
func requireRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNoRows
	}
	return nil
}
