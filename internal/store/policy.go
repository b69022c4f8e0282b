package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/pahanaedu/bookstore-billing/internal/loyalty"
)

const policyColumns = "id, points_per_100, silver_discount, gold_threshold, gold_discount, platinum_threshold, platinum_discount, active, created_at"

func scanPolicy(row interface{ Scan(...any) error }) (loyalty.Policy, error) {
	var p loyalty.Policy
	p.Tiers[0].Name = loyalty.TierSilver
	p.Tiers[1].Name = loyalty.TierGold
	p.Tiers[2].Name = loyalty.TierPlatinum
	err := row.Scan(&p.ID, &p.PointsPerHundred,
		&p.Tiers[0].DiscountPercent,
		&p.Tiers[1].MinPoints, &p.Tiers[1].DiscountPercent,
		&p.Tiers[2].MinPoints, &p.Tiers[2].DiscountPercent,
		&p.Active, &p.CreatedAt)
	return p, err
}

// PolicyActivate flags the current active policy inactive and inserts
// the new one as active in a single transaction, so readers observe
// either the old policy or the new one, never neither or both.
func (store *store) PolicyActivate(ctx context.Context, policy loyalty.Policy) (int, error) {
	tx, err := store.database.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"UPDATE loyalty_policies SET active = FALSE WHERE active"); err != nil {
		return 0, err
	}

	row := tx.QueryRowContext(ctx,
		"INSERT INTO loyalty_policies"+
			" (points_per_100, silver_discount, gold_threshold, gold_discount, platinum_threshold, platinum_discount, active)"+
			" VALUES ($1, $2, $3, $4, $5, $6, TRUE)"+
			" RETURNING id",
		policy.PointsPerHundred,
		policy.Tiers[0].DiscountPercent,
		policy.Tiers[1].MinPoints, policy.Tiers[1].DiscountPercent,
		policy.Tiers[2].MinPoints, policy.Tiers[2].DiscountPercent)

	var id int
	if err := row.Scan(&id); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

func (store *store) PolicyActive(ctx context.Context) (loyalty.Policy, error) {
	row := store.database.QueryRowContext(ctx,
		"SELECT "+policyColumns+" FROM loyalty_policies WHERE active")
	policy, err := scanPolicy(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return loyalty.Policy{}, ErrNoRows
		}
		return loyalty.Policy{}, err
	}
	return policy, nil
}

func (store *store) PolicyList(ctx context.Context) ([]loyalty.Policy, error) {
	rows, err := store.database.QueryContext(ctx,
		"SELECT "+policyColumns+" FROM loyalty_policies ORDER BY id DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var policies []loyalty.Policy
	for rows.Next() {
		policy, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		policies = append(policies, policy)
	}
	return policies, rows.Err()
}
