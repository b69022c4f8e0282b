// Package loyalty holds the tier policy model and the pure tier
// classification logic. A Policy is immutable once activated; every
// consumer works on a full snapshot, never on individual fields.
package loyalty

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	TierSilver   = "SILVER"
	TierGold     = "GOLD"
	TierPlatinum = "PLATINUM"
)

var ErrInvalidPolicy = errors.New("invalid loyalty policy")

// Tier is one loyalty level: a minimum point threshold and the
// discount percentage granted at that level.
type Tier struct {
	Name            string
	MinPoints       int
	DiscountPercent decimal.Decimal
}

// Policy is a full loyalty configuration snapshot. Tiers are ordered
// ascending by MinPoints with the first tier pinned at zero.
type Policy struct {
	ID               int
	PointsPerHundred int
	Tiers            [3]Tier
	Active           bool
	CreatedAt        time.Time
}

var hundred = decimal.NewFromInt(100)

// DefaultPolicy is the documented fallback used when no policy has ever
// been configured: 1 point per 100 currency units, SILVER 0 pts / 0%,
// GOLD 500 pts / 5%, PLATINUM 2000 pts / 10%.
func DefaultPolicy() Policy {
	return Policy{
		PointsPerHundred: 1,
		Tiers: [3]Tier{
			{Name: TierSilver, MinPoints: 0, DiscountPercent: decimal.Zero},
			{Name: TierGold, MinPoints: 500, DiscountPercent: decimal.NewFromInt(5)},
			{Name: TierPlatinum, MinPoints: 2000, DiscountPercent: decimal.NewFromInt(10)},
		},
		Active: true,
	}
}

// Validate checks every policy invariant. A policy that fails here must
// never become active.
func (p Policy) Validate() error {
	if p.PointsPerHundred < 1 {
		return fmt.Errorf("%w: points per 100 must be at least 1, got %d", ErrInvalidPolicy, p.PointsPerHundred)
	}
	if p.Tiers[0].MinPoints != 0 {
		return fmt.Errorf("%w: lowest tier %q must start at 0 points", ErrInvalidPolicy, p.Tiers[0].Name)
	}
	for i, tier := range p.Tiers {
		if tier.Name == "" {
			return fmt.Errorf("%w: tier %d has no name", ErrInvalidPolicy, i)
		}
		if tier.DiscountPercent.IsNegative() || tier.DiscountPercent.GreaterThan(hundred) {
			return fmt.Errorf("%w: tier %q discount %s%% out of range [0,100]",
				ErrInvalidPolicy, tier.Name, tier.DiscountPercent)
		}
		if i == 0 {
			continue
		}
		prev := p.Tiers[i-1]
		if tier.MinPoints <= prev.MinPoints {
			return fmt.Errorf("%w: tier %q threshold %d must exceed %q threshold %d",
				ErrInvalidPolicy, tier.Name, tier.MinPoints, prev.Name, prev.MinPoints)
		}
		if tier.DiscountPercent.LessThan(prev.DiscountPercent) {
			return fmt.Errorf("%w: tier %q discount %s%% below %q discount %s%%",
				ErrInvalidPolicy, tier.Name, tier.DiscountPercent, prev.Name, prev.DiscountPercent)
		}
	}
	return nil
}

// Classify derives the tier for a point balance: highest tier whose
// threshold the balance meets, lower bound inclusive. Total for any
// valid policy and non-negative balance; the zero-threshold tier is the
// guaranteed fallback.
func Classify(p Policy, pointBalance int) (tierName string, discountPercent decimal.Decimal) {
	for i := len(p.Tiers) - 1; i >= 0; i-- {
		if pointBalance >= p.Tiers[i].MinPoints {
			return p.Tiers[i].Name, p.Tiers[i].DiscountPercent
		}
	}
	// unreachable for a validated policy; keep the invariant anyway
	return p.Tiers[0].Name, p.Tiers[0].DiscountPercent
}
