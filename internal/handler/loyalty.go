package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pahanaedu/bookstore-billing/internal/loyalty"
)

type tierJSON struct {
	Name            string      `json:"name"`
	MinPoints       int         `json:"min_points"`
	DiscountPercent json.Number `json:"discount_percent"`
}

type policyJSON struct {
	ID               int        `json:"id,omitempty"`
	PointsPerHundred int        `json:"points_per_100"`
	Tiers            []tierJSON `json:"tiers"`
	Active           bool       `json:"active"`
	CreatedAt        *time.Time `json:"created_at,omitempty"`
}

func toPolicyJSON(p loyalty.Policy) policyJSON {
	out := policyJSON{
		ID:               p.ID,
		PointsPerHundred: p.PointsPerHundred,
		Active:           p.Active,
	}
	if !p.CreatedAt.IsZero() {
		createdAt := p.CreatedAt
		out.CreatedAt = &createdAt
	}
	for _, tier := range p.Tiers {
		out.Tiers = append(out.Tiers, tierJSON{
			Name:            tier.Name,
			MinPoints:       tier.MinPoints,
			DiscountPercent: json.Number(tier.DiscountPercent.String()),
		})
	}
	return out
}

func (h *handler) getActivePolicy(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toPolicyJSON(h.policies.GetActive()))
}

// activatePolicy replaces the active policy. The tier names are fixed;
// only the rate, thresholds and discounts are configurable.
func (h *handler) activatePolicy(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PointsPerHundred  int         `json:"points_per_100"`
		SilverDiscount    json.Number `json:"silver_discount"`
		GoldThreshold     int         `json:"gold_threshold"`
		GoldDiscount      json.Number `json:"gold_discount"`
		PlatinumThreshold int         `json:"platinum_threshold"`
		PlatinumDiscount  json.Number `json:"platinum_discount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	discounts := make([]decimal.Decimal, 3)
	for i, raw := range []json.Number{req.SilverDiscount, req.GoldDiscount, req.PlatinumDiscount} {
		value, err := parseAmount(raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		discounts[i] = value
	}

	candidate := loyalty.Policy{
		PointsPerHundred: req.PointsPerHundred,
		Tiers: [3]loyalty.Tier{
			{Name: loyalty.TierSilver, MinPoints: 0, DiscountPercent: discounts[0]},
			{Name: loyalty.TierGold, MinPoints: req.GoldThreshold, DiscountPercent: discounts[1]},
			{Name: loyalty.TierPlatinum, MinPoints: req.PlatinumThreshold, DiscountPercent: discounts[2]},
		},
	}

	activated, err := h.policies.Activate(r.Context(), candidate)
	if err != nil {
		if errors.Is(err, loyalty.ErrInvalidPolicy) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, toPolicyJSON(activated))
}

func (h *handler) policyHistory(w http.ResponseWriter, r *http.Request) {
	policies, err := h.policies.History(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	out := make([]policyJSON, 0, len(policies))
	for _, p := range policies {
		out = append(out, toPolicyJSON(p))
	}
	writeJSON(w, http.StatusOK, out)
}
