// Package matcher scores a new order against prior orders for the same
// tenant. It is pure computation: no I/O, no clock, deterministic for a given
// candidate order.
package matcher

import (
	"strings"

	detectiondomain "github.com/orderguard/orderguard/internal/detection/domain"
	orderdomain "github.com/orderguard/orderguard/internal/order/domain"
)

// QualifyThreshold is the minimum additive score for a candidate to count as
// a duplicate.
const QualifyThreshold = 70

// MaxConfidence caps the reported confidence.
const MaxConfidence = 100

// Signal weights.
const (
	emailPoints          = 50
	phonePoints          = 50
	addressFullPoints    = 45
	addressPartialPoints = 25
	skuPoints            = 50
	namePoints           = 20
)

// Match is the result of a successful duplicate lookup.
type Match struct {
	Order       *orderdomain.Order
	Confidence  int
	ReasonParts []string
}

// Reason joins the fired signals into a human-readable string.
func (m *Match) Reason() string {
	return strings.Join(m.ReasonParts, ", ")
}

// FindDuplicate scores every candidate in the order supplied and returns the
// first one reaching QualifyThreshold, or nil. Callers must pass candidates
// in a fixed deterministic order (most recent first) so the result is
// reproducible under retries.
func FindDuplicate(order *orderdomain.Order, candidates []orderdomain.Order, settings detectiondomain.Settings) *Match {
	if order == nil {
		return nil
	}
	for i := range candidates {
		cand := &candidates[i]
		if cand.SourceOrderID == order.SourceOrderID {
			continue
		}
		score, reasons := scoreCandidate(order, cand, settings)
		if score >= QualifyThreshold {
			if score > MaxConfidence {
				score = MaxConfidence
			}
			return &Match{Order: cand, Confidence: score, ReasonParts: reasons}
		}
	}
	return nil
}

func scoreCandidate(order, cand *orderdomain.Order, settings detectiondomain.Settings) (int, []string) {
	score := 0
	reasons := make([]string, 0, 4)

	if settings.MatchEmail && emailsEqual(order.CustomerEmail, cand.CustomerEmail) {
		score += emailPoints
		reasons = append(reasons, "same email")
	}

	if settings.MatchPhone && phonesEqual(order.CustomerPhone, cand.CustomerPhone) {
		score += phonePoints
		reasons = append(reasons, "same phone")
	}

	if settings.MatchAddress {
		if pts, reason := scoreAddress(order.ShippingAddress(), cand.ShippingAddress(), settings.AddressSensitivity); pts > 0 {
			score += pts
			reasons = append(reasons, reason)
		}
	}

	if settings.MatchSKU && sameCustomer(order, cand) && skusOverlap(order.LineItemSKUs, cand.LineItemSKUs) {
		score += skuPoints
		reasons = append(reasons, "overlapping items")
	}

	// Name is supporting evidence only and is not gated by a toggle.
	if order.CustomerName != "" && cand.CustomerName != "" &&
		strings.EqualFold(strings.TrimSpace(order.CustomerName), strings.TrimSpace(cand.CustomerName)) {
		score += namePoints
		reasons = append(reasons, "same name")
	}

	return score, reasons
}

func emailsEqual(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	return a != "" && strings.EqualFold(a, b)
}

func phonesEqual(a, b string) bool {
	na, nb := NormalizePhone(a), NormalizePhone(b)
	return na != "" && na == nb
}

// scoreAddress awards full or partial credit. When either order has no
// shipping address the comparison is skipped entirely (0 points, not a
// mismatch) so digital goods do not drag scores down.
func scoreAddress(a, b *orderdomain.Address, sensitivity detectiondomain.AddressSensitivity) (int, string) {
	if a == nil || b == nil {
		return 0, ""
	}

	street := tokensEqual(a.Street, b.Street)
	city := tokensEqual(a.City, b.City)
	zip := tokensEqual(a.Zip, b.Zip)

	if street && city && zip {
		return addressFullPoints, "same address"
	}

	switch sensitivity {
	case detectiondomain.SensitivityHigh:
		// High requires the full street+city+zip agreement; no partial tier.
		return 0, ""
	case detectiondomain.SensitivityLow:
		if street || (city && zip) {
			return addressPartialPoints, "similar address"
		}
	default: // medium
		if (street && city) || (street && zip) {
			return addressPartialPoints, "similar address"
		}
	}
	return 0, ""
}

func sameCustomer(a, b *orderdomain.Order) bool {
	return emailsEqual(a.CustomerEmail, b.CustomerEmail) || phonesEqual(a.CustomerPhone, b.CustomerPhone)
}

func skusOverlap(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	seen := make(map[string]struct{}, len(a))
	for _, sku := range a {
		sku = strings.TrimSpace(strings.ToLower(sku))
		if sku != "" {
			seen[sku] = struct{}{}
		}
	}
	for _, sku := range b {
		if _, ok := seen[strings.TrimSpace(strings.ToLower(sku))]; ok {
			return true
		}
	}
	return false
}
