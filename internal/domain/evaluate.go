package domain

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Reason codes for ineligible evaluation results.
const (
	ReasonInactive                = "promotion_inactive"
	ReasonNotStarted              = "promotion_not_started"
	ReasonEnded                   = "promotion_ended"
	ReasonMinAmountNotMet         = "min_amount_not_met"
	ReasonMinQuantityNotMet       = "min_quantity_not_met"
	ReasonQualifierNotMet         = "qualifier_not_met"
	ReasonNoTargetItems           = "no_target_items"
	ReasonNoDiscountableItems     = "no_discountable_items"
	ReasonUnsupportedDiscountType = "unsupported_discount_type"
)

var oneHundred = decimal.NewFromInt(100)

// Evaluate decides whether a promotion applies to the given cart lines at the
// given instant and computes the discount amount. It is pure: it never mutates
// the promotion or the lines, and identical inputs always yield an identical
// result. Checks short-circuit on the first failure with a reason code and
// zero amounts.
//
// The discount base is allocated highest-price-first: when MaxQuantity caps
// the discounted units, the units are taken from the most expensive eligible
// lines, which yields the customer-favorable maximum discount for the cap.
func Evaluate(p *Promotion, lines []CartLine, now time.Time) EvaluationResult {
	if !p.IsActive {
		return ineligible(ReasonInactive)
	}
	if p.StartTime != nil && now.Before(*p.StartTime) {
		return ineligible(ReasonNotStarted)
	}
	if p.EndTime != nil && now.After(*p.EndTime) {
		return ineligible(ReasonEnded)
	}

	cartSubtotal := decimal.Zero
	cartQty := 0
	for _, l := range lines {
		cartSubtotal = cartSubtotal.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
		cartQty += l.Quantity
	}

	if p.MinAmount != nil && cartSubtotal.Cmp(*p.MinAmount) < 0 {
		return ineligible(ReasonMinAmountNotMet)
	}
	if p.MinQuantity != nil && cartQty < *p.MinQuantity {
		return ineligible(ReasonMinQuantityNotMet)
	}

	// Each qualifier must independently be satisfied by the cart quantity of
	// its product. A missing RequiredQty counts as zero.
	qualifiers := p.Qualifiers()
	for _, q := range qualifiers {
		required := 0
		if q.RequiredQty != nil {
			required = *q.RequiredQty
		}
		inCart := 0
		for _, l := range lines {
			if l.ProductID == q.ProductID {
				inCart += l.Quantity
			}
		}
		if inCart < required {
			return ineligible(ReasonQualifierNotMet)
		}
	}

	// Targets receive the discount when present; otherwise fall back to the
	// qualifier products themselves.
	targetIDs := p.TargetProductIDs()

	var discountable []CartLine
	if len(targetIDs) > 0 {
		for _, l := range lines {
			if _, ok := targetIDs[l.ProductID]; ok && l.Quantity > 0 {
				discountable = append(discountable, l)
			}
		}
		if len(discountable) == 0 {
			return ineligible(ReasonNoTargetItems)
		}
	} else {
		qualifierIDs := make(map[string]struct{}, len(qualifiers))
		for _, q := range qualifiers {
			qualifierIDs[q.ProductID] = struct{}{}
		}
		for _, l := range lines {
			if _, ok := qualifierIDs[l.ProductID]; ok && l.Quantity > 0 {
				discountable = append(discountable, l)
			}
		}
		if len(discountable) == 0 {
			return ineligible(ReasonNoDiscountableItems)
		}
	}

	eligibleUnits := 0
	for _, l := range discountable {
		eligibleUnits += l.Quantity
	}

	discountedUnits := eligibleUnits
	if p.MaxQuantity != nil && eligibleUnits > *p.MaxQuantity {
		discountedUnits = *p.MaxQuantity
	}

	baseSubtotal := topUnitsSubtotal(discountable, discountedUnits)

	var discountAmount decimal.Decimal
	switch {
	case isPercentType(p.DiscountType):
		discountAmount = baseSubtotal.Mul(p.DiscountValue).Div(oneHundred)
	case isAmountType(p.DiscountType):
		// A flat reduction; deliberately not scaled by discounted units.
		discountAmount = p.DiscountValue
	default:
		return EvaluationResult{
			IsEligible:           false,
			Reason:               ReasonUnsupportedDiscountType,
			EligibleUnits:        eligibleUnits,
			DiscountedUnits:      0,
			DiscountBaseSubtotal: baseSubtotal,
			DiscountAmount:       decimal.Zero,
		}
	}

	if discountAmount.Cmp(baseSubtotal) > 0 {
		discountAmount = baseSubtotal
	}
	discountAmount = discountAmount.Round(2)

	return EvaluationResult{
		IsEligible:           true,
		EligibleUnits:        eligibleUnits,
		DiscountedUnits:      discountedUnits,
		DiscountBaseSubtotal: baseSubtotal,
		DiscountAmount:       discountAmount,
	}
}

// topUnitsSubtotal sums the price of unitsToTake units drawn from the most
// expensive lines first.
func topUnitsSubtotal(lines []CartLine, unitsToTake int) decimal.Decimal {
	if unitsToTake <= 0 {
		return decimal.Zero
	}

	ordered := make([]CartLine, len(lines))
	copy(ordered, lines)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].UnitPrice.Cmp(ordered[j].UnitPrice) > 0
	})

	remaining := unitsToTake
	subtotal := decimal.Zero

	for _, line := range ordered {
		if remaining <= 0 {
			break
		}
		take := line.Quantity
		if take > remaining {
			take = remaining
		}
		subtotal = subtotal.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(take))))
		remaining -= take
	}

	return subtotal
}

func ineligible(reason string) EvaluationResult {
	return EvaluationResult{
		Reason:               reason,
		DiscountBaseSubtotal: decimal.Zero,
		DiscountAmount:       decimal.Zero,
	}
}

// ReasonMessage maps a reason code to a user-facing message.
func ReasonMessage(reason string) string {
	switch reason {
	case ReasonInactive:
		return "promotion is inactive"
	case ReasonNotStarted:
		return "promotion has not started yet"
	case ReasonEnded:
		return "promotion has ended"
	case ReasonMinAmountNotMet:
		return "cart does not meet the minimum amount"
	case ReasonMinQuantityNotMet:
		return "cart does not meet the minimum quantity"
	case ReasonQualifierNotMet:
		return "qualifier product quantity not met"
	case ReasonNoTargetItems:
		return "no target items in cart"
	case ReasonNoDiscountableItems:
		return "no discountable items in cart"
	case ReasonUnsupportedDiscountType:
		return "unsupported discount type"
	default:
		return fmt.Sprintf("promotion not eligible (%s)", reason)
	}
}
