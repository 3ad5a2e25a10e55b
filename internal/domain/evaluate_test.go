package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var evalNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// assertDecimal compares by numeric value so exponent representation does not
// matter.
func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, got.Equal(dec(want)), "want %s, got %s", want, got)
}

func intPtr(v int) *int { return &v }

func percentPromo(value string) *Promotion {
	return &Promotion{
		ID:            "promo-1",
		DiscountType:  DiscountTypePercent,
		DiscountValue: dec(value),
		IsActive:      true,
		Items: []PromotionItem{
			{ID: "item-1", PromotionID: "promo-1", ProductID: "prod-1", Role: RoleQualifier, RequiredQty: intPtr(1)},
		},
	}
}

func TestEvaluate_PercentDiscount(t *testing.T) {
	p := percentPromo("10")
	lines := []CartLine{
		{ProductID: "prod-1", Quantity: 5, UnitPrice: dec("10.00")},
	}

	result := Evaluate(p, lines, evalNow)

	require.True(t, result.IsEligible)
	assert.Empty(t, result.Reason)
	assert.Equal(t, 5, result.EligibleUnits)
	assert.Equal(t, 5, result.DiscountedUnits)
	assertDecimal(t, "50", result.DiscountBaseSubtotal)
	assertDecimal(t, "5.00", result.DiscountAmount)
}

func TestEvaluate_MaxQuantityCapsBase(t *testing.T) {
	p := percentPromo("10")
	p.MaxQuantity = intPtr(2)
	lines := []CartLine{
		{ProductID: "prod-1", Quantity: 5, UnitPrice: dec("10.00")},
	}

	result := Evaluate(p, lines, evalNow)

	require.True(t, result.IsEligible)
	assert.Equal(t, 5, result.EligibleUnits)
	assert.Equal(t, 2, result.DiscountedUnits)
	assertDecimal(t, "20", result.DiscountBaseSubtotal)
	assertDecimal(t, "2.00", result.DiscountAmount)
}

func TestEvaluate_HighestPriceUnitsTakenFirst(t *testing.T) {
	p := &Promotion{
		ID:            "promo-1",
		DiscountType:  DiscountTypePercent,
		DiscountValue: dec("10"),
		IsActive:      true,
		MaxQuantity:   intPtr(2),
		Items: []PromotionItem{
			{ID: "item-1", PromotionID: "promo-1", ProductID: "cheap", Role: RoleQualifier, RequiredQty: intPtr(1)},
			{ID: "item-2", PromotionID: "promo-1", ProductID: "pricey", Role: RoleTarget},
			{ID: "item-3", PromotionID: "promo-1", ProductID: "cheap", Role: RoleTarget},
		},
	}
	lines := []CartLine{
		{ProductID: "cheap", Quantity: 3, UnitPrice: dec("5.00")},
		{ProductID: "pricey", Quantity: 1, UnitPrice: dec("10.00")},
	}

	result := Evaluate(p, lines, evalNow)

	require.True(t, result.IsEligible)
	assert.Equal(t, 4, result.EligibleUnits)
	assert.Equal(t, 2, result.DiscountedUnits)
	// One unit at 10.00 plus one at 5.00, never two cheap units.
	assertDecimal(t, "15.00", result.DiscountBaseSubtotal)
	assertDecimal(t, "1.50", result.DiscountAmount)
}

func TestEvaluate_RoundsHalfAwayFromZero(t *testing.T) {
	p := percentPromo("10")
	lines := []CartLine{
		{ProductID: "prod-1", Quantity: 1, UnitPrice: dec("1.25")},
	}

	result := Evaluate(p, lines, evalNow)

	require.True(t, result.IsEligible)
	// 1.25 * 10% = 0.125, rounds up to 0.13.
	assertDecimal(t, "0.13", result.DiscountAmount)
}

func TestEvaluate_AmountDiscountIsFlat(t *testing.T) {
	p := percentPromo("0")
	p.DiscountType = DiscountTypeAmount
	p.DiscountValue = dec("5")
	lines := []CartLine{
		{ProductID: "prod-1", Quantity: 5, UnitPrice: dec("10.00")},
	}

	result := Evaluate(p, lines, evalNow)

	require.True(t, result.IsEligible)
	// Flat 5 off regardless of how many units the base covers.
	assertDecimal(t, "5.00", result.DiscountAmount)
}

func TestEvaluate_DiscountNeverExceedsBase(t *testing.T) {
	p := percentPromo("0")
	p.DiscountType = DiscountTypeAmount
	p.DiscountValue = dec("100")
	lines := []CartLine{
		{ProductID: "prod-1", Quantity: 2, UnitPrice: dec("10.00")},
	}

	result := Evaluate(p, lines, evalNow)

	require.True(t, result.IsEligible)
	assertDecimal(t, "20", result.DiscountBaseSubtotal)
	assertDecimal(t, "20.00", result.DiscountAmount)
}

func TestEvaluate_TargetsReceiveDiscount(t *testing.T) {
	p := &Promotion{
		ID:            "promo-1",
		DiscountType:  DiscountTypePercent,
		DiscountValue: dec("50"),
		IsActive:      true,
		Items: []PromotionItem{
			{ID: "item-1", PromotionID: "promo-1", ProductID: "qual", Role: RoleQualifier, RequiredQty: intPtr(2)},
			{ID: "item-2", PromotionID: "promo-1", ProductID: "tgt", Role: RoleTarget},
		},
	}
	lines := []CartLine{
		{ProductID: "qual", Quantity: 2, UnitPrice: dec("3.00")},
		{ProductID: "tgt", Quantity: 1, UnitPrice: dec("8.00")},
	}

	result := Evaluate(p, lines, evalNow)

	require.True(t, result.IsEligible)
	assert.Equal(t, 1, result.EligibleUnits)
	assertDecimal(t, "8.00", result.DiscountBaseSubtotal)
	assertDecimal(t, "4.00", result.DiscountAmount)
}

func TestEvaluate_NoTargetsDiscountsQualifiers(t *testing.T) {
	p := percentPromo("20")
	lines := []CartLine{
		{ProductID: "prod-1", Quantity: 2, UnitPrice: dec("10.00")},
		{ProductID: "other", Quantity: 4, UnitPrice: dec("99.00")},
	}

	result := Evaluate(p, lines, evalNow)

	require.True(t, result.IsEligible)
	// Only the qualifier product is discounted; unrelated lines are ignored.
	assert.Equal(t, 2, result.EligibleUnits)
	assertDecimal(t, "20", result.DiscountBaseSubtotal)
	assertDecimal(t, "4.00", result.DiscountAmount)
}

func TestEvaluate_IneligibilityReasons(t *testing.T) {
	past := evalNow.Add(-time.Hour)
	future := evalNow.Add(time.Hour)
	minAmount := dec("100")

	tests := []struct {
		name   string
		modify func(p *Promotion)
		lines  []CartLine
		reason string
	}{
		{
			name:   "inactive",
			modify: func(p *Promotion) { p.IsActive = false },
			lines:  []CartLine{{ProductID: "prod-1", Quantity: 1, UnitPrice: dec("10")}},
			reason: ReasonInactive,
		},
		{
			name:   "not started",
			modify: func(p *Promotion) { p.StartTime = &future },
			lines:  []CartLine{{ProductID: "prod-1", Quantity: 1, UnitPrice: dec("10")}},
			reason: ReasonNotStarted,
		},
		{
			name:   "ended",
			modify: func(p *Promotion) { p.EndTime = &past },
			lines:  []CartLine{{ProductID: "prod-1", Quantity: 1, UnitPrice: dec("10")}},
			reason: ReasonEnded,
		},
		{
			name:   "min amount not met",
			modify: func(p *Promotion) { p.MinAmount = &minAmount },
			lines:  []CartLine{{ProductID: "prod-1", Quantity: 1, UnitPrice: dec("10")}},
			reason: ReasonMinAmountNotMet,
		},
		{
			name:   "min quantity not met",
			modify: func(p *Promotion) { p.MinQuantity = intPtr(3) },
			lines:  []CartLine{{ProductID: "prod-1", Quantity: 1, UnitPrice: dec("10")}},
			reason: ReasonMinQuantityNotMet,
		},
		{
			name:   "qualifier quantity not met",
			modify: func(p *Promotion) { p.Items[0].RequiredQty = intPtr(5) },
			lines:  []CartLine{{ProductID: "prod-1", Quantity: 2, UnitPrice: dec("10")}},
			reason: ReasonQualifierNotMet,
		},
		{
			name:   "qualifier product absent",
			modify: func(p *Promotion) {},
			lines:  []CartLine{{ProductID: "other", Quantity: 2, UnitPrice: dec("10")}},
			reason: ReasonQualifierNotMet,
		},
		{
			name: "no target items in cart",
			modify: func(p *Promotion) {
				p.Items[0].RequiredQty = nil
				p.Items = append(p.Items, PromotionItem{
					ID: "item-2", PromotionID: "promo-1", ProductID: "tgt", Role: RoleTarget,
				})
			},
			lines:  []CartLine{{ProductID: "prod-1", Quantity: 1, UnitPrice: dec("10")}},
			reason: ReasonNoTargetItems,
		},
		{
			name:   "no discountable items in cart",
			modify: func(p *Promotion) { p.Items[0].RequiredQty = nil },
			lines:  []CartLine{{ProductID: "other", Quantity: 1, UnitPrice: dec("10")}},
			reason: ReasonNoDiscountableItems,
		},
		{
			name:   "unsupported discount type",
			modify: func(p *Promotion) { p.DiscountType = "bogus" },
			lines:  []CartLine{{ProductID: "prod-1", Quantity: 1, UnitPrice: dec("10")}},
			reason: ReasonUnsupportedDiscountType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := percentPromo("10")
			tt.modify(p)

			result := Evaluate(p, tt.lines, evalNow)

			assert.False(t, result.IsEligible)
			assert.Equal(t, tt.reason, result.Reason)
			assert.True(t, result.DiscountAmount.IsZero())
		})
	}
}

func TestEvaluate_ZeroRequiredQtyAlwaysSatisfied(t *testing.T) {
	p := percentPromo("10")
	p.Items[0].RequiredQty = nil
	lines := []CartLine{
		{ProductID: "prod-1", Quantity: 1, UnitPrice: dec("10.00")},
	}

	result := Evaluate(p, lines, evalNow)

	assert.True(t, result.IsEligible)
}

func TestEvaluate_BoundaryTimesInclusive(t *testing.T) {
	p := percentPromo("10")
	p.StartTime = &evalNow
	p.EndTime = &evalNow
	lines := []CartLine{
		{ProductID: "prod-1", Quantity: 1, UnitPrice: dec("10.00")},
	}

	result := Evaluate(p, lines, evalNow)

	assert.True(t, result.IsEligible)
}

func TestEvaluate_DoesNotMutateInputs(t *testing.T) {
	p := percentPromo("10")
	p.MaxQuantity = intPtr(1)
	lines := []CartLine{
		{ProductID: "prod-1", Quantity: 1, UnitPrice: dec("1.00")},
		{ProductID: "prod-1", Quantity: 1, UnitPrice: dec("9.00")},
	}

	first := Evaluate(p, lines, evalNow)
	second := Evaluate(p, lines, evalNow)

	assert.Equal(t, "prod-1", lines[0].ProductID)
	assertDecimal(t, "1.00", lines[0].UnitPrice)
	assertDecimal(t, "9.00", lines[1].UnitPrice)
	assert.Equal(t, first, second)
}
