package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Promotion item roles.
const (
	RoleQualifier = "qualifier"
	RoleTarget    = "target"
)

// Discount types. Stored values are matched case-insensitively; the legacy
// aliases "percentage" and "fixed" are accepted for rows imported from the
// old system.
const (
	DiscountTypePercent = "percent"
	DiscountTypeAmount  = "amount"
)

// Promotion is a discount rule. Items are held by value and reference products
// by id only; there are no back-pointers from items to their promotion.
type Promotion struct {
	ID              string           `json:"id"`
	Code            string           `json:"code,omitempty"`
	RequiresCode    bool             `json:"requires_code"`
	DiscountType    string           `json:"discount_type"`
	DiscountValue   decimal.Decimal  `json:"discount_value"`
	IsExclusive     bool             `json:"is_exclusive"`
	MinAmount       *decimal.Decimal `json:"min_amount,omitempty"`
	MinQuantity     *int             `json:"min_quantity,omitempty"`
	StartTime       *time.Time       `json:"start_time,omitempty"`
	EndTime         *time.Time       `json:"end_time,omitempty"`
	IsActive        bool             `json:"is_active"`
	UsageCount      int              `json:"usage_count"`
	UsageLimitTotal *int             `json:"usage_limit_total,omitempty"`
	MaxQuantity     *int             `json:"max_quantity,omitempty"`
	StackWithAuto   bool             `json:"stack_with_auto"`
	StackWithCode   bool             `json:"stack_with_code"`
	Items           []PromotionItem  `json:"items"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// PromotionItem is a qualifier or target entry of a promotion.
type PromotionItem struct {
	ID          string `json:"id"`
	PromotionID string `json:"promotion_id"`
	ProductID   string `json:"product_id"`
	Role        string `json:"role"`
	RequiredQty *int   `json:"required_qty,omitempty"`
}

// CartLine is a snapshot of one cart line at evaluation time. Lines are
// constructed fresh per evaluation call and never persisted by this service.
type CartLine struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// CartState tracks which promotions are attached to a cart. At most one
// automatic and one code promotion may be attached at a time.
type CartState struct {
	CartID                 string    `json:"cart_id"`
	AppliedAutoPromotionID *string   `json:"applied_auto_promotion_id,omitempty"`
	AppliedCodePromotionID *string   `json:"applied_code_promotion_id,omitempty"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// EvaluationResult is the outcome of evaluating a promotion against a cart.
// Ineligibility is an expected result, not an error; Reason carries a stable
// reason code when IsEligible is false.
type EvaluationResult struct {
	IsEligible           bool            `json:"is_eligible"`
	Reason               string          `json:"reason,omitempty"`
	EligibleUnits        int             `json:"eligible_units"`
	DiscountedUnits      int             `json:"discounted_units"`
	DiscountBaseSubtotal decimal.Decimal `json:"discount_base_subtotal"`
	DiscountAmount       decimal.Decimal `json:"discount_amount"`
}

// IsQualifier reports whether the item role is qualifier, case-insensitively.
func (i PromotionItem) IsQualifier() bool {
	return strings.EqualFold(i.Role, RoleQualifier)
}

// IsTarget reports whether the item role is target, case-insensitively.
func (i PromotionItem) IsTarget() bool {
	return strings.EqualFold(i.Role, RoleTarget)
}

// Qualifiers returns the promotion's qualifier items.
func (p *Promotion) Qualifiers() []PromotionItem {
	var out []PromotionItem
	for _, item := range p.Items {
		if item.IsQualifier() {
			out = append(out, item)
		}
	}
	return out
}

// TargetProductIDs returns the set of product ids carried by target items.
func (p *Promotion) TargetProductIDs() map[string]struct{} {
	out := make(map[string]struct{})
	for _, item := range p.Items {
		if item.IsTarget() {
			out[item.ProductID] = struct{}{}
		}
	}
	return out
}

func isPercentType(t string) bool {
	return strings.EqualFold(t, DiscountTypePercent) || strings.EqualFold(t, "percentage")
}

func isAmountType(t string) bool {
	return strings.EqualFold(t, DiscountTypeAmount) || strings.EqualFold(t, "fixed")
}
