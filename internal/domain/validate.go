package domain

// Violation messages reported by ValidateItems.
const (
	ViolationNoQualifier            = "at least one qualifier item is required"
	ViolationTargetWithoutQualifier = "target items are not allowed without qualifier items"
	ViolationMissingProduct         = "every promotion item must reference a product"
	ViolationInvalidRole            = `item role must be "qualifier" or "target"`
)

// ValidateItems enforces the structural invariants of a promotion's item list
// before it is persisted. All rules are evaluated so every violation is
// reported together; the caller decides whether to reject the write. The item
// list is never mutated.
func ValidateItems(items []PromotionItem) []string {
	var violations []string

	qualifiers := 0
	targets := 0
	missingProduct := false
	badRole := false

	for _, item := range items {
		switch {
		case item.IsQualifier():
			qualifiers++
		case item.IsTarget():
			targets++
		default:
			badRole = true
		}
		if item.ProductID == "" {
			missingProduct = true
		}
	}

	if qualifiers == 0 {
		violations = append(violations, ViolationNoQualifier)
	}
	if targets > 0 && qualifiers == 0 {
		violations = append(violations, ViolationTargetWithoutQualifier)
	}
	if missingProduct {
		violations = append(violations, ViolationMissingProduct)
	}
	if badRole {
		violations = append(violations, ViolationInvalidRole)
	}

	return violations
}
