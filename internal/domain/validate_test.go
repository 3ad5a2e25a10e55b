package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateItems_Valid(t *testing.T) {
	items := []PromotionItem{
		{ID: "i1", ProductID: "prod-1", Role: RoleQualifier},
		{ID: "i2", ProductID: "prod-2", Role: RoleTarget},
	}

	assert.Empty(t, ValidateItems(items))
}

func TestValidateItems_RoleIsCaseInsensitive(t *testing.T) {
	items := []PromotionItem{
		{ID: "i1", ProductID: "prod-1", Role: "Qualifier"},
		{ID: "i2", ProductID: "prod-2", Role: "TARGET"},
	}

	assert.Empty(t, ValidateItems(items))
}

func TestValidateItems_NoQualifier(t *testing.T) {
	violations := ValidateItems([]PromotionItem{})

	assert.Equal(t, []string{ViolationNoQualifier}, violations)
}

func TestValidateItems_TargetWithoutQualifier(t *testing.T) {
	items := []PromotionItem{
		{ID: "i1", ProductID: "prod-1", Role: RoleTarget},
	}

	violations := ValidateItems(items)

	assert.Contains(t, violations, ViolationNoQualifier)
	assert.Contains(t, violations, ViolationTargetWithoutQualifier)
}

func TestValidateItems_MissingProduct(t *testing.T) {
	items := []PromotionItem{
		{ID: "i1", ProductID: "", Role: RoleQualifier},
	}

	violations := ValidateItems(items)

	assert.Equal(t, []string{ViolationMissingProduct}, violations)
}

func TestValidateItems_InvalidRole(t *testing.T) {
	items := []PromotionItem{
		{ID: "i1", ProductID: "prod-1", Role: RoleQualifier},
		{ID: "i2", ProductID: "prod-2", Role: "bonus"},
	}

	violations := ValidateItems(items)

	assert.Equal(t, []string{ViolationInvalidRole}, violations)
}

func TestValidateItems_AllViolationsReportedTogether(t *testing.T) {
	items := []PromotionItem{
		{ID: "i1", ProductID: "", Role: "bonus"},
		{ID: "i2", ProductID: "prod-2", Role: RoleTarget},
	}

	violations := ValidateItems(items)

	assert.Len(t, violations, 4)
	assert.Contains(t, violations, ViolationNoQualifier)
	assert.Contains(t, violations, ViolationTargetWithoutQualifier)
	assert.Contains(t, violations, ViolationMissingProduct)
	assert.Contains(t, violations, ViolationInvalidRole)
}

func TestValidateItems_DoesNotMutateItems(t *testing.T) {
	items := []PromotionItem{
		{ID: "i1", ProductID: "prod-1", Role: "Qualifier"},
	}

	_ = ValidateItems(items)

	assert.Equal(t, "Qualifier", items[0].Role)
}
