package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shoplite/promotion/internal/domain"
	"github.com/shoplite/promotion/internal/repository"
	"github.com/shoplite/promotion/pkg/database"
	apperrors "github.com/shoplite/promotion/pkg/errors"
)

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

func setupRepo(t *testing.T) (*PromotionRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	repo := NewPromotionRepository(mock)
	return repo, mock
}

func samplePromotion() *domain.Promotion {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	end := now.Add(30 * 24 * time.Hour)
	minAmount := decimal.RequireFromString("25.00")
	requiredQty := 2
	usageLimit := 100
	maxQty := 3

	return &domain.Promotion{
		ID:              "promo-001",
		Code:            "SPRING10",
		RequiresCode:    true,
		DiscountType:    domain.DiscountTypePercent,
		DiscountValue:   decimal.RequireFromString("10"),
		MinAmount:       &minAmount,
		StartTime:       &now,
		EndTime:         &end,
		IsActive:        true,
		UsageCount:      7,
		UsageLimitTotal: &usageLimit,
		MaxQuantity:     &maxQty,
		StackWithAuto:   true,
		StackWithCode:   false,
		Items: []domain.PromotionItem{
			{ID: "item-001", PromotionID: "promo-001", ProductID: "prod-100", Role: domain.RoleQualifier, RequiredQty: &requiredQty},
			{ID: "item-002", PromotionID: "promo-001", ProductID: "prod-200", Role: domain.RoleTarget},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func promotionColumnNames() []string {
	return []string{
		"id", "code", "requires_code", "discount_type", "discount_value",
		"is_exclusive", "min_amount", "min_quantity", "start_time", "end_time",
		"is_active", "usage_count", "usage_limit_total", "max_quantity",
		"stack_with_auto", "stack_with_code", "created_at", "updated_at",
	}
}

func promotionRow(p *domain.Promotion) *pgxmock.Rows {
	minAmount := decimal.NullDecimal{}
	if p.MinAmount != nil {
		minAmount = decimal.NullDecimal{Decimal: *p.MinAmount, Valid: true}
	}

	return pgxmock.NewRows(promotionColumnNames()).
		AddRow(
			p.ID, nullableCode(p.Code), p.RequiresCode, p.DiscountType, p.DiscountValue,
			p.IsExclusive, minAmount, p.MinQuantity, p.StartTime, p.EndTime,
			p.IsActive, p.UsageCount, p.UsageLimitTotal, p.MaxQuantity,
			p.StackWithAuto, p.StackWithCode, p.CreatedAt, p.UpdatedAt,
		)
}

func itemRows(items []domain.PromotionItem) *pgxmock.Rows {
	rows := pgxmock.NewRows([]string{"id", "promotion_id", "product_id", "role", "required_qty"})
	for _, it := range items {
		rows.AddRow(it.ID, it.PromotionID, it.ProductID, it.Role, it.RequiredQty)
	}
	return rows
}

func expectItemsQuery(mock pgxmock.PgxPoolIface, p *domain.Promotion) {
	mock.ExpectQuery("SELECT id, promotion_id, product_id, role, required_qty").
		WithArgs(p.ID).
		WillReturnRows(itemRows(p.Items))
}

// ---------------------------------------------------------------------------
// Create
// ---------------------------------------------------------------------------

func TestPromotionRepository_Create_Success(t *testing.T) {
	repo, mock := setupRepo(t)
	defer mock.Close()

	p := samplePromotion()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO promotions").
		WithArgs(
			p.ID, nullableCode(p.Code), p.RequiresCode, p.DiscountType, p.DiscountValue,
			p.IsExclusive, p.MinAmount, p.MinQuantity, p.StartTime, p.EndTime,
			p.IsActive, p.UsageCount, p.UsageLimitTotal, p.MaxQuantity,
			p.StackWithAuto, p.StackWithCode, p.CreatedAt, p.UpdatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	for _, it := range p.Items {
		mock.ExpectExec("INSERT INTO promotion_items").
			WithArgs(it.ID, p.ID, it.ProductID, it.Role, it.RequiredQty).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectCommit()

	err := repo.Create(context.Background(), p)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPromotionRepository_Create_UniqueViolation(t *testing.T) {
	repo, mock := setupRepo(t)
	defer mock.Close()

	p := samplePromotion()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO promotions").
		WithArgs(
			p.ID, nullableCode(p.Code), p.RequiresCode, p.DiscountType, p.DiscountValue,
			p.IsExclusive, p.MinAmount, p.MinQuantity, p.StartTime, p.EndTime,
			p.IsActive, p.UsageCount, p.UsageLimitTotal, p.MaxQuantity,
			p.StackWithAuto, p.StackWithCode, p.CreatedAt, p.UpdatedAt,
		).
		WillReturnError(errors.New("ERROR: duplicate key value violates unique constraint (SQLSTATE 23505)"))
	mock.ExpectRollback()

	err := repo.Create(context.Background(), p)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// GetByID / GetByCode
// ---------------------------------------------------------------------------

func TestPromotionRepository_GetByID_Success(t *testing.T) {
	repo, mock := setupRepo(t)
	defer mock.Close()

	p := samplePromotion()

	mock.ExpectQuery("SELECT .+ FROM promotions WHERE id").
		WithArgs(p.ID).
		WillReturnRows(promotionRow(p))
	expectItemsQuery(mock, p)

	result, err := repo.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, p.ID, result.ID)
	assert.Equal(t, p.Code, result.Code)
	assert.Equal(t, p.RequiresCode, result.RequiresCode)
	assert.Equal(t, p.DiscountType, result.DiscountType)
	assert.True(t, p.DiscountValue.Equal(result.DiscountValue))
	require.NotNil(t, result.MinAmount)
	assert.True(t, p.MinAmount.Equal(*result.MinAmount))
	assert.Equal(t, p.UsageCount, result.UsageCount)
	assert.Equal(t, p.UsageLimitTotal, result.UsageLimitTotal)
	assert.Equal(t, p.MaxQuantity, result.MaxQuantity)
	assert.Equal(t, p.StackWithAuto, result.StackWithAuto)
	assert.Equal(t, p.StackWithCode, result.StackWithCode)

	require.Len(t, result.Items, 2)
	assert.Equal(t, "prod-100", result.Items[0].ProductID)
	assert.Equal(t, domain.RoleQualifier, result.Items[0].Role)
	require.NotNil(t, result.Items[0].RequiredQty)
	assert.Equal(t, 2, *result.Items[0].RequiredQty)
	assert.Equal(t, domain.RoleTarget, result.Items[1].Role)
	assert.Nil(t, result.Items[1].RequiredQty)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPromotionRepository_GetByID_NotFound(t *testing.T) {
	repo, mock := setupRepo(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT .+ FROM promotions WHERE id").
		WithArgs("nonexistent-id").
		WillReturnError(pgx.ErrNoRows)

	result, err := repo.GetByID(context.Background(), "nonexistent-id")
	assert.Nil(t, result)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPromotionRepository_GetByCode_Success(t *testing.T) {
	repo, mock := setupRepo(t)
	defer mock.Close()

	p := samplePromotion()

	mock.ExpectQuery("SELECT .+ FROM promotions WHERE code").
		WithArgs(p.Code).
		WillReturnRows(promotionRow(p))
	expectItemsQuery(mock, p)

	result, err := repo.GetByCode(context.Background(), p.Code)
	require.NoError(t, err)
	assert.Equal(t, p.ID, result.ID)
	assert.Equal(t, p.Code, result.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// List
// ---------------------------------------------------------------------------

func TestPromotionRepository_List_WithFilter(t *testing.T) {
	repo, mock := setupRepo(t)
	defer mock.Close()

	p := samplePromotion()
	active := true

	minAmount := decimal.NullDecimal{Decimal: *p.MinAmount, Valid: true}
	rows := pgxmock.NewRows(append(promotionColumnNames(), "total_count")).
		AddRow(
			p.ID, nullableCode(p.Code), p.RequiresCode, p.DiscountType, p.DiscountValue,
			p.IsExclusive, minAmount, p.MinQuantity, p.StartTime, p.EndTime,
			p.IsActive, p.UsageCount, p.UsageLimitTotal, p.MaxQuantity,
			p.StackWithAuto, p.StackWithCode, p.CreatedAt, p.UpdatedAt,
			42,
		)

	mock.ExpectQuery("SELECT .+ FROM promotions").
		WithArgs(active, 20, 0).
		WillReturnRows(rows)

	promotions, total, err := repo.List(context.Background(), repository.PromotionFilter{
		Active:  &active,
		Page:    1,
		PerPage: 20,
	})
	require.NoError(t, err)
	assert.Equal(t, 42, total)
	require.Len(t, promotions, 1)
	assert.Equal(t, p.ID, promotions[0].ID)
	assert.NotNil(t, promotions[0].Items)
	assert.Empty(t, promotions[0].Items)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPromotionRepository_List_Empty(t *testing.T) {
	repo, mock := setupRepo(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT .+ FROM promotions").
		WithArgs(20, 0).
		WillReturnRows(pgxmock.NewRows(append(promotionColumnNames(), "total_count")))

	promotions, total, err := repo.List(context.Background(), repository.PromotionFilter{Page: 1, PerPage: 20})
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.NotNil(t, promotions)
	assert.Empty(t, promotions)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// Update / Delete
// ---------------------------------------------------------------------------

func TestPromotionRepository_Update_Success(t *testing.T) {
	repo, mock := setupRepo(t)
	defer mock.Close()

	p := samplePromotion()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE promotions").
		WithArgs(
			nullableCode(p.Code), p.RequiresCode, p.DiscountType, p.DiscountValue,
			p.IsExclusive, p.MinAmount, p.MinQuantity, p.StartTime, p.EndTime,
			p.IsActive, p.UsageLimitTotal, p.MaxQuantity,
			p.StackWithAuto, p.StackWithCode, p.UpdatedAt, p.ID,
		).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("DELETE FROM promotion_items").
		WithArgs(p.ID).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	for _, it := range p.Items {
		mock.ExpectExec("INSERT INTO promotion_items").
			WithArgs(it.ID, p.ID, it.ProductID, it.Role, it.RequiredQty).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectCommit()

	err := repo.Update(context.Background(), p)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPromotionRepository_Update_NotFound(t *testing.T) {
	repo, mock := setupRepo(t)
	defer mock.Close()

	p := samplePromotion()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE promotions").
		WithArgs(
			nullableCode(p.Code), p.RequiresCode, p.DiscountType, p.DiscountValue,
			p.IsExclusive, p.MinAmount, p.MinQuantity, p.StartTime, p.EndTime,
			p.IsActive, p.UsageLimitTotal, p.MaxQuantity,
			p.StackWithAuto, p.StackWithCode, p.UpdatedAt, p.ID,
		).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err := repo.Update(context.Background(), p)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPromotionRepository_Delete_Success(t *testing.T) {
	repo, mock := setupRepo(t)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM promotion_items").
		WithArgs("promo-001").
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec("DELETE FROM promotions").
		WithArgs("promo-001").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	err := repo.Delete(context.Background(), "promo-001")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPromotionRepository_Delete_NotFound(t *testing.T) {
	repo, mock := setupRepo(t)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM promotion_items").
		WithArgs("nonexistent-id").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec("DELETE FROM promotions").
		WithArgs("nonexistent-id").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectRollback()

	err := repo.Delete(context.Background(), "nonexistent-id")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// TryRedeem
// ---------------------------------------------------------------------------

func TestPromotionRepository_TryRedeem_Success(t *testing.T) {
	repo, mock := setupRepo(t)
	defer mock.Close()

	mock.ExpectExec("UPDATE promotions").
		WithArgs("promo-001").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	ok, err := repo.TryRedeem(context.Background(), "promo-001")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPromotionRepository_TryRedeem_LimitReached(t *testing.T) {
	repo, mock := setupRepo(t)
	defer mock.Close()

	mock.ExpectExec("UPDATE promotions").
		WithArgs("promo-001").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ok, err := repo.TryRedeem(context.Background(), "promo-001")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPromotionRepository_TryRedeem_StorageError(t *testing.T) {
	repo, mock := setupRepo(t)
	defer mock.Close()

	mock.ExpectExec("UPDATE promotions").
		WithArgs("promo-001").
		WillReturnError(errors.New("connection refused"))

	ok, err := repo.TryRedeem(context.Background(), "promo-001")
	assert.False(t, ok)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "redeem promotion")
	assert.NoError(t, mock.ExpectationsWereMet())
}
