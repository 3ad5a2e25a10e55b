package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/shoplite/promotion/internal/domain"
	"github.com/shoplite/promotion/internal/repository"
	apperrors "github.com/shoplite/promotion/pkg/errors"
)

// DB is the subset of pgxpool.Pool used by the repository. pgxmock satisfies
// the same interface in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PromotionRepository implements repository.PromotionRepository using PostgreSQL.
type PromotionRepository struct {
	db DB
}

// NewPromotionRepository creates a new PostgreSQL-backed promotion repository.
func NewPromotionRepository(db DB) *PromotionRepository {
	return &PromotionRepository{db: db}
}

const promotionColumns = `id, code, requires_code, discount_type, discount_value,
	is_exclusive, min_amount, min_quantity, start_time, end_time, is_active,
	usage_count, usage_limit_total, max_quantity, stack_with_auto,
	stack_with_code, created_at, updated_at`

// Create inserts a new promotion and its items in one transaction.
func (r *PromotionRepository) Create(ctx context.Context, p *domain.Promotion) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create promotion: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		INSERT INTO promotions (` + promotionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	_, err = tx.Exec(ctx, query,
		p.ID,
		nullableCode(p.Code),
		p.RequiresCode,
		p.DiscountType,
		p.DiscountValue,
		p.IsExclusive,
		p.MinAmount,
		p.MinQuantity,
		p.StartTime,
		p.EndTime,
		p.IsActive,
		p.UsageCount,
		p.UsageLimitTotal,
		p.MaxQuantity,
		p.StackWithAuto,
		p.StackWithCode,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("promotion", "code", p.Code)
		}
		return fmt.Errorf("insert promotion: %w", err)
	}

	if err := insertItems(ctx, tx, p.ID, p.Items); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create promotion: %w", err)
	}

	return nil
}

// GetByID retrieves a promotion and its items by id.
func (r *PromotionRepository) GetByID(ctx context.Context, id string) (*domain.Promotion, error) {
	query := `SELECT ` + promotionColumns + ` FROM promotions WHERE id = $1`
	return r.scanPromotion(ctx, query, id)
}

// GetByCode retrieves a code-gated promotion by its promo code.
func (r *PromotionRepository) GetByCode(ctx context.Context, code string) (*domain.Promotion, error) {
	query := `SELECT ` + promotionColumns + ` FROM promotions WHERE code = $1 AND requires_code = TRUE`
	return r.scanPromotion(ctx, query, code)
}

// List returns promotions matching the filter with the total count. Items are
// not loaded for list results.
func (r *PromotionRepository) List(ctx context.Context, filter repository.PromotionFilter) ([]domain.Promotion, int, error) {
	var (
		conditions []string
		args       []any
		argIndex   = 1
	)

	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", argIndex))
		args = append(args, *filter.Active)
		argIndex++
	}

	if filter.RequiresCode != nil {
		conditions = append(conditions, fmt.Sprintf("requires_code = $%d", argIndex))
		args = append(args, *filter.RequiresCode)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT `+promotionColumns+`, count(*) OVER() AS total_count
		FROM promotions
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		whereClause, argIndex, argIndex+1,
	)

	limit := filter.PerPage
	if limit <= 0 {
		limit = 20
	}
	offset := 0
	if filter.Page > 1 {
		offset = (filter.Page - 1) * limit
	}

	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list promotions: %w", err)
	}
	defer rows.Close()

	var (
		promotions []domain.Promotion
		totalCount int
	)

	for rows.Next() {
		var (
			p         domain.Promotion
			code      *string
			minAmount decimal.NullDecimal
		)

		if err := rows.Scan(
			&p.ID, &code, &p.RequiresCode, &p.DiscountType, &p.DiscountValue,
			&p.IsExclusive, &minAmount, &p.MinQuantity, &p.StartTime, &p.EndTime,
			&p.IsActive, &p.UsageCount, &p.UsageLimitTotal, &p.MaxQuantity,
			&p.StackWithAuto, &p.StackWithCode, &p.CreatedAt, &p.UpdatedAt,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan promotion row: %w", err)
		}

		if code != nil {
			p.Code = *code
		}
		if minAmount.Valid {
			p.MinAmount = &minAmount.Decimal
		}
		p.Items = []domain.PromotionItem{}

		promotions = append(promotions, p)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate promotion rows: %w", err)
	}

	if promotions == nil {
		promotions = []domain.Promotion{}
	}

	return promotions, totalCount, nil
}

// Update replaces a promotion's fields and its item list in one transaction.
func (r *PromotionRepository) Update(ctx context.Context, p *domain.Promotion) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin update promotion: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		UPDATE promotions
		SET code = $1, requires_code = $2, discount_type = $3, discount_value = $4,
		    is_exclusive = $5, min_amount = $6, min_quantity = $7, start_time = $8,
		    end_time = $9, is_active = $10, usage_limit_total = $11, max_quantity = $12,
		    stack_with_auto = $13, stack_with_code = $14, updated_at = $15
		WHERE id = $16`

	ct, err := tx.Exec(ctx, query,
		nullableCode(p.Code),
		p.RequiresCode,
		p.DiscountType,
		p.DiscountValue,
		p.IsExclusive,
		p.MinAmount,
		p.MinQuantity,
		p.StartTime,
		p.EndTime,
		p.IsActive,
		p.UsageLimitTotal,
		p.MaxQuantity,
		p.StackWithAuto,
		p.StackWithCode,
		p.UpdatedAt,
		p.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("promotion", "code", p.Code)
		}
		return fmt.Errorf("update promotion: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("promotion", p.ID)
	}

	// Replace the item rows wholesale; items carry no state of their own.
	if _, err := tx.Exec(ctx, `DELETE FROM promotion_items WHERE promotion_id = $1`, p.ID); err != nil {
		return fmt.Errorf("delete promotion items: %w", err)
	}

	if err := insertItems(ctx, tx, p.ID, p.Items); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit update promotion: %w", err)
	}

	return nil
}

// Delete removes a promotion and its items.
func (r *PromotionRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete promotion: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM promotion_items WHERE promotion_id = $1`, id); err != nil {
		return fmt.Errorf("delete promotion items: %w", err)
	}

	ct, err := tx.Exec(ctx, `DELETE FROM promotions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete promotion: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("promotion", id)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit delete promotion: %w", err)
	}

	return nil
}

// TryRedeem atomically increments usage_count if the usage limit is not
// exhausted. The check and the increment are a single conditional UPDATE, so
// two concurrent redemptions can never both pass an already-reached limit.
// Zero affected rows means the limit was reached (or the id is unknown).
func (r *PromotionRepository) TryRedeem(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE promotions
		SET usage_count = usage_count + 1, updated_at = NOW()
		WHERE id = $1
		  AND (usage_limit_total IS NULL OR usage_count < usage_limit_total)`

	ct, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("redeem promotion: %w", err)
	}

	return ct.RowsAffected() == 1, nil
}

func (r *PromotionRepository) scanPromotion(ctx context.Context, query string, arg any) (*domain.Promotion, error) {
	var (
		p         domain.Promotion
		code      *string
		minAmount decimal.NullDecimal
	)

	err := r.db.QueryRow(ctx, query, arg).Scan(
		&p.ID, &code, &p.RequiresCode, &p.DiscountType, &p.DiscountValue,
		&p.IsExclusive, &minAmount, &p.MinQuantity, &p.StartTime, &p.EndTime,
		&p.IsActive, &p.UsageCount, &p.UsageLimitTotal, &p.MaxQuantity,
		&p.StackWithAuto, &p.StackWithCode, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan promotion: %w", err)
	}

	if code != nil {
		p.Code = *code
	}
	if minAmount.Valid {
		p.MinAmount = &minAmount.Decimal
	}

	items, err := r.loadItems(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	p.Items = items

	return &p, nil
}

func (r *PromotionRepository) loadItems(ctx context.Context, promotionID string) ([]domain.PromotionItem, error) {
	query := `
		SELECT id, promotion_id, product_id, role, required_qty
		FROM promotion_items
		WHERE promotion_id = $1
		ORDER BY id`

	rows, err := r.db.Query(ctx, query, promotionID)
	if err != nil {
		return nil, fmt.Errorf("load promotion items: %w", err)
	}
	defer rows.Close()

	items := []domain.PromotionItem{}
	for rows.Next() {
		var item domain.PromotionItem
		if err := rows.Scan(&item.ID, &item.PromotionID, &item.ProductID, &item.Role, &item.RequiredQty); err != nil {
			return nil, fmt.Errorf("scan promotion item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate promotion items: %w", err)
	}

	return items, nil
}

func insertItems(ctx context.Context, tx pgx.Tx, promotionID string, items []domain.PromotionItem) error {
	query := `
		INSERT INTO promotion_items (id, promotion_id, product_id, role, required_qty)
		VALUES ($1, $2, $3, $4, $5)`

	for _, item := range items {
		if _, err := tx.Exec(ctx, query, item.ID, promotionID, item.ProductID, item.Role, item.RequiredQty); err != nil {
			return fmt.Errorf("insert promotion item: %w", err)
		}
	}
	return nil
}

// nullableCode maps an empty code to NULL so the partial unique index on code
// is not tripped by code-less automatic promotions.
func nullableCode(code string) *string {
	if code == "" {
		return nil
	}
	return &code
}

// isUniqueViolation checks if the error is a PostgreSQL unique constraint violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
