package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shoplite/promotion/internal/domain"
	"github.com/shoplite/promotion/internal/event"
	"github.com/shoplite/promotion/internal/repository"
	apperrors "github.com/shoplite/promotion/pkg/errors"
)

// PromotionService implements the business logic for promotion operations.
type PromotionService struct {
	repo     repository.PromotionRepository
	carts    repository.CartStateRepository
	producer *event.Producer
	logger   *slog.Logger

	// now is injected so evaluation stays deterministic in tests.
	now func() time.Time
}

// NewPromotionService creates a new promotion service.
func NewPromotionService(
	repo repository.PromotionRepository,
	carts repository.CartStateRepository,
	producer *event.Producer,
	logger *slog.Logger,
) *PromotionService {
	return &PromotionService{
		repo:     repo,
		carts:    carts,
		producer: producer,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// PromotionItemInput holds one qualifier or target entry of a promotion write.
type PromotionItemInput struct {
	ProductID   string
	Role        string
	RequiredQty *int
}

// PromotionInput holds the parameters for creating or replacing a promotion.
// Updates replace all fields and the entire item list, matching PUT semantics.
type PromotionInput struct {
	Code            string
	RequiresCode    bool
	DiscountType    string
	DiscountValue   decimal.Decimal
	IsExclusive     bool
	MinAmount       *decimal.Decimal
	MinQuantity     *int
	StartTime       *time.Time
	EndTime         *time.Time
	IsActive        bool
	UsageLimitTotal *int
	MaxQuantity     *int
	StackWithAuto   bool
	StackWithCode   bool
	Items           []PromotionItemInput
}

// ApplyCodeResult is returned when a promo code is applied to a cart.
type ApplyCodeResult struct {
	Promotion  *domain.Promotion       `json:"promotion"`
	Evaluation domain.EvaluationResult `json:"evaluation"`
	CartState  *domain.CartState       `json:"cart_state"`
}

// ValidateItems checks the structural invariants of a promotion item list and
// returns the violations without persisting anything.
func (s *PromotionService) ValidateItems(items []PromotionItemInput) []string {
	return domain.ValidateItems(buildItems("", items))
}

// CreatePromotion validates and persists a new promotion with its items.
func (s *PromotionService) CreatePromotion(ctx context.Context, input *PromotionInput) (*domain.Promotion, error) {
	promo, err := s.buildPromotion(uuid.New().String(), input)
	if err != nil {
		return nil, err
	}

	now := s.now()
	promo.UsageCount = 0
	promo.CreatedAt = now
	promo.UpdatedAt = now

	if err := s.repo.Create(ctx, promo); err != nil {
		return nil, fmt.Errorf("create promotion: %w", err)
	}

	if err := s.producer.PublishPromotionCreated(ctx, promo); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish promotion.created event",
			slog.String("promotion_id", promo.ID),
			slog.String("error", err.Error()),
		)
		// Do not fail the operation if event publishing fails.
	}

	s.logger.InfoContext(ctx, "promotion created",
		slog.String("promotion_id", promo.ID),
		slog.String("code", promo.Code),
	)

	return promo, nil
}

// GetPromotion retrieves a promotion by its ID.
func (s *PromotionService) GetPromotion(ctx context.Context, id string) (*domain.Promotion, error) {
	promo, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get promotion by id: %w", err)
	}
	return promo, nil
}

// ListPromotions returns a filtered, paginated list of promotions.
func (s *PromotionService) ListPromotions(ctx context.Context, filter repository.PromotionFilter) ([]domain.Promotion, int, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PerPage <= 0 {
		filter.PerPage = 20
	}
	if filter.PerPage > 100 {
		filter.PerPage = 100
	}

	promotions, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list promotions: %w", err)
	}

	return promotions, total, nil
}

// UpdatePromotion replaces an existing promotion's fields and item list.
func (s *PromotionService) UpdatePromotion(ctx context.Context, id string, input *PromotionInput) (*domain.Promotion, error) {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get promotion for update: %w", err)
	}

	promo, err := s.buildPromotion(id, input)
	if err != nil {
		return nil, err
	}

	// usage_count is owned by the redemption path; authoring never writes it.
	promo.UsageCount = existing.UsageCount
	promo.CreatedAt = existing.CreatedAt
	promo.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, promo); err != nil {
		return nil, fmt.Errorf("update promotion: %w", err)
	}

	if err := s.producer.PublishPromotionUpdated(ctx, promo); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish promotion.updated event",
			slog.String("promotion_id", promo.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "promotion updated",
		slog.String("promotion_id", promo.ID),
		slog.String("code", promo.Code),
	)

	return promo, nil
}

// DeletePromotion removes a promotion and its items.
func (s *PromotionService) DeletePromotion(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete promotion: %w", err)
	}

	s.logger.InfoContext(ctx, "promotion deleted",
		slog.String("promotion_id", id),
	)

	return nil
}

// EvaluatePromotion evaluates a promotion against a cart snapshot. The result
// is never persisted; ineligibility is reported in the result, not as an error.
func (s *PromotionService) EvaluatePromotion(ctx context.Context, id string, lines []domain.CartLine) (domain.EvaluationResult, error) {
	promo, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.EvaluationResult{}, fmt.Errorf("get promotion for evaluate: %w", err)
	}

	result := domain.Evaluate(promo, lines, s.now())

	if result.IsEligible {
		recordEvaluation(outcomeEligible)
	} else {
		recordEvaluation(result.Reason)
	}

	return result, nil
}

// ApplyCode attaches a code promotion to a cart. The code promotion must be
// eligible for the cart lines and must be stackable with the cart's automatic
// promotion, if one is attached. The automatic promotion is never displaced.
func (s *PromotionService) ApplyCode(ctx context.Context, cartID, code string, lines []domain.CartLine) (*ApplyCodeResult, error) {
	promo, err := s.repo.GetByCode(ctx, normalizeCode(code))
	if err != nil {
		return nil, apperrors.InvalidInput("invalid promo code")
	}

	result := domain.Evaluate(promo, lines, s.now())
	if !result.IsEligible {
		recordEvaluation(result.Reason)
		return nil, apperrors.InvalidInput(domain.ReasonMessage(result.Reason))
	}
	recordEvaluation(outcomeEligible)

	state, err := s.carts.Get(ctx, cartID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("get cart state: %w", err)
		}
		state = &domain.CartState{CartID: cartID}
	}

	if state.AppliedAutoPromotionID != nil {
		auto, err := s.repo.GetByID(ctx, *state.AppliedAutoPromotionID)
		if err != nil {
			return nil, fmt.Errorf("get automatic promotion: %w", err)
		}
		if !domain.CanStack(auto, promo) {
			return nil, apperrors.Conflict("STACKING_CONFLICT",
				"cannot combine with the current automatic promotion")
		}
	}

	state.AppliedCodePromotionID = &promo.ID
	state.UpdatedAt = s.now()

	if err := s.carts.Save(ctx, state); err != nil {
		return nil, fmt.Errorf("save cart state: %w", err)
	}

	if err := s.producer.PublishCodeApplied(ctx, promo, cartID, result); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish promotion.code_applied event",
			slog.String("promotion_id", promo.ID),
			slog.String("cart_id", cartID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "promo code applied",
		slog.String("promotion_id", promo.ID),
		slog.String("cart_id", cartID),
		slog.String("code", promo.Code),
		slog.String("discount_amount", result.DiscountAmount.String()),
	)

	return &ApplyCodeResult{
		Promotion:  promo,
		Evaluation: result,
		CartState:  state,
	}, nil
}

// RemoveCode detaches the code promotion from a cart. Removal is always
// permitted and never touches the automatic promotion slot.
func (s *PromotionService) RemoveCode(ctx context.Context, cartID string) (*domain.CartState, error) {
	state, err := s.carts.Get(ctx, cartID)
	if err != nil {
		return nil, fmt.Errorf("get cart state: %w", err)
	}

	state.AppliedCodePromotionID = nil
	state.UpdatedAt = s.now()

	if err := s.carts.Save(ctx, state); err != nil {
		return nil, fmt.Errorf("save cart state: %w", err)
	}

	s.logger.InfoContext(ctx, "promo code removed",
		slog.String("cart_id", cartID),
	)

	return state, nil
}

// Redeem consumes one unit of the promotion's usage budget at checkout
// finalization. A false return means the budget is exhausted; it is not an
// error. Only storage failures are returned as errors, and the caller must
// not assume the redemption succeeded when one occurs.
func (s *PromotionService) Redeem(ctx context.Context, promotionID string) (bool, error) {
	ok, err := s.repo.TryRedeem(ctx, promotionID)
	if err != nil {
		return false, fmt.Errorf("redeem promotion: %w", err)
	}

	if !ok {
		recordRedemption(resultExhausted)
		s.logger.InfoContext(ctx, "promotion usage limit reached",
			slog.String("promotion_id", promotionID),
		)
		return false, nil
	}

	recordRedemption(resultRedeemed)

	if err := s.producer.PublishRedeemed(ctx, promotionID); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish promotion.redeemed event",
			slog.String("promotion_id", promotionID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "promotion redeemed",
		slog.String("promotion_id", promotionID),
	)

	return true, nil
}

// buildPromotion validates the input and assembles a promotion record.
func (s *PromotionService) buildPromotion(id string, input *PromotionInput) (*domain.Promotion, error) {
	items := buildItems(id, input.Items)

	if violations := domain.ValidateItems(items); len(violations) > 0 {
		return nil, apperrors.InvalidInput(strings.Join(violations, "; "))
	}

	discountType := strings.ToLower(strings.TrimSpace(input.DiscountType))
	if discountType != domain.DiscountTypePercent && discountType != domain.DiscountTypeAmount {
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid discount type %q, must be %q or %q",
			input.DiscountType, domain.DiscountTypePercent, domain.DiscountTypeAmount))
	}

	if input.DiscountValue.IsNegative() {
		return nil, apperrors.InvalidInput("discount value must not be negative")
	}
	if input.MinAmount != nil && input.MinAmount.IsNegative() {
		return nil, apperrors.InvalidInput("min amount must not be negative")
	}

	code := normalizeCode(input.Code)
	if input.RequiresCode && code == "" {
		return nil, apperrors.InvalidInput("promo code is required when requires_code is set")
	}

	if input.StartTime != nil && input.EndTime != nil && !input.EndTime.After(*input.StartTime) {
		return nil, apperrors.InvalidInput("end time must be after start time")
	}

	return &domain.Promotion{
		ID:              id,
		Code:            code,
		RequiresCode:    input.RequiresCode,
		DiscountType:    discountType,
		DiscountValue:   input.DiscountValue,
		IsExclusive:     input.IsExclusive,
		MinAmount:       input.MinAmount,
		MinQuantity:     input.MinQuantity,
		StartTime:       input.StartTime,
		EndTime:         input.EndTime,
		IsActive:        input.IsActive,
		UsageLimitTotal: input.UsageLimitTotal,
		MaxQuantity:     input.MaxQuantity,
		StackWithAuto:   input.StackWithAuto,
		StackWithCode:   input.StackWithCode,
		Items:           items,
	}, nil
}

func buildItems(promotionID string, inputs []PromotionItemInput) []domain.PromotionItem {
	items := make([]domain.PromotionItem, 0, len(inputs))
	for _, in := range inputs {
		items = append(items, domain.PromotionItem{
			ID:          uuid.New().String(),
			PromotionID: promotionID,
			ProductID:   in.ProductID,
			Role:        strings.ToLower(strings.TrimSpace(in.Role)),
			RequiredQty: in.RequiredQty,
		})
	}
	return items
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
