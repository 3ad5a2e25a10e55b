package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shoplite/promotion/internal/domain"
	pkgkafka "github.com/shoplite/promotion/pkg/kafka"
)

// Kafka topic constants for promotion domain events.
const (
	TopicPromotionCreated     = "shoplite.promotion.created"
	TopicPromotionUpdated     = "shoplite.promotion.updated"
	TopicPromotionCodeApplied = "shoplite.promotion.code_applied"
	TopicPromotionRedeemed    = "shoplite.promotion.redeemed"
)

// Aggregate type constant.
const AggregateTypePromotion = "promotion"

// Source identifier for events originating from the promotion service.
const SourcePromotionService = "promotion-service"

// PromotionChangedData is the payload for promotion.created and
// promotion.updated events.
type PromotionChangedData struct {
	ID           string `json:"id"`
	Code         string `json:"code,omitempty"`
	RequiresCode bool   `json:"requires_code"`
	DiscountType string `json:"discount_type"`
	IsActive     bool   `json:"is_active"`
}

// CodeAppliedData is the payload for a promotion.code_applied event.
type CodeAppliedData struct {
	PromotionID    string `json:"promotion_id"`
	CartID         string `json:"cart_id"`
	Code           string `json:"code"`
	DiscountAmount string `json:"discount_amount"`
}

// RedeemedData is the payload for a promotion.redeemed event.
type RedeemedData struct {
	PromotionID string `json:"promotion_id"`
	UsageCount  int    `json:"usage_count,omitempty"`
}

// Producer publishes promotion domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer for the promotion service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishPromotionCreated publishes a promotion.created event.
func (p *Producer) PublishPromotionCreated(ctx context.Context, promo *domain.Promotion) error {
	return p.publishChange(ctx, TopicPromotionCreated, promo)
}

// PublishPromotionUpdated publishes a promotion.updated event.
func (p *Producer) PublishPromotionUpdated(ctx context.Context, promo *domain.Promotion) error {
	return p.publishChange(ctx, TopicPromotionUpdated, promo)
}

func (p *Producer) publishChange(ctx context.Context, topic string, promo *domain.Promotion) error {
	data := PromotionChangedData{
		ID:           promo.ID,
		Code:         promo.Code,
		RequiresCode: promo.RequiresCode,
		DiscountType: promo.DiscountType,
		IsActive:     promo.IsActive,
	}

	event, err := pkgkafka.NewEvent(topic, promo.ID, AggregateTypePromotion, SourcePromotionService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published promotion change event",
		slog.String("topic", topic),
		slog.String("promotion_id", promo.ID),
	)

	return nil
}

// PublishCodeApplied publishes a promotion.code_applied event.
func (p *Producer) PublishCodeApplied(ctx context.Context, promo *domain.Promotion, cartID string, result domain.EvaluationResult) error {
	data := CodeAppliedData{
		PromotionID:    promo.ID,
		CartID:         cartID,
		Code:           promo.Code,
		DiscountAmount: result.DiscountAmount.String(),
	}

	event, err := pkgkafka.NewEvent(TopicPromotionCodeApplied, promo.ID, AggregateTypePromotion, SourcePromotionService, data)
	if err != nil {
		return fmt.Errorf("create promotion.code_applied event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicPromotionCodeApplied, event); err != nil {
		return fmt.Errorf("publish promotion.code_applied event: %w", err)
	}

	p.logger.DebugContext(ctx, "published promotion.code_applied event",
		slog.String("promotion_id", promo.ID),
		slog.String("cart_id", cartID),
	)

	return nil
}

// PublishRedeemed publishes a promotion.redeemed event.
func (p *Producer) PublishRedeemed(ctx context.Context, promotionID string) error {
	data := RedeemedData{PromotionID: promotionID}

	event, err := pkgkafka.NewEvent(TopicPromotionRedeemed, promotionID, AggregateTypePromotion, SourcePromotionService, data)
	if err != nil {
		return fmt.Errorf("create promotion.redeemed event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicPromotionRedeemed, event); err != nil {
		return fmt.Errorf("publish promotion.redeemed event: %w", err)
	}

	p.logger.DebugContext(ctx, "published promotion.redeemed event",
		slog.String("promotion_id", promotionID),
	)

	return nil
}
