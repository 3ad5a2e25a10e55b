package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/shoplite/promotion/internal/domain"
	"github.com/shoplite/promotion/internal/repository"
	"github.com/shoplite/promotion/internal/service"
	apperrors "github.com/shoplite/promotion/pkg/errors"
	"github.com/shoplite/promotion/pkg/validator"
)

// PromotionHandler handles HTTP requests for promotion endpoints.
type PromotionHandler struct {
	service *service.PromotionService
	logger  *slog.Logger
}

// NewPromotionHandler creates a new promotion HTTP handler.
func NewPromotionHandler(svc *service.PromotionService, logger *slog.Logger) *PromotionHandler {
	return &PromotionHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// PromotionItemRequest is one qualifier or target entry of a promotion write.
type PromotionItemRequest struct {
	ProductID   string `json:"product_id"`
	Role        string `json:"role"`
	RequiredQty *int   `json:"required_qty" validate:"omitempty,gt=0"`
}

// PromotionRequest is the JSON request body for creating or replacing a
// promotion. Updates replace every field and the whole item list.
type PromotionRequest struct {
	Code            string                 `json:"code" validate:"max=50"`
	RequiresCode    bool                   `json:"requires_code"`
	DiscountType    string                 `json:"discount_type" validate:"required"`
	DiscountValue   decimal.Decimal        `json:"discount_value"`
	IsExclusive     bool                   `json:"is_exclusive"`
	MinAmount       *decimal.Decimal       `json:"min_amount"`
	MinQuantity     *int                   `json:"min_quantity" validate:"omitempty,gt=0"`
	StartTime       *string                `json:"start_time"`
	EndTime         *string                `json:"end_time"`
	IsActive        bool                   `json:"is_active"`
	UsageLimitTotal *int                   `json:"usage_limit_total" validate:"omitempty,gte=0"`
	MaxQuantity     *int                   `json:"max_quantity" validate:"omitempty,gt=0"`
	StackWithAuto   bool                   `json:"stack_with_auto"`
	StackWithCode   bool                   `json:"stack_with_code"`
	Items           []PromotionItemRequest `json:"items" validate:"dive"`
}

// CartLineRequest is one line of the cart snapshot sent for evaluation.
type CartLineRequest struct {
	ProductID string          `json:"product_id" validate:"required"`
	Quantity  int             `json:"quantity" validate:"required,gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// EvaluateRequest is the JSON request body for evaluating a promotion.
type EvaluateRequest struct {
	Lines []CartLineRequest `json:"lines" validate:"dive"`
}

// ApplyCodeRequest is the JSON request body for applying a promo code to a cart.
type ApplyCodeRequest struct {
	Code  string            `json:"code" validate:"required,max=50"`
	Lines []CartLineRequest `json:"lines" validate:"dive"`
}

// ValidateItemsRequest is the JSON request body for checking a promotion item
// list without persisting it.
type ValidateItemsRequest struct {
	Items []PromotionItemRequest `json:"items"`
}

// --- Response envelope ---

type response struct {
	Data  any            `json:"data,omitempty"`
	Error *errorResponse `json:"error,omitempty"`
}

type errorResponse struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

type listResponse struct {
	Data       any `json:"data"`
	TotalCount int `json:"total_count"`
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalPages int `json:"total_pages"`
}

type validateItemsResponse struct {
	Valid      bool     `json:"valid"`
	Violations []string `json:"violations"`
}

type redeemResponse struct {
	Redeemed bool `json:"redeemed"`
}

// --- Handlers ---

// CreatePromotion handles POST /api/v1/promotions
func (h *PromotionHandler) CreatePromotion(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	input, ok := h.decodePromotionInput(w, r)
	if !ok {
		return
	}

	promo, err := h.service.CreatePromotion(r.Context(), input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, response{Data: promo})
}

// ListPromotions handles GET /api/v1/promotions
func (h *PromotionHandler) ListPromotions(w http.ResponseWriter, r *http.Request) {
	filter := repository.PromotionFilter{
		Page:    1,
		PerPage: 20,
	}

	if v := r.URL.Query().Get("page"); v != "" {
		if page, err := strconv.Atoi(v); err == nil && page > 0 {
			filter.Page = page
		}
	}
	if v := r.URL.Query().Get("per_page"); v != "" {
		if perPage, err := strconv.Atoi(v); err == nil && perPage > 0 && perPage <= 100 {
			filter.PerPage = perPage
		}
	}
	if v := r.URL.Query().Get("active"); v != "" {
		if active, err := strconv.ParseBool(v); err == nil {
			filter.Active = &active
		}
	}
	if v := r.URL.Query().Get("requires_code"); v != "" {
		if rc, err := strconv.ParseBool(v); err == nil {
			filter.RequiresCode = &rc
		}
	}

	promotions, total, err := h.service.ListPromotions(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	totalPages := total / filter.PerPage
	if total%filter.PerPage > 0 {
		totalPages++
	}

	writeJSON(w, http.StatusOK, listResponse{
		Data:       promotions,
		TotalCount: total,
		Page:       filter.Page,
		PerPage:    filter.PerPage,
		TotalPages: totalPages,
	})
}

// GetPromotion handles GET /api/v1/promotions/{id}
func (h *PromotionHandler) GetPromotion(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "promotion id is required"},
		})
		return
	}

	promo, err := h.service.GetPromotion(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: promo})
}

// UpdatePromotion handles PUT /api/v1/promotions/{id}
func (h *PromotionHandler) UpdatePromotion(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "promotion id is required"},
		})
		return
	}

	input, ok := h.decodePromotionInput(w, r)
	if !ok {
		return
	}

	promo, err := h.service.UpdatePromotion(r.Context(), id, input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: promo})
}

// DeletePromotion handles DELETE /api/v1/promotions/{id}
func (h *PromotionHandler) DeletePromotion(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "promotion id is required"},
		})
		return
	}

	if err := h.service.DeletePromotion(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusNoContent, nil)
}

// ValidateItems handles POST /api/v1/promotions/validate-items
func (h *PromotionHandler) ValidateItems(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	var req ValidateItemsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	violations := h.service.ValidateItems(toItemInputs(req.Items))
	if violations == nil {
		violations = []string{}
	}

	writeJSON(w, http.StatusOK, response{Data: validateItemsResponse{
		Valid:      len(violations) == 0,
		Violations: violations,
	}})
}

// EvaluatePromotion handles POST /api/v1/promotions/{id}/evaluate
func (h *PromotionHandler) EvaluatePromotion(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "promotion id is required"},
		})
		return
	}

	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		h.writeValidationError(w, err)
		return
	}

	result, err := h.service.EvaluatePromotion(r.Context(), id, toCartLines(req.Lines))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: result})
}

// RedeemPromotion handles POST /api/v1/promotions/{id}/redeem
func (h *PromotionHandler) RedeemPromotion(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "promotion id is required"},
		})
		return
	}

	redeemed, err := h.service.Redeem(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	status := http.StatusOK
	if !redeemed {
		status = http.StatusConflict
	}

	writeJSON(w, status, response{Data: redeemResponse{Redeemed: redeemed}})
}

// ApplyCode handles POST /api/v1/carts/{cartId}/promo-code
func (h *PromotionHandler) ApplyCode(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	cartID := chi.URLParam(r, "cartId")
	if cartID == "" {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "cart id is required"},
		})
		return
	}

	var req ApplyCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		h.writeValidationError(w, err)
		return
	}

	result, err := h.service.ApplyCode(r.Context(), cartID, req.Code, toCartLines(req.Lines))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: result})
}

// RemoveCode handles DELETE /api/v1/carts/{cartId}/promo-code
func (h *PromotionHandler) RemoveCode(w http.ResponseWriter, r *http.Request) {
	cartID := chi.URLParam(r, "cartId")
	if cartID == "" {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "cart id is required"},
		})
		return
	}

	state, err := h.service.RemoveCode(r.Context(), cartID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: state})
}

// --- Helpers ---

func (h *PromotionHandler) decodePromotionInput(w http.ResponseWriter, r *http.Request) (*service.PromotionInput, bool) {
	var req PromotionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return nil, false
	}

	if err := validator.Validate(req); err != nil {
		h.writeValidationError(w, err)
		return nil, false
	}

	input := &service.PromotionInput{
		Code:            req.Code,
		RequiresCode:    req.RequiresCode,
		DiscountType:    req.DiscountType,
		DiscountValue:   req.DiscountValue,
		IsExclusive:     req.IsExclusive,
		MinAmount:       req.MinAmount,
		MinQuantity:     req.MinQuantity,
		IsActive:        req.IsActive,
		UsageLimitTotal: req.UsageLimitTotal,
		MaxQuantity:     req.MaxQuantity,
		StackWithAuto:   req.StackWithAuto,
		StackWithCode:   req.StackWithCode,
		Items:           toItemInputs(req.Items),
	}

	if req.StartTime != nil {
		startTime, err := time.Parse(time.RFC3339, *req.StartTime)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, response{
				Error: &errorResponse{Code: "INVALID_INPUT", Message: "start_time must be in RFC3339 format"},
			})
			return nil, false
		}
		input.StartTime = &startTime
	}

	if req.EndTime != nil {
		endTime, err := time.Parse(time.RFC3339, *req.EndTime)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, response{
				Error: &errorResponse{Code: "INVALID_INPUT", Message: "end_time must be in RFC3339 format"},
			})
			return nil, false
		}
		input.EndTime = &endTime
	}

	return input, true
}

func toItemInputs(items []PromotionItemRequest) []service.PromotionItemInput {
	out := make([]service.PromotionItemInput, 0, len(items))
	for _, it := range items {
		out = append(out, service.PromotionItemInput{
			ProductID:   it.ProductID,
			Role:        it.Role,
			RequiredQty: it.RequiredQty,
		})
	}
	return out
}

func toCartLines(lines []CartLineRequest) []domain.CartLine {
	out := make([]domain.CartLine, 0, len(lines))
	for _, l := range lines {
		out = append(out, domain.CartLine{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		})
	}
	return out
}

func (h *PromotionHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		writeJSON(w, appErr.Status, response{
			Error: &errorResponse{Code: appErr.Code, Message: appErr.Message},
		})
		return
	}

	status := apperrors.HTTPStatus(err)
	code := "INTERNAL_ERROR"
	message := "an internal error occurred"

	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		code = "NOT_FOUND"
		message = "resource not found"
		status = http.StatusNotFound
	case errors.Is(err, apperrors.ErrAlreadyExists):
		code = "ALREADY_EXISTS"
		message = "resource already exists"
		status = http.StatusConflict
	case errors.Is(err, apperrors.ErrInvalidInput):
		code = "INVALID_INPUT"
		message = err.Error()
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "internal error",
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	}

	writeJSON(w, status, response{
		Error: &errorResponse{Code: code, Message: message},
	})
}

func (h *PromotionHandler) writeValidationError(w http.ResponseWriter, err error) {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{
				Code:    "VALIDATION_ERROR",
				Message: "request validation failed",
				Fields:  valErr.Fields(),
			},
		})
		return
	}

	writeJSON(w, http.StatusBadRequest, response{
		Error: &errorResponse{Code: "INVALID_INPUT", Message: err.Error()},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
