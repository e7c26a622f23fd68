// Package handler содержит HTTP-обработчики API платформы бронирования.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/janabsyco4-wq/hotelogix-management-system-sub000/internal/middleware"
	"github.com/janabsyco4-wq/hotelogix-management-system-sub000/internal/model"
	"github.com/janabsyco4-wq/hotelogix-management-system-sub000/internal/payment"
	"github.com/janabsyco4-wq/hotelogix-management-system-sub000/internal/policy"
	"github.com/janabsyco4-wq/hotelogix-management-system-sub000/internal/repository"
	"github.com/janabsyco4-wq/hotelogix-management-system-sub000/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, login, password string) (int64, error)
	AuthenticateUser(ctx context.Context, login, password string) (int64, string, error)
	IsAdmin(ctx context.Context, userID int64) (bool, error)

	InitiateBooking(ctx context.Context, userID int64, in service.InitiateInput) (*model.Booking, *payment.Intent, error)
	ConfirmBooking(ctx context.Context, userID, bookingID int64) (*model.Booking, error)
	RequestCancellation(ctx context.Context, userID, bookingID int64, reason string) (*service.CancellationOutcome, error)
	QuoteRefund(ctx context.Context, userID, bookingID int64) (*policy.Result, error)
	GetBooking(ctx context.Context, id, userID int64) (*model.Booking, error)
	ListBookings(ctx context.Context, userID int64) ([]model.Booking, error)

	ListAllBookings(ctx context.Context, status model.BookingStatus) ([]model.Booking, error)
	AdminProcessRefund(ctx context.Context, bookingID, amountCents int64, reason, requestID string) (*model.Refund, error)
	DecideCancellation(ctx context.Context, adminID, bookingID int64, approve bool, amountOverride *int64, reason string) (*model.RefundRequest, error)
	ListRefundRequests(ctx context.Context, decision string) ([]model.RefundRequest, error)
	GetRevenueSummary(ctx context.Context) (*model.RevenueSummary, error)
}

// NotificationFeed определяет контракт ленты уведомлений администратора.
type NotificationFeed interface {
	Feed(ctx context.Context, unreadOnly bool, skip, take int) ([]model.Notification, int64, int64, error)
	MarkRead(ctx context.Context, id int64) error
	MarkAllRead(ctx context.Context) error
	Delete(ctx context.Context, id int64) error
}

// Handler реализует HTTP-обработчики API платформы бронирования.
type Handler struct {
	service        Service
	feed           NotificationFeed
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, feed NotificationFeed, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		feed:           feed,
		logger:         logger,
		authMiddleware: auth,
	}
}

// writeError транслирует доменные ошибки в HTTP-статусы.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	switch {
	case errors.Is(err, repository.ErrBookingNotFound),
		errors.Is(err, repository.ErrTargetNotFound),
		errors.Is(err, repository.ErrRefundRequestNotFound),
		errors.Is(err, repository.ErrNotificationNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, repository.ErrRoomRangeConflict),
		errors.Is(err, repository.ErrSoldOut),
		errors.Is(err, repository.ErrStatusConflict),
		errors.Is(err, service.ErrInvalidState):
		status = http.StatusConflict
	case errors.Is(err, repository.ErrRefundExceedsCaptured):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, payment.ErrNotCaptured):
		status = http.StatusPaymentRequired
	case errors.Is(err, payment.ErrProvider), errors.Is(err, payment.ErrRefundFailed):
		status = http.StatusBadGateway
	default:
		h.logger.Error("request failed",
			zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
		status = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response", zap.Error(err))
	}
}

type credentialsRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// Register обрабатывает регистрацию нового пользователя.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Login == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	userID, err := h.service.RegisterUser(r.Context(), req.Login, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
			return
		}
		h.logger.Error("register user error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.authMiddleware.SetAuthCookie(w, userID)
	w.WriteHeader(http.StatusOK)
}

// Login выполняет аутентификацию пользователя и установку cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Login == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	userID, _, err := h.service.AuthenticateUser(r.Context(), req.Login, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) || err.Error() == "invalid credentials" {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		h.logger.Error("login user error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.authMiddleware.SetAuthCookie(w, userID)
	w.WriteHeader(http.StatusOK)
}

type createBookingRequest struct {
	Kind      string  `json:"kind"`
	TargetID  int64   `json:"target_id"`
	CheckIn   *string `json:"check_in,omitempty"`
	CheckOut  *string `json:"check_out,omitempty"`
	Date      *string `json:"reservation_date,omitempty"`
	TimeSlot  *string `json:"reservation_time,omitempty"`
	Guests    *int32  `json:"guests,omitempty"`
	StartDate *string `json:"start_date,omitempty"`
}

type bookingResponse struct {
	ID             int64   `json:"id"`
	Kind           string  `json:"kind"`
	TargetID       int64   `json:"target_id"`
	Amount         int64   `json:"amount"`
	Currency       string  `json:"currency"`
	Status         string  `json:"status"`
	CheckIn        *string `json:"check_in,omitempty"`
	CheckOut       *string `json:"check_out,omitempty"`
	Date           *string `json:"reservation_date,omitempty"`
	TimeSlot       *string `json:"reservation_time,omitempty"`
	Guests         *int32  `json:"guests,omitempty"`
	StartDate      *string `json:"start_date,omitempty"`
	RedemptionCode *string `json:"redemption_code,omitempty"`
	CreatedAt      string  `json:"created_at"`
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

func toBookingResponse(b *model.Booking) bookingResponse {
	return bookingResponse{
		ID:             b.ID,
		Kind:           string(b.Kind),
		TargetID:       b.TargetID,
		Amount:         b.AmountCents,
		Currency:       b.Currency,
		Status:         string(b.Status),
		CheckIn:        formatTime(b.CheckIn),
		CheckOut:       formatTime(b.CheckOut),
		Date:           formatTime(b.Date),
		TimeSlot:       b.TimeSlot,
		Guests:         b.Guests,
		StartDate:      formatTime(b.StartDate),
		RedemptionCode: b.RedemptionCode,
		CreatedAt:      b.CreatedAt.Format(time.RFC3339),
	}
}

func parseDate(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, *s); err == nil {
			return &t, nil
		}
	}
	return nil, errors.New("invalid date format")
}

// CreateBooking инициирует новое бронирование и возвращает платёжные
// реквизиты для завершения оплаты на клиенте.
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	in := service.InitiateInput{
		Kind:     model.BookingKind(req.Kind),
		TargetID: req.TargetID,
		TimeSlot: req.TimeSlot,
		Guests:   req.Guests,
	}

	var err error
	if in.CheckIn, err = parseDate(req.CheckIn); err == nil {
		if in.CheckOut, err = parseDate(req.CheckOut); err == nil {
			if in.Date, err = parseDate(req.Date); err == nil {
				in.StartDate, err = parseDate(req.StartDate)
			}
		}
	}
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	b, intent, err := h.service.InitiateBooking(r.Context(), userID, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, struct {
		Booking bookingResponse `json:"booking"`
		Payment struct {
			IntentID     string `json:"intent_id"`
			ClientSecret string `json:"client_secret"`
		} `json:"payment"`
	}{
		Booking: toBookingResponse(b),
		Payment: struct {
			IntentID     string `json:"intent_id"`
			ClientSecret string `json:"client_secret"`
		}{IntentID: intent.ID, ClientSecret: intent.ClientSecret},
	})
}

func bookingIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

// ConfirmBooking завершает бронирование после оплаты. Телу запроса не
// доверяем: захват перепроверяется у шлюза по интенту, сохранённому при
// инициации.
func (h *Handler) ConfirmBooking(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	id, err := bookingIDParam(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	b, err := h.service.ConfirmBooking(r.Context(), userID, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toBookingResponse(b))
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type refundRequestResponse struct {
	ID          int64  `json:"id"`
	BookingID   int64  `json:"booking_id"`
	Reason      string `json:"reason,omitempty"`
	Percentage  int32  `json:"refund_percentage"`
	Amount      int64  `json:"refund_amount"`
	TierLabel   string `json:"tier_label"`
	Decision    string `json:"decision"`
	RequestedAt string `json:"requested_at"`
}

func toRefundRequestResponse(rr *model.RefundRequest) refundRequestResponse {
	return refundRequestResponse{
		ID:          rr.ID,
		BookingID:   rr.BookingID,
		Reason:      rr.Reason,
		Percentage:  rr.RefundPercentage,
		Amount:      rr.RefundAmount,
		TierLabel:   rr.TierLabel,
		Decision:    rr.Decision,
		RequestedAt: rr.RequestedAt.Format(time.RFC3339),
	}
}

// CancelBooking обрабатывает запрос пользователя на отмену бронирования.
func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	id, err := bookingIDParam(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	out, err := h.service.RequestCancellation(r.Context(), userID, id, req.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := struct {
		Booking       bookingResponse        `json:"booking"`
		RefundRequest *refundRequestResponse `json:"refund_request,omitempty"`
	}{Booking: toBookingResponse(out.Booking)}
	if out.Request != nil {
		rr := toRefundRequestResponse(out.Request)
		resp.RefundRequest = &rr
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// QuoteRefund возвращает котировку возврата по политике отмены, не меняя
// бронирование. Клиент показывает её перед подтверждением отмены.
func (h *Handler) QuoteRefund(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	id, err := bookingIDParam(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	quote, err := h.service.QuoteRefund(r.Context(), userID, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, struct {
		Percentage int32  `json:"refund_percentage"`
		Amount     int64  `json:"refund_amount"`
		TierLabel  string `json:"tier_label"`
		HoursUntil int64  `json:"hours_until_service"`
	}{
		Percentage: quote.Percentage,
		Amount:     quote.AmountCents,
		TierLabel:  quote.TierLabel,
		HoursUntil: quote.HoursUntil,
	})
}

// GetBooking возвращает бронирование текущего пользователя.
func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	id, err := bookingIDParam(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	b, err := h.service.GetBooking(r.Context(), id, userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toBookingResponse(b))
}

// ListBookings возвращает бронирования текущего пользователя.
func (h *Handler) ListBookings(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	bookings, err := h.service.ListBookings(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := make([]bookingResponse, 0, len(bookings))
	for i := range bookings {
		resp = append(resp, toBookingResponse(&bookings[i]))
	}

	h.writeJSON(w, http.StatusOK, resp)
}
