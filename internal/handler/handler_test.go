package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/janabsyco4-wq/hotelogix-management-system-sub000/internal/middleware"
	"github.com/janabsyco4-wq/hotelogix-management-system-sub000/internal/model"
	"github.com/janabsyco4-wq/hotelogix-management-system-sub000/internal/payment"
	"github.com/janabsyco4-wq/hotelogix-management-system-sub000/internal/policy"
	"github.com/janabsyco4-wq/hotelogix-management-system-sub000/internal/repository"
	"github.com/janabsyco4-wq/hotelogix-management-system-sub000/internal/service"
)

type stubService struct {
	registerUserID int64
	registerErr    error

	authUserID int64
	authRole   string
	authErr    error

	admins map[int64]bool

	initiateBooking *model.Booking
	initiateIntent  *payment.Intent
	initiateErr     error

	confirmBooking *model.Booking
	confirmErr     error

	cancelOutcome *service.CancellationOutcome
	cancelErr     error

	quote    *policy.Result
	quoteErr error

	booking    *model.Booking
	bookingErr error

	bookings    []model.Booking
	bookingsErr error

	refund    *model.Refund
	refundErr error

	decision    *model.RefundRequest
	decisionErr error

	refundRequests []model.RefundRequest

	revenue *model.RevenueSummary

	feedList   []model.Notification
	feedTotal  int64
	feedUnread int64
	feedErr    error
	markedRead []int64
}

func (s *stubService) RegisterUser(context.Context, string, string) (int64, error) {
	return s.registerUserID, s.registerErr
}

func (s *stubService) AuthenticateUser(context.Context, string, string) (int64, string, error) {
	return s.authUserID, s.authRole, s.authErr
}

func (s *stubService) IsAdmin(_ context.Context, userID int64) (bool, error) {
	return s.admins[userID], nil
}

func (s *stubService) InitiateBooking(context.Context, int64, service.InitiateInput) (*model.Booking, *payment.Intent, error) {
	return s.initiateBooking, s.initiateIntent, s.initiateErr
}

func (s *stubService) ConfirmBooking(context.Context, int64, int64) (*model.Booking, error) {
	return s.confirmBooking, s.confirmErr
}

func (s *stubService) RequestCancellation(context.Context, int64, int64, string) (*service.CancellationOutcome, error) {
	return s.cancelOutcome, s.cancelErr
}

func (s *stubService) QuoteRefund(context.Context, int64, int64) (*policy.Result, error) {
	return s.quote, s.quoteErr
}

func (s *stubService) GetBooking(context.Context, int64, int64) (*model.Booking, error) {
	return s.booking, s.bookingErr
}

func (s *stubService) ListBookings(context.Context, int64) ([]model.Booking, error) {
	return s.bookings, s.bookingsErr
}

func (s *stubService) ListAllBookings(context.Context, model.BookingStatus) ([]model.Booking, error) {
	return s.bookings, s.bookingsErr
}

func (s *stubService) AdminProcessRefund(context.Context, int64, int64, string, string) (*model.Refund, error) {
	return s.refund, s.refundErr
}

func (s *stubService) DecideCancellation(context.Context, int64, int64, bool, *int64, string) (*model.RefundRequest, error) {
	return s.decision, s.decisionErr
}

func (s *stubService) ListRefundRequests(context.Context, string) ([]model.RefundRequest, error) {
	return s.refundRequests, nil
}

func (s *stubService) GetRevenueSummary(context.Context) (*model.RevenueSummary, error) {
	return s.revenue, nil
}

func (s *stubService) Feed(context.Context, bool, int, int) ([]model.Notification, int64, int64, error) {
	return s.feedList, s.feedTotal, s.feedUnread, s.feedErr
}

func (s *stubService) MarkRead(_ context.Context, id int64) error {
	s.markedRead = append(s.markedRead, id)
	return nil
}

func (s *stubService) MarkAllRead(context.Context) error { return nil }

func (s *stubService) Delete(context.Context, int64) error { return nil }

func newTestHandler(t *testing.T, svc *stubService) *Handler {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	auth := middleware.NewAuthMiddleware("test-secret")

	return NewHandler(svc, svc, logger, auth)
}

func authRequest(t *testing.T, h *Handler, method, target string, body []byte, userID int64) *http.Request {
	t.Helper()

	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, http.NoBody)
	}

	rec := httptest.NewRecorder()
	h.authMiddleware.SetAuthCookie(rec, userID)
	req.AddCookie(rec.Result().Cookies()[0])
	return req
}

func sampleBooking() *model.Booking {
	intent := "pi_1"
	token := "tok-1"
	checkIn := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)
	checkOut := checkIn.Add(48 * time.Hour)
	return &model.Booking{
		ID:              7,
		UserID:          1,
		Kind:            model.KindRoom,
		TargetID:        3,
		AmountCents:     20000,
		Currency:        "pkr",
		Status:          model.StatusPending,
		PaymentIntentID: &intent,
		CapacityToken:   &token,
		CheckIn:         &checkIn,
		CheckOut:        &checkOut,
		CreatedAt:       time.Now(),
	}
}

func TestRegister_Success(t *testing.T) {
	svc := &stubService{registerUserID: 42}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(credentialsRequest{Login: "user", Password: "pass"})
	req := httptest.NewRequest(http.MethodPost, "/api/user/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if len(res.Cookies()) == 0 {
		t.Fatalf("register must set auth cookie")
	}
}

func TestRegister_Conflict(t *testing.T) {
	svc := &stubService{registerErr: repository.ErrUserExists}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(credentialsRequest{Login: "user", Password: "pass"})
	req := httptest.NewRequest(http.MethodPost, "/api/user/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusConflict)
	}
}

func TestCreateBooking_Created(t *testing.T) {
	b := sampleBooking()
	svc := &stubService{
		initiateBooking: b,
		initiateIntent:  &payment.Intent{ID: "pi_1", ClientSecret: "pi_1_secret"},
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(createBookingRequest{Kind: "room", TargetID: 3})
	req := authRequest(t, h, http.MethodPost, "/api/bookings/", body, 1)
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusCreated)
	}

	var resp struct {
		Booking bookingResponse `json:"booking"`
		Payment struct {
			ClientSecret string `json:"client_secret"`
		} `json:"payment"`
	}
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Booking.ID != 7 || resp.Payment.ClientSecret != "pi_1_secret" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestCreateBooking_Unauthorized(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	body, _ := json.Marshal(createBookingRequest{Kind: "room", TargetID: 3})
	req := httptest.NewRequest(http.MethodPost, "/api/bookings/", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestCreateBooking_MapsDomainErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"range conflict", repository.ErrRoomRangeConflict, http.StatusConflict},
		{"sold out", repository.ErrSoldOut, http.StatusConflict},
		{"bad input", service.ErrInvalidArgument, http.StatusBadRequest},
		{"target missing", repository.ErrTargetNotFound, http.StatusNotFound},
		{"provider down", payment.ErrProvider, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{initiateErr: tt.err}
			h := newTestHandler(t, svc)

			body, _ := json.Marshal(createBookingRequest{Kind: "room", TargetID: 3})
			req := authRequest(t, h, http.MethodPost, "/api/bookings/", body, 1)
			rec := httptest.NewRecorder()

			h.SetupRouter().ServeHTTP(rec, req)

			if rec.Result().StatusCode != tt.want {
				t.Fatalf("status = %d, want %d", rec.Result().StatusCode, tt.want)
			}
		})
	}
}

func TestConfirmBooking_PaymentRequired(t *testing.T) {
	svc := &stubService{confirmErr: payment.ErrNotCaptured}
	h := newTestHandler(t, svc)

	req := authRequest(t, h, http.MethodPost, "/api/bookings/7/confirm", []byte(`{}`), 1)
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusPaymentRequired)
	}
}

func TestCancelBooking_ReturnsRefundRequest(t *testing.T) {
	b := sampleBooking()
	b.Status = model.StatusPendingCancellation
	svc := &stubService{
		cancelOutcome: &service.CancellationOutcome{
			Booking: b,
			Request: &model.RefundRequest{
				ID:               1,
				BookingID:        b.ID,
				RefundPercentage: 50,
				RefundAmount:     10000,
				TierLabel:        "partial",
				Decision:         model.DecisionPending,
				RequestedAt:      time.Now(),
			},
		},
	}
	h := newTestHandler(t, svc)

	req := authRequest(t, h, http.MethodPatch, "/api/bookings/7/cancel", []byte(`{"reason":"plans changed"}`), 1)
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var resp struct {
		Booking       bookingResponse        `json:"booking"`
		RefundRequest *refundRequestResponse `json:"refund_request"`
	}
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Booking.Status != string(model.StatusPendingCancellation) {
		t.Fatalf("booking status = %s", resp.Booking.Status)
	}
	if resp.RefundRequest == nil || resp.RefundRequest.Amount != 10000 {
		t.Fatalf("unexpected refund request: %+v", resp.RefundRequest)
	}
}

func TestQuoteRefund_ReturnsPolicyResult(t *testing.T) {
	svc := &stubService{
		quote: &policy.Result{Percentage: 50, AmountCents: 10000, TierLabel: "partial", HoursUntil: 30},
	}
	h := newTestHandler(t, svc)

	req := authRequest(t, h, http.MethodGet, "/api/bookings/7/refund-quote", nil, 1)
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var resp struct {
		Percentage int32  `json:"refund_percentage"`
		Amount     int64  `json:"refund_amount"`
		TierLabel  string `json:"tier_label"`
	}
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Percentage != 50 || resp.Amount != 10000 || resp.TierLabel != "partial" {
		t.Fatalf("unexpected quote: %+v", resp)
	}
}

func TestAdminRoutes_ForbiddenForRegularUser(t *testing.T) {
	svc := &stubService{admins: map[int64]bool{}}
	h := newTestHandler(t, svc)

	req := authRequest(t, h, http.MethodGet, "/api/admin/bookings", nil, 1)
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusForbidden)
	}
}

func TestAdminRefund_DecisionPath(t *testing.T) {
	svc := &stubService{
		admins: map[int64]bool{9: true},
		decision: &model.RefundRequest{
			ID:          1,
			BookingID:   7,
			Decision:    model.DecisionApproved,
			RequestedAt: time.Now(),
		},
	}
	h := newTestHandler(t, svc)

	req := authRequest(t, h, http.MethodPost, "/api/admin/bookings/7/refund", []byte(`{"approve":true}`), 9)
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var resp refundRequestResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Decision != model.DecisionApproved {
		t.Fatalf("decision = %s, want approved", resp.Decision)
	}
}

func TestAdminRefund_DirectRequiresAmount(t *testing.T) {
	svc := &stubService{admins: map[int64]bool{9: true}}
	h := newTestHandler(t, svc)

	req := authRequest(t, h, http.MethodPost, "/api/admin/bookings/7/refund", []byte(`{"reason":"goodwill"}`), 9)
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestAdminRefund_ExceedsCaptured(t *testing.T) {
	svc := &stubService{
		admins:    map[int64]bool{9: true},
		refundErr: repository.ErrRefundExceedsCaptured,
	}
	h := newTestHandler(t, svc)

	req := authRequest(t, h, http.MethodPost, "/api/admin/bookings/7/refund", []byte(`{"amount":999999}`), 9)
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusUnprocessableEntity)
	}
}

func TestAdminNotifications_Feed(t *testing.T) {
	svc := &stubService{
		admins: map[int64]bool{9: true},
		feedList: []model.Notification{
			{ID: 1, Type: model.NotificationBooking, Title: "New Booking", Priority: model.PriorityHigh},
		},
		feedTotal:  1,
		feedUnread: 1,
	}
	h := newTestHandler(t, svc)

	req := authRequest(t, h, http.MethodGet, "/api/admin/notifications/?unread=true", nil, 9)
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var resp struct {
		Notifications []model.Notification `json:"notifications"`
		Total         int64                `json:"total"`
		Unread        int64                `json:"unread"`
	}
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 1 || resp.Unread != 1 || len(resp.Notifications) != 1 {
		t.Fatalf("unexpected feed: %+v", resp)
	}
}
