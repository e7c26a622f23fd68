package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/janabsyco4-wq/hotelogix-management-system-sub000/internal/middleware"
	"github.com/janabsyco4-wq/hotelogix-management-system-sub000/internal/model"
)

// AdminListBookings возвращает все бронирования, при необходимости
// отфильтрованные по статусу.
func (h *Handler) AdminListBookings(w http.ResponseWriter, r *http.Request) {
	status := model.BookingStatus(r.URL.Query().Get("status"))

	bookings, err := h.service.ListAllBookings(r.Context(), status)
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

type adminRefundRequest struct {
	Approve   *bool  `json:"approve,omitempty"`
	Amount    *int64 `json:"amount,omitempty"`
	Reason    string `json:"reason"`
	RequestID string `json:"request_id,omitempty"`
}

type refundResponse struct {
	ID          int64  `json:"id"`
	IntentID    string `json:"intent_id"`
	Amount      int64  `json:"amount"`
	Reason      string `json:"reason,omitempty"`
	Status      string `json:"status"`
	ProcessedAt string `json:"processed_at,omitempty"`
}

func toRefundResponse(ref *model.Refund) refundResponse {
	resp := refundResponse{
		ID:       ref.ID,
		IntentID: ref.IntentID,
		Amount:   ref.AmountCents,
		Reason:   ref.Reason,
		Status:   ref.Status,
	}
	if ref.ProcessedAt != nil {
		resp.ProcessedAt = ref.ProcessedAt.Format(time.RFC3339)
	}
	return resp
}

// AdminRefund обрабатывает возврат по бронированию. С полем approve это
// решение по заявке пользователя на отмену (amount может уменьшить сумму
// котировки); без него — прямой возврат администратора на указанную сумму.
func (h *Handler) AdminRefund(w http.ResponseWriter, r *http.Request) {
	adminID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	id, err := bookingIDParam(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req adminRefundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Approve != nil {
		rr, err := h.service.DecideCancellation(r.Context(), adminID, id, *req.Approve, req.Amount, req.Reason)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		h.writeJSON(w, http.StatusOK, toRefundRequestResponse(rr))
		return
	}

	if req.Amount == nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}

	ref, err := h.service.AdminProcessRefund(r.Context(), id, *req.Amount, req.Reason, requestID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toRefundResponse(ref))
}

// AdminListRefundRequests возвращает заявки на возврат, при необходимости
// отфильтрованные по решению.
func (h *Handler) AdminListRefundRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := h.service.ListRefundRequests(r.Context(), r.URL.Query().Get("decision"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := make([]refundRequestResponse, 0, len(requests))
	for i := range requests {
		resp = append(resp, toRefundRequestResponse(&requests[i]))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// AdminRevenue возвращает сводку выручки по подтверждённым бронированиям.
func (h *Handler) AdminRevenue(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.GetRevenueSummary(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, summary)
}

// AdminNotifications возвращает страницу ленты уведомлений. Параметры:
// unread=true — только непрочитанные, skip/take — пагинация.
func (h *Handler) AdminNotifications(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	unreadOnly := q.Get("unread") == "true"

	skip, _ := strconv.Atoi(q.Get("skip"))
	take, err := strconv.Atoi(q.Get("take"))
	if err != nil || take <= 0 || take > 100 {
		take = 20
	}

	list, total, unread, err := h.feed.Feed(r.Context(), unreadOnly, skip, take)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []model.Notification{}
	}

	h.writeJSON(w, http.StatusOK, struct {
		Notifications []model.Notification `json:"notifications"`
		Total         int64                `json:"total"`
		Unread        int64                `json:"unread"`
	}{Notifications: list, Total: total, Unread: unread})
}

func notificationIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

// AdminMarkNotificationRead помечает уведомление прочитанным.
func (h *Handler) AdminMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	id, err := notificationIDParam(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.feed.MarkRead(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// AdminMarkAllNotificationsRead помечает все уведомления прочитанными.
func (h *Handler) AdminMarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	if err := h.feed.MarkAllRead(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// AdminDeleteNotification удаляет уведомление из ленты.
func (h *Handler) AdminDeleteNotification(w http.ResponseWriter, r *http.Request) {
	id, err := notificationIDParam(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.feed.Delete(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
