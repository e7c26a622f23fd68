package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/janabsyco4-wq/hotelogix-management-system-sub000/internal/model"
)

// NotificationStore описывает хранилище ленты уведомлений администратора.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n *model.Notification) error
	ListNotifications(ctx context.Context, unreadOnly bool, skip, take int) ([]model.Notification, int64, int64, error)
	MarkNotificationRead(ctx context.Context, id int64) error
	MarkAllNotificationsRead(ctx context.Context) error
	DeleteNotification(ctx context.Context, id int64) error
}

// EventPublisher публикует события уведомлений во внешний брокер.
type EventPublisher interface {
	Publish(ctx context.Context, event any) error
}

// NotificationDispatcher рассылает уведомления о событиях жизненного цикла.
// Рассылка строго best-effort: ошибки логируются и никогда не прерывают
// породившую событие операцию.
type NotificationDispatcher struct {
	store     NotificationStore
	publisher EventPublisher
	logger    *zap.Logger
}

// NewNotificationDispatcher создаёт диспетчер уведомлений. publisher может
// быть nil, если брокер не настроен.
func NewNotificationDispatcher(store NotificationStore, publisher EventPublisher, logger *zap.Logger) *NotificationDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationDispatcher{store: store, publisher: publisher, logger: logger}
}

func (d *NotificationDispatcher) dispatch(ctx context.Context, n *model.Notification) {
	if err := d.store.CreateNotification(ctx, n); err != nil {
		d.logger.Error("store notification",
			zap.String("type", n.Type), zap.Int64("related_id", n.RelatedID), zap.Error(err))
	}

	if d.publisher == nil {
		return
	}
	if err := d.publisher.Publish(ctx, n); err != nil {
		d.logger.Warn("publish notification event",
			zap.String("type", n.Type), zap.Int64("related_id", n.RelatedID), zap.Error(err))
	}
}

// NewBooking уведомляет о подтверждённом бронировании.
func (d *NotificationDispatcher) NewBooking(ctx context.Context, b *model.Booking) {
	d.dispatch(ctx, &model.Notification{
		Type:        model.NotificationBooking,
		Title:       "New Booking",
		Message:     fmt.Sprintf("Booking #%d (%s) confirmed for %d %s", b.ID, b.Kind, b.AmountCents, b.Currency),
		RelatedID:   b.ID,
		RelatedType: "booking",
		Priority:    model.PriorityHigh,
	})
}

// PaymentReceived уведомляет о захвате средств.
func (d *NotificationDispatcher) PaymentReceived(ctx context.Context, b *model.Booking, amountCents int64) {
	d.dispatch(ctx, &model.Notification{
		Type:        model.NotificationPayment,
		Title:       "Payment Received",
		Message:     fmt.Sprintf("Payment of %d %s captured for booking #%d", amountCents, b.Currency, b.ID),
		RelatedID:   b.ID,
		RelatedType: "booking",
		Priority:    model.PriorityNormal,
	})
}

// CancellationRequested уведомляет о заявке на отмену, ждущей решения.
func (d *NotificationDispatcher) CancellationRequested(ctx context.Context, b *model.Booking, rr *model.RefundRequest) {
	d.dispatch(ctx, &model.Notification{
		Type:        model.NotificationCancellation,
		Title:       "Cancellation Requested",
		Message:     fmt.Sprintf("Booking #%d awaits refund decision: %d%% (%s), %d %s", b.ID, rr.RefundPercentage, rr.TierLabel, rr.RefundAmount, b.Currency),
		RelatedID:   b.ID,
		RelatedType: "booking",
		Priority:    model.PriorityUrgent,
	})
}

// BookingCancelled уведомляет о немедленной отмене без возврата.
func (d *NotificationDispatcher) BookingCancelled(ctx context.Context, b *model.Booking) {
	d.dispatch(ctx, &model.Notification{
		Type:        model.NotificationCancellation,
		Title:       "Booking Cancelled",
		Message:     fmt.Sprintf("Booking #%d (%s) cancelled, deposit retained", b.ID, b.Kind),
		RelatedID:   b.ID,
		RelatedType: "booking",
		Priority:    model.PriorityNormal,
	})
}

// RefundProcessed уведомляет о проведённом возврате.
func (d *NotificationDispatcher) RefundProcessed(ctx context.Context, b *model.Booking, amountCents int64) {
	d.dispatch(ctx, &model.Notification{
		Type:        model.NotificationRefund,
		Title:       "Refund Processed",
		Message:     fmt.Sprintf("Refund of %d %s processed for booking #%d", amountCents, b.Currency, b.ID),
		RelatedID:   b.ID,
		RelatedType: "booking",
		Priority:    model.PriorityHigh,
	})
}

// NewUser уведомляет о регистрации нового пользователя.
func (d *NotificationDispatcher) NewUser(ctx context.Context, userID int64, login string) {
	d.dispatch(ctx, &model.Notification{
		Type:        model.NotificationUser,
		Title:       "New User Registered",
		Message:     fmt.Sprintf("User %s joined the platform", login),
		RelatedID:   userID,
		RelatedType: "user",
		Priority:    model.PriorityNormal,
	})
}

// Feed возвращает страницу ленты уведомлений вместе с общим числом и числом
// непрочитанных.
func (d *NotificationDispatcher) Feed(ctx context.Context, unreadOnly bool, skip, take int) ([]model.Notification, int64, int64, error) {
	return d.store.ListNotifications(ctx, unreadOnly, skip, take)
}

// MarkRead помечает уведомление прочитанным.
func (d *NotificationDispatcher) MarkRead(ctx context.Context, id int64) error {
	return d.store.MarkNotificationRead(ctx, id)
}

// MarkAllRead помечает все уведомления прочитанными.
func (d *NotificationDispatcher) MarkAllRead(ctx context.Context) error {
	return d.store.MarkAllNotificationsRead(ctx)
}

// Delete удаляет уведомление из ленты.
func (d *NotificationDispatcher) Delete(ctx context.Context, id int64) error {
	return d.store.DeleteNotification(ctx, id)
}
