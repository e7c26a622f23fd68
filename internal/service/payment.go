package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/janabsyco4-wq/hotelogix-management-system-sub000/internal/model"
	"github.com/janabsyco4-wq/hotelogix-management-system-sub000/internal/payment"
)

// Gateway описывает контракт платёжного шлюза.
type Gateway interface {
	CreateIntent(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (*payment.Intent, error)
	RetrieveIntent(ctx context.Context, intentID string) (*payment.Intent, error)
	Refund(ctx context.Context, intentID string, amountCents int64, reason, idempotencyKey string) (*payment.RefundResult, error)
}

// PaymentStore описывает хранилище платёжных записей и возвратов.
type PaymentStore interface {
	CreatePaymentRecord(ctx context.Context, rec *model.PaymentRecord) error
	GetPaymentRecord(ctx context.Context, intentID string) (*model.PaymentRecord, error)
	BeginRefund(ctx context.Context, intentID, requestID string, amountCents int64, reason string) (*model.Refund, bool, error)
	MarkRefundProcessed(ctx context.Context, id int64, gatewayRefundID string, processedAt time.Time) error
	DeleteRefund(ctx context.Context, id int64) error
	ListRefundsByIntent(ctx context.Context, intentID string) ([]model.Refund, error)
}

// PaymentCoordinator связывает платёжный шлюз с локальным учётом захватов
// и возвратов. Никакая операция не повторяется молча: при ошибке шлюза
// вызывающий получает ошибку и решает сам.
type PaymentCoordinator struct {
	gateway Gateway
	store   PaymentStore
	logger  *zap.Logger
}

// NewPaymentCoordinator создаёт координатор платежей.
func NewPaymentCoordinator(gateway Gateway, store PaymentStore, logger *zap.Logger) *PaymentCoordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentCoordinator{gateway: gateway, store: store, logger: logger}
}

// CreateIntent создаёт платёжный интент во внешнем шлюзе.
func (p *PaymentCoordinator) CreateIntent(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (*payment.Intent, error) {
	intent, err := p.gateway.CreateIntent(ctx, amountCents, currency, metadata)
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}
	return intent, nil
}

// ConfirmCapture перепроверяет статус интента у шлюза и фиксирует захват
// средств локально. Клиентскому подтверждению не доверяем: источником истины
// о захвате служит только ответ шлюза. Интент не в статусе succeeded —
// payment.ErrNotCaptured.
func (p *PaymentCoordinator) ConfirmCapture(ctx context.Context, intentID string) (*model.PaymentRecord, error) {
	intent, err := p.gateway.RetrieveIntent(ctx, intentID)
	if err != nil {
		return nil, fmt.Errorf("verify payment intent: %w", err)
	}

	if intent.Status != payment.StatusSucceeded {
		return nil, fmt.Errorf("%w: intent %s status %s", payment.ErrNotCaptured, intentID, intent.Status)
	}

	rec := &model.PaymentRecord{
		IntentID:    intent.ID,
		AmountCents: intent.AmountCents,
		Currency:    intent.Currency,
		CapturedAt:  time.Now(),
	}
	if err := p.store.CreatePaymentRecord(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Refund возвращает часть захваченной суммы. Возврат сначала резервируется
// локально, чтобы конкурентные возвраты не превысили захваченную сумму, и
// только затем уходит в шлюз с ключом идемпотентности requestID. Отказ шлюза
// снимает свежий резерв; уже существующий резерв при повторе остаётся, чтобы
// следующая попытка его допровела.
func (p *PaymentCoordinator) Refund(ctx context.Context, intentID, requestID string, amountCents int64, reason string) (*model.Refund, error) {
	if amountCents <= 0 {
		return nil, fmt.Errorf("%w: refund amount must be positive", ErrInvalidArgument)
	}

	ref, created, err := p.store.BeginRefund(ctx, intentID, requestID, amountCents, reason)
	if err != nil {
		return nil, err
	}

	if !created && ref.Status == model.RefundStatusProcessed {
		return ref, nil
	}

	res, err := p.gateway.Refund(ctx, intentID, ref.AmountCents, reason, requestID)
	if err != nil {
		if created {
			if delErr := p.store.DeleteRefund(ctx, ref.ID); delErr != nil {
				p.logger.Error("release refund reservation",
					zap.Int64("refund_id", ref.ID), zap.Error(delErr))
			}
		}
		return nil, err
	}

	processedAt := time.Now()
	if err := p.store.MarkRefundProcessed(ctx, ref.ID, res.ID, processedAt); err != nil {
		return nil, err
	}

	ref.Status = model.RefundStatusProcessed
	ref.GatewayRefundID = &res.ID
	ref.ProcessedAt = &processedAt
	return ref, nil
}
