package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/janabsyco4-wq/hotelogix-management-system-sub000/internal/model"
	"github.com/janabsyco4-wq/hotelogix-management-system-sub000/internal/policy"
	"github.com/janabsyco4-wq/hotelogix-management-system-sub000/internal/repository"
)

// CancellationOutcome — результат запроса на отмену. Для комнат Request
// заполнен и бронирование ждёт решения администратора; остальные варианты
// отменяются немедленно без возврата, Request равен nil.
type CancellationOutcome struct {
	Booking *model.Booking
	Request *model.RefundRequest
	Quote   *policy.Result
}

// QuoteRefund считает котировку возврата по политике отмены, ничего не меняя.
func (s *Service) QuoteRefund(ctx context.Context, userID, bookingID int64) (*policy.Result, error) {
	b, err := s.repo.GetBookingForUser(ctx, bookingID, userID)
	if err != nil {
		return nil, err
	}

	start, ok := b.ServiceStart()
	if !ok {
		return nil, fmt.Errorf("%w: booking has no cancellation policy anchor", ErrInvalidArgument)
	}

	res, err := policy.Compute(b.AmountCents, start, time.Now())
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// RequestCancellation обрабатывает запрос пользователя на отмену. Комнатная
// отмена двухфазная: считается котировка, создаётся заявка на возврат и
// бронирование замирает в pending_cancellation до решения администратора.
// Остальные варианты отменяются сразу, депозит не возвращается.
func (s *Service) RequestCancellation(ctx context.Context, userID, bookingID int64, reason string) (*CancellationOutcome, error) {
	b, err := s.repo.GetBookingForUser(ctx, bookingID, userID)
	if err != nil {
		return nil, err
	}
	if b.Status.Terminal() {
		return nil, fmt.Errorf("%w: booking is already %s", ErrInvalidState, b.Status)
	}
	if b.Status != model.StatusConfirmed {
		return nil, fmt.Errorf("%w: booking is %s", ErrInvalidState, b.Status)
	}

	if b.Kind != model.KindRoom {
		if err := s.repo.TransitionStatus(ctx, b.ID, model.StatusConfirmed, model.StatusCancelled); err != nil {
			return nil, err
		}
		s.releaseCapacity(ctx, b)
		b.Status = model.StatusCancelled

		if s.notifier != nil {
			s.notifier.BookingCancelled(ctx, b)
		}
		return &CancellationOutcome{Booking: b}, nil
	}

	start, ok := b.ServiceStart()
	if !ok {
		return nil, fmt.Errorf("%w: room booking has no check-in date", ErrInvalidState)
	}
	quote, err := policy.Compute(b.AmountCents, start, time.Now())
	if err != nil {
		return nil, err
	}

	if err := s.repo.TransitionStatus(ctx, b.ID, model.StatusConfirmed, model.StatusPendingCancellation); err != nil {
		return nil, err
	}
	b.Status = model.StatusPendingCancellation

	rr := &model.RefundRequest{
		BookingID:        b.ID,
		RequestUUID:      uuid.NewString(),
		Reason:           reason,
		RefundPercentage: quote.Percentage,
		RefundAmount:     quote.AmountCents,
		TierLabel:        quote.TierLabel,
	}
	if err := s.repo.CreateRefundRequest(ctx, rr); err != nil {
		if revErr := s.repo.TransitionStatus(ctx, b.ID, model.StatusPendingCancellation, model.StatusConfirmed); revErr != nil {
			s.logger.Error("revert cancellation transition",
				zap.Int64("booking_id", b.ID), zap.Error(revErr))
		}
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.CancellationRequested(ctx, b, rr)
	}

	return &CancellationOutcome{Booking: b, Request: rr, Quote: &quote}, nil
}

// DecideCancellation фиксирует решение администратора по заявке на возврат.
// Конкурентные решения сериализуются на строке заявки: условный переход
// pending→approved/rejected выполняется до любого необратимого действия,
// проигравший получает ошибку конфликта. Отклонение возвращает бронирование
// в confirmed. Одобрение проводит возврат на сумму заявки; override может
// только уменьшить её. Нулевая сумма завершает отмену без обращения к шлюзу.
// Сбой шлюза возвращает заявку в pending, решение можно повторить.
func (s *Service) DecideCancellation(ctx context.Context, adminID, bookingID int64, approve bool, amountOverride *int64, reason string) (*model.RefundRequest, error) {
	rr, err := s.repo.GetPendingRefundRequest(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	b, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.Status != model.StatusPendingCancellation {
		return nil, fmt.Errorf("%w: booking is %s", ErrInvalidState, b.Status)
	}

	now := time.Now()

	if !approve {
		if err := s.repo.DecideRefundRequest(ctx, rr.ID, model.DecisionRejected, adminID, now); err != nil {
			return nil, err
		}
		if err := s.repo.TransitionStatus(ctx, b.ID, model.StatusPendingCancellation, model.StatusConfirmed); err != nil {
			return nil, err
		}
		rr.Decision = model.DecisionRejected
		rr.DecidedBy = &adminID
		rr.DecidedAt = &now
		return rr, nil
	}

	amount := rr.RefundAmount
	if amountOverride != nil {
		if *amountOverride < 0 || *amountOverride > rr.RefundAmount {
			return nil, fmt.Errorf("%w: override exceeds policy amount", repository.ErrRefundExceedsCaptured)
		}
		amount = *amountOverride
	}

	// Сначала условный захват заявки: деньги уходят в шлюз только после
	// того, как это решение стало единственным.
	if err := s.repo.DecideRefundRequest(ctx, rr.ID, model.DecisionApproved, adminID, now); err != nil {
		return nil, err
	}

	if amount > 0 {
		if reason == "" {
			reason = rr.Reason
		}
		if _, err := s.AdminProcessRefund(ctx, bookingID, amount, reason, rr.RequestUUID); err != nil {
			s.reopenRefundRequest(ctx, rr.ID)
			return nil, err
		}
	} else {
		if err := s.repo.TransitionStatus(ctx, b.ID, model.StatusPendingCancellation, model.StatusRefunded); err != nil {
			s.reopenRefundRequest(ctx, rr.ID)
			return nil, err
		}
		s.releaseCapacity(ctx, b)
	}

	rr.Decision = model.DecisionApproved
	rr.DecidedBy = &adminID
	rr.DecidedAt = &now
	return rr, nil
}

func (s *Service) reopenRefundRequest(ctx context.Context, id int64) {
	if err := s.repo.ReopenRefundRequest(ctx, id); err != nil {
		s.logger.Error("reopen refund request",
			zap.Int64("request_id", id), zap.Error(err))
	}
}

// ListRefundRequests возвращает заявки на возврат для административной панели.
func (s *Service) ListRefundRequests(ctx context.Context, decision string) ([]model.RefundRequest, error) {
	return s.repo.ListRefundRequests(ctx, decision)
}
