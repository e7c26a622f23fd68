package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/janabsyco4-wq/hotelogix-management-system-sub000/internal/model"
	"github.com/janabsyco4-wq/hotelogix-management-system-sub000/internal/payment"
)

// InitiateInput — параметры нового бронирования. Набор обязательных полей
// зависит от варианта Kind.
type InitiateInput struct {
	Kind      model.BookingKind
	TargetID  int64
	CheckIn   *time.Time
	CheckOut  *time.Time
	Date      *time.Time
	TimeSlot  *string
	Guests    *int32
	StartDate *time.Time
}

// InitiateBooking создаёт pending-бронирование: проверяет параметры варианта,
// считает цену по каталогу, резервирует ёмкость и создаёт платёжный интент.
// Ёмкость резервируется до обращения к шлюзу, чтобы клиент не оплачивал
// заведомо недоступный слот. Любая последующая ошибка снимает резерв.
func (s *Service) InitiateBooking(ctx context.Context, userID int64, in InitiateInput) (*model.Booking, *payment.Intent, error) {
	b := &model.Booking{
		UserID:   userID,
		Kind:     in.Kind,
		TargetID: in.TargetID,
		Currency: defaultCurrency,
		Status:   model.StatusPending,
	}

	var err error
	switch in.Kind {
	case model.KindRoom:
		err = s.prepareRoomBooking(ctx, b, in)
	case model.KindDining:
		err = s.prepareDiningBooking(ctx, b, in)
	case model.KindDeal:
		err = s.prepareDealBooking(ctx, b)
	case model.KindPackage:
		err = s.preparePackageBooking(ctx, b, in)
	default:
		err = fmt.Errorf("%w: unknown booking kind %q", ErrInvalidArgument, in.Kind)
	}
	if err != nil {
		return nil, nil, err
	}

	var token string
	switch in.Kind {
	case model.KindRoom:
		token, err = s.repo.ReserveRoomRange(ctx, in.TargetID, *b.CheckIn, *b.CheckOut)
	case model.KindDeal, model.KindPackage:
		token, err = s.repo.ReserveCounterSlot(ctx, in.TargetID, in.Kind)
	}
	if err != nil {
		return nil, nil, err
	}
	if token != "" {
		b.CapacityToken = &token
	}

	intent, err := s.payments.CreateIntent(ctx, b.AmountCents, b.Currency, map[string]string{
		"booking_kind": string(b.Kind),
		"target_id":    strconv.FormatInt(b.TargetID, 10),
	})
	if err != nil {
		s.releaseCapacity(ctx, b)
		return nil, nil, err
	}
	b.PaymentIntentID = &intent.ID

	if err := s.repo.CreateBooking(ctx, b); err != nil {
		s.releaseCapacity(ctx, b)
		return nil, nil, err
	}

	return b, intent, nil
}

func (s *Service) prepareRoomBooking(ctx context.Context, b *model.Booking, in InitiateInput) error {
	if in.CheckIn == nil || in.CheckOut == nil {
		return fmt.Errorf("%w: room booking requires check-in and check-out dates", ErrInvalidArgument)
	}
	if !in.CheckOut.After(*in.CheckIn) {
		return fmt.Errorf("%w: check-out must be after check-in", ErrInvalidArgument)
	}
	if in.CheckIn.Before(startOfToday()) {
		return fmt.Errorf("%w: check-in date is in the past", ErrInvalidArgument)
	}

	room, err := s.repo.GetRoom(ctx, b.TargetID)
	if err != nil {
		return err
	}
	if in.Guests != nil && *in.Guests > room.MaxGuests {
		return fmt.Errorf("%w: room fits at most %d guests", ErrInvalidArgument, room.MaxGuests)
	}

	nights := int64(in.CheckOut.Sub(*in.CheckIn) / (24 * time.Hour))
	if nights < 1 {
		return fmt.Errorf("%w: stay must cover at least one night", ErrInvalidArgument)
	}

	b.CheckIn = in.CheckIn
	b.CheckOut = in.CheckOut
	b.Guests = in.Guests
	b.AmountCents = nights * room.PricePerNightCents
	return nil
}

func (s *Service) prepareDiningBooking(ctx context.Context, b *model.Booking, in InitiateInput) error {
	if in.Date == nil || in.TimeSlot == nil || in.Guests == nil {
		return fmt.Errorf("%w: dining booking requires date, time slot and guest count", ErrInvalidArgument)
	}
	if *in.Guests < 1 {
		return fmt.Errorf("%w: guest count must be positive", ErrInvalidArgument)
	}
	if in.Date.Before(startOfToday()) {
		return fmt.Errorf("%w: reservation date is in the past", ErrInvalidArgument)
	}

	rest, err := s.repo.GetRestaurant(ctx, b.TargetID)
	if err != nil {
		return err
	}
	if *in.Guests > rest.Capacity {
		return fmt.Errorf("%w: restaurant seats at most %d guests", ErrInvalidArgument, rest.Capacity)
	}

	b.Date = in.Date
	b.TimeSlot = in.TimeSlot
	b.Guests = in.Guests
	b.AmountCents = rest.DepositPerGuestCents * int64(*in.Guests)
	return nil
}

func (s *Service) prepareDealBooking(ctx context.Context, b *model.Booking) error {
	deal, err := s.repo.GetDeal(ctx, b.TargetID)
	if err != nil {
		return err
	}

	now := time.Now()
	if now.Before(deal.ValidFrom) || now.After(deal.ValidUntil) {
		return fmt.Errorf("%w: deal is outside its validity window", ErrInvalidArgument)
	}

	code := newRedemptionCode()
	b.RedemptionCode = &code
	b.AmountCents = deal.PriceCents
	return nil
}

func (s *Service) preparePackageBooking(ctx context.Context, b *model.Booking, in InitiateInput) error {
	if in.StartDate == nil || in.Guests == nil {
		return fmt.Errorf("%w: package booking requires start date and guest count", ErrInvalidArgument)
	}
	if *in.Guests < 1 {
		return fmt.Errorf("%w: guest count must be positive", ErrInvalidArgument)
	}
	if in.StartDate.Before(startOfToday()) {
		return fmt.Errorf("%w: start date is in the past", ErrInvalidArgument)
	}

	pkg, err := s.repo.GetPackage(ctx, b.TargetID)
	if err != nil {
		return err
	}

	b.StartDate = in.StartDate
	b.Guests = in.Guests
	b.AmountCents = pkg.PricePerPersonCents * int64(*in.Guests)
	return nil
}

// startOfToday возвращает полночь UTC текущих суток: даты приходят и без
// времени, бронирование на сегодня валидно до конца дня.
func startOfToday() time.Time {
	return time.Now().UTC().Truncate(24 * time.Hour)
}

func newRedemptionCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "DEAL-" + strings.ToUpper(raw[:8])
}

func (s *Service) releaseCapacity(ctx context.Context, b *model.Booking) {
	if b.CapacityToken == nil {
		return
	}
	if err := s.repo.ReleaseReservation(ctx, *b.CapacityToken); err != nil {
		s.logger.Error("release capacity reservation",
			zap.String("token", *b.CapacityToken), zap.Error(err))
	}
}

// ConfirmBooking переводит бронирование в confirmed после перепроверки
// захвата средств у шлюза. Повторное подтверждение уже подтверждённого
// бронирования — no-op. Интент без захвата освобождает ёмкость и хоронит
// бронирование в failed; недоступность провайдера оставляет его pending,
// чтобы клиент повторил попытку.
func (s *Service) ConfirmBooking(ctx context.Context, userID, bookingID int64) (*model.Booking, error) {
	b, err := s.repo.GetBookingForUser(ctx, bookingID, userID)
	if err != nil {
		return nil, err
	}

	if b.Status == model.StatusConfirmed {
		return b, nil
	}
	if b.Status != model.StatusPending {
		return nil, fmt.Errorf("%w: booking is %s", ErrInvalidState, b.Status)
	}
	if b.PaymentIntentID == nil {
		return nil, fmt.Errorf("%w: booking has no payment intent", ErrInvalidState)
	}

	rec, err := s.payments.ConfirmCapture(ctx, *b.PaymentIntentID)
	if err != nil {
		if errors.Is(err, payment.ErrNotCaptured) {
			s.releaseCapacity(ctx, b)
			if trErr := s.repo.TransitionStatus(ctx, b.ID, model.StatusPending, model.StatusFailed); trErr != nil {
				s.logger.Error("mark booking failed", zap.Int64("booking_id", b.ID), zap.Error(trErr))
			}
		}
		return nil, err
	}

	if err := s.repo.ConfirmBooking(ctx, b.ID, rec.IntentID); err != nil {
		fresh, getErr := s.repo.GetBookingForUser(ctx, bookingID, userID)
		if getErr == nil && fresh.Status == model.StatusConfirmed {
			return fresh, nil
		}
		return nil, err
	}

	b.Status = model.StatusConfirmed

	if s.notifier != nil {
		s.notifier.NewBooking(ctx, b)
		s.notifier.PaymentReceived(ctx, b, rec.AmountCents)
	}

	return b, nil
}

// AdminProcessRefund выполняет возврат по бронированию: проводит деньги через
// координатор платежей, освобождает ёмкость и переводит бронирование в
// refunded. requestID служит ключом идемпотентности, повтор вызова безопасен.
func (s *Service) AdminProcessRefund(ctx context.Context, bookingID, amountCents int64, reason, requestID string) (*model.Refund, error) {
	b, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.PaymentIntentID == nil {
		return nil, fmt.Errorf("%w: booking has no captured payment", ErrInvalidState)
	}
	if b.Status != model.StatusConfirmed && b.Status != model.StatusPendingCancellation {
		return nil, fmt.Errorf("%w: booking is %s", ErrInvalidState, b.Status)
	}

	ref, err := s.payments.Refund(ctx, *b.PaymentIntentID, requestID, amountCents, reason)
	if err != nil {
		return nil, err
	}

	if err := s.repo.TransitionStatus(ctx, b.ID, b.Status, model.StatusRefunded); err != nil {
		// Деньги уже вернулись; конфликт статуса означает, что бронированием
		// завладел конкурентный переход — ёмкость остаётся за ним.
		s.logger.Warn("refund status transition skipped",
			zap.Int64("booking_id", b.ID), zap.Error(err))
	} else {
		s.releaseCapacity(ctx, b)
	}

	if s.notifier != nil {
		s.notifier.RefundProcessed(ctx, b, ref.AmountCents)
	}

	return ref, nil
}

// StartExpirySweep запускает фоновую зачистку: брошенные pending-бронирования
// старше TTL переводятся в expired с освобождением ёмкости, как и погашения
// акций, чьё окно валидности закрылось.
func (s *Service) StartExpirySweep(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweepOnce(ctx)
			}
		}
	}()
}

func (s *Service) sweepOnce(ctx context.Context) {
	stale, err := s.repo.ListPendingOlderThan(ctx, time.Now().Add(-s.pendingTTL))
	if err != nil {
		s.logger.Error("list stale pending bookings", zap.Error(err))
	}
	for i := range stale {
		s.expireBooking(ctx, &stale[i], model.StatusPending)
	}

	redeemed, err := s.repo.ListExpirableDealRedemptions(ctx, time.Now())
	if err != nil {
		s.logger.Error("list expirable deal redemptions", zap.Error(err))
	}
	for i := range redeemed {
		s.expireBooking(ctx, &redeemed[i], model.StatusConfirmed)
	}
}

func (s *Service) expireBooking(ctx context.Context, b *model.Booking, from model.BookingStatus) {
	// Сначала условный переход: проигравший конкурентному подтверждению
	// вызов не должен трогать чужую ёмкость.
	if err := s.repo.TransitionStatus(ctx, b.ID, from, model.StatusExpired); err != nil {
		return
	}
	s.releaseCapacity(ctx, b)
	s.logger.Info("booking expired",
		zap.Int64("booking_id", b.ID), zap.String("kind", string(b.Kind)))
}
