package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/janabsyco4-wq/hotelogix-management-system-sub000/internal/model"
	"github.com/janabsyco4-wq/hotelogix-management-system-sub000/internal/payment"
	"github.com/janabsyco4-wq/hotelogix-management-system-sub000/internal/repository"
)

func ptrTime(v time.Time) *time.Time { return &v }
func ptrInt32(v int32) *int32        { return &v }
func ptrInt64(v int64) *int64        { return &v }

func seedRoom(f *fakeRepo) {
	f.rooms[1] = &model.Room{ID: 1, Title: "Deluxe", PricePerNightCents: 10000, MaxGuests: 2}
}

func seedDeal(f *fakeRepo, maxRedemptions *int32) {
	f.deals[1] = &model.Deal{
		ID:             1,
		Title:          "Spa Weekend",
		PriceCents:     5000,
		ValidFrom:      time.Now().Add(-24 * time.Hour),
		ValidUntil:     time.Now().Add(24 * time.Hour),
		MaxRedemptions: maxRedemptions,
	}
}

func roomInput(checkIn time.Time, nights int) InitiateInput {
	return InitiateInput{
		Kind:     model.KindRoom,
		TargetID: 1,
		CheckIn:  ptrTime(checkIn),
		CheckOut: ptrTime(checkIn.Add(time.Duration(nights) * 24 * time.Hour)),
	}
}

func TestInitiateBooking_RoomPricesByNights(t *testing.T) {
	repo := newFakeRepo()
	seedRoom(repo)
	gw := newFakeGateway()
	svc := newTestService(repo, gw)

	checkIn := time.Now().Add(72 * time.Hour)
	b, intent, err := svc.InitiateBooking(context.Background(), 1, roomInput(checkIn, 2))
	if err != nil {
		t.Fatalf("InitiateBooking error: %v", err)
	}

	if b.AmountCents != 20000 {
		t.Fatalf("amount = %d, want 20000", b.AmountCents)
	}
	if b.Status != model.StatusPending {
		t.Fatalf("status = %s, want pending", b.Status)
	}
	if b.Currency != "pkr" {
		t.Fatalf("currency = %s, want pkr", b.Currency)
	}
	if intent == nil || intent.ClientSecret == "" {
		t.Fatalf("expected payment intent with client secret, got %+v", intent)
	}
	if b.CapacityToken == nil {
		t.Fatalf("expected capacity token on room booking")
	}
	if len(repo.reservations) != 1 {
		t.Fatalf("reservations = %d, want 1", len(repo.reservations))
	}
}

func TestInitiateBooking_RoomValidation(t *testing.T) {
	repo := newFakeRepo()
	seedRoom(repo)
	svc := newTestService(repo, newFakeGateway())

	checkIn := time.Now().Add(72 * time.Hour)

	_, _, err := svc.InitiateBooking(context.Background(), 1, InitiateInput{Kind: model.KindRoom, TargetID: 1, CheckIn: ptrTime(checkIn)})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("missing check-out: err = %v, want ErrInvalidArgument", err)
	}

	in := roomInput(checkIn, 1)
	in.CheckOut = ptrTime(checkIn.Add(-24 * time.Hour))
	_, _, err = svc.InitiateBooking(context.Background(), 1, in)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("inverted range: err = %v, want ErrInvalidArgument", err)
	}

	in = roomInput(checkIn, 1)
	in.Guests = ptrInt32(5)
	_, _, err = svc.InitiateBooking(context.Background(), 1, in)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("too many guests: err = %v, want ErrInvalidArgument", err)
	}

	_, _, err = svc.InitiateBooking(context.Background(), 1, roomInput(time.Now().Add(-96*time.Hour), 1))
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("past check-in: err = %v, want ErrInvalidArgument", err)
	}
}

func TestInitiateBooking_RoomOverlapFailsBeforePayment(t *testing.T) {
	repo := newFakeRepo()
	seedRoom(repo)
	gw := newFakeGateway()
	svc := newTestService(repo, gw)

	checkIn := time.Now().Add(72 * time.Hour)
	if _, _, err := svc.InitiateBooking(context.Background(), 1, roomInput(checkIn, 3)); err != nil {
		t.Fatalf("first booking error: %v", err)
	}

	_, _, err := svc.InitiateBooking(context.Background(), 2, roomInput(checkIn.Add(24*time.Hour), 3))
	if !errors.Is(err, repository.ErrRoomRangeConflict) {
		t.Fatalf("err = %v, want ErrRoomRangeConflict", err)
	}
	if gw.nextID != 1 {
		t.Fatalf("gateway intents = %d, want 1: conflict must fail before payment", gw.nextID)
	}
}

func TestInitiateBooking_ConcurrentRoomOneWinner(t *testing.T) {
	repo := newFakeRepo()
	seedRoom(repo)
	svc := newTestService(repo, newFakeGateway())

	checkIn := time.Now().Add(72 * time.Hour)

	const attempts = 16
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = svc.InitiateBooking(context.Background(), int64(i+1), roomInput(checkIn, 2))
		}(i)
	}
	wg.Wait()

	var won, conflicted int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, repository.ErrRoomRangeConflict):
			conflicted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if won != 1 || conflicted != attempts-1 {
		t.Fatalf("won = %d, conflicted = %d, want exactly one winner", won, conflicted)
	}
	if len(repo.reservations) != 1 {
		t.Fatalf("reservations = %d, want 1", len(repo.reservations))
	}
}

func TestInitiateBooking_DealCapacityBound(t *testing.T) {
	repo := newFakeRepo()
	seedDeal(repo, ptrInt32(1))
	svc := newTestService(repo, newFakeGateway())

	b, _, err := svc.InitiateBooking(context.Background(), 1, InitiateInput{Kind: model.KindDeal, TargetID: 1})
	if err != nil {
		t.Fatalf("first redemption error: %v", err)
	}
	if b.RedemptionCode == nil || *b.RedemptionCode == "" {
		t.Fatalf("expected redemption code, got %+v", b.RedemptionCode)
	}

	_, _, err = svc.InitiateBooking(context.Background(), 2, InitiateInput{Kind: model.KindDeal, TargetID: 1})
	if !errors.Is(err, repository.ErrSoldOut) {
		t.Fatalf("err = %v, want ErrSoldOut", err)
	}
}

func TestInitiateBooking_ConcurrentDealRedemptionsBounded(t *testing.T) {
	repo := newFakeRepo()
	seedDeal(repo, ptrInt32(3))
	svc := newTestService(repo, newFakeGateway())

	const attempts = 16
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = svc.InitiateBooking(context.Background(), int64(i+1), InitiateInput{Kind: model.KindDeal, TargetID: 1})
		}(i)
	}
	wg.Wait()

	var won, soldOut int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, repository.ErrSoldOut):
			soldOut++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if won != 3 || soldOut != attempts-3 {
		t.Fatalf("won = %d, soldOut = %d, want exactly max redemptions winners", won, soldOut)
	}
	if repo.deals[1].CurrentRedemptions != 3 {
		t.Fatalf("current redemptions = %d, want 3", repo.deals[1].CurrentRedemptions)
	}
	if len(repo.reservations) != 3 {
		t.Fatalf("reservations = %d, want 3", len(repo.reservations))
	}
}

func TestInitiateBooking_DealOutsideWindow(t *testing.T) {
	repo := newFakeRepo()
	seedDeal(repo, nil)
	repo.deals[1].ValidUntil = time.Now().Add(-time.Hour)
	svc := newTestService(repo, newFakeGateway())

	_, _, err := svc.InitiateBooking(context.Background(), 1, InitiateInput{Kind: model.KindDeal, TargetID: 1})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
}

func TestInitiateBooking_ReleasesCapacityOnGatewayFailure(t *testing.T) {
	repo := newFakeRepo()
	seedRoom(repo)
	gw := newFakeGateway()
	gw.createErr = payment.ErrProvider
	svc := newTestService(repo, gw)

	checkIn := time.Now().Add(72 * time.Hour)
	_, _, err := svc.InitiateBooking(context.Background(), 1, roomInput(checkIn, 2))
	if !errors.Is(err, payment.ErrProvider) {
		t.Fatalf("err = %v, want ErrProvider", err)
	}
	if len(repo.reservations) != 0 {
		t.Fatalf("reservations = %d, want 0: failed initiate must release capacity", len(repo.reservations))
	}
}

func TestConfirmBooking_CapturesAndNotifies(t *testing.T) {
	repo := newFakeRepo()
	seedRoom(repo)
	svc := newTestService(repo, newFakeGateway())

	checkIn := time.Now().Add(72 * time.Hour)
	b, _, err := svc.InitiateBooking(context.Background(), 1, roomInput(checkIn, 2))
	if err != nil {
		t.Fatalf("initiate error: %v", err)
	}

	confirmed, err := svc.ConfirmBooking(context.Background(), 1, b.ID)
	if err != nil {
		t.Fatalf("confirm error: %v", err)
	}
	if confirmed.Status != model.StatusConfirmed {
		t.Fatalf("status = %s, want confirmed", confirmed.Status)
	}

	if _, ok := repo.payments[*b.PaymentIntentID]; !ok {
		t.Fatalf("expected payment record for intent %s", *b.PaymentIntentID)
	}
	if len(repo.notifications) != 2 {
		t.Fatalf("notifications = %d, want booking + payment", len(repo.notifications))
	}
}

func TestConfirmBooking_Idempotent(t *testing.T) {
	repo := newFakeRepo()
	seedRoom(repo)
	svc := newTestService(repo, newFakeGateway())

	checkIn := time.Now().Add(72 * time.Hour)
	b, _, err := svc.InitiateBooking(context.Background(), 1, roomInput(checkIn, 2))
	if err != nil {
		t.Fatalf("initiate error: %v", err)
	}

	if _, err := svc.ConfirmBooking(context.Background(), 1, b.ID); err != nil {
		t.Fatalf("first confirm error: %v", err)
	}
	again, err := svc.ConfirmBooking(context.Background(), 1, b.ID)
	if err != nil {
		t.Fatalf("repeat confirm error: %v", err)
	}
	if again.Status != model.StatusConfirmed {
		t.Fatalf("status = %s, want confirmed", again.Status)
	}
	if len(repo.notifications) != 2 {
		t.Fatalf("notifications = %d: repeat confirm must not duplicate", len(repo.notifications))
	}
}

func TestConfirmBooking_NotCapturedBuriesBooking(t *testing.T) {
	repo := newFakeRepo()
	seedRoom(repo)
	gw := newFakeGateway()
	gw.intentStatus = "requires_payment_method"
	svc := newTestService(repo, gw)

	checkIn := time.Now().Add(72 * time.Hour)
	b, _, err := svc.InitiateBooking(context.Background(), 1, roomInput(checkIn, 2))
	if err != nil {
		t.Fatalf("initiate error: %v", err)
	}

	_, err = svc.ConfirmBooking(context.Background(), 1, b.ID)
	if !errors.Is(err, payment.ErrNotCaptured) {
		t.Fatalf("err = %v, want ErrNotCaptured", err)
	}

	fresh := repo.bookings[b.ID]
	if fresh.Status != model.StatusFailed {
		t.Fatalf("status = %s, want failed", fresh.Status)
	}
	if len(repo.reservations) != 0 {
		t.Fatalf("reservations = %d, want 0: failed capture must release capacity", len(repo.reservations))
	}
}

func TestConfirmBooking_ProviderDownKeepsPending(t *testing.T) {
	repo := newFakeRepo()
	seedRoom(repo)
	gw := newFakeGateway()
	svc := newTestService(repo, gw)

	checkIn := time.Now().Add(72 * time.Hour)
	b, _, err := svc.InitiateBooking(context.Background(), 1, roomInput(checkIn, 2))
	if err != nil {
		t.Fatalf("initiate error: %v", err)
	}

	gw.retrieveErr = payment.ErrProvider
	_, err = svc.ConfirmBooking(context.Background(), 1, b.ID)
	if !errors.Is(err, payment.ErrProvider) {
		t.Fatalf("err = %v, want ErrProvider", err)
	}

	fresh := repo.bookings[b.ID]
	if fresh.Status != model.StatusPending {
		t.Fatalf("status = %s, want pending: provider outage must not bury booking", fresh.Status)
	}
	if len(repo.reservations) != 1 {
		t.Fatalf("reservations = %d, want 1: capacity must stay held", len(repo.reservations))
	}
}

func TestSweep_ExpiresStalePending(t *testing.T) {
	repo := newFakeRepo()
	seedRoom(repo)
	svc := newTestService(repo, newFakeGateway())

	checkIn := time.Now().Add(72 * time.Hour)
	b, _, err := svc.InitiateBooking(context.Background(), 1, roomInput(checkIn, 2))
	if err != nil {
		t.Fatalf("initiate error: %v", err)
	}

	repo.mu.Lock()
	repo.bookings[b.ID].CreatedAt = time.Now().Add(-time.Hour)
	repo.mu.Unlock()

	svc.sweepOnce(context.Background())

	fresh := repo.bookings[b.ID]
	if fresh.Status != model.StatusExpired {
		t.Fatalf("status = %s, want expired", fresh.Status)
	}
	if len(repo.reservations) != 0 {
		t.Fatalf("reservations = %d, want 0", len(repo.reservations))
	}
}

func TestSweep_ExpiresClosedDealRedemptions(t *testing.T) {
	repo := newFakeRepo()
	seedDeal(repo, nil)
	svc := newTestService(repo, newFakeGateway())

	b, _, err := svc.InitiateBooking(context.Background(), 1, InitiateInput{Kind: model.KindDeal, TargetID: 1})
	if err != nil {
		t.Fatalf("initiate error: %v", err)
	}
	if _, err := svc.ConfirmBooking(context.Background(), 1, b.ID); err != nil {
		t.Fatalf("confirm error: %v", err)
	}

	repo.mu.Lock()
	repo.deals[1].ValidUntil = time.Now().Add(-time.Minute)
	repo.mu.Unlock()

	svc.sweepOnce(context.Background())

	fresh := repo.bookings[b.ID]
	if fresh.Status != model.StatusExpired {
		t.Fatalf("status = %s, want expired", fresh.Status)
	}
	if repo.deals[1].CurrentRedemptions != 0 {
		t.Fatalf("redemptions = %d, want 0 after release", repo.deals[1].CurrentRedemptions)
	}
}

func TestSweep_SkipsConfirmedBookings(t *testing.T) {
	repo := newFakeRepo()
	seedRoom(repo)
	svc := newTestService(repo, newFakeGateway())

	checkIn := time.Now().Add(72 * time.Hour)
	b, _, err := svc.InitiateBooking(context.Background(), 1, roomInput(checkIn, 2))
	if err != nil {
		t.Fatalf("initiate error: %v", err)
	}
	if _, err := svc.ConfirmBooking(context.Background(), 1, b.ID); err != nil {
		t.Fatalf("confirm error: %v", err)
	}

	repo.mu.Lock()
	repo.bookings[b.ID].CreatedAt = time.Now().Add(-time.Hour)
	repo.mu.Unlock()

	svc.sweepOnce(context.Background())

	if repo.bookings[b.ID].Status != model.StatusConfirmed {
		t.Fatalf("confirmed booking must survive the sweep, got %s", repo.bookings[b.ID].Status)
	}
}
