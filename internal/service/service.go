// Package service реализует бизнес-логику движка бронирований и возвратов.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/janabsyco4-wq/hotelogix-management-system-sub000/internal/model"
	"github.com/janabsyco4-wq/hotelogix-management-system-sub000/internal/repository"
)

// Ошибки уровня бизнес-логики.
var (
	// ErrInvalidArgument возвращается при некорректных параметрах запроса.
	ErrInvalidArgument = errors.New("invalid booking request")
	// ErrInvalidState возвращается, когда статус бронирования не допускает операцию.
	ErrInvalidState = errors.New("booking state does not allow this operation")
)

// Валюта платформы в минорных единицах.
const defaultCurrency = "pkr"

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error

	CreateUser(ctx context.Context, login string, passwordHash []byte) (int64, error)
	GetUserByLogin(ctx context.Context, login string) (*model.User, error)
	GetUserRole(ctx context.Context, userID int64) (string, error)

	GetRoom(ctx context.Context, id int64) (*model.Room, error)
	GetRestaurant(ctx context.Context, id int64) (*model.Restaurant, error)
	GetDeal(ctx context.Context, id int64) (*model.Deal, error)
	GetPackage(ctx context.Context, id int64) (*model.Package, error)

	ReserveRoomRange(ctx context.Context, roomID int64, checkIn, checkOut time.Time) (string, error)
	ReserveCounterSlot(ctx context.Context, entityID int64, kind model.BookingKind) (string, error)
	ReleaseReservation(ctx context.Context, token string) error

	CreateBooking(ctx context.Context, b *model.Booking) error
	GetBooking(ctx context.Context, id int64) (*model.Booking, error)
	GetBookingForUser(ctx context.Context, id, userID int64) (*model.Booking, error)
	ListBookingsByUser(ctx context.Context, userID int64) ([]model.Booking, error)
	ListBookings(ctx context.Context, status model.BookingStatus) ([]model.Booking, error)
	ConfirmBooking(ctx context.Context, id int64, intentID string) error
	TransitionStatus(ctx context.Context, id int64, from, to model.BookingStatus) error
	ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]model.Booking, error)
	ListExpirableDealRedemptions(ctx context.Context, now time.Time) ([]model.Booking, error)
	GetRevenueSummary(ctx context.Context) (*model.RevenueSummary, error)

	CreateRefundRequest(ctx context.Context, rr *model.RefundRequest) error
	GetPendingRefundRequest(ctx context.Context, bookingID int64) (*model.RefundRequest, error)
	DecideRefundRequest(ctx context.Context, id int64, decision string, decidedBy int64, decidedAt time.Time) error
	ReopenRefundRequest(ctx context.Context, id int64) error
	ListRefundRequests(ctx context.Context, decision string) ([]model.RefundRequest, error)
}

// Service содержит бизнес-логику жизненного цикла бронирований.
type Service struct {
	repo     Repository
	payments *PaymentCoordinator
	notifier *NotificationDispatcher
	logger   *zap.Logger

	pendingTTL    time.Duration
	sweepInterval time.Duration
}

// NewService создаёт сервис с указанными зависимостями.
func NewService(repo Repository, payments *PaymentCoordinator, notifier *NotificationDispatcher, logger *zap.Logger, pendingTTL, sweepInterval time.Duration) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:          repo,
		payments:      payments,
		notifier:      notifier,
		logger:        logger,
		pendingTTL:    pendingTTL,
		sweepInterval: sweepInterval,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// RegisterUser регистрирует нового пользователя.
func (s *Service) RegisterUser(ctx context.Context, login, password string) (int64, error) {
	hashed := hashPassword(login, password)
	id, err := s.repo.CreateUser(ctx, login, hashed)
	if err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			return 0, repository.ErrUserExists
		}
		return 0, err
	}

	if s.notifier != nil {
		s.notifier.NewUser(ctx, id, login)
	}

	return id, nil
}

// AuthenticateUser проверяет логин и пароль пользователя и возвращает его
// идентификатор и роль.
func (s *Service) AuthenticateUser(ctx context.Context, login, password string) (int64, string, error) {
	u, err := s.repo.GetUserByLogin(ctx, login)
	if err != nil {
		return 0, "", err
	}

	hashed := hashPassword(login, password)
	if hex.EncodeToString(hashed) != hex.EncodeToString(u.PasswordHash) {
		return 0, "", errors.New("invalid credentials")
	}

	return u.ID, u.Role, nil
}

func hashPassword(login, password string) []byte {
	sum := sha256.Sum256([]byte(login + ":" + password))
	return sum[:]
}

// IsAdmin сообщает, имеет ли пользователь административную роль. Роль
// перечитывается из хранилища, кука здесь не является источником истины.
func (s *Service) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	role, err := s.repo.GetUserRole(ctx, userID)
	if err != nil {
		return false, err
	}
	return role == model.RoleAdmin, nil
}

// GetBooking возвращает бронирование пользователя по идентификатору.
func (s *Service) GetBooking(ctx context.Context, id, userID int64) (*model.Booking, error) {
	return s.repo.GetBookingForUser(ctx, id, userID)
}

// ListBookings возвращает бронирования пользователя.
func (s *Service) ListBookings(ctx context.Context, userID int64) ([]model.Booking, error) {
	return s.repo.ListBookingsByUser(ctx, userID)
}

// ListAllBookings возвращает все бронирования для администратора, при
// необходимости отфильтрованные по статусу.
func (s *Service) ListAllBookings(ctx context.Context, status model.BookingStatus) ([]model.Booking, error) {
	return s.repo.ListBookings(ctx, status)
}

// GetRevenueSummary возвращает сводку выручки по подтверждённым бронированиям.
func (s *Service) GetRevenueSummary(ctx context.Context) (*model.RevenueSummary, error) {
	return s.repo.GetRevenueSummary(ctx)
}

// Notifications возвращает диспетчер уведомлений для доступа к ленте.
func (s *Service) Notifications() *NotificationDispatcher {
	return s.notifier
}
