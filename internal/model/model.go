// Package model содержит доменные сущности платформы бронирования отеля.
package model

import "time"

// User представляет зарегистрированного пользователя платформы.
type User struct {
	ID           int64
	Login        string
	PasswordHash []byte
	Role         string
	CreatedAt    time.Time
}

// Роли пользователей. Граница аутентификации доверяет этим значениям,
// движок их не перепроверяет.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// BookingKind описывает вариант бронирования. Тег явный: вариант никогда
// не выводится из наличия того или иного поля.
type BookingKind string

const (
	KindRoom    BookingKind = "room"
	KindDining  BookingKind = "dining"
	KindDeal    BookingKind = "deal"
	KindPackage BookingKind = "package"
)

// BookingStatus описывает статус бронирования в конечном автомате.
type BookingStatus string

const (
	StatusPending             BookingStatus = "pending"
	StatusConfirmed           BookingStatus = "confirmed"
	StatusPendingCancellation BookingStatus = "pending_cancellation"
	StatusCancelled           BookingStatus = "cancelled"
	StatusRefunded            BookingStatus = "refunded"
	StatusExpired             BookingStatus = "expired"
	StatusFailed              BookingStatus = "failed"
)

// Terminal сообщает, является ли статус терминальным. Из терминального
// статуса переходов нет.
func (s BookingStatus) Terminal() bool {
	switch s {
	case StatusCancelled, StatusRefunded, StatusExpired, StatusFailed:
		return true
	}
	return false
}

// Booking — единая запись о бронировании любого варианта. Денежные суммы
// хранятся в минорных единицах валюты. Поля вариантов заполняются по Kind:
// комната — CheckIn/CheckOut, ресторан — Date/TimeSlot/Guests, акция —
// RedemptionCode, пакет — StartDate/Guests.
type Booking struct {
	ID              int64
	UserID          int64
	Kind            BookingKind
	TargetID        int64
	AmountCents     int64
	Currency        string
	Status          BookingStatus
	PaymentIntentID *string
	CapacityToken   *string
	CheckIn         *time.Time
	CheckOut        *time.Time
	Date            *time.Time
	TimeSlot        *string
	Guests          *int32
	StartDate       *time.Time
	RedemptionCode  *string
	CreatedAt       time.Time
}

// ServiceStart возвращает временной якорь бронирования для расчёта политики
// возврата. Для акций якоря нет — действует фиксированное окно валидности.
func (b *Booking) ServiceStart() (time.Time, bool) {
	switch b.Kind {
	case KindRoom:
		if b.CheckIn != nil {
			return *b.CheckIn, true
		}
	case KindDining:
		if b.Date != nil {
			return *b.Date, true
		}
	case KindPackage:
		if b.StartDate != nil {
			return *b.StartDate, true
		}
	}
	return time.Time{}, false
}

// PaymentRecord — подтверждённый захват средств во внешнем платёжном шлюзе.
type PaymentRecord struct {
	IntentID    string
	AmountCents int64
	Currency    string
	CapturedAt  time.Time
}

// Статусы возврата средств.
const (
	RefundStatusPending   = "pending"
	RefundStatusProcessed = "processed"
)

// Refund — один возврат средств по платёжному интенту. Пара
// (IntentID, RequestID) уникальна: повтор с тем же ключом идемпотентности
// возвращает существующую запись, а не создаёт новую.
type Refund struct {
	ID              int64
	IntentID        string
	RequestID       string
	AmountCents     int64
	Reason          string
	Status          string
	GatewayRefundID *string
	CreatedAt       time.Time
	ProcessedAt     *time.Time
}

// Решения по заявке на возврат.
const (
	DecisionPending  = "pending"
	DecisionApproved = "approved"
	DecisionRejected = "rejected"
)

// RefundRequest — заявка пользователя на отмену с возвратом, ожидающая
// решения администратора. RequestUUID используется как ключ идемпотентности
// при обращении к платёжному шлюзу.
type RefundRequest struct {
	ID               int64
	BookingID        int64
	RequestUUID      string
	Reason           string
	RefundPercentage int32
	RefundAmount     int64
	TierLabel        string
	Decision         string
	DecidedBy        *int64
	RequestedAt      time.Time
	DecidedAt        *time.Time
}

// Типы уведомлений администратора.
const (
	NotificationBooking      = "booking"
	NotificationCancellation = "cancellation"
	NotificationPayment      = "payment"
	NotificationRefund       = "refund"
	NotificationUser         = "user"
	NotificationReview       = "review"
)

// Приоритеты уведомлений.
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Notification — уведомление администратора о событии жизненного цикла.
// Запись неизменяема, кроме флага IsRead.
type Notification struct {
	ID          int64     `json:"id"`
	Type        string    `json:"type"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	RelatedID   int64     `json:"related_id"`
	RelatedType string    `json:"related_type"`
	Priority    string    `json:"priority"`
	IsRead      bool      `json:"is_read"`
	CreatedAt   time.Time `json:"created_at"`
}

// Room — номер отеля из каталога. Движок читает каталог, но не изменяет его.
type Room struct {
	ID                 int64
	Title              string
	PricePerNightCents int64
	MaxGuests          int32
}

// Restaurant — ресторан из каталога. Депозит берётся за каждого гостя.
type Restaurant struct {
	ID                   int64
	Name                 string
	DepositPerGuestCents int64
	Capacity             int32
}

// Deal — акция с окном валидности и необязательным лимитом погашений.
// CurrentRedemptions изменяется только через операции резервирования.
type Deal struct {
	ID                 int64
	Title              string
	PriceCents         int64
	ValidFrom          time.Time
	ValidUntil         time.Time
	MaxRedemptions     *int32
	CurrentRedemptions int32
}

// Package — туристический пакет с ценой за человека и необязательным
// лимитом бронирований.
type Package struct {
	ID                  int64
	Name                string
	PricePerPersonCents int64
	MaxBookings         *int32
	CurrentBookings     int32
}

// RevenueSummary — сводка выручки по подтверждённым бронированиям.
// Суммируются только фактически сохранённые суммы бронирований.
type RevenueSummary struct {
	TotalCents   int64            `json:"total"`
	ByKind       map[string]int64 `json:"by_kind"`
	BookingCount int64            `json:"booking_count"`
}
