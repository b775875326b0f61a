package models

import "time"

// Известные типы событий бронирования.
// Неизвестные типы сохраняются в raw-слое, но исключаются из построения витрин.
const (
	EventBookingRequested = "booking_requested"
	EventBookingConfirmed = "booking_confirmed"
	EventBookingCancelled = "booking_cancelled"
	EventSessionStarted   = "session_started"
	EventSessionEnded     = "session_ended"
)

// KnownEventTypes — множество типов событий, участвующих в трансформации
var KnownEventTypes = map[string]bool{
	EventBookingRequested: true,
	EventBookingConfirmed: true,
	EventBookingCancelled: true,
	EventSessionStarted:   true,
	EventSessionEnded:     true,
}

// RawEvent представляет одно событие бронирования из исходного потока
type RawEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	UserID    int64     `json:"user_id"`
	MentorID  string    `json:"mentor_id"`
	Timestamp time.Time `json:"timestamp"`
}

// RawUser представляет строку выгрузки пользователей
type RawUser struct {
	UserID     int64     `json:"user_id"`
	CompanyID  int64     `json:"company_id"`
	SignupDate time.Time `json:"signup_date"`
	Status     string    `json:"status"`
}

// RawMentor представляет строку справочника тарифов менторов
type RawMentor struct {
	MentorID   string `json:"mentor_id"`
	Tier       string `json:"tier"`
	HourlyRate int    `json:"hourly_rate"`
}

// SessionFact представляет одну восстановленную сессию.
// Идентификатор сессии — идентификатор события session_started.
type SessionFact struct {
	SessionID           string     `json:"session_id"`
	UserID              int64      `json:"user_id"`
	MentorID            string     `json:"mentor_id"`
	StartedAt           time.Time  `json:"started_at"`
	EndedAt             *time.Time `json:"ended_at"`
	DurationMinutes     int        `json:"duration_minutes"`
	IsDurationEstimated bool       `json:"is_duration_estimated"`
}

// Статусы жизненного цикла бронирования в fct_bookings
const (
	BookingStatusConfirmed = "confirmed"
	BookingStatusCancelled = "cancelled"
	BookingStatusPending   = "pending"
)

// BookingFact представляет разрешенный жизненный цикл одного запроса бронирования
type BookingFact struct {
	BookingID       string     `json:"booking_id"`
	UserID          int64      `json:"user_id"`
	MentorID        string     `json:"mentor_id"`
	RequestedAt     time.Time  `json:"requested_at"`
	ResolvedAt      *time.Time `json:"resolved_at"`
	Status          string     `json:"status"`
	IsOrphanRequest bool       `json:"is_orphan_request"`
	IsNoShow        bool       `json:"is_no_show"`
}

// RebookingRow — строка результата анализа повторных бронирований по группе тарифов
type RebookingRow struct {
	MentorTier       string  `json:"mentor_tier"`
	TotalUsers       int     `json:"total_users"`
	UsersRebooked    int     `json:"users_rebooked"`
	RebookingRatePct float64 `json:"rebooking_rate_pct"`
	CILowerPct       float64 `json:"ci_lower_pct"`
	CIUpperPct       float64 `json:"ci_upper_pct"`
}

// ReliabilityRow — строка результата анализа надежности бронирований по тарифу
type ReliabilityRow struct {
	MentorTier          string  `json:"mentor_tier"`
	TotalBookings       int     `json:"total_bookings"`
	ConfirmedCount      int     `json:"confirmed_count"`
	CancelledCount      int     `json:"cancelled_count"`
	NoShowCount         int     `json:"no_show_count"`
	PendingCount        int     `json:"pending_count"`
	ConfirmationRatePct float64 `json:"confirmation_rate_pct"`
	NoShowRatePct       float64 `json:"no_show_rate_pct"`
	CancellationRatePct float64 `json:"cancellation_rate_pct"`
}

// Статусы запуска конвейера в журнале
const (
	RunStatusInProgress = "in_progress"
	RunStatusSuccess    = "success"
	RunStatusFailed     = "failed"
	RunStatusTimeout    = "timeout"
)

// PipelineRunLog представляет одну запись журнала запусков конвейера
type PipelineRunLog struct {
	RunID           int       `json:"run_id"`
	RunToken        string    `json:"run_token"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	Status          string    `json:"status"`
	ConfigSnapshot  string    `json:"config_snapshot"`
	NewUsers        int       `json:"new_users_ingested"`
	NewEvents       int       `json:"new_events_ingested"`
	DQChecksPassed  bool      `json:"dq_checks_passed"`
	Warnings        []string  `json:"warnings"`
	ErrorMessage    string    `json:"error_message"`
	DurationSeconds float64   `json:"duration_seconds"`
}

// StatusUpdate — событие смены статуса конвейера для подписчиков (WebSocket)
type StatusUpdate struct {
	RunID     int       `json:"run_id"`
	RunToken  string    `json:"run_token"`
	Phase     string    `json:"phase"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// ExtractedData — данные raw-слоя, прочитанные для фазы трансформации
type ExtractedData struct {
	Events  []RawEvent
	Users   []RawUser
	Mentors []RawMentor
}

// TransformedData — витрины, построенные фазой трансформации
type TransformedData struct {
	Sessions []SessionFact
	Bookings []BookingFact
}
