package dashboard

import "time"

// RecordResponse is the HTTP response DTO for one compliance record. DaysLeft
// is computed against the request clock, never persisted.
type RecordResponse struct {
	AccountID        string     `json:"account_id"`
	UserID           string     `json:"user_id"`
	CourseID         string     `json:"course_id"`
	InstanceID       string     `json:"instance_id,omitempty"`
	EnrollmentSource string     `json:"enrollment_source"`
	EnrollmentDate   time.Time  `json:"enrollment_date"`
	DeadlineDate     time.Time  `json:"deadline_date"`
	CompletionDate   *time.Time `json:"completion_date,omitempty"`
	Progress         int        `json:"progress"`
	Status           string     `json:"status"`
	DaysLeft         int        `json:"days_left"`
}

// RecordsListResponse wraps the list of records for HTTP response.
type RecordsListResponse struct {
	Records []*RecordResponse `json:"records"`
	Total   int               `json:"total"`
}

// EventResponse is the HTTP response DTO for one ledger entry.
type EventResponse struct {
	AccountID  string    `json:"account_id"`
	EventID    string    `json:"event_id"`
	EventName  string    `json:"event_name"`
	EventTime  time.Time `json:"event_time"`
	Processed  bool      `json:"processed"`
	ReceivedAt time.Time `json:"received_at"`
}

// EventsListResponse wraps the list of ledger entries for HTTP response.
type EventsListResponse struct {
	Events []*EventResponse `json:"events"`
	Total  int              `json:"total"`
}

// ReminderResponse is the HTTP response DTO for one queued notification.
type ReminderResponse struct {
	ID           string     `json:"id"`
	Phone        string     `json:"phone"`
	Message      string     `json:"message"`
	ScheduledFor time.Time  `json:"scheduled_for"`
	SentAt       *time.Time `json:"sent_at,omitempty"`
	Status       string     `json:"status"`
}

// RemindersListResponse wraps the notification queue for HTTP response.
type RemindersListResponse struct {
	Reminders []*ReminderResponse `json:"reminders"`
	Total     int                 `json:"total"`
}
