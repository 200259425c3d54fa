package reminder

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound    = errors.New("reminder not found")
	ErrValidation  = errors.New("validation failed")
	ErrForbidden   = errors.New("forbidden")
	ErrNotApproved = errors.New("prescription is not approved")
	// ErrDuplicate is returned by Repository.Create when the prescription
	// medication already has a reminder.
	ErrDuplicate = errors.New("reminder already exists for medication")
)

const StatusActive = "active"

const (
	FrequencyOnceDaily       = "once_daily"
	FrequencyTwiceDaily      = "twice_daily"
	FrequencyThreeTimesDaily = "three_times_daily"
)

var validFrequencies = map[string]bool{
	FrequencyOnceDaily:       true,
	FrequencyTwiceDaily:      true,
	FrequencyThreeTimesDaily: true,
}

// Reminder is a recurring medication notification. MedicationIndex is set
// only for reminders derived from a prescription.
type Reminder struct {
	ID                uuid.UUID  `json:"id"`
	UserID            uuid.UUID  `json:"user_id"`
	PrescriptionID    *uuid.UUID `json:"prescription_id"`
	MedicationIndex   *int       `json:"medication_index,omitempty"`
	Title             string     `json:"title"`
	Message           string     `json:"message"`
	MessageTelugu     *string    `json:"message_telugu"`
	Frequency         string     `json:"frequency"`
	Times             []string   `json:"times"`
	Status            string     `json:"status"`
	TotalAcknowledged int        `json:"total_acknowledged"`
	CreatedAt         time.Time  `json:"created_at"`
}

type CreateInput struct {
	PrescriptionID *uuid.UUID `json:"prescription_id"`
	Title          string     `json:"title"`
	Message        string     `json:"message"`
	MessageTelugu  *string    `json:"message_telugu"`
	Frequency      string     `json:"frequency"`
	Times          []string   `json:"times"`
}

type Acknowledgement struct {
	ReminderID        uuid.UUID `json:"reminder_id"`
	AcknowledgedAt    time.Time `json:"acknowledged_at"`
	TotalAcknowledged int       `json:"total_acknowledged"`
}

type ScheduleResult struct {
	PrescriptionID   uuid.UUID   `json:"prescription_id"`
	RemindersCreated int         `json:"reminders_created"`
	Reminders        []*Reminder `json:"reminders"`
}
