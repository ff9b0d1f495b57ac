package models

import "time"

type AlertType string

const (
	AlertKeyboard AlertType = "keyboard"
	AlertVoice    AlertType = "voice"
	AlertManual   AlertType = "manual"
)

func (t AlertType) Valid() bool {
	switch t {
	case AlertKeyboard, AlertVoice, AlertManual:
		return true
	}
	return false
}

type AlertStatus string

const (
	StatusTriggered  AlertStatus = "triggered"
	StatusSent       AlertStatus = "sent"
	StatusFailed     AlertStatus = "failed"
	StatusAIDetected AlertStatus = "ai-detected"
)

// AlertLog is one append-only row of an alert's history. Rows sharing a
// DispatchID belong to the same logical alert.
type AlertLog struct {
	ID         int64       `json:"id"`
	UserID     int64       `json:"userId"`
	DispatchID string      `json:"dispatchId"`
	AlertType  AlertType   `json:"alertType"`
	Status     AlertStatus `json:"status"`
	Location   *string     `json:"location"`
	Message    *string     `json:"message"`
	Timestamp  time.Time   `json:"timestamp"`
}
