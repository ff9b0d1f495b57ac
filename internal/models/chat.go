package models

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ChatMessage is one turn of a transcript. Transcripts are not persisted;
// the client replays them with every request.
type ChatMessage struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

type Classification struct {
	IsEmergency      bool     `json:"isEmergency"`
	Severity         Severity `json:"severity"`
	SuggestedActions []string `json:"suggestedActions"`
}

// SafeClassification is returned whenever classification cannot be trusted.
func SafeClassification() Classification {
	return Classification{Severity: SeverityLow, SuggestedActions: []string{}}
}

type ChatReply struct {
	Message           string    `json:"message"`
	Timestamp         time.Time `json:"timestamp"`
	EmergencyDetected bool      `json:"emergencyDetected"`
	Severity          Severity  `json:"severity"`
	SuggestedActions  []string  `json:"suggestedActions"`
}
