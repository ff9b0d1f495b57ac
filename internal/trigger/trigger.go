package trigger

import (
	"time"

	"crisisgo/internal/config"
	"crisisgo/internal/location"
	"crisisgo/internal/models"
)

const (
	KeyboardMessage = "Emergency alert triggered via keyboard shortcut"
	VoiceMessage    = `Emergency alert triggered via voice command: "Help me"`
	ManualMessage   = "Emergency alert triggered manually via button"
)

// Intent is the normalized request to raise an alert, whatever channel produced it.
type Intent struct {
	Source   models.AlertType
	Message  string
	Location *location.Position
}

// Detector bundles the three trigger channels for one user session.
type Detector struct {
	Keys  *KeyPress
	Voice *Voice
}

func NewDetector(cfg config.TriggerConfig) *Detector {
	return &Detector{
		Keys:  NewKeyPress(cfg.Key, time.Duration(cfg.WindowMillis)*time.Millisecond),
		Voice: NewVoice(cfg.VoiceSupported(), cfg.Phrases),
	}
}

// Manual produces an intent immediately. An empty message uses the default.
func (d *Detector) Manual(message string) Intent {
	return Manual(message)
}

func Manual(message string) Intent {
	if message == "" {
		message = ManualMessage
	}
	return Intent{Source: models.AlertManual, Message: message}
}
