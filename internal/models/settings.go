package models

import "fmt"

const (
	ToneCalm         = "calm"
	ToneUrgent       = "urgent"
	ToneProfessional = "professional"

	VoiceAlways  = "always"
	VoicePush    = "push"
	VoiceKeyword = "keyword"
)

type UserSettings struct {
	ID               int64  `json:"id"`
	UserID           int64  `json:"userId"`
	AITone           string `json:"aiTone"`
	AutoEscalation   bool   `json:"autoEscalation"`
	ContextAwareness bool   `json:"contextAwareness"`
	VoiceMode        string `json:"voiceMode"`
	Language         string `json:"language"`
	Theme            string `json:"theme"`
	AccentColor      string `json:"accentColor"`
}

// DefaultSettings returns the preferences a user starts with.
func DefaultSettings(userID int64) UserSettings {
	return UserSettings{
		UserID:           userID,
		AITone:           ToneCalm,
		AutoEscalation:   true,
		ContextAwareness: true,
		VoiceMode:        VoiceAlways,
		Language:         "en",
		Theme:            "dark",
		AccentColor:      "#99CC00",
	}
}

type SettingsPatch struct {
	AITone           *string `json:"aiTone"`
	AutoEscalation   *bool   `json:"autoEscalation"`
	ContextAwareness *bool   `json:"contextAwareness"`
	VoiceMode        *string `json:"voiceMode"`
	Language         *string `json:"language"`
	Theme            *string `json:"theme"`
	AccentColor      *string `json:"accentColor"`
}

// Validate rejects enum values outside the supported sets.
func (p SettingsPatch) Validate() error {
	if p.AITone != nil {
		switch *p.AITone {
		case ToneCalm, ToneUrgent, ToneProfessional:
		default:
			return fmt.Errorf("invalid aiTone: %q", *p.AITone)
		}
	}
	if p.VoiceMode != nil {
		switch *p.VoiceMode {
		case VoiceAlways, VoicePush, VoiceKeyword:
		default:
			return fmt.Errorf("invalid voiceMode: %q", *p.VoiceMode)
		}
	}
	return nil
}

func (p SettingsPatch) Apply(s *UserSettings) {
	if p.AITone != nil {
		s.AITone = *p.AITone
	}
	if p.AutoEscalation != nil {
		s.AutoEscalation = *p.AutoEscalation
	}
	if p.ContextAwareness != nil {
		s.ContextAwareness = *p.ContextAwareness
	}
	if p.VoiceMode != nil {
		s.VoiceMode = *p.VoiceMode
	}
	if p.Language != nil {
		s.Language = *p.Language
	}
	if p.Theme != nil {
		s.Theme = *p.Theme
	}
	if p.AccentColor != nil {
		s.AccentColor = *p.AccentColor
	}
}
