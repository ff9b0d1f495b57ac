package trigger

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"crisisgo/internal/models"
)

var ErrVoiceUnsupported = errors.New("speech recognition not supported")

type VoiceState struct {
	Supported      bool   `json:"supported"`
	Listening      bool   `json:"listening"`
	LastTranscript string `json:"lastTranscript"`
	Error          string `json:"error,omitempty"`
}

// Voice watches recognized speech for emergency phrases while listening.
type Voice struct {
	mu        sync.Mutex
	supported bool
	phrases   []string

	listening  bool
	transcript string
	lastErr    string
}

func NewVoice(supported bool, phrases []string) *Voice {
	normalized := make([]string, 0, len(phrases))
	for _, p := range phrases {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			normalized = append(normalized, p)
		}
	}
	if len(normalized) == 0 {
		normalized = []string{"help me", "emergency"}
	}
	return &Voice{supported: supported, phrases: normalized}
}

func (v *Voice) Start() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.supported {
		return ErrVoiceUnsupported
	}
	v.listening = true
	v.lastErr = ""
	return nil
}

func (v *Voice) Stop() {
	v.mu.Lock()
	v.listening = false
	v.mu.Unlock()
}

// Hear feeds one transcript. A match yields an intent and stops listening.
func (v *Voice) Hear(transcript string) (Intent, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.listening {
		return Intent{}, false
	}
	text := strings.ToLower(transcript)
	v.transcript = text
	for _, phrase := range v.phrases {
		if strings.Contains(text, phrase) {
			v.listening = false
			return Intent{Source: models.AlertVoice, Message: VoiceMessage}, true
		}
	}
	return Intent{}, false
}

// Fail records a recognizer error. "aborted" is not surfaced.
func (v *Voice) Fail(reason string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.listening = false
	if reason == "aborted" {
		return nil
	}
	v.lastErr = fmt.Sprintf("Speech recognition error: %s", reason)
	return errors.New(v.lastErr)
}

func (v *Voice) State() VoiceState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return VoiceState{
		Supported:      v.supported,
		Listening:      v.listening,
		LastTranscript: v.transcript,
		Error:          v.lastErr,
	}
}
