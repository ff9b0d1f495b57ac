package trigger

import (
	"strings"
	"sync"
	"time"

	"crisisgo/internal/models"
)

// KeyPress turns two presses of the designated key within the window into
// one intent. A lone press expires silently.
type KeyPress struct {
	mu     sync.Mutex
	key    string
	window time.Duration
	now    func() time.Time

	count int
	first time.Time
}

func NewKeyPress(key string, window time.Duration) *KeyPress {
	if key == "" {
		key = "v"
	}
	if window <= 0 {
		window = 500 * time.Millisecond
	}
	return &KeyPress{key: strings.ToLower(key), window: window, now: time.Now}
}

func (k *KeyPress) Key() string { return k.key }

func (k *KeyPress) Window() time.Duration { return k.window }

// Press records a key press and reports whether it completed a double press.
func (k *KeyPress) Press(key string) (Intent, bool) {
	if strings.ToLower(key) != k.key {
		return Intent{}, false
	}
	k.mu.Lock()
	defer k.mu.Unlock()

	now := k.now()
	if k.count == 1 && now.Sub(k.first) <= k.window {
		k.count = 0
		return Intent{Source: models.AlertKeyboard, Message: KeyboardMessage}, true
	}
	k.count = 1
	k.first = now
	return Intent{}, false
}

// Pending reports whether a first press is waiting for its pair.
func (k *KeyPress) Pending() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.count == 1 && k.now().Sub(k.first) <= k.window
}
