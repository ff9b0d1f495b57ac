package location

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"crisisgo/internal/config"
)

// Error reasons surfaced to the dashboard verbatim.
var (
	ErrUnsupported = errors.New("Geolocation not supported")
	ErrDenied      = errors.New("Location access denied")
	ErrUnavailable = errors.New("Location unavailable")
	ErrTimeout     = errors.New("Location timeout")
)

const (
	DispatchTimeout = 5 * time.Second
	StatusTimeout   = 10 * time.Second
)

type Position struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Accuracy float64 `json:"accuracy"`
}

// Encode renders the position as the JSON stored on alert log rows.
func (p Position) Encode() string {
	raw, _ := json.Marshal(p)
	return string(raw)
}

// Format renders "lat, lng" with four decimals.
func (p Position) Format() string {
	return fmt.Sprintf("%.4f, %.4f", p.Lat, p.Lng)
}

type Locator interface {
	Locate(ctx context.Context) (Position, error)
}

// LocatorFunc adapts a function to Locator.
type LocatorFunc func(ctx context.Context) (Position, error)

func (f LocatorFunc) Locate(ctx context.Context) (Position, error) { return f(ctx) }

// Static always reports the same coordinates.
type Static struct {
	Position Position
}

func (s Static) Locate(context.Context) (Position, error) { return s.Position, nil }

// Unsupported reports that no location source exists.
type Unsupported struct{}

func (Unsupported) Locate(context.Context) (Position, error) { return Position{}, ErrUnsupported }

// New returns a Static locator when coordinates are configured, Unsupported otherwise.
func New(cfg config.LocationConfig) Locator {
	if cfg.Latitude == nil || cfg.Longitude == nil {
		return Unsupported{}
	}
	return Static{Position: Position{Lat: *cfg.Latitude, Lng: *cfg.Longitude, Accuracy: cfg.Accuracy}}
}

// Resolve asks l for a position and gives up after timeout. A locator that
// ignores its context is abandoned once the deadline passes.
func Resolve(ctx context.Context, l Locator, timeout time.Duration) (Position, error) {
	if l == nil {
		return Position{}, ErrUnsupported
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		pos Position
		err error
	}
	done := make(chan result, 1)
	go func() {
		pos, err := l.Locate(ctx)
		done <- result{pos, err}
	}()

	select {
	case r := <-done:
		if errors.Is(r.err, context.DeadlineExceeded) {
			return Position{}, ErrTimeout
		}
		return r.pos, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Position{}, ErrTimeout
		}
		return Position{}, ctx.Err()
	}
}
