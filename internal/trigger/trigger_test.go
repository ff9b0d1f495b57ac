package trigger

import (
	"testing"
	"time"

	"crisisgo/internal/config"
	"crisisgo/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestKeyPress() (*KeyPress, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	k := NewKeyPress("v", 500*time.Millisecond)
	k.now = clock.now
	return k, clock
}

func TestDoublePressWithinWindowFiresOnce(t *testing.T) {
	k, clock := newTestKeyPress()

	_, fired := k.Press("v")
	assert.False(t, fired)
	assert.True(t, k.Pending())

	clock.advance(300 * time.Millisecond)
	intent, fired := k.Press("V")
	require.True(t, fired)
	assert.Equal(t, models.AlertKeyboard, intent.Source)
	assert.Equal(t, KeyboardMessage, intent.Message)
	assert.False(t, k.Pending())

	clock.advance(100 * time.Millisecond)
	_, fired = k.Press("v")
	assert.False(t, fired)
}

func TestPressesOutsideWindowNeverFire(t *testing.T) {
	k, clock := newTestKeyPress()

	_, fired := k.Press("v")
	assert.False(t, fired)
	clock.advance(501 * time.Millisecond)
	assert.False(t, k.Pending())
	_, fired = k.Press("v")
	assert.False(t, fired)
	clock.advance(600 * time.Millisecond)
	_, fired = k.Press("v")
	assert.False(t, fired)
}

func TestOtherKeysIgnored(t *testing.T) {
	k, clock := newTestKeyPress()
	k.Press("v")
	clock.advance(100 * time.Millisecond)
	_, fired := k.Press("x")
	assert.False(t, fired)
	_, fired = k.Press("v")
	assert.True(t, fired)
}

func TestVoiceDetectsPhraseAndStops(t *testing.T) {
	v := NewVoice(true, []string{"Help me", "emergency"})

	_, fired := v.Hear("help me")
	assert.False(t, fired, "not listening yet")

	require.NoError(t, v.Start())
	_, fired = v.Hear("nice weather today")
	assert.False(t, fired)
	assert.True(t, v.State().Listening)

	intent, fired := v.Hear("Please HELP ME now")
	require.True(t, fired)
	assert.Equal(t, models.AlertVoice, intent.Source)
	assert.Equal(t, VoiceMessage, intent.Message)

	state := v.State()
	assert.False(t, state.Listening)
	assert.Equal(t, "please help me now", state.LastTranscript)
}

func TestVoiceUnsupported(t *testing.T) {
	v := NewVoice(false, nil)
	assert.ErrorIs(t, v.Start(), ErrVoiceUnsupported)
	assert.False(t, v.State().Listening)
}

func TestVoiceFail(t *testing.T) {
	v := NewVoice(true, nil)
	require.NoError(t, v.Start())
	assert.NoError(t, v.Fail("aborted"))
	assert.False(t, v.State().Listening)
	assert.Empty(t, v.State().Error)

	require.NoError(t, v.Start())
	err := v.Fail("network")
	require.Error(t, err)
	assert.Equal(t, "Speech recognition error: network", err.Error())
	assert.Equal(t, err.Error(), v.State().Error)
}

func TestManualIntent(t *testing.T) {
	d := NewDetector(config.Default().Triggers)
	assert.Equal(t, Intent{Source: models.AlertManual, Message: ManualMessage}, d.Manual(""))
	assert.Equal(t, "custom", d.Manual("custom").Message)
	assert.Equal(t, "v", d.Keys.Key())
	assert.True(t, d.Voice.State().Supported)
}
