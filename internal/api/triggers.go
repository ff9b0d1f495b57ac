package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"crisisgo/internal/trigger"
)

type keyPressRequest struct {
	Key string `json:"key"`
}

// keyPress feeds one key event; the second press inside the window dispatches.
func (h *Handler) keyPress(c *gin.Context) {
	var req keyPressRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "key is required"})
		return
	}
	intent, fired := h.detector.Keys.Press(req.Key)
	if !fired {
		c.JSON(http.StatusOK, gin.H{
			"triggered": false,
			"pending":   h.detector.Keys.Pending(),
			"windowMs":  h.detector.Keys.Window().Milliseconds(),
		})
		return
	}
	h.dispatch(c, intent)
}

type manualTriggerRequest struct {
	Message string `json:"message"`
}

func (h *Handler) manualTrigger(c *gin.Context) {
	var req manualTriggerRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to trigger alert"})
			return
		}
	}
	h.dispatch(c, h.detector.Manual(req.Message))
}

func (h *Handler) voiceState(c *gin.Context) {
	c.JSON(http.StatusOK, h.detector.Voice.State())
}

func (h *Handler) voiceStart(c *gin.Context) {
	if err := h.detector.Voice.Start(); err != nil {
		if errors.Is(err, trigger.ErrVoiceUnsupported) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.detector.Voice.State())
}

func (h *Handler) voiceStop(c *gin.Context) {
	h.detector.Voice.Stop()
	c.JSON(http.StatusOK, h.detector.Voice.State())
}

type transcriptRequest struct {
	Transcript string `json:"transcript"`
}

func (h *Handler) voiceTranscript(c *gin.Context) {
	var req transcriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	intent, fired := h.detector.Voice.Hear(req.Transcript)
	if !fired {
		c.JSON(http.StatusOK, gin.H{"triggered": false, "voice": h.detector.Voice.State()})
		return
	}
	h.dispatch(c, intent)
}

type voiceErrorRequest struct {
	Error string `json:"error"`
}

func (h *Handler) voiceError(c *gin.Context) {
	var req voiceErrorRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Error == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "error is required"})
		return
	}
	if err := h.detector.Voice.Fail(req.Error); err != nil {
		c.JSON(http.StatusOK, gin.H{"error": err.Error(), "voice": h.detector.Voice.State()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"voice": h.detector.Voice.State()})
}
