package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"crisisgo/internal/alert"
	"crisisgo/internal/auth"
	"crisisgo/internal/location"
	"crisisgo/internal/models"
	"crisisgo/internal/service/assistant"
	"crisisgo/internal/storage"
	"crisisgo/internal/trigger"
)

// Handler wires HTTP routes to the stores, the alert dispatcher and the assistant.
type Handler struct {
	store      storage.Store
	dispatcher *alert.Dispatcher
	assistant  *assistant.Service
	detector   *trigger.Detector
	locator    location.Locator
	logger     *zap.Logger
}

// NewHandler constructs a Handler instance.
func NewHandler(store storage.Store, dispatcher *alert.Dispatcher, assistantSvc *assistant.Service, detector *trigger.Detector, locator location.Locator, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if locator == nil {
		locator = location.Unsupported{}
	}
	return &Handler{
		store:      store,
		dispatcher: dispatcher,
		assistant:  assistantSvc,
		detector:   detector,
		locator:    locator,
		logger:     logger,
	}
}

func (h *Handler) userID(c *gin.Context) (int64, bool) {
	userID, ok := auth.UserIDFromContext(c)
	if !ok || userID <= 0 {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "user not resolved"})
		return 0, false
	}
	return userID, true
}

// RegisterRoutes attaches all HTTP routes to the router. Every /api route
// acts as demoUserID.
func (h *Handler) RegisterRoutes(router *gin.Engine, demoUserID int64) {
	router.GET("/healthz", h.health)

	api := router.Group("/api")
	api.Use(auth.DemoUser(demoUserID))

	api.POST("/trigger-alert", h.triggerAlert)
	api.GET("/emergency-status", h.emergencyStatus)
	api.GET("/location", h.currentLocation)

	api.GET("/emergency-contacts", h.listContacts)
	api.POST("/emergency-contacts", h.createContact)
	api.PUT("/emergency-contacts/:id", h.updateContact)
	api.DELETE("/emergency-contacts/:id", h.deleteContact)

	api.GET("/alert-logs", h.listAlertLogs)
	api.GET("/alert-logs/export", h.exportAlertLogs)
	api.GET("/alert-logs/:dispatchId", h.latestAlertLog)

	api.GET("/user-settings", h.getSettings)
	api.PUT("/user-settings", h.updateSettings)

	api.POST("/chat", h.chat)
	api.POST("/analyze-emergency", h.analyzeEmergency)

	triggers := api.Group("/triggers")
	triggers.POST("/keypress", h.keyPress)
	triggers.POST("/manual", h.manualTrigger)
	triggers.GET("/voice", h.voiceState)
	triggers.POST("/voice/start", h.voiceStart)
	triggers.POST("/voice/stop", h.voiceStop)
	triggers.POST("/voice/transcript", h.voiceTranscript)
	triggers.POST("/voice/error", h.voiceError)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Alerts

type triggerAlertRequest struct {
	AlertType string          `json:"alertType"`
	Location  json.RawMessage `json:"location"`
	Message   *string         `json:"message"`
}

type triggerAlertResponse struct {
	Success          bool               `json:"success"`
	AlertID          int64              `json:"alertId"`
	DispatchID       string             `json:"dispatchId"`
	ContactsNotified int                `json:"contactsNotified"`
	Status           models.AlertStatus `json:"status"`
}

var defaultMessages = map[models.AlertType]string{
	models.AlertKeyboard: trigger.KeyboardMessage,
	models.AlertVoice:    trigger.VoiceMessage,
	models.AlertManual:   trigger.ManualMessage,
}

func (h *Handler) triggerAlert(c *gin.Context) {
	var req triggerAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to trigger alert"})
		return
	}
	alertType := models.AlertType(req.AlertType)
	if !alertType.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to trigger alert"})
		return
	}
	pos, err := parseLocation(req.Location)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to trigger alert"})
		return
	}
	intent := trigger.Intent{Source: alertType, Message: defaultMessages[alertType], Location: pos}
	if req.Message != nil && strings.TrimSpace(*req.Message) != "" {
		intent.Message = *req.Message
	}
	h.dispatch(c, intent)
}

// parseLocation accepts either a {lat,lng,accuracy} object or that object
// encoded as a JSON string. Absent or null means "resolve server-side".
func parseLocation(raw json.RawMessage) (*location.Position, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}
	data := []byte(trimmed)
	if strings.HasPrefix(trimmed, `"`) {
		var encoded string
		if err := json.Unmarshal(data, &encoded); err != nil {
			return nil, err
		}
		if encoded == "" {
			return nil, nil
		}
		data = []byte(encoded)
	}
	var pos location.Position
	if err := json.Unmarshal(data, &pos); err != nil {
		return nil, err
	}
	return &pos, nil
}

func (h *Handler) dispatch(c *gin.Context, intent trigger.Intent) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	res, err := h.dispatcher.Dispatch(c.Request.Context(), userID, intent)
	if err != nil {
		h.logger.Error("trigger alert failed", zap.String("alert_type", string(intent.Source)), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to trigger alert"})
		return
	}
	c.JSON(http.StatusOK, triggerAlertResponse{
		Success:          res.Status == models.StatusSent,
		AlertID:          res.AlertID,
		DispatchID:       res.DispatchID,
		ContactsNotified: res.ContactsNotified,
		Status:           res.Status,
	})
}

func (h *Handler) emergencyStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.dispatcher.Status())
}

func (h *Handler) currentLocation(c *gin.Context) {
	pos, err := location.Resolve(c.Request.Context(), h.locator, location.StatusTimeout)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"location":  pos,
		"formatted": pos.Format(),
	})
}

// Contacts

func contactID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contact id"})
		return 0, false
	}
	return id, true
}

func (h *Handler) listContacts(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	contacts, err := h.store.ListContacts(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("list contacts failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch emergency contacts"})
		return
	}
	c.JSON(http.StatusOK, contacts)
}

func (h *Handler) createContact(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	var req models.ContactInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to create emergency contact"})
		return
	}
	contact, err := h.store.CreateContact(c.Request.Context(), userID, req)
	if err != nil {
		if !errors.Is(err, storage.ErrInvalid) {
			h.logger.Error("create contact failed", zap.Error(err))
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to create emergency contact"})
		return
	}
	c.JSON(http.StatusOK, contact)
}

func (h *Handler) updateContact(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	id, ok := contactID(c)
	if !ok {
		return
	}
	var patch models.ContactPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to update emergency contact"})
		return
	}
	contact, err := h.store.UpdateContact(c.Request.Context(), userID, id, patch)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Emergency contact not found"})
		case errors.Is(err, storage.ErrInvalid):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to update emergency contact"})
		default:
			h.logger.Error("update contact failed", zap.Int64("contact_id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update emergency contact"})
		}
		return
	}
	c.JSON(http.StatusOK, contact)
}

func (h *Handler) deleteContact(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	id, ok := contactID(c)
	if !ok {
		return
	}
	existed, err := h.store.DeleteContact(c.Request.Context(), userID, id)
	if err != nil {
		h.logger.Error("delete contact failed", zap.Int64("contact_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete emergency contact"})
		return
	}
	if !existed {
		c.JSON(http.StatusNotFound, gin.H{"error": "Emergency contact not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Alert logs

func (h *Handler) listAlertLogs(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	logs, err := h.store.ListAlertLogs(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("list alert logs failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch alert logs"})
		return
	}
	c.JSON(http.StatusOK, logs)
}

func (h *Handler) latestAlertLog(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	row, err := h.store.LatestAlertLog(c.Request.Context(), userID, c.Param("dispatchId"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
			return
		}
		h.logger.Error("latest alert log failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch alert log"})
		return
	}
	c.JSON(http.StatusOK, row)
}

// Settings

func (h *Handler) getSettings(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	settings, err := h.store.GetUserSettings(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("get settings failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch user settings"})
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (h *Handler) updateSettings(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	var patch models.SettingsPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to update user settings"})
		return
	}
	settings, err := h.store.UpdateUserSettings(c.Request.Context(), userID, patch)
	if err != nil {
		if errors.Is(err, storage.ErrInvalid) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to update user settings"})
			return
		}
		h.logger.Error("update settings failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user settings"})
		return
	}
	c.JSON(http.StatusOK, settings)
}

// Assistant

type chatRequest struct {
	Message  string               `json:"message"`
	Messages []models.ChatMessage `json:"messages"`
}

func (h *Handler) chat(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	reply, err := h.assistant.Chat(c.Request.Context(), userID, req.Message, req.Messages)
	if err != nil {
		if errors.Is(err, assistant.ErrEmptyMessage) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
			return
		}
		h.logger.Error("chat failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process chat message"})
		return
	}
	c.JSON(http.StatusOK, reply)
}

type analyzeRequest struct {
	Message string `json:"message"`
}

func (h *Handler) analyzeEmergency(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	c.JSON(http.StatusOK, h.assistant.Analyze(c.Request.Context(), req.Message))
}
