package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"notification-engine/internal/db"
	"notification-engine/internal/directory"
	"notification-engine/internal/dispatch"
	"notification-engine/internal/engine"
	"notification-engine/internal/models"
	"notification-engine/internal/status"
	"notification-engine/internal/ws"
)

type Handler struct {
	db        *db.DB
	logger    *logrus.Logger
	processor *engine.Processor
	tracker   *status.Tracker
	queue     *dispatch.Queue
	hub       *ws.Hub
	directory directory.Directory
}

func NewHandler(
	database *db.DB,
	logger *logrus.Logger,
	processor *engine.Processor,
	tracker *status.Tracker,
	queue *dispatch.Queue,
	hub *ws.Hub,
	dir directory.Directory,
) *Handler {
	return &Handler{
		db:        database,
		logger:    logger,
		processor: processor,
		tracker:   tracker,
		queue:     queue,
		hub:       hub,
		directory: dir,
	}
}

func (h *Handler) CreateRule(c *gin.Context) {
	var in models.RuleCreate
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rule := models.NotificationRule{
		TenantID:            tenantID(c),
		Name:                in.Name,
		TriggerEvent:        in.TriggerEvent,
		Channels:            in.Channels,
		RecipientTypes:      in.RecipientTypes,
		SpecificEmployeeIDs: in.SpecificEmployeeIDs,
		TargetRoles:         in.TargetRoles,
		CustomPhones:        in.CustomPhones,
		CustomEmails:        in.CustomEmails,
		Templates:           in.Templates,
		Titles:              in.Titles,
		MotivationalMessage: in.MotivationalMessage,
		Conditions:          in.Conditions,
		IsActive:            true,
		Priority:            in.Priority,
		CreatedBy:           in.CreatedBy,
	}
	if rule.Priority < 1 || rule.Priority > 5 {
		rule.Priority = 5 // normal
	}

	if err := h.db.CreateRule(c.Request.Context(), &rule); err != nil {
		h.logger.WithError(err).Error("failed to create rule")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, rule)
}

func (h *Handler) ListRules(c *gin.Context) {
	rules, err := h.db.ListRules(c.Request.Context(), tenantID(c))
	if err != nil {
		h.logger.WithError(err).Error("failed to list rules")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rules)
}

func (h *Handler) GetRule(c *gin.Context) {
	rule, err := h.db.GetRule(c.Request.Context(), tenantID(c), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "rule not found"})
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (h *Handler) UpdateRule(c *gin.Context) {
	var in models.RuleUpdate
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rule, err := h.db.GetRule(c.Request.Context(), tenantID(c), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "rule not found"})
		return
	}

	if in.Name != nil {
		rule.Name = *in.Name
	}
	if in.Channels != nil {
		rule.Channels = in.Channels
	}
	if in.RecipientTypes != nil {
		rule.RecipientTypes = in.RecipientTypes
	}
	if in.SpecificEmployeeIDs != nil {
		rule.SpecificEmployeeIDs = in.SpecificEmployeeIDs
	}
	if in.TargetRoles != nil {
		rule.TargetRoles = in.TargetRoles
	}
	if in.CustomPhones != nil {
		rule.CustomPhones = in.CustomPhones
	}
	if in.CustomEmails != nil {
		rule.CustomEmails = in.CustomEmails
	}
	if in.Templates != nil {
		rule.Templates = in.Templates
	}
	if in.Titles != nil {
		rule.Titles = in.Titles
	}
	if in.MotivationalMessage != nil {
		rule.MotivationalMessage = *in.MotivationalMessage
	}
	if in.Conditions != nil {
		rule.Conditions = *in.Conditions
	}
	if in.Priority != nil {
		rule.Priority = *in.Priority
	}

	if len(rule.Channels) == 0 || len(rule.RecipientTypes) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "channels and recipient_types must not be empty"})
		return
	}

	if err := h.db.SaveRule(c.Request.Context(), &rule); err != nil {
		h.logger.WithError(err).Error("failed to update rule")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (h *Handler) ToggleRule(c *gin.Context) {
	var in struct {
		IsActive *bool `json:"is_active" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.db.ToggleRule(c.Request.Context(), tenantID(c), c.Param("id"), *in.IsActive); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "rule not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"is_active": *in.IsActive})
}

func (h *Handler) DeleteRule(c *gin.Context) {
	if err := h.db.DeleteRule(c.Request.Context(), tenantID(c), c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "rule not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// TestRule runs the real matching path for one rule against a caller-supplied
// payload, without persisting records or enqueueing jobs.
func (h *Handler) TestRule(c *gin.Context) {
	var in struct {
		EventType string         `json:"event_type"`
		StoreID   string         `json:"store_id"`
		Data      map[string]any `json:"data"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rule, err := h.db.GetRule(c.Request.Context(), tenantID(c), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "rule not found"})
		return
	}

	evt := models.EventContext{
		TenantID:  rule.TenantID,
		StoreID:   in.StoreID,
		EventType: rule.TriggerEvent,
		Data:      in.Data,
	}
	if in.EventType != "" {
		evt.EventType = in.EventType
	}

	previews, err := h.processor.TestRule(c.Request.Context(), &rule, evt)
	if err != nil {
		h.logger.WithError(err).Error("test send failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": previews, "count": len(previews)})
}

func (h *Handler) ListNotifications(c *gin.Context) {
	employeeID := c.Query("employee_id")
	if employeeID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing employee_id"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	notifications, err := h.db.ListNotificationsByEmployee(c.Request.Context(), tenantID(c), employeeID, limit, offset)
	if err != nil {
		h.logger.WithError(err).Error("failed to list notifications")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, notifications)
}

func (h *Handler) MarkRead(c *gin.Context) {
	var in struct {
		EmployeeID string `json:"employee_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.tracker.MarkRead(c.Request.Context(), tenantID(c), in.EmployeeID, c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"read": true})
}

func (h *Handler) MarkAllRead(c *gin.Context) {
	var in struct {
		EmployeeID string `json:"employee_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	updated, err := h.tracker.MarkAllRead(c.Request.Context(), tenantID(c), in.EmployeeID)
	if err != nil {
		h.logger.WithError(err).Error("failed to mark all read")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

// RetryNotification re-enqueues a failed delivery record as a fresh job.
func (h *Handler) RetryNotification(c *gin.Context) {
	notif, err := h.db.GetNotification(c.Request.Context(), c.Param("id"))
	if err != nil || notif.TenantID != tenantID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
		return
	}
	if notif.Status != models.StatusFailed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "notification is not in failed state"})
		return
	}

	job := models.DispatchJob{
		NotificationID: notif.ID,
		TenantID:       notif.TenantID,
		Channel:        notif.Channel,
		EmployeeID:     notif.EmployeeID,
		EmployeeName:   notif.EmployeeName,
		Title:          notif.Title,
		Message:        notif.Message,
		ActionURL:      notif.ActionURL,
		Priority:       notif.Priority,
	}
	h.fillContact(c, &job, notif)

	if !h.queue.Enqueue(job) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "dispatch queue is full"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "retry queued"})
}

// fillContact recovers the contact fields a retry job needs. Synthetic
// recipients carry their contact value as the stored name; real employees
// are looked up in the directory again.
func (h *Handler) fillContact(c *gin.Context, job *models.DispatchJob, notif models.EmployeeNotification) {
	if strings.HasPrefix(notif.EmployeeID, models.SyntheticPhonePrefix) {
		job.EmployeePhone = notif.EmployeeName
		return
	}
	if strings.HasPrefix(notif.EmployeeID, models.SyntheticEmailPrefix) {
		job.EmployeeEmail = notif.EmployeeName
		return
	}
	emp, err := h.directory.GetEmployee(c.Request.Context(), notif.TenantID, notif.EmployeeID)
	if err != nil {
		h.logger.WithError(err).Warn("failed to refresh contact info for retry")
		return
	}
	job.EmployeeEmail = emp.Email
	job.EmployeePhone = engine.NormalizePhone(emp.Phone)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.tracker.Stats(c.Request.Context(), tenantID(c))
	if err != nil {
		h.logger.WithError(err).Error("failed to aggregate stats")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// RegisterChat links a phone number to a chat id for the telegram bridge.
func (h *Handler) RegisterChat(c *gin.Context) {
	var in struct {
		Phone  string `json:"phone" binding:"required"`
		ChatID int64  `json:"chat_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	phone := engine.NormalizePhone(in.Phone)
	if phone == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid phone number"})
		return
	}
	if err := h.db.RegisterChat(c.Request.Context(), tenantID(c), phone, in.ChatID); err != nil {
		h.logger.WithError(err).Error("failed to register chat")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"phone": phone, "chat_id": in.ChatID})
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WebSocket registers a dashboard connection for live notification pushes.
func (h *Handler) WebSocket(c *gin.Context) {
	employeeID := c.Query("employee_id")
	if employeeID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing employee_id"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.WithError(err).Error("websocket upgrade failed")
		return
	}

	tenant := tenantID(c)
	h.hub.Add(tenant, employeeID, conn)
	defer func() {
		h.hub.Remove(tenant, employeeID, conn)
		conn.Close()
	}()

	// drain client frames until the connection closes
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
