package ws

import (
	"context"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"notification-engine/internal/models"
)

const maxConnectionsPerEmployee = 10

// Hub manages dashboard WebSocket connections, keyed by tenant and employee.
// It doubles as the dashboard live-push transport.
type Hub struct {
	mu          sync.Mutex
	connections map[string]map[*websocket.Conn]bool
	logger      *logrus.Logger
}

func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		connections: make(map[string]map[*websocket.Conn]bool),
		logger:      logger,
	}
}

func key(tenantID, employeeID string) string {
	return tenantID + "/" + employeeID
}

// Add registers a connection for an employee, capped per employee.
func (h *Hub) Add(tenantID, employeeID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	k := key(tenantID, employeeID)
	if _, ok := h.connections[k]; !ok {
		h.connections[k] = make(map[*websocket.Conn]bool)
	}
	if len(h.connections[k]) >= maxConnectionsPerEmployee {
		h.logger.Warnf("max websocket connections reached for %s", k)
		return
	}
	h.connections[k][conn] = true
}

// Remove drops a connection.
func (h *Hub) Remove(tenantID, employeeID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	k := key(tenantID, employeeID)
	if conns, ok := h.connections[k]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.connections, k)
		}
	}
}

// Send implements the dashboard dispatch transport: it pushes a live notice
// to every open connection of the recipient. No connections is not an error;
// the dashboard record is already delivered.
func (h *Hub) Send(ctx context.Context, job models.DispatchJob) error {
	payload := map[string]any{
		"type":            "notification",
		"notification_id": job.NotificationID,
		"title":           job.Title,
		"message":         job.Message,
		"action_url":      job.ActionURL,
		"priority":        job.Priority,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	k := key(job.TenantID, job.EmployeeID)
	conns, ok := h.connections[k]
	if !ok {
		return nil
	}
	var lastErr error
	for conn := range conns {
		if err := conn.WriteJSON(payload); err != nil {
			lastErr = fmt.Errorf("websocket write failed: %w", err)
			delete(conns, conn)
		}
	}
	if len(conns) == 0 {
		delete(h.connections, k)
	}
	return lastErr
}
