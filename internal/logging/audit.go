package logging

import (
	"time"

	"github.com/google/uuid"
)

// AuditEventType represents the type of audit event
type AuditEventType string

const (
	// Session events
	SessionAuthSuccess AuditEventType = "SESSION_AUTH_SUCCESS"
	SessionAuthFailure AuditEventType = "SESSION_AUTH_FAILURE"

	// Marketplace credential events
	MarketplaceConnect    AuditEventType = "MARKETPLACE_CONNECT"
	MarketplaceDisconnect AuditEventType = "MARKETPLACE_DISCONNECT"
	LoginAttempt          AuditEventType = "LOGIN_ATTEMPT"

	// Rate limit events
	RateLimitExceeded AuditEventType = "RATE_LIMIT_EXCEEDED"
)

// AuditStatus represents the status of an audited action
type AuditStatus string

const (
	StatusSuccess AuditStatus = "success"
	StatusFailure AuditStatus = "failure"
)

// AuditEvent represents a security-relevant event on the credential path.
// Details pass through the logger's redaction, so callers may attach request
// context freely; secret values still must not be added deliberately.
type AuditEvent struct {
	ID           string                 `json:"id"`
	Timestamp    time.Time              `json:"timestamp"`
	EventType    AuditEventType         `json:"event_type"`
	UserID       string                 `json:"user_id,omitempty"`
	IPAddress    string                 `json:"ip_address,omitempty"`
	Marketplace  string                 `json:"marketplace,omitempty"`
	Status       AuditStatus            `json:"status"`
	Details      map[string]interface{} `json:"details,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
}

// NewAuditEvent creates a new audit event with a generated ID and timestamp
func NewAuditEvent(eventType AuditEventType, status AuditStatus) *AuditEvent {
	return &AuditEvent{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Status:    status,
	}
}

// WithUser sets the user ID for the audit event
func (e *AuditEvent) WithUser(userID string) *AuditEvent {
	e.UserID = userID
	return e
}

// WithIP sets the client IP for the audit event
func (e *AuditEvent) WithIP(ip string) *AuditEvent {
	e.IPAddress = ip
	return e
}

// WithMarketplace sets the marketplace for the audit event
func (e *AuditEvent) WithMarketplace(marketplace string) *AuditEvent {
	e.Marketplace = marketplace
	return e
}

// WithDetail attaches a key-value detail to the audit event
func (e *AuditEvent) WithDetail(key string, value interface{}) *AuditEvent {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithError records the failure reason
func (e *AuditEvent) WithError(err error) *AuditEvent {
	if err != nil {
		e.ErrorMessage = err.Error()
	}
	return e
}

// Audit emits an audit event through the structured logger.
func (l *Logger) Audit(event *AuditEvent) {
	fields := map[string]interface{}{
		"audit_id":   event.ID,
		"event_type": string(event.EventType),
		"status":     string(event.Status),
	}
	if event.UserID != "" {
		fields["user_id"] = event.UserID
	}
	if event.IPAddress != "" {
		fields["ip_address"] = event.IPAddress
	}
	if event.Marketplace != "" {
		fields["marketplace"] = event.Marketplace
	}
	if event.ErrorMessage != "" {
		fields["error_message"] = event.ErrorMessage
	}
	for k, v := range Redact(event.Details) {
		fields["detail_"+k] = v
	}

	level := LevelInfo
	if event.Status == StatusFailure {
		level = LevelWarn
	}
	l.log(level, "audit event", "", fields)
}
