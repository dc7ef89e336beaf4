package models

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// AuthAction represents the kind of authentication event being recorded
type AuthAction string

const (
	AuthActionRegister        AuthAction = "register"
	AuthActionLoginSucceeded  AuthAction = "login_succeeded"
	AuthActionLoginFailed     AuthAction = "login_failed"
	AuthActionTokenRefreshed  AuthAction = "token_refreshed"
	AuthActionRefreshRejected AuthAction = "refresh_rejected"
	AuthActionLogout          AuthAction = "logout"
	AuthActionLogoutAll       AuthAction = "logout_all"
	AuthActionNameChanged     AuthAction = "name_changed"
	AuthActionTokensSwept     AuthAction = "tokens_swept"
)

// AuthEvent is one entry in the authentication audit trail
type AuthEvent struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	UserID    *uuid.UUID      `json:"userId,omitempty" db:"user_id"`
	Email     string          `json:"email,omitempty" db:"email"`
	Action    AuthAction      `json:"action" db:"action"`
	Reason    string          `json:"reason,omitempty" db:"reason"` // internal only, never sent to clients
	Details   json.RawMessage `json:"details,omitempty" db:"details"`
	IPAddress string          `json:"ipAddress,omitempty" db:"ip_address"`
	UserAgent string          `json:"userAgent,omitempty" db:"user_agent"`
	RequestID string          `json:"requestId,omitempty" db:"request_id"`
	Timestamp time.Time       `json:"timestamp" db:"timestamp"`
}

// TableName returns the table name for the AuthEvent model
func (AuthEvent) TableName() string {
	return "auth_events"
}

// NewAuthEvent creates a new AuthEvent stamped with the current time
func NewAuthEvent(action AuthAction) *AuthEvent {
	return &AuthEvent{
		ID:        uuid.New(),
		Action:    action,
		Timestamp: time.Now().UTC(),
	}
}

// WithUser sets the acting user
func (e *AuthEvent) WithUser(userID uuid.UUID) *AuthEvent {
	e.UserID = &userID
	return e
}

// WithEmail sets the email the event refers to
func (e *AuthEvent) WithEmail(email string) *AuthEvent {
	e.Email = email
	return e
}

// WithReason records why an operation was rejected
func (e *AuthEvent) WithReason(reason string) *AuthEvent {
	e.Reason = reason
	return e
}

// WithRequest sets request metadata
func (e *AuthEvent) WithRequest(requestID, ipAddress, userAgent string) *AuthEvent {
	e.RequestID = requestID
	e.IPAddress = ipAddress
	e.UserAgent = userAgent
	return e
}

// WithDetails sets additional details as JSON
func (e *AuthEvent) WithDetails(details interface{}) error {
	data, err := json.Marshal(details)
	if err != nil {
		return err
	}
	e.Details = data
	return nil
}

// WithCount sets details to a single {"key":n} object
func (e *AuthEvent) WithCount(key string, n int64) *AuthEvent {
	name, _ := json.Marshal(key)
	e.Details = json.RawMessage("{" + string(name) + ":" + strconv.FormatInt(n, 10) + "}")
	return e
}
