package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/upb/authflow/backend/models"
	"github.com/upb/authflow/backend/repositories"
	"go.uber.org/zap"
)

// AuthEventRepository implements repositories.AuthEventRepository
type AuthEventRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewAuthEventRepository creates a new auth event repository
func NewAuthEventRepository(db *DB, logger *zap.Logger) repositories.AuthEventRepository {
	return &AuthEventRepository{
		db:     db,
		logger: logger,
	}
}

// Insert inserts a new auth event
func (r *AuthEventRepository) Insert(ctx context.Context, event *models.AuthEvent) error {
	query := `
		INSERT INTO auth_events (id, user_id, email, action, reason, details, ip_address, user_agent, request_id, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	var details interface{}
	if len(event.Details) > 0 {
		details = []byte(event.Details)
	}

	_, err := GetExecutor(ctx, r.db).ExecContext(ctx, query,
		event.ID,
		event.UserID,
		nullString(event.Email),
		event.Action,
		nullString(event.Reason),
		details,
		nullString(event.IPAddress),
		nullString(event.UserAgent),
		nullString(event.RequestID),
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert auth event: %w", err)
	}
	return nil
}

// ListByUser returns the most recent events of a user
func (r *AuthEventRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.AuthEvent, error) {
	query := `
		SELECT id, user_id, COALESCE(email, ''), action, COALESCE(reason, ''), details,
		       COALESCE(ip_address, ''), COALESCE(user_agent, ''), COALESCE(request_id, ''), timestamp
		FROM auth_events
		WHERE user_id = $1
		ORDER BY timestamp DESC
		LIMIT $2
	`

	rows, err := GetExecutor(ctx, r.db).QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list auth events: %w", err)
	}
	defer rows.Close()

	var events []*models.AuthEvent
	for rows.Next() {
		event := &models.AuthEvent{}
		var uid uuid.NullUUID
		var details []byte
		if err := rows.Scan(
			&event.ID,
			&uid,
			&event.Email,
			&event.Action,
			&event.Reason,
			&details,
			&event.IPAddress,
			&event.UserAgent,
			&event.RequestID,
			&event.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan auth event: %w", err)
		}
		if uid.Valid {
			id := uid.UUID
			event.UserID = &id
		}
		event.Details = details
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate auth events: %w", err)
	}
	return events, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
