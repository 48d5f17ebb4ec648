package store

import (
	"context"

	"coinflip/internal/models"
)

type AuditStore struct {
	db DB
}

func NewAuditStore(db DB) *AuditStore {
	return &AuditStore{db: db}
}

// Log records an action; an empty actorID marks a system action.
func (s *AuditStore) Log(ctx context.Context, tx Execer, actorID, action, entityType, entityID, data string) error {
	if data == "" {
		data = "{}"
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_user_id, action, entity_type, entity_id, data)
		VALUES (gen_random_uuid()::text, $1, $2, $3, $4, $5)
	`, nullableString(actorID), action, entityType, entityID, data)
	return err
}

func (s *AuditStore) List(ctx context.Context, entityType string, limit, offset int) ([]models.AuditLog, error) {
	query := `
		SELECT id, actor_user_id, action, entity_type, entity_id, data, created_at
		FROM audit_logs
	`
	args := []any{limit, offset}
	if entityType != "" {
		query += " WHERE entity_type = $3"
		args = append(args, entityType)
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2"
	var rows []models.AuditLog
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return rows, nil
}
