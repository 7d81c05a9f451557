package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/theatre-api/internal/model"
	"github.com/jwalitptl/theatre-api/internal/repository"
)

type Service struct {
	repo repository.AuditRepository
}

func NewService(repo repository.AuditRepository) *Service {
	return &Service{repo: repo}
}

type LogOptions struct {
	Changes interface{}
	Reason  string
}

// Log creates an audit log entry. Called inside a transaction it commits
// or rolls back with the change it records.
func (s *Service) Log(ctx context.Context, actor model.Actor, action, entityType string, entityID uuid.UUID, opts *LogOptions) error {
	log := &model.AuditLog{
		UserID:     actor.UserID,
		FacilityID: actor.FacilityID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
	}

	if opts != nil {
		if opts.Changes != nil {
			changes, err := json.Marshal(opts.Changes)
			if err != nil {
				return fmt.Errorf("failed to marshal audit changes: %w", err)
			}
			log.Changes = changes
		}
		if opts.Reason != "" {
			reason := opts.Reason
			log.Reason = &reason
		}
	}

	if err := s.repo.Create(ctx, log); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

func (s *Service) List(ctx context.Context, filter model.AuditFilter) ([]*model.AuditLog, error) {
	return s.repo.List(ctx, filter)
}
