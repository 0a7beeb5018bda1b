package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/okulcms/be-content-moderation/internal/errs"
	"github.com/okulcms/be-content-moderation/internal/logger"
	"github.com/okulcms/be-content-moderation/internal/repository"
)

// unmoderatedTypes is the CMS content that applies directly, with no
// approval step: homepage plumbing and site-wide settings.
var unmoderatedTypes = map[string]struct{}{
	"slider":   {},
	"banner":   {},
	"section":  {},
	"settings": {},
	"page":     {},
}

// ContentService is the thin generic CRUD layer for unmoderated content,
// plus reads for everything. Mutations on moderated entity types are
// refused and must go through ModerationService.Propose.
type ContentService struct {
	content ContentStore
	log     *logger.Logger
}

// NewContentService creates a new ContentService.
func NewContentService(content ContentStore, log *logger.Logger) *ContentService {
	return &ContentService{content: content, log: log}
}

// Get returns one entity of any type.
func (s *ContentService) Get(ctx context.Context, entityType, id string) (*repository.ContentRecord, error) {
	if err := validEntityType(entityType); err != nil {
		return nil, err
	}
	return s.content.Get(ctx, entityType, id)
}

// List returns all entities of a type, newest-first.
func (s *ContentService) List(ctx context.Context, entityType string) ([]*repository.ContentRecord, error) {
	if err := validEntityType(entityType); err != nil {
		return nil, err
	}
	return s.content.List(ctx, entityType)
}

// Create inserts an unmoderated entity directly.
func (s *ContentService) Create(ctx context.Context, entityType string, payload json.RawMessage) (*repository.ContentRecord, error) {
	if err := s.assertUnmoderated(entityType); err != nil {
		return nil, err
	}
	if len(payload) == 0 {
		return nil, errs.InvalidInput("payload", "required")
	}

	rec, err := s.content.Insert(ctx, entityType, payload)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("entity_type", entityType).
		Str("entity_id", rec.ID).
		Msg("Content entity created")
	return rec, nil
}

// Update merge-patches an unmoderated entity directly.
func (s *ContentService) Update(ctx context.Context, entityType, id string, partial json.RawMessage) (*repository.ContentRecord, error) {
	if err := s.assertUnmoderated(entityType); err != nil {
		return nil, err
	}
	if len(partial) == 0 {
		return nil, errs.InvalidInput("payload", "required")
	}

	rec, err := s.content.Update(ctx, entityType, id, partial)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("entity_type", entityType).
		Str("entity_id", id).
		Msg("Content entity updated")
	return rec, nil
}

// Delete removes an unmoderated entity directly.
func (s *ContentService) Delete(ctx context.Context, entityType, id string) error {
	if err := s.assertUnmoderated(entityType); err != nil {
		return err
	}

	if err := s.content.Remove(ctx, entityType, id); err != nil {
		return err
	}

	s.log.Info().
		Str("entity_type", entityType).
		Str("entity_id", id).
		Msg("Content entity deleted")
	return nil
}

func (s *ContentService) assertUnmoderated(entityType string) error {
	if repository.IsModerated(entityType) {
		return errs.InvalidInput("entity_type", fmt.Sprintf(
			"%s changes must be submitted through the change-request workflow", entityType))
	}
	if _, ok := unmoderatedTypes[entityType]; !ok {
		return errs.InvalidInput("entity_type", fmt.Sprintf("unknown entity type %q", entityType))
	}
	return nil
}

func validEntityType(entityType string) error {
	if repository.IsModerated(entityType) {
		return nil
	}
	if _, ok := unmoderatedTypes[entityType]; ok {
		return nil
	}
	return errs.InvalidInput("entity_type", fmt.Sprintf("unknown entity type %q", entityType))
}
