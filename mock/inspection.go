package mock

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/fieldsync"
)

// Compile-time interface check
var _ fieldsync.InspectionStore = (*InspectionStore)(nil)

// InspectionStore is a mock implementation of fieldsync.InspectionStore.
type InspectionStore struct {
	PutFn               func(ctx context.Context, record *fieldsync.InspectionRecord) error
	FindByIDFn          func(ctx context.Context, id uuid.UUID) (*fieldsync.InspectionRecord, error)
	FindByPropertyFn    func(ctx context.Context, propertyID string) ([]*fieldsync.InspectionRecord, error)
	FindByStatusFn      func(ctx context.Context, status fieldsync.InspectionStatus) ([]*fieldsync.InspectionRecord, error)
	FindModifiedSinceFn func(ctx context.Context, t time.Time) ([]*fieldsync.InspectionRecord, error)
	DeleteFn            func(ctx context.Context, id uuid.UUID) error
}

func (s *InspectionStore) Put(ctx context.Context, record *fieldsync.InspectionRecord) error {
	if s.PutFn != nil {
		return s.PutFn(ctx, record)
	}
	return nil
}

func (s *InspectionStore) FindByID(ctx context.Context, id uuid.UUID) (*fieldsync.InspectionRecord, error) {
	if s.FindByIDFn != nil {
		return s.FindByIDFn(ctx, id)
	}
	return nil, fieldsync.NotFound("inspection not found")
}

func (s *InspectionStore) FindByProperty(ctx context.Context, propertyID string) ([]*fieldsync.InspectionRecord, error) {
	if s.FindByPropertyFn != nil {
		return s.FindByPropertyFn(ctx, propertyID)
	}
	return []*fieldsync.InspectionRecord{}, nil
}

func (s *InspectionStore) FindByStatus(ctx context.Context, status fieldsync.InspectionStatus) ([]*fieldsync.InspectionRecord, error) {
	if s.FindByStatusFn != nil {
		return s.FindByStatusFn(ctx, status)
	}
	return []*fieldsync.InspectionRecord{}, nil
}

func (s *InspectionStore) FindModifiedSince(ctx context.Context, t time.Time) ([]*fieldsync.InspectionRecord, error) {
	if s.FindModifiedSinceFn != nil {
		return s.FindModifiedSinceFn(ctx, t)
	}
	return []*fieldsync.InspectionRecord{}, nil
}

func (s *InspectionStore) Delete(ctx context.Context, id uuid.UUID) error {
	if s.DeleteFn != nil {
		return s.DeleteFn(ctx, id)
	}
	return fieldsync.NotFound("inspection not found")
}

// Compile-time interface check
var _ fieldsync.TemplateProvider = (*TemplateProvider)(nil)

// TemplateProvider is a mock implementation of fieldsync.TemplateProvider.
type TemplateProvider struct {
	TemplateFn func(ctx context.Context, propertyID string) ([]fieldsync.InspectionItem, error)
}

func (p *TemplateProvider) Template(ctx context.Context, propertyID string) ([]fieldsync.InspectionItem, error) {
	if p.TemplateFn != nil {
		return p.TemplateFn(ctx, propertyID)
	}
	return []fieldsync.InspectionItem{}, nil
}

// Compile-time interface check
var _ fieldsync.IdentityResolver = (*IdentityResolver)(nil)

// IdentityResolver is a mock implementation of fieldsync.IdentityResolver.
type IdentityResolver struct {
	PropertyNameFn func(ctx context.Context, propertyID string) (string, error)
	InspectorIDFn  func(ctx context.Context) (string, error)
}

func (r *IdentityResolver) PropertyName(ctx context.Context, propertyID string) (string, error) {
	if r.PropertyNameFn != nil {
		return r.PropertyNameFn(ctx, propertyID)
	}
	return propertyID, nil
}

func (r *IdentityResolver) InspectorID(ctx context.Context) (string, error) {
	if r.InspectorIDFn != nil {
		return r.InspectorIDFn(ctx)
	}
	return "inspector-1", nil
}
