package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"highway_monitor/internal/model"
	"highway_monitor/internal/repository"
)

// ProfileService reads and writes the role attached to an identity
type ProfileService interface {
	// GetProfile returns ErrProfileNotFound when the identity has not onboarded yet.
	// email is only used when a default profile has to be synthesized.
	GetProfile(ctx context.Context, identityID, email string) (*model.UserProfile, error)
	// SetRole updates the role, creating the profile when it does not exist
	SetRole(ctx context.Context, identityID, email, role string) (*model.UserProfile, error)
}

type profileService struct {
	repo         repository.ProfileRepository
	schemaPolicy SchemaPolicy
}

// NewProfileService creates a new ProfileService
func NewProfileService(repo repository.ProfileRepository, schemaPolicy SchemaPolicy) ProfileService {
	return &profileService{repo: repo, schemaPolicy: schemaPolicy}
}

func (s *profileService) GetProfile(ctx context.Context, identityID, email string) (*model.UserProfile, error) {
	profile, err := s.repo.FindByID(ctx, identityID)
	if err != nil {
		if errors.Is(err, repository.ErrSchemaMissing) && s.schemaPolicy == SchemaDefault {
			log.Printf("Profiles table missing, using default profile for %s: %v", identityID, err)
			now := time.Now()
			return &model.UserProfile{ID: identityID, Email: email, Role: model.RoleUser, CreatedAt: now, UpdatedAt: now}, nil
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	if profile == nil {
		return nil, ErrProfileNotFound
	}
	return profile, nil
}

func (s *profileService) SetRole(ctx context.Context, identityID, email, role string) (*model.UserProfile, error) {
	if !model.IsValidRole(role) {
		return nil, ErrInvalidRole
	}

	profile, err := s.repo.UpdateRole(ctx, identityID, role)
	if err != nil {
		return nil, fmt.Errorf("failed to update role: %w", err)
	}
	if profile != nil {
		return profile, nil
	}

	now := time.Now()
	profile = &model.UserProfile{ID: identityID, Email: email, Role: role, CreatedAt: now, UpdatedAt: now}
	if err := s.repo.Create(ctx, profile); err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}
	return profile, nil
}
