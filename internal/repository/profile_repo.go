package repository

import (
	"context"
	"errors"
	"fmt"

	"highway_monitor/internal/model"

	"github.com/jackc/pgx/v5"
)

// ProfileRepository defines operations for user profile data
type ProfileRepository interface {
	FindByID(ctx context.Context, id string) (*model.UserProfile, error)
	UpdateRole(ctx context.Context, id, role string) (*model.UserProfile, error)
	Create(ctx context.Context, profile *model.UserProfile) error
}

type profileRepository struct {
	db DBTX
}

// NewProfileRepository creates a new ProfileRepository
func NewProfileRepository(db DBTX) ProfileRepository {
	return &profileRepository{db: db}
}

const profileColumns = `id, email, role, created_at, updated_at`

func scanProfile(row pgx.Row) (*model.UserProfile, error) {
	p := &model.UserProfile{}
	var role *string
	if err := row.Scan(&p.ID, &p.Email, &role, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if role != nil {
		p.Role = *role
	}
	return p, nil
}

// FindByID retrieves a profile by identity id. Returns nil, nil when absent.
func (r *profileRepository) FindByID(ctx context.Context, id string) (*model.UserProfile, error) {
	sql := `SELECT ` + profileColumns + ` FROM user_profiles WHERE id = $1`
	p, err := scanProfile(r.db.QueryRow(ctx, sql, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find profile by ID: %w", classify(err))
	}
	return p, nil
}

// UpdateRole sets the role of an existing profile. Returns nil, nil when no profile row exists.
func (r *profileRepository) UpdateRole(ctx context.Context, id, role string) (*model.UserProfile, error) {
	sql := `UPDATE user_profiles SET role = $1, updated_at = NOW() WHERE id = $2
            RETURNING ` + profileColumns
	p, err := scanProfile(r.db.QueryRow(ctx, sql, role, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update profile role: %w", classify(err))
	}
	return p, nil
}

// Create inserts a profile. A concurrent insert of the same id collapses into a role update.
func (r *profileRepository) Create(ctx context.Context, p *model.UserProfile) error {
	sql := `INSERT INTO user_profiles (id, email, role, created_at, updated_at)
            VALUES ($1, $2, $3, $4, $5)
            ON CONFLICT (id) DO UPDATE SET role = EXCLUDED.role, updated_at = EXCLUDED.updated_at
            RETURNING created_at, updated_at`
	var role *string
	if p.Role != "" {
		role = &p.Role
	}
	err := r.db.QueryRow(ctx, sql, p.ID, p.Email, role, p.CreatedAt, p.UpdatedAt).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", classify(err))
	}
	return nil
}
