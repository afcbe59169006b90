package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"highway_monitor/internal/model"

	"github.com/jackc/pgx/v5"
)

// IssueRepository defines operations for highway issue data
type IssueRepository interface {
	// Create inserts the issue. It reports false, and fills issue with the stored row,
	// when an issue with the same request id already exists.
	Create(ctx context.Context, issue *model.HighwayIssue) (bool, error)
	FindByID(ctx context.Context, id string) (*model.HighwayIssue, error)
	FindByRequestID(ctx context.Context, requestID string) (*model.HighwayIssue, error)
	FindAll(ctx context.Context, filters model.IssueFilters) ([]model.HighwayIssue, error)
	UpdateStatus(ctx context.Context, id, status string) (*model.HighwayIssue, error)
}

type issueRepository struct {
	db DBTX
}

// NewIssueRepository creates a new IssueRepository
func NewIssueRepository(db DBTX) IssueRepository {
	return &issueRepository{db: db}
}

const issueColumns = `id, user_id, latitude, longitude, description, severity, status, image_url, request_id, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanIssue(row scanner, i *model.HighwayIssue) error {
	return row.Scan(
		&i.ID, &i.UserID, &i.Location.Lat, &i.Location.Lng, &i.Description, &i.Severity,
		&i.Status, &i.ImageURL, &i.RequestID, &i.CreatedAt, &i.UpdatedAt,
	)
}

func (r *issueRepository) Create(ctx context.Context, i *model.HighwayIssue) (bool, error) {
	sql := `INSERT INTO highway_issues (` + issueColumns + `)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
            ON CONFLICT (request_id) DO NOTHING
            RETURNING created_at, updated_at`
	err := r.db.QueryRow(ctx, sql,
		i.ID, i.UserID, i.Location.Lat, i.Location.Lng, i.Description, i.Severity,
		i.Status, i.ImageURL, i.RequestID, i.CreatedAt, i.UpdatedAt,
	).Scan(&i.CreatedAt, &i.UpdatedAt)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) || i.RequestID == nil {
		return false, fmt.Errorf("failed to create issue: %w", classify(err))
	}

	// Conflict on request_id: hand back the row that won
	existing, err := r.FindByRequestID(ctx, *i.RequestID)
	if err != nil {
		return false, err
	}
	if existing == nil {
		return false, fmt.Errorf("failed to create issue: request id %s conflicted but no row found", *i.RequestID)
	}
	*i = *existing
	return false, nil
}

// FindByID retrieves an issue by its ID. Returns nil, nil when absent.
func (r *issueRepository) FindByID(ctx context.Context, id string) (*model.HighwayIssue, error) {
	return r.findOne(ctx, `SELECT `+issueColumns+` FROM highway_issues WHERE id = $1`, id)
}

// FindByRequestID retrieves an issue by its idempotency key. Returns nil, nil when absent.
func (r *issueRepository) FindByRequestID(ctx context.Context, requestID string) (*model.HighwayIssue, error) {
	return r.findOne(ctx, `SELECT `+issueColumns+` FROM highway_issues WHERE request_id = $1`, requestID)
}

func (r *issueRepository) findOne(ctx context.Context, sql string, arg any) (*model.HighwayIssue, error) {
	i := &model.HighwayIssue{}
	if err := scanIssue(r.db.QueryRow(ctx, sql, arg), i); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find issue: %w", classify(err))
	}
	return i, nil
}

// FindAll lists issues newest first
func (r *issueRepository) FindAll(ctx context.Context, filters model.IssueFilters) ([]model.HighwayIssue, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT ` + issueColumns + ` FROM highway_issues WHERE 1=1`)
	args := []interface{}{}
	argCount := 1

	if filters.Status != nil && *filters.Status != "" {
		queryBuilder.WriteString(fmt.Sprintf(" AND status = $%d", argCount))
		args = append(args, *filters.Status)
		argCount++
	}
	if filters.UserID != nil && *filters.UserID != "" {
		queryBuilder.WriteString(fmt.Sprintf(" AND user_id = $%d", argCount))
		args = append(args, *filters.UserID)
	}

	queryBuilder.WriteString(" ORDER BY created_at DESC, id DESC")

	rows, err := r.db.Query(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query issues: %w", classify(err))
	}
	defer rows.Close()

	issues := []model.HighwayIssue{}
	for rows.Next() {
		var i model.HighwayIssue
		if err := scanIssue(rows, &i); err != nil {
			return nil, fmt.Errorf("failed to scan issue row: %w", err)
		}
		issues = append(issues, i)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating issue rows: %w", classify(err))
	}
	return issues, nil
}

// UpdateStatus sets the status of an issue. Returns nil, nil when no such issue exists.
func (r *issueRepository) UpdateStatus(ctx context.Context, id, status string) (*model.HighwayIssue, error) {
	sql := `UPDATE highway_issues SET status = $1, updated_at = NOW() WHERE id = $2
            RETURNING ` + issueColumns
	i := &model.HighwayIssue{}
	if err := scanIssue(r.db.QueryRow(ctx, sql, status, id), i); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update issue status: %w", classify(err))
	}
	return i, nil
}
