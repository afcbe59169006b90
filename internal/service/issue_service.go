package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"highway_monitor/internal/model"
	"highway_monitor/internal/notify"
	"highway_monitor/internal/realtime"
	"highway_monitor/internal/repository"
	"highway_monitor/internal/storage"

	"github.com/google/uuid"
)

const (
	defaultReportDescription = "Issue reported by user"
	defaultPinDescription    = "Inspection pin placed by inspector"
)

// FileStore persists uploaded media and returns a public URL for it
type FileStore interface {
	Put(ctx context.Context, objectPath, contentType string, r io.Reader, size int64) (string, error)
}

// IssueNotifier tells the next responsible role about an issue
type IssueNotifier interface {
	PublishIssueEvent(ctx context.Context, e notify.IssueEvent) error
}

// ChangeSubscriber hands out realtime subscriptions
type ChangeSubscriber interface {
	Subscribe(f realtime.Filter) *realtime.Subscription
}

// IssueService defines operations on highway issues
type IssueService interface {
	ListIssues(ctx context.Context, filters model.IssueFilters) ([]model.HighwayIssue, error)
	GetIssue(ctx context.Context, id string) (*model.HighwayIssue, error)
	CreateIssue(ctx context.Context, in model.NewIssue) (*model.HighwayIssue, error)
	// ReportIssue uploads the photo, then files a reported issue pointing at it
	ReportIssue(ctx context.Context, userID string, req model.ReportIssueRequest, file *multipart.FileHeader) (*model.HighwayIssue, error)
	// PlacePin files an already-inspected issue at an inspector's chosen point
	PlacePin(ctx context.Context, userID string, req model.CreatePinRequest) (*model.HighwayIssue, error)
	UpdateStatus(ctx context.Context, id, status string) (*model.HighwayIssue, error)
	UploadFile(ctx context.Context, file *multipart.FileHeader, objectPath string) (string, error)
	Subscribe(filter realtime.Filter) *realtime.Subscription
}

// IssueServiceDeps groups the collaborators of IssueService
type IssueServiceDeps struct {
	Repo             repository.IssueRepository
	Files            FileStore
	Changes          ChangePublisher
	Subscriber       ChangeSubscriber
	Notifier         IssueNotifier
	SchemaPolicy     SchemaPolicy
	TransitionPolicy TransitionPolicy
}

type issueService struct {
	IssueServiceDeps
	now func() time.Time
}

// NewIssueService creates a new IssueService
func NewIssueService(deps IssueServiceDeps) IssueService {
	if deps.Notifier == nil {
		deps.Notifier = notify.Noop{}
	}
	if deps.TransitionPolicy == "" {
		deps.TransitionPolicy = TransitionStrict
	}
	if deps.SchemaPolicy == "" {
		deps.SchemaPolicy = SchemaDefault
	}
	return &issueService{IssueServiceDeps: deps, now: time.Now}
}

func (s *issueService) ListIssues(ctx context.Context, filters model.IssueFilters) ([]model.HighwayIssue, error) {
	issues, err := s.Repo.FindAll(ctx, filters)
	if err != nil {
		if errors.Is(err, repository.ErrSchemaMissing) && s.SchemaPolicy == SchemaDefault {
			log.Printf("Issues table missing, returning empty list: %v", err)
			return []model.HighwayIssue{}, nil
		}
		return nil, fmt.Errorf("failed to list issues: %w", err)
	}
	if issues == nil {
		issues = []model.HighwayIssue{}
	}
	return issues, nil
}

func (s *issueService) GetIssue(ctx context.Context, id string) (*model.HighwayIssue, error) {
	issue, err := s.Repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get issue: %w", err)
	}
	if issue == nil {
		return nil, ErrIssueNotFound
	}
	return issue, nil
}

func validateNewIssue(in model.NewIssue) error {
	switch {
	case in.UserID == "":
		return fmt.Errorf("%w: reporter is required", ErrInvalidIssue)
	case !in.Location.Valid():
		return fmt.Errorf("%w: %v", ErrInvalidIssue, ErrInvalidCoordinates)
	case strings.TrimSpace(in.Description) == "":
		return fmt.Errorf("%w: description is required", ErrInvalidIssue)
	case !model.IsValidSeverity(in.Severity):
		return fmt.Errorf("%w: unknown severity %q", ErrInvalidIssue, in.Severity)
	case !model.IsValidStatus(in.Status):
		return fmt.Errorf("%w: unknown status %q", ErrInvalidIssue, in.Status)
	}
	return nil
}

func (s *issueService) CreateIssue(ctx context.Context, in model.NewIssue) (*model.HighwayIssue, error) {
	if in.RequestID != nil && *in.RequestID == "" {
		in.RequestID = nil
	}
	if err := validateNewIssue(in); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	issue := &model.HighwayIssue{
		ID:          uuid.NewString(),
		UserID:      in.UserID,
		Location:    in.Location,
		Description: strings.TrimSpace(in.Description),
		Severity:    in.Severity,
		Status:      in.Status,
		ImageURL:    in.ImageURL,
		RequestID:   in.RequestID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	created, err := s.Repo.Create(ctx, issue)
	if err != nil {
		return nil, fmt.Errorf("failed to create issue: %w", err)
	}
	if !created {
		// Retried submission; the first one already announced itself
		return issue, nil
	}

	issuesCreatedTotal.WithLabelValues(issue.Status).Inc()
	s.announce(ctx, realtime.EventInsert, issue, nil)
	return issue, nil
}

func (s *issueService) ReportIssue(ctx context.Context, userID string, req model.ReportIssueRequest, file *multipart.FileHeader) (*model.HighwayIssue, error) {
	if req.Lat == nil || req.Lng == nil {
		return nil, fmt.Errorf("%w: location is required", ErrInvalidCoordinates)
	}
	description := strings.TrimSpace(req.Description)
	if description == "" {
		description = defaultReportDescription
	}
	in := model.NewIssue{
		UserID:      userID,
		Location:    model.LatLng{Lat: *req.Lat, Lng: *req.Lng},
		Description: description,
		Severity:    req.Severity,
		Status:      model.StatusReported,
		RequestID:   req.RequestID,
	}
	if err := validateNewIssue(in); err != nil {
		return nil, err
	}
	if file == nil {
		return nil, fmt.Errorf("%w: image is required", ErrInvalidIssue)
	}

	if req.RequestID != nil && *req.RequestID != "" {
		existing, err := s.Repo.FindByRequestID(ctx, *req.RequestID)
		if err != nil {
			return nil, fmt.Errorf("failed to check request id: %w", err)
		}
		if existing != nil {
			return existing, nil
		}
	}

	ext := extensionFor(file.Filename)
	objectPath := fmt.Sprintf("%s/%d.%s", userID, s.now().UnixMilli(), ext)
	imageURL, err := s.UploadFile(ctx, file, objectPath)
	if err != nil {
		return nil, err
	}
	in.ImageURL = &imageURL

	return s.CreateIssue(ctx, in)
}

func (s *issueService) PlacePin(ctx context.Context, userID string, req model.CreatePinRequest) (*model.HighwayIssue, error) {
	if req.Location == nil {
		return nil, fmt.Errorf("%w: location is required", ErrInvalidIssue)
	}
	description := defaultPinDescription
	if req.Description != nil && strings.TrimSpace(*req.Description) != "" {
		description = *req.Description
	}
	return s.CreateIssue(ctx, model.NewIssue{
		UserID:      userID,
		Location:    *req.Location,
		Description: description,
		Severity:    req.Severity,
		Status:      model.StatusInspected,
		RequestID:   req.RequestID,
	})
}

func (s *issueService) UpdateStatus(ctx context.Context, id, status string) (*model.HighwayIssue, error) {
	if !model.IsValidStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidIssue, status)
	}

	current, err := s.GetIssue(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(current.Status, status, s.TransitionPolicy) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, status)
	}
	if current.Status == status {
		return current, nil
	}

	updated, err := s.Repo.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, fmt.Errorf("failed to update issue status: %w", err)
	}
	if updated == nil {
		return nil, ErrIssueNotFound
	}

	issueTransitionsTotal.WithLabelValues(current.Status, updated.Status).Inc()
	s.announce(ctx, realtime.EventUpdate, updated, current)
	return updated, nil
}

// announce pushes the change to live dashboards and notifies the next role.
// Failures are logged; the write already succeeded.
func (s *issueService) announce(ctx context.Context, event string, issue, old *model.HighwayIssue) {
	if s.Changes != nil {
		var oldRecord any
		if old != nil {
			oldRecord = old
		}
		c, err := realtime.NewChange(realtime.TableHighwayIssues, event, issue, oldRecord)
		if err == nil {
			err = s.Changes.Publish(ctx, c)
		}
		if err != nil {
			log.Printf("Error publishing %s change for issue %s: %v", event, issue.ID, err)
		}
	}

	from := ""
	if old != nil {
		from = old.Status
	}
	if err := s.Notifier.PublishIssueEvent(ctx, notify.EventForIssue(issue, from)); err != nil {
		log.Printf("Error notifying about issue %s: %v", issue.ID, err)
	}
}

func (s *issueService) UploadFile(ctx context.Context, fileHeader *multipart.FileHeader, objectPath string) (string, error) {
	if fileHeader.Size > MaxUploadSize {
		return "", ErrFileSizeExceeded
	}
	if _, err := storage.CleanObjectPath(objectPath); err != nil {
		return "", err
	}

	src, err := fileHeader.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer src.Close()

	buffer := make([]byte, 512)
	n, err := src.Read(buffer)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read uploaded file: %w", err)
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("failed to process uploaded file: %w", err)
	}

	contentType := http.DetectContentType(buffer[:n])
	if !strings.HasPrefix(contentType, "image/") && !strings.HasPrefix(contentType, "video/") {
		return "", ErrInvalidFileFormat
	}

	url, err := s.Files.Put(ctx, objectPath, contentType, src, fileHeader.Size)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	return url, nil
}

func (s *issueService) Subscribe(filter realtime.Filter) *realtime.Subscription {
	return s.Subscriber.Subscribe(filter)
}

func extensionFor(filename string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if ext == "" {
		return "jpg"
	}
	return ext
}
