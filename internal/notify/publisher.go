package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"highway_monitor/internal/model"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	amqp "github.com/rabbitmq/amqp091-go"
)

var issueEventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "issue_events_published_total",
	Help: "Issue events handed to the message broker, by result",
}, []string{"result"})

// IssueEventsQueue receives one message per issue creation or status change
const IssueEventsQueue = "highway_issue_events"

const (
	EventIssueReported      = "issue.reported"
	EventIssuePinned        = "issue.pinned"
	EventIssueStatusChanged = "issue.status_changed"
)

// IssueEvent tells downstream notifiers which role should look at an issue
type IssueEvent struct {
	Type       string     `json:"type"`
	IssueID    string     `json:"issue_id"`
	ReporterID string     `json:"reporter_id"`
	Severity   string     `json:"severity"`
	Status     string     `json:"status"`
	FromStatus string     `json:"from_status,omitempty"`
	Audience   string     `json:"audience"` // Role expected to act next
	Location   [2]float64 `json:"location"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// EventForIssue derives the event for an issue. from is empty for a newly created issue.
func EventForIssue(issue *model.HighwayIssue, from string) IssueEvent {
	e := IssueEvent{
		IssueID:    issue.ID,
		ReporterID: issue.UserID,
		Severity:   issue.Severity,
		Status:     issue.Status,
		FromStatus: from,
		Audience:   audienceFor(issue.Status),
		Location:   [2]float64{issue.Location.Lat, issue.Location.Lng},
		OccurredAt: time.Now().UTC(),
	}
	switch {
	case from != "":
		e.Type = EventIssueStatusChanged
	case issue.Status == model.StatusReported:
		e.Type = EventIssueReported
	default:
		e.Type = EventIssuePinned
	}
	return e
}

// Reported issues wait on inspectors, inspected ones on engineers, resolved ones go back to the reporter
func audienceFor(status string) string {
	switch status {
	case model.StatusReported:
		return model.RoleInspector
	case model.StatusInspected:
		return model.RoleEngineer
	default:
		return model.RoleUser
	}
}

type amqpChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher publishes issue events to RabbitMQ
type Publisher struct {
	conn    *amqp.Connection
	channel amqpChannel
}

// Dial connects to RabbitMQ and declares the issue events queue
func Dial(url string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open RabbitMQ channel: %w", err)
	}
	p, err := newPublisher(ch)
	if err != nil {
		conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

func newPublisher(ch amqpChannel) (*Publisher, error) {
	_, err := ch.QueueDeclare(
		IssueEventsQueue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}
	return &Publisher{channel: ch}, nil
}

// PublishIssueEvent publishes e as a persistent JSON message
func (p *Publisher) PublishIssueEvent(ctx context.Context, e IssueEvent) error {
	body, err := json.Marshal(e)
	if err != nil {
		issueEventsPublished.WithLabelValues("failed").Inc()
		return fmt.Errorf("failed to marshal issue event: %w", err)
	}

	err = p.channel.PublishWithContext(ctx,
		"",               // exchange
		IssueEventsQueue, // routing key
		false,            // mandatory
		false,            // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    time.Now(),
			Type:         e.Type,
		},
	)
	if err != nil {
		issueEventsPublished.WithLabelValues("failed").Inc()
		return fmt.Errorf("failed to publish issue event: %w", err)
	}
	issueEventsPublished.WithLabelValues("ok").Inc()

	slog.Info("Issue event published", "queue", IssueEventsQueue, "type", e.Type, "issue_id", e.IssueID, "audience", e.Audience)
	return nil
}

func (p *Publisher) Close() error {
	err := p.channel.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Noop drops every event. Used when no broker is configured.
type Noop struct{}

func (Noop) PublishIssueEvent(context.Context, IssueEvent) error { return nil }
