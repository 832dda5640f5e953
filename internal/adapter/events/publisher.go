package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"trendscope/internal/domain/trend"
)

// ReportCompleted is the payload published when a report is ready
type ReportCompleted struct {
	Type        string        `json:"type"`
	ReportID    string        `json:"report_id"`
	Geo         string        `json:"geo"`
	Timeframe   string        `json:"timeframe"`
	Keywords    []string      `json:"keywords"`
	Missing     []string      `json:"missing"`
	GeneratedAt time.Time     `json:"generated_at"`
	Stats       []KeywordStat `json:"stats"`
}

// KeywordStat is one keyword entry of ReportCompleted
type KeywordStat struct {
	Keyword   string   `json:"keyword"`
	Mean      *float64 `json:"mean"`
	Slope     float64  `json:"slope"`
	Direction string   `json:"direction"`
}

// NewReportCompleted builds the event payload of a report
func NewReportCompleted(r *trend.Report) ReportCompleted {
	ev := ReportCompleted{
		Type:        "report.completed",
		ReportID:    r.ID,
		Geo:         r.Query.Geo,
		Timeframe:   r.Query.Timeframe,
		Keywords:    r.Keywords,
		Missing:     r.Missing,
		GeneratedAt: r.GeneratedAt,
		Stats:       make([]KeywordStat, 0, len(r.Stats)),
	}
	if ev.Missing == nil {
		ev.Missing = []string{}
	}

	for _, st := range r.Stats {
		sm := trend.NewStatSummary(st)
		ev.Stats = append(ev.Stats, KeywordStat{
			Keyword:   sm.Keyword,
			Mean:      sm.Mean,
			Slope:     sm.Slope,
			Direction: string(sm.Direction),
		})
	}

	return ev
}

// NATSPublisher publishes report events on a NATS connection
type NATSPublisher struct {
	conn  *nats.Conn
	topic string
}

// NewNATSPublisher creates a publisher sending to "<topic>.completed"
func NewNATSPublisher(conn *nats.Conn, topic string) *NATSPublisher {
	return &NATSPublisher{
		conn:  conn,
		topic: topic,
	}
}

// Subject returns the subject completed reports are published on
func (p *NATSPublisher) Subject() string {
	return CompletedSubject(p.topic)
}

// PublishReport publishes a report completed event
func (p *NATSPublisher) PublishReport(ctx context.Context, r *trend.Report) error {
	data, err := json.Marshal(NewReportCompleted(r))
	if err != nil {
		return fmt.Errorf("error marshaling report event: %w", err)
	}

	if err := p.conn.Publish(p.Subject(), data); err != nil {
		return fmt.Errorf("error publishing report event: %w", err)
	}
	return nil
}

// CompletedSubject returns the subject for completed reports under topic
func CompletedSubject(topic string) string {
	return fmt.Sprintf("%s.completed", topic)
}

// NopPublisher discards events
type NopPublisher struct{}

// PublishReport does nothing
func (NopPublisher) PublishReport(context.Context, *trend.Report) error {
	return nil
}
