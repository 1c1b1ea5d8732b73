package audit

import (
	"context"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
)

// DefaultPageSize bounds Query results when the filter does not set one.
const DefaultPageSize = 20

// alertWindow is how far back Alerts looks.
const alertWindow = 7 * 24 * time.Hour

// Filter narrows a Query. Zero fields match everything; From/To default to
// the full retention window.
type Filter struct {
	ActorID  string
	Severity Severity
	Action   Action
	From     time.Time
	To       time.Time
	Page     int
	PerPage  int
}

// Aggregates is the Metrics result for one period.
type Aggregates struct {
	Period           time.Duration
	TotalEvents      int
	TotalLogins      int
	SuccessfulLogins int
	FailedLogins     int
	SuccessRate      float64 // percent of login attempts that succeeded
	BySeverity       map[Severity]int
	TopFailedIPs     []IPCount
}

// IPCount pairs a source IP with its failed-login count.
type IPCount struct {
	IP    string
	Count int
}

// Pipeline is the write and read surface over the audit store. A failed
// write is reported on the fallback logger and returned, but callers treat
// audit as best-effort-durable: the primary operation never rolls back.
type Pipeline struct {
	store    *Store
	mirror   Sink
	fallback *log.Logger
}

// NewPipeline wires a Pipeline over store. mirror may be nil; fallback nil
// means the process-default logger.
func NewPipeline(store *Store, mirror Sink, fallback *log.Logger) *Pipeline {
	if mirror == nil {
		mirror = NoOpSink{}
	}
	if fallback == nil {
		fallback = log.Default()
	}

	return &Pipeline{
		store:    store,
		mirror:   mirror,
		fallback: fallback,
	}
}

// Record appends one event synchronously. ID and Timestamp are assigned
// here; the caller's copy is not mutated. The recorded event is returned so
// callers can correlate.
func (p *Pipeline) Record(ctx context.Context, event Event) (Event, error) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Outcome == "" {
		event.Outcome = OutcomeSuccess
	}
	if event.Severity == "" {
		event.Severity = SeverityLow
	}

	if err := p.store.Append(ctx, event); err != nil {
		p.fallback.Printf("authcore: audit write failed action=%s actor=%s: %v", event.Action, event.ActorID, err)
		return event, err
	}

	p.mirror.Emit(ctx, event)
	return event, nil
}

// Query returns matching events, newest first, paginated.
func (p *Pipeline) Query(ctx context.Context, filter Filter) ([]Event, error) {
	from := filter.From
	if from.IsZero() {
		from = time.Now().Add(-p.store.retention)
	}
	to := filter.To
	if to.IsZero() {
		to = time.Now()
	}

	events, err := p.store.EventsByTime(ctx, filter.ActorID, from, to)
	if err != nil {
		return nil, err
	}

	matched := events[:0]
	for _, event := range events {
		if filter.Severity != "" && event.Severity != filter.Severity {
			continue
		}
		if filter.Action != "" && event.Action != filter.Action {
			continue
		}
		matched = append(matched, event)
	}

	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = DefaultPageSize
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}

	start := (page - 1) * perPage
	if start >= len(matched) {
		return []Event{}, nil
	}
	end := start + perPage
	if end > len(matched) {
		end = len(matched)
	}

	return matched[start:end], nil
}

// Metrics aggregates the given trailing period: login totals and success
// rate, per-severity counts, and the top source IPs behind failed logins.
func (p *Pipeline) Metrics(ctx context.Context, period time.Duration) (Aggregates, error) {
	now := time.Now()
	events, err := p.store.EventsByTime(ctx, "", now.Add(-period), now)
	if err != nil {
		return Aggregates{}, err
	}

	agg := Aggregates{
		Period:     period,
		BySeverity: make(map[Severity]int),
	}
	failedByIP := make(map[string]int)

	for _, event := range events {
		agg.TotalEvents++
		agg.BySeverity[event.Severity]++

		if event.Action != ActionLogin {
			continue
		}
		agg.TotalLogins++
		switch event.Outcome {
		case OutcomeSuccess:
			agg.SuccessfulLogins++
		case OutcomeFailure:
			agg.FailedLogins++
			if event.IP != "" {
				failedByIP[event.IP]++
			}
		}
	}

	if agg.TotalLogins > 0 {
		agg.SuccessRate = float64(agg.SuccessfulLogins) / float64(agg.TotalLogins) * 100
	}

	agg.TopFailedIPs = make([]IPCount, 0, len(failedByIP))
	for ip, count := range failedByIP {
		agg.TopFailedIPs = append(agg.TopFailedIPs, IPCount{IP: ip, Count: count})
	}
	sort.Slice(agg.TopFailedIPs, func(i, j int) bool {
		if agg.TopFailedIPs[i].Count != agg.TopFailedIPs[j].Count {
			return agg.TopFailedIPs[i].Count > agg.TopFailedIPs[j].Count
		}
		return agg.TopFailedIPs[i].IP < agg.TopFailedIPs[j].IP
	})
	if len(agg.TopFailedIPs) > 10 {
		agg.TopFailedIPs = agg.TopFailedIPs[:10]
	}

	return agg, nil
}

// Alerts returns the newest high and critical events from the last seven
// days, capped at limit (default 50).
func (p *Pipeline) Alerts(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}

	return p.store.AlertEvents(ctx, time.Now().Add(-alertWindow), limit)
}

// Acknowledge marks an alert reviewed and records that acknowledgement as a
// fresh low-severity event.
func (p *Pipeline) Acknowledge(ctx context.Context, eventID, actorID string) (Event, error) {
	updated, err := p.store.Acknowledge(ctx, eventID, actorID, time.Now())
	if err != nil {
		return Event{}, err
	}

	_, _ = p.Record(ctx, Event{
		ActorID:  actorID,
		Action:   ActionAcknowledge,
		Resource: "audit",
		Outcome:  OutcomeSuccess,
		Severity: SeverityLow,
		Detail:   map[string]string{"event_id": eventID},
	})

	return updated, nil
}
