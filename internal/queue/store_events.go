package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// AppendEvent records an event at the tail of a job's durable log and
// returns it with the assigned identifier and timestamp.
func (s *Store) AppendEvent(ctx context.Context, event Event) (Event, error) {
	if event.JobID == "" {
		return Event{}, errors.New("event job id is required")
	}
	if event.Type == "" {
		return Event{}, errors.New("event type is required")
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO job_events (job_id, type, status, progress, message, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		event.JobID,
		event.Type,
		nullableString(string(event.Status)),
		event.Progress,
		nullableString(event.Message),
		event.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Event{}, fmt.Errorf("append event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Event{}, fmt.Errorf("last insert id: %w", err)
	}
	event.ID = id
	return event, nil
}

// EventsByJob returns every event for a job in append order.
func (s *Store) EventsByJob(ctx context.Context, jobID string) ([]Event, error) {
	return s.EventsByJobSince(ctx, jobID, 0)
}

// EventsByJobSince returns events with identifiers strictly greater than
// afterID, in append order.
func (s *Store) EventsByJobSince(ctx context.Context, jobID string, afterID int64) ([]Event, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, job_id, type, status, progress, message, created_at
         FROM job_events WHERE job_id = ? AND id > ? ORDER BY id`,
		jobID, afterID,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func scanEvent(rows *sql.Rows) (Event, error) {
	var (
		id         int64
		jobID      string
		typeStr    string
		status     sql.NullString
		progress   sql.NullFloat64
		message    sql.NullString
		createdRaw string
	)
	if err := rows.Scan(&id, &jobID, &typeStr, &status, &progress, &message, &createdRaw); err != nil {
		return Event{}, fmt.Errorf("scan event: %w", err)
	}
	event := Event{
		ID:       id,
		JobID:    jobID,
		Type:     EventType(typeStr),
		Status:   Status(status.String),
		Progress: progress.Float64,
		Message:  message.String,
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		event.CreatedAt = created
	}
	return event, nil
}
