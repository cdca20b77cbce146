package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"trimsync/internal/config"
)

// Store manages job persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the job database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.DataDir, "jobs.db"))
}

// OpenPath opens a store at an explicit database path.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Insert persists a new job record.
func (s *Store) Insert(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	if strings.TrimSpace(job.ID) == "" {
		return errors.New("job id is required")
	}
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO jobs (
            id, status, video_path, audio_path,
            video_duration_sec, target_duration_sec, delta_sec,
            analysis_json, decision_json, override_json, output_path,
            error_code, error_message, progress_ratio, progress_message,
            log_path, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID,
		job.Status,
		job.VideoPath,
		nullableString(job.AudioPath),
		job.VideoDurationSec,
		job.TargetDurationSec,
		job.DeltaSec,
		nullableString(job.AnalysisJSON),
		nullableString(job.DecisionJSON),
		nullableString(job.OverrideJSON),
		nullableString(job.OutputPath),
		nullableString(job.ErrorCode),
		nullableString(job.ErrorMessage),
		job.ProgressRatio,
		nullableString(job.ProgressMessage),
		nullableString(job.LogPath),
		job.CreatedAt.Format(time.RFC3339Nano),
		job.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// GetByID fetches a job by identifier. A missing job returns (nil, nil).
func (s *Store) GetByID(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// Update persists changes to an existing job record.
func (s *Store) Update(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	job.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs
         SET status = ?, video_path = ?, audio_path = ?,
             video_duration_sec = ?, target_duration_sec = ?, delta_sec = ?,
             analysis_json = ?, decision_json = ?, override_json = ?, output_path = ?,
             error_code = ?, error_message = ?, progress_ratio = ?, progress_message = ?,
             log_path = ?, updated_at = ?
         WHERE id = ?`,
		job.Status,
		job.VideoPath,
		nullableString(job.AudioPath),
		job.VideoDurationSec,
		job.TargetDurationSec,
		job.DeltaSec,
		nullableString(job.AnalysisJSON),
		nullableString(job.DecisionJSON),
		nullableString(job.OverrideJSON),
		nullableString(job.OutputPath),
		nullableString(job.ErrorCode),
		nullableString(job.ErrorMessage),
		job.ProgressRatio,
		nullableString(job.ProgressMessage),
		nullableString(job.LogPath),
		job.UpdatedAt.Format(time.RFC3339Nano),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update job: no row with id %s", job.ID)
	}
	return nil
}

// Delete removes a job record. Events and artifacts cascade.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("delete job: no row with id %s", id)
	}
	return nil
}

// List returns jobs filtered by status set (or all jobs when no status is
// provided), newest first.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + jobColumns + ` FROM jobs`
	orderClause := ` ORDER BY created_at DESC`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE status IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Stats returns a count of jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates job state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusQueued:
			health.Queued += count
		case StatusAwaitingReview:
			health.AwaitingReview += count
		case StatusFailed:
			health.Failed += count
		case StatusCompleted:
			health.Completed += count
		default:
			if IsProcessing(status) {
				health.Processing += count
			}
		}
	}
	return health, nil
}

const jobColumns = "id, status, video_path, audio_path, video_duration_sec, target_duration_sec, delta_sec, analysis_json, decision_json, override_json, output_path, error_code, error_message, progress_ratio, progress_message, log_path, created_at, updated_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id              string
		statusStr       string
		videoPath       string
		audioPath       sql.NullString
		videoDuration   float64
		targetDuration  float64
		delta           float64
		analysisJSON    sql.NullString
		decisionJSON    sql.NullString
		overrideJSON    sql.NullString
		outputPath      sql.NullString
		errorCode       sql.NullString
		errorMessage    sql.NullString
		progressRatio   float64
		progressMessage sql.NullString
		logPath         sql.NullString
		createdRaw      string
		updatedRaw      string
	)

	if err := scanner.Scan(
		&id,
		&statusStr,
		&videoPath,
		&audioPath,
		&videoDuration,
		&targetDuration,
		&delta,
		&analysisJSON,
		&decisionJSON,
		&overrideJSON,
		&outputPath,
		&errorCode,
		&errorMessage,
		&progressRatio,
		&progressMessage,
		&logPath,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:                id,
		Status:            Status(statusStr),
		VideoPath:         videoPath,
		AudioPath:         audioPath.String,
		VideoDurationSec:  videoDuration,
		TargetDurationSec: targetDuration,
		DeltaSec:          delta,
		AnalysisJSON:      analysisJSON.String,
		DecisionJSON:      decisionJSON.String,
		OverrideJSON:      overrideJSON.String,
		OutputPath:        outputPath.String,
		ErrorCode:         errorCode.String,
		ErrorMessage:      errorMessage.String,
		ProgressRatio:     progressRatio,
		ProgressMessage:   progressMessage.String,
		LogPath:           logPath.String,
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		job.UpdatedAt = updated
	}
	return job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
