// Package store persists research jobs and their media records in Postgres.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/pouria-abbasi/mediascout/config"
	"github.com/pouria-abbasi/mediascout/models"
)

type Store struct {
	DB *sql.DB
}

// New constructs the Store from configuration and verifies connectivity.
func New(ctx context.Context, cfg config.PostgresConfig) (*Store, error) {
	dsn, err := cfg.DSN()
	if err != nil {
		return nil, err
	}
	return NewWithDSN(ctx, dsn)
}

// NewWithDSN constructs the Store using an explicit Postgres DSN.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

// CreateJob inserts the initial job row.
func (s *Store) CreateJob(ctx context.Context, job models.Job) error {
	types := make([]string, len(job.MediaTypes))
	for i, mt := range job.MediaTypes {
		types[i] = string(mt)
	}
	_, err := s.DB.ExecContext(ctx, `
        INSERT INTO jobs (id, topic, media_types, status, created_at)
        VALUES ($1, $2, $3, $4, $5)`,
		job.ID, job.Topic, pq.Array(types), string(job.Status), job.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// UpdateJobStatus mirrors the in-memory job state to the database. Counts are
// stored as a jsonb map keyed by media type.
func (s *Store) UpdateJobStatus(ctx context.Context, job models.Job) error {
	counts, err := json.Marshal(job.Counts)
	if err != nil {
		return fmt.Errorf("marshal counts: %w", err)
	}
	var completedAt sql.NullTime
	if job.CompletedAt != nil {
		completedAt = sql.NullTime{Time: *job.CompletedAt, Valid: true}
	}
	_, err = s.DB.ExecContext(ctx, `
        UPDATE jobs SET status=$2, counts=$3, error_message=$4, completed_at=$5
        WHERE id=$1`,
		job.ID, string(job.Status), counts, job.ErrorMessage, completedAt)
	if err != nil {
		return fmt.Errorf("update job %s: %w", job.ID, err)
	}
	return nil
}

// GetJob loads one job row. The second return is false when the id is unknown.
func (s *Store) GetJob(ctx context.Context, id string) (models.Job, bool, error) {
	var (
		job         models.Job
		types       []string
		status      string
		counts      []byte
		errMsg      sql.NullString
		completedAt sql.NullTime
	)
	err := s.DB.QueryRowContext(ctx, `
        SELECT id, topic, media_types, status, counts, error_message, created_at, completed_at
        FROM jobs WHERE id=$1`, id).
		Scan(&job.ID, &job.Topic, pq.Array(&types), &status, &counts, &errMsg, &job.CreatedAt, &completedAt)
	if err == sql.ErrNoRows {
		return models.Job{}, false, nil
	}
	if err != nil {
		return models.Job{}, false, fmt.Errorf("get job %s: %w", id, err)
	}

	job.Status = models.JobStatus(status)
	for _, t := range types {
		if mt, ok := models.ParseMediaType(t); ok {
			job.MediaTypes = append(job.MediaTypes, mt)
		}
	}
	if len(counts) > 0 {
		if err := json.Unmarshal(counts, &job.Counts); err != nil {
			return models.Job{}, false, fmt.Errorf("decode counts for job %s: %w", id, err)
		}
	}
	if errMsg.Valid {
		job.ErrorMessage = errMsg.String
	}
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}
	return job, true, nil
}

// InsertMediaRecord persists one canonical record. Re-inserting the same URL
// for the same job is a no-op reported as false, which makes persistence
// idempotent under retries and keeps per-type counts honest when two
// pipelines surface the same URL.
func (s *Store) InsertMediaRecord(ctx context.Context, jobID string, rec models.CanonicalRecord) (bool, error) {
	var published sql.NullTime
	if !rec.PublishedDate.IsZero() {
		published = sql.NullTime{Time: rec.PublishedDate, Valid: true}
	}
	var score sql.NullFloat64
	if rec.RelevanceScore != nil {
		score = sql.NullFloat64{Float64: *rec.RelevanceScore, Valid: true}
	}
	res, err := s.DB.ExecContext(ctx, `
        INSERT INTO media_records
            (id, job_id, url, title, source_name, media_type, snippet, thumbnail_url,
             published_date, duration_seconds, width, height, tier, license, relevance_score)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
        ON CONFLICT (job_id, url) DO NOTHING`,
		rec.ID, jobID, rec.URL, rec.Title, rec.SourceName, string(rec.MediaType),
		rec.Snippet, rec.ThumbnailURL, published, rec.DurationSeconds,
		rec.Width, rec.Height, int(rec.Tier), string(rec.License), score)
	if err != nil {
		return false, fmt.Errorf("insert record %s: %w", rec.URL, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert record %s: %w", rec.URL, err)
	}
	return n > 0, nil
}

// ListRecords returns a job's records ranked by tier then insertion order.
// mediaType filters when non-empty; limit <= 0 means no limit.
func (s *Store) ListRecords(ctx context.Context, jobID string, mediaType models.MediaType, limit int) ([]models.CanonicalRecord, error) {
	query := `
        SELECT id, url, title, source_name, media_type, snippet, thumbnail_url,
               published_date, duration_seconds, width, height, tier, license, relevance_score
        FROM media_records WHERE job_id=$1`
	args := []interface{}{jobID}
	if mediaType != "" {
		query += ` AND media_type=$2`
		args = append(args, string(mediaType))
	}
	query += ` ORDER BY tier ASC, inserted_at ASC`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list records for job %s: %w", jobID, err)
	}
	defer rows.Close()

	var out []models.CanonicalRecord
	for rows.Next() {
		var (
			rec       models.CanonicalRecord
			mt        string
			license   string
			tier      int
			published sql.NullTime
			score     sql.NullFloat64
		)
		if err := rows.Scan(&rec.ID, &rec.URL, &rec.Title, &rec.SourceName, &mt,
			&rec.Snippet, &rec.ThumbnailURL, &published, &rec.DurationSeconds,
			&rec.Width, &rec.Height, &tier, &license, &score); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.MediaType = models.MediaType(mt)
		rec.License = models.License(license)
		rec.Tier = models.SourceTier(tier)
		if published.Valid {
			rec.PublishedDate = published.Time
		}
		if score.Valid {
			v := score.Float64
			rec.RelevanceScore = &v
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DeleteJobsOlderThan removes finished jobs and their records past the
// retention window. Records go with the job via the foreign key cascade.
func (s *Store) DeleteJobsOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `
        DELETE FROM jobs
        WHERE completed_at IS NOT NULL AND completed_at < $1`,
		time.Now().UTC().Add(-age))
	if err != nil {
		return 0, fmt.Errorf("delete old jobs: %w", err)
	}
	return res.RowsAffected()
}
