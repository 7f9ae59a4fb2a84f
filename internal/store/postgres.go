package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/pkg/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	userColumns     = `id, email, name, created_at, updated_at`
	uploadColumns   = `id, user_id, original_filename, file_path, file_size, mime_type, upload_status, created_at`
	styleColumns    = `id, name, description, background_type, background_config, is_active, created_at`
	apiKeyColumns   = `id, user_id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at`
	jobColumns      = `id, user_id, image_upload_id, style_option_ids, status, error_message, created_at, completed_at`
	headshotColumns = `id, generation_job_id, style_option_id, file_path, file_size, generation_status, quality_score, error_message, is_selected, created_at`
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Users ---

func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (email, name) VALUES ($1, $2) RETURNING id, created_at, updated_at`,
		user.Email, user.Name,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id int64) (*models.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// --- Uploads ---

func (s *PostgresStore) CreateImageUpload(ctx context.Context, upload *models.ImageUpload) error {
	if upload.UploadStatus == "" {
		upload.UploadStatus = models.UploadStatusPending
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO image_uploads (user_id, original_filename, file_path, file_size, mime_type, upload_status)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at`,
		upload.UserID, upload.OriginalFilename, upload.FilePath, upload.FileSize, upload.MimeType, upload.UploadStatus,
	).Scan(&upload.ID, &upload.CreatedAt)
	if err != nil {
		return fmt.Errorf("create image upload: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetImageUpload(ctx context.Context, id int64) (*models.ImageUpload, error) {
	var u models.ImageUpload
	err := s.pool.QueryRow(ctx, `SELECT `+uploadColumns+` FROM image_uploads WHERE id = $1`, id).
		Scan(&u.ID, &u.UserID, &u.OriginalFilename, &u.FilePath, &u.FileSize, &u.MimeType, &u.UploadStatus, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get image upload: %w", err)
	}
	return &u, nil
}

// --- Style Options ---

func (s *PostgresStore) CreateStyleOption(ctx context.Context, style *models.StyleOption) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO style_options (name, description, background_type, background_config, is_active)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`,
		style.Name, style.Description, style.BackgroundType, style.BackgroundConfig, style.IsActive,
	).Scan(&style.ID, &style.CreatedAt)
	if err != nil {
		return fmt.Errorf("create style option: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetStyleOptionActive(ctx context.Context, id int64, active bool) (*models.StyleOption, error) {
	style, err := scanStyle(s.pool.QueryRow(ctx,
		`UPDATE style_options SET is_active = $2 WHERE id = $1 RETURNING `+styleColumns, id, active))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("set style option active: %w", err)
	}
	return style, nil
}

func (s *PostgresStore) ListActiveStyleOptions(ctx context.Context) ([]*models.StyleOption, error) {
	return s.queryStyles(ctx, "list active style options",
		`SELECT `+styleColumns+` FROM style_options WHERE is_active ORDER BY id`)
}

func (s *PostgresStore) GetStyleOptionsByIDs(ctx context.Context, ids []int64) ([]*models.StyleOption, error) {
	if len(ids) == 0 {
		return []*models.StyleOption{}, nil
	}
	return s.queryStyles(ctx, "get style options by ids",
		`SELECT `+styleColumns+` FROM style_options WHERE id = ANY($1) ORDER BY id`, ids)
}

func (s *PostgresStore) queryStyles(ctx context.Context, op, query string, args ...any) ([]*models.StyleOption, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	styles := []*models.StyleOption{}
	for rows.Next() {
		st, err := scanStyle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan style option: %w", err)
		}
		styles = append(styles, st)
	}
	return styles, rows.Err()
}

// --- API Keys ---

func (s *PostgresStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE key_prefix = $1 AND deleted_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.UserID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (id, user_id, name, key_hash, key_prefix, scopes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		key.ID, key.UserID, key.Name, key.KeyHash, key.KeyPrefix, key.Scopes, key.CreatedAt, key.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

// --- Generation Jobs ---

func (s *PostgresStore) CreateJobWithHeadshots(ctx context.Context, job *models.GenerationJob) ([]*models.GeneratedHeadshot, error) {
	var headshots []*models.GeneratedHeadshot
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO generation_jobs (user_id, image_upload_id, style_option_ids, status)
			 VALUES ($1, $2, $3, $4) RETURNING id, status, created_at`,
			job.UserID, job.ImageUploadID, job.StyleOptionIDs, models.JobStatusPending,
		).Scan(&job.ID, &job.Status, &job.CreatedAt)
		if err != nil {
			return err
		}

		headshots = make([]*models.GeneratedHeadshot, 0, len(job.StyleOptionIDs))
		for _, styleID := range job.StyleOptionIDs {
			h, err := scanHeadshot(tx.QueryRow(ctx,
				`INSERT INTO generated_headshots (generation_job_id, style_option_id)
				 VALUES ($1, $2) RETURNING `+headshotColumns, job.ID, styleID))
			if err != nil {
				return err
			}
			headshots = append(headshots, h)
		}
		return nil
	})
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("create job with headshots: %w", err)
	}
	return headshots, nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id int64) (*models.GenerationJob, error) {
	job, err := scanJob(s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM generation_jobs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

func (s *PostgresStore) ListUserJobs(ctx context.Context, filter JobFilter) ([]*models.GenerationJob, error) {
	query := `SELECT ` + jobColumns + ` FROM generation_jobs WHERE user_id = $1 ORDER BY created_at DESC, id DESC`
	args := []any{filter.UserID}
	argIdx := 2

	if filter.Limit != nil {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, *filter.Limit)
		argIdx++
	}
	if filter.Offset != nil {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, *filter.Offset)
	}

	return s.queryJobs(ctx, "list user jobs", query, args...)
}

func (s *PostgresStore) ListJobsByStatus(ctx context.Context, statuses ...string) ([]*models.GenerationJob, error) {
	if len(statuses) == 0 {
		return []*models.GenerationJob{}, nil
	}
	return s.queryJobs(ctx, "list jobs by status",
		`SELECT `+jobColumns+` FROM generation_jobs WHERE status = ANY($1) ORDER BY id`, statuses)
}

func (s *PostgresStore) queryJobs(ctx context.Context, op, query string, args ...any) ([]*models.GenerationJob, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	jobs := []*models.GenerationJob{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (s *PostgresStore) TransitionJob(ctx context.Context, id int64, status string, opts ...JobUpdateOption) (*models.GenerationJob, error) {
	params := applyJobOptions(opts)

	var job *models.GenerationJob
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var current string
		err := tx.QueryRow(ctx, `SELECT status FROM generation_jobs WHERE id = $1 FOR UPDATE`, id).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if !canTransition(current, status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, status)
		}

		query, args := jobStatusUpdate(id, status, params)
		job, err = scanJob(tx.QueryRow(ctx, query, args...))
		return err
	})
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidTransition) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("transition job: %w", err)
	}
	return job, nil
}

func (s *PostgresStore) OverrideJobStatus(ctx context.Context, id int64, status string, opts ...JobUpdateOption) (*models.GenerationJob, error) {
	query, args := jobStatusUpdate(id, status, applyJobOptions(opts))
	job, err := scanJob(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("override job status: %w", err)
	}
	return job, nil
}

// jobStatusUpdate builds the UPDATE shared by TransitionJob and
// OverrideJobStatus. completed_at is stamped on terminal statuses and
// cleared otherwise.
func jobStatusUpdate(id int64, status string, params *jobUpdateParams) (string, []any) {
	var completedAt *time.Time
	if models.IsTerminalJobStatus(status) {
		now := time.Now().UTC()
		completedAt = &now
	}

	query := `UPDATE generation_jobs SET status = $2, completed_at = $3`
	args := []any{id, status, completedAt}
	if params.SetErrorMessage {
		query += `, error_message = $4`
		args = append(args, params.ErrorMessage)
	}
	query += ` WHERE id = $1 RETURNING ` + jobColumns
	return query, args
}

// --- Generated Headshots ---

func (s *PostgresStore) GetHeadshot(ctx context.Context, id int64) (*models.GeneratedHeadshot, error) {
	h, err := scanHeadshot(s.pool.QueryRow(ctx, `SELECT `+headshotColumns+` FROM generated_headshots WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get headshot: %w", err)
	}
	return h, nil
}

func (s *PostgresStore) ListJobHeadshots(ctx context.Context, jobID int64) ([]*models.GeneratedHeadshot, error) {
	return s.queryHeadshots(ctx, "list job headshots",
		`SELECT `+headshotColumns+` FROM generated_headshots WHERE generation_job_id = $1 ORDER BY id`, jobID)
}

func (s *PostgresStore) ListUserSelectedHeadshots(ctx context.Context, userID int64) ([]*models.GeneratedHeadshot, error) {
	return s.queryHeadshots(ctx, "list user selected headshots",
		`SELECT `+headshotColumns+` FROM generated_headshots
		 WHERE is_selected AND generation_job_id IN (SELECT id FROM generation_jobs WHERE user_id = $1)
		 ORDER BY id`, userID)
}

func (s *PostgresStore) queryHeadshots(ctx context.Context, op, query string, args ...any) ([]*models.GeneratedHeadshot, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	headshots := []*models.GeneratedHeadshot{}
	for rows.Next() {
		h, err := scanHeadshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan headshot: %w", err)
		}
		headshots = append(headshots, h)
	}
	return headshots, rows.Err()
}

func (s *PostgresStore) CompleteHeadshot(ctx context.Context, id int64, result HeadshotResult) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE generated_headshots
		 SET generation_status = $2, file_path = $3, file_size = $4, quality_score = $5, error_message = NULL
		 WHERE id = $1 AND generation_status = $6`,
		id, models.HeadshotStatusCompleted, result.FilePath, result.FileSize, result.QualityScore,
		models.HeadshotStatusPending)
	if err != nil {
		return fmt.Errorf("complete headshot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.headshotNotPending(ctx, id)
	}
	return nil
}

func (s *PostgresStore) FailHeadshot(ctx context.Context, id int64, reason string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE generated_headshots SET generation_status = $2, error_message = $3
		 WHERE id = $1 AND generation_status = $4`,
		id, models.HeadshotStatusFailed, reason, models.HeadshotStatusPending)
	if err != nil {
		return fmt.Errorf("fail headshot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.headshotNotPending(ctx, id)
	}
	return nil
}

// headshotNotPending explains why a guarded headshot update touched no rows.
func (s *PostgresStore) headshotNotPending(ctx context.Context, id int64) error {
	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM generated_headshots WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check headshot: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return fmt.Errorf("%w: headshot %d is not pending", ErrInvalidTransition, id)
}

func (s *PostgresStore) SelectHeadshot(ctx context.Context, userID, headshotID int64) (*models.GeneratedHeadshot, error) {
	var selected *models.GeneratedHeadshot
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		// Locking the parent job row serializes concurrent selections for the job.
		var jobID int64
		err := tx.QueryRow(ctx,
			`SELECT j.id FROM generated_headshots h
			 JOIN generation_jobs j ON j.id = h.generation_job_id
			 WHERE h.id = $1 AND j.user_id = $2
			 FOR UPDATE OF j`, headshotID, userID).Scan(&jobID)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx,
			`UPDATE generated_headshots SET is_selected = FALSE WHERE generation_job_id = $1 AND is_selected`,
			jobID); err != nil {
			return err
		}

		selected, err = scanHeadshot(tx.QueryRow(ctx,
			`UPDATE generated_headshots SET is_selected = TRUE WHERE id = $1 RETURNING `+headshotColumns,
			headshotID))
		return err
	})
	if errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("select headshot: %w", err)
	}
	return selected, nil
}

// --- Scanning ---

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func scanStyle(row pgx.Row) (*models.StyleOption, error) {
	var st models.StyleOption
	if err := row.Scan(&st.ID, &st.Name, &st.Description, &st.BackgroundType, &st.BackgroundConfig,
		&st.IsActive, &st.CreatedAt); err != nil {
		return nil, err
	}
	return &st, nil
}

func scanJob(row pgx.Row) (*models.GenerationJob, error) {
	var j models.GenerationJob
	if err := row.Scan(&j.ID, &j.UserID, &j.ImageUploadID, &j.StyleOptionIDs, &j.Status,
		&j.ErrorMessage, &j.CreatedAt, &j.CompletedAt); err != nil {
		return nil, err
	}
	return &j, nil
}

func scanHeadshot(row pgx.Row) (*models.GeneratedHeadshot, error) {
	var h models.GeneratedHeadshot
	if err := row.Scan(&h.ID, &h.GenerationJobID, &h.StyleOptionID, &h.FilePath, &h.FileSize,
		&h.GenerationStatus, &h.QualityScore, &h.ErrorMessage, &h.IsSelected, &h.CreatedAt); err != nil {
		return nil, err
	}
	return &h, nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
