package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/pkg/models"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SQLiteStore implements the Store interface on top of gorm and SQLite.
// It backs single-node deployments and local development.
type SQLiteStore struct {
	db *gorm.DB
}

// OpenSQLite opens (or creates) the database at dsn, migrates the schema and
// seeds the default style catalog when it is empty.
func OpenSQLite(dsn string) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sqlite handle: %w", err)
	}
	// SQLite has a single writer; one connection keeps transactions serialized.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&userRow{}, &apiKeyRow{}, &uploadRow{}, &styleRow{}, &jobRow{}, &headshotRow{}); err != nil {
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	if err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_generated_headshots_one_selected
		ON generated_headshots (generation_job_id) WHERE is_selected`).Error; err != nil {
		return nil, fmt.Errorf("create selection index: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.seedStyles(); err != nil {
		return nil, err
	}
	return s, nil
}

// Close releases the underlying connection.
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SQLiteStore) seedStyles() error {
	var count int64
	if err := s.db.Model(&styleRow{}).Count(&count).Error; err != nil {
		return fmt.Errorf("count style options: %w", err)
	}
	if count > 0 {
		return nil
	}
	seed := []styleRow{
		{Name: "Classic Grey", Description: "Neutral grey backdrop for corporate profiles", BackgroundType: models.BackgroundSolidColor, BackgroundConfig: `{"color":"#8a8d91"}`, IsActive: true},
		{Name: "Modern Office", Description: "Softly blurred open-plan office", BackgroundType: models.BackgroundBlurredOffice, BackgroundConfig: `{"blur_radius":12}`, IsActive: true},
		{Name: "Ocean Gradient", Description: "Blue to teal vertical gradient", BackgroundType: models.BackgroundGradient, BackgroundConfig: `{"from":"#1e3c72","to":"#2a9d8f"}`, IsActive: true},
		{Name: "Studio Light", Description: "High-key studio lighting on white", BackgroundType: models.BackgroundStudio, BackgroundConfig: `{"brightness":15,"contrast":10}`, IsActive: true},
	}
	if err := s.db.Create(&seed).Error; err != nil {
		return fmt.Errorf("seed style options: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// --- Users ---

func (s *SQLiteStore) CreateUser(ctx context.Context, user *models.User) error {
	row := userRow{Email: user.Email, Name: user.Name}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isSQLiteDuplicate(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create user: %w", err)
	}
	*user = row.toModel()
	return nil
}

func (s *SQLiteStore) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var row userRow
	if err := s.db.WithContext(ctx).First(&row, id).Error; err != nil {
		return nil, notFoundOr(err, "get user")
	}
	u := row.toModel()
	return &u, nil
}

func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var row userRow
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&row).Error; err != nil {
		return nil, notFoundOr(err, "get user by email")
	}
	u := row.toModel()
	return &u, nil
}

// --- Uploads ---

func (s *SQLiteStore) CreateImageUpload(ctx context.Context, upload *models.ImageUpload) error {
	if upload.UploadStatus == "" {
		upload.UploadStatus = models.UploadStatusPending
	}
	row := uploadRow{
		UserID:           upload.UserID,
		OriginalFilename: upload.OriginalFilename,
		FilePath:         upload.FilePath,
		FileSize:         upload.FileSize,
		MimeType:         upload.MimeType,
		UploadStatus:     upload.UploadStatus,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("create image upload: %w", err)
	}
	upload.ID = row.ID
	upload.CreatedAt = row.CreatedAt
	return nil
}

func (s *SQLiteStore) GetImageUpload(ctx context.Context, id int64) (*models.ImageUpload, error) {
	var row uploadRow
	if err := s.db.WithContext(ctx).First(&row, id).Error; err != nil {
		return nil, notFoundOr(err, "get image upload")
	}
	u := row.toModel()
	return &u, nil
}

// --- Style Options ---

func (s *SQLiteStore) CreateStyleOption(ctx context.Context, style *models.StyleOption) error {
	row := styleRow{
		Name:             style.Name,
		Description:      style.Description,
		BackgroundType:   style.BackgroundType,
		BackgroundConfig: style.BackgroundConfig,
		IsActive:         style.IsActive,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("create style option: %w", err)
	}
	style.ID = row.ID
	style.CreatedAt = row.CreatedAt
	return nil
}

func (s *SQLiteStore) SetStyleOptionActive(ctx context.Context, id int64, active bool) (*models.StyleOption, error) {
	res := s.db.WithContext(ctx).Model(&styleRow{}).Where("id = ?", id).Update("is_active", active)
	if res.Error != nil {
		return nil, fmt.Errorf("set style option active: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	var row styleRow
	if err := s.db.WithContext(ctx).First(&row, id).Error; err != nil {
		return nil, notFoundOr(err, "get style option")
	}
	st := row.toModel()
	return &st, nil
}

func (s *SQLiteStore) ListActiveStyleOptions(ctx context.Context) ([]*models.StyleOption, error) {
	var rows []styleRow
	if err := s.db.WithContext(ctx).Where("is_active = ?", true).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list active style options: %w", err)
	}
	return stylesToModels(rows), nil
}

func (s *SQLiteStore) GetStyleOptionsByIDs(ctx context.Context, ids []int64) ([]*models.StyleOption, error) {
	if len(ids) == 0 {
		return []*models.StyleOption{}, nil
	}
	var rows []styleRow
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("get style options by ids: %w", err)
	}
	return stylesToModels(rows), nil
}

// --- API Keys ---

func (s *SQLiteStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	var rows []apiKeyRow
	if err := s.db.WithContext(ctx).Where("key_prefix = ? AND deleted_at IS NULL", prefix).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	keys := make([]*models.APIKey, 0, len(rows))
	for _, r := range rows {
		k, err := r.toModel()
		if err != nil {
			return nil, fmt.Errorf("decode api key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, nil
}

func (s *SQLiteStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	err := s.db.WithContext(ctx).Model(&apiKeyRow{}).Where("id = ?", id.String()).
		Updates(map[string]any{"last_used_at": now, "updated_at": now}).Error
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	row := apiKeyRow{
		ID:        key.ID.String(),
		UserID:    key.UserID,
		Name:      key.Name,
		KeyHash:   key.KeyHash,
		KeyPrefix: key.KeyPrefix,
		Scopes:    key.Scopes,
		CreatedAt: key.CreatedAt,
		UpdatedAt: key.UpdatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isSQLiteDuplicate(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

// --- Generation Jobs ---

func (s *SQLiteStore) CreateJobWithHeadshots(ctx context.Context, job *models.GenerationJob) ([]*models.GeneratedHeadshot, error) {
	var headshots []*models.GeneratedHeadshot
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := jobRow{
			UserID:         job.UserID,
			ImageUploadID:  job.ImageUploadID,
			StyleOptionIDs: job.StyleOptionIDs,
			Status:         models.JobStatusPending,
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		job.ID = row.ID
		job.Status = row.Status
		job.CreatedAt = row.CreatedAt

		hrows := make([]headshotRow, 0, len(job.StyleOptionIDs))
		for _, styleID := range job.StyleOptionIDs {
			hrows = append(hrows, headshotRow{
				GenerationJobID:  row.ID,
				StyleOptionID:    styleID,
				GenerationStatus: models.HeadshotStatusPending,
			})
		}
		if err := tx.Create(&hrows).Error; err != nil {
			return err
		}
		headshots = headshotsToModels(hrows)
		return nil
	})
	if err != nil {
		if isSQLiteDuplicate(err) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("create job with headshots: %w", err)
	}
	return headshots, nil
}

func (s *SQLiteStore) GetJob(ctx context.Context, id int64) (*models.GenerationJob, error) {
	var row jobRow
	if err := s.db.WithContext(ctx).First(&row, id).Error; err != nil {
		return nil, notFoundOr(err, "get job")
	}
	j := row.toModel()
	return &j, nil
}

func (s *SQLiteStore) ListUserJobs(ctx context.Context, filter JobFilter) ([]*models.GenerationJob, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", filter.UserID).Order("created_at DESC").Order("id DESC")
	if filter.Limit != nil {
		q = q.Limit(*filter.Limit)
	}
	if filter.Offset != nil {
		if filter.Limit == nil {
			// SQLite only accepts OFFSET after a LIMIT.
			q = q.Limit(-1)
		}
		q = q.Offset(*filter.Offset)
	}
	var rows []jobRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list user jobs: %w", err)
	}
	return jobsToModels(rows), nil
}

func (s *SQLiteStore) ListJobsByStatus(ctx context.Context, statuses ...string) ([]*models.GenerationJob, error) {
	if len(statuses) == 0 {
		return []*models.GenerationJob{}, nil
	}
	var rows []jobRow
	if err := s.db.WithContext(ctx).Where("status IN ?", statuses).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list jobs by status: %w", err)
	}
	return jobsToModels(rows), nil
}

func (s *SQLiteStore) TransitionJob(ctx context.Context, id int64, status string, opts ...JobUpdateOption) (*models.GenerationJob, error) {
	params := applyJobOptions(opts)

	var job models.GenerationJob
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row jobRow
		if err := tx.First(&row, id).Error; err != nil {
			return err
		}
		if !canTransition(row.Status, status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, row.Status, status)
		}
		updated, err := updateJobStatus(tx, id, status, params)
		if err != nil {
			return err
		}
		job = updated
		return nil
	})
	if errors.Is(err, ErrInvalidTransition) {
		return nil, err
	}
	if err != nil {
		return nil, notFoundOr(err, "transition job")
	}
	return &job, nil
}

func (s *SQLiteStore) OverrideJobStatus(ctx context.Context, id int64, status string, opts ...JobUpdateOption) (*models.GenerationJob, error) {
	var job models.GenerationJob
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updated, err := updateJobStatus(tx, id, status, applyJobOptions(opts))
		if err != nil {
			return err
		}
		job = updated
		return nil
	})
	if err != nil {
		return nil, notFoundOr(err, "override job status")
	}
	return &job, nil
}

func updateJobStatus(tx *gorm.DB, id int64, status string, params *jobUpdateParams) (models.GenerationJob, error) {
	fields := map[string]any{"status": status, "completed_at": nil}
	if models.IsTerminalJobStatus(status) {
		fields["completed_at"] = time.Now().UTC()
	}
	if params.SetErrorMessage {
		fields["error_message"] = params.ErrorMessage
	}

	res := tx.Model(&jobRow{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return models.GenerationJob{}, res.Error
	}
	if res.RowsAffected == 0 {
		return models.GenerationJob{}, gorm.ErrRecordNotFound
	}

	var row jobRow
	if err := tx.First(&row, id).Error; err != nil {
		return models.GenerationJob{}, err
	}
	return row.toModel(), nil
}

// --- Generated Headshots ---

func (s *SQLiteStore) GetHeadshot(ctx context.Context, id int64) (*models.GeneratedHeadshot, error) {
	var row headshotRow
	if err := s.db.WithContext(ctx).First(&row, id).Error; err != nil {
		return nil, notFoundOr(err, "get headshot")
	}
	h := row.toModel()
	return &h, nil
}

func (s *SQLiteStore) ListJobHeadshots(ctx context.Context, jobID int64) ([]*models.GeneratedHeadshot, error) {
	var rows []headshotRow
	if err := s.db.WithContext(ctx).Where("generation_job_id = ?", jobID).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list job headshots: %w", err)
	}
	return headshotsToModels(rows), nil
}

func (s *SQLiteStore) ListUserSelectedHeadshots(ctx context.Context, userID int64) ([]*models.GeneratedHeadshot, error) {
	db := s.db.WithContext(ctx)
	var rows []headshotRow
	err := db.Where("is_selected = ? AND generation_job_id IN (?)", true,
		db.Model(&jobRow{}).Select("id").Where("user_id = ?", userID)).
		Order("id").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list user selected headshots: %w", err)
	}
	return headshotsToModels(rows), nil
}

func (s *SQLiteStore) CompleteHeadshot(ctx context.Context, id int64, result HeadshotResult) error {
	return s.settleHeadshot(ctx, id, "complete headshot", map[string]any{
		"generation_status": models.HeadshotStatusCompleted,
		"file_path":         result.FilePath,
		"file_size":         result.FileSize,
		"quality_score":     result.QualityScore,
		"error_message":     nil,
	})
}

func (s *SQLiteStore) FailHeadshot(ctx context.Context, id int64, reason string) error {
	return s.settleHeadshot(ctx, id, "fail headshot", map[string]any{
		"generation_status": models.HeadshotStatusFailed,
		"error_message":     reason,
	})
}

func (s *SQLiteStore) settleHeadshot(ctx context.Context, id int64, op string, fields map[string]any) error {
	db := s.db.WithContext(ctx)
	res := db.Model(&headshotRow{}).
		Where("id = ? AND generation_status = ?", id, models.HeadshotStatusPending).
		Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("%s: %w", op, res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := db.Model(&headshotRow{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("check headshot: %w", err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return fmt.Errorf("%w: headshot %d is not pending", ErrInvalidTransition, id)
}

func (s *SQLiteStore) SelectHeadshot(ctx context.Context, userID, headshotID int64) (*models.GeneratedHeadshot, error) {
	var selected models.GeneratedHeadshot
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row headshotRow
		err := tx.Where("id = ? AND generation_job_id IN (?)", headshotID,
			tx.Model(&jobRow{}).Select("id").Where("user_id = ?", userID)).
			First(&row).Error
		if err != nil {
			return err
		}

		if err := tx.Model(&headshotRow{}).
			Where("generation_job_id = ? AND is_selected = ?", row.GenerationJobID, true).
			Update("is_selected", false).Error; err != nil {
			return err
		}
		if err := tx.Model(&headshotRow{}).Where("id = ?", headshotID).
			Update("is_selected", true).Error; err != nil {
			return err
		}

		row.IsSelected = true
		selected = row.toModel()
		return nil
	})
	if err != nil {
		return nil, notFoundOr(err, "select headshot")
	}
	return &selected, nil
}

func notFoundOr(err error, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isSQLiteDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// --- Rows ---

type userRow struct {
	ID        int64  `gorm:"primaryKey"`
	Email     string `gorm:"uniqueIndex;not null"`
	Name      string `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (userRow) TableName() string { return "users" }

func (r userRow) toModel() models.User {
	return models.User{ID: r.ID, Email: r.Email, Name: r.Name, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt}
}

type apiKeyRow struct {
	ID         string   `gorm:"primaryKey"`
	UserID     int64    `gorm:"index;not null"`
	Name       string   `gorm:"not null"`
	KeyHash    string   `gorm:"not null"`
	KeyPrefix  string   `gorm:"index;not null"`
	Scopes     []string `gorm:"serializer:json"`
	LastUsedAt *time.Time
	DeletedAt  *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (apiKeyRow) TableName() string { return "api_keys" }

func (r apiKeyRow) toModel() (*models.APIKey, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, err
	}
	return &models.APIKey{
		ID:         id,
		UserID:     r.UserID,
		Name:       r.Name,
		KeyHash:    r.KeyHash,
		KeyPrefix:  r.KeyPrefix,
		Scopes:     r.Scopes,
		LastUsedAt: r.LastUsedAt,
		DeletedAt:  r.DeletedAt,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}, nil
}

type uploadRow struct {
	ID               int64  `gorm:"primaryKey"`
	UserID           int64  `gorm:"index;not null"`
	OriginalFilename string `gorm:"not null"`
	FilePath         string `gorm:"not null"`
	FileSize         int64  `gorm:"not null"`
	MimeType         string `gorm:"not null"`
	UploadStatus     string `gorm:"not null"`
	CreatedAt        time.Time
}

func (uploadRow) TableName() string { return "image_uploads" }

func (r uploadRow) toModel() models.ImageUpload {
	return models.ImageUpload{
		ID:               r.ID,
		UserID:           r.UserID,
		OriginalFilename: r.OriginalFilename,
		FilePath:         r.FilePath,
		FileSize:         r.FileSize,
		MimeType:         r.MimeType,
		UploadStatus:     r.UploadStatus,
		CreatedAt:        r.CreatedAt,
	}
}

type styleRow struct {
	ID               int64  `gorm:"primaryKey"`
	Name             string `gorm:"not null"`
	Description      string `gorm:"not null"`
	BackgroundType   string `gorm:"not null"`
	BackgroundConfig string `gorm:"not null"`
	IsActive         bool   `gorm:"not null"`
	CreatedAt        time.Time
}

func (styleRow) TableName() string { return "style_options" }

func (r styleRow) toModel() models.StyleOption {
	return models.StyleOption{
		ID:               r.ID,
		Name:             r.Name,
		Description:      r.Description,
		BackgroundType:   r.BackgroundType,
		BackgroundConfig: r.BackgroundConfig,
		IsActive:         r.IsActive,
		CreatedAt:        r.CreatedAt,
	}
}

func stylesToModels(rows []styleRow) []*models.StyleOption {
	out := make([]*models.StyleOption, 0, len(rows))
	for _, r := range rows {
		st := r.toModel()
		out = append(out, &st)
	}
	return out
}

type jobRow struct {
	ID             int64   `gorm:"primaryKey"`
	UserID         int64   `gorm:"index;not null"`
	ImageUploadID  int64   `gorm:"not null"`
	StyleOptionIDs []int64 `gorm:"serializer:json;not null"`
	Status         string  `gorm:"index;not null"`
	ErrorMessage   *string
	CreatedAt      time.Time
	CompletedAt    *time.Time
}

func (jobRow) TableName() string { return "generation_jobs" }

func (r jobRow) toModel() models.GenerationJob {
	return models.GenerationJob{
		ID:             r.ID,
		UserID:         r.UserID,
		ImageUploadID:  r.ImageUploadID,
		StyleOptionIDs: r.StyleOptionIDs,
		Status:         r.Status,
		ErrorMessage:   r.ErrorMessage,
		CreatedAt:      r.CreatedAt,
		CompletedAt:    r.CompletedAt,
	}
}

func jobsToModels(rows []jobRow) []*models.GenerationJob {
	out := make([]*models.GenerationJob, 0, len(rows))
	for _, r := range rows {
		j := r.toModel()
		out = append(out, &j)
	}
	return out
}

type headshotRow struct {
	ID               int64  `gorm:"primaryKey"`
	GenerationJobID  int64  `gorm:"not null;uniqueIndex:idx_generated_headshots_job_style"`
	StyleOptionID    int64  `gorm:"not null;uniqueIndex:idx_generated_headshots_job_style"`
	FilePath         string `gorm:"not null;default:''"`
	FileSize         int64  `gorm:"not null;default:0"`
	GenerationStatus string `gorm:"not null"`
	QualityScore     *int
	ErrorMessage     *string
	IsSelected       bool `gorm:"not null;default:false"`
	CreatedAt        time.Time
}

func (headshotRow) TableName() string { return "generated_headshots" }

func (r headshotRow) toModel() models.GeneratedHeadshot {
	return models.GeneratedHeadshot{
		ID:               r.ID,
		GenerationJobID:  r.GenerationJobID,
		StyleOptionID:    r.StyleOptionID,
		FilePath:         r.FilePath,
		FileSize:         r.FileSize,
		GenerationStatus: r.GenerationStatus,
		QualityScore:     r.QualityScore,
		ErrorMessage:     r.ErrorMessage,
		IsSelected:       r.IsSelected,
		CreatedAt:        r.CreatedAt,
	}
}

func headshotsToModels(rows []headshotRow) []*models.GeneratedHeadshot {
	out := make([]*models.GeneratedHeadshot, 0, len(rows))
	for _, r := range rows {
		h := r.toModel()
		out = append(out, &h)
	}
	return out
}
