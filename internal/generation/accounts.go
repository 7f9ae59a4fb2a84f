package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/internal/blob"
	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/internal/store"
	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/pkg/models"
	"github.com/google/uuid"
)

const maxFilenameLength = 255

// CreateUser registers a user. Emails are unique.
func (s *Service) CreateUser(ctx context.Context, email, name string) (*models.User, error) {
	email = strings.TrimSpace(email)
	name = strings.TrimSpace(name)
	if email == "" {
		return nil, validationf("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return nil, validationf("invalid email address %q", email)
	}
	if name == "" {
		return nil, validationf("name is required")
	}

	user := &models.User{Email: strings.ToLower(email), Name: name}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			return nil, fmt.Errorf("%w: email %s is already registered", ErrConflict, user.Email)
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}
	slog.Info("user created", "user_id", user.ID)
	return user, nil
}

// UploadParams is the metadata of a source photo already in the blob store.
type UploadParams struct {
	UserID           int64
	OriginalFilename string
	FilePath         string
	FileSize         int64
	MimeType         string
}

// UploadImage records an uploaded source photo.
func (s *Service) UploadImage(ctx context.Context, p UploadParams) (*models.ImageUpload, error) {
	if err := checkUpload(p.OriginalFilename, p.FileSize, p.MimeType); err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.FilePath) == "" {
		return nil, validationf("file path is required")
	}
	if err := s.requireUser(ctx, p.UserID); err != nil {
		return nil, err
	}

	upload := &models.ImageUpload{
		UserID:           p.UserID,
		OriginalFilename: p.OriginalFilename,
		FilePath:         p.FilePath,
		FileSize:         p.FileSize,
		MimeType:         p.MimeType,
		UploadStatus:     models.UploadStatusCompleted,
	}
	if err := s.store.CreateImageUpload(ctx, upload); err != nil {
		return nil, fmt.Errorf("creating image upload: %w", err)
	}
	slog.Info("image uploaded", "user_id", p.UserID, "upload_id", upload.ID, "size", p.FileSize)
	return upload, nil
}

// StoreImage writes the photo bytes to the blob store and records the upload.
func (s *Service) StoreImage(ctx context.Context, userID int64, filename, mimeType string, data []byte) (*models.ImageUpload, error) {
	if err := checkUpload(filename, int64(len(data)), mimeType); err != nil {
		return nil, err
	}
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}

	key := blob.UploadKey(userID, uuid.NewString()+blob.ExtensionFor(mimeType))
	size, err := s.blobs.Put(ctx, key, mimeType, data)
	if err != nil {
		return nil, fmt.Errorf("storing image: %w", err)
	}
	upload, err := s.UploadImage(ctx, UploadParams{
		UserID:           userID,
		OriginalFilename: filename,
		FilePath:         key,
		FileSize:         size,
		MimeType:         mimeType,
	})
	if err != nil {
		if derr := s.blobs.Delete(ctx, key); derr != nil {
			slog.Warn("could not remove orphaned upload", "key", key, "error", derr)
		}
		return nil, err
	}
	return upload, nil
}

// GetStyleOptions returns the active style catalog.
func (s *Service) GetStyleOptions(ctx context.Context) ([]*models.StyleOption, error) {
	return s.catalog.ActiveStyles(ctx)
}

func (s *Service) requireUser(ctx context.Context, userID int64) error {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("loading user: %w", err)
	}
	return nil
}

func checkUpload(filename string, size int64, mimeType string) error {
	if strings.TrimSpace(filename) == "" {
		return validationf("filename is required")
	}
	if len(filename) > maxFilenameLength {
		return validationf("filename must be at most %d bytes", maxFilenameLength)
	}
	if size <= 0 {
		return validationf("file is empty")
	}
	if !models.IsSupportedMimeType(mimeType) {
		return validationf("unsupported media type %q, expected image/jpeg or image/png", mimeType)
	}
	return nil
}
