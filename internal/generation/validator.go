package generation

import (
	"context"
	"errors"
	"fmt"

	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/internal/store"
	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/pkg/models"
)

// Validator checks a job submission before anything is written.
type Validator struct {
	store store.Store
}

func NewValidator(st store.Store) *Validator {
	return &Validator{store: st}
}

// Validate confirms userID exists and owns the upload, and that every style id
// names an existing, active style. It only reads.
func (v *Validator) Validate(ctx context.Context, userID, imageUploadID int64, styleIDs []int64) error {
	if err := checkStyleList(styleIDs); err != nil {
		return err
	}

	if _, err := v.store.GetUser(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("loading user: %w", err)
	}

	upload, err := v.store.GetImageUpload(ctx, imageUploadID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrImageNotFound
		}
		return fmt.Errorf("loading image upload: %w", err)
	}
	if upload.UserID != userID {
		return ErrImageNotOwned
	}

	styles, err := v.store.GetStyleOptionsByIDs(ctx, styleIDs)
	if err != nil {
		return fmt.Errorf("loading styles: %w", err)
	}
	active := make(map[int64]bool, len(styles))
	for _, st := range styles {
		active[st.ID] = st.IsActive
	}
	var missing []int64
	for _, id := range styleIDs {
		if !active[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return &StyleNotFoundError{Missing: missing}
	}
	return nil
}

func checkStyleList(ids []int64) error {
	if len(ids) == 0 {
		return validationf("at least one style option is required")
	}
	if len(ids) > models.MaxStylesPerJob {
		return validationf("at most %d style options per job, got %d", models.MaxStylesPerJob, len(ids))
	}
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return validationf("duplicate style option %d", id)
		}
		seen[id] = true
	}
	return nil
}
