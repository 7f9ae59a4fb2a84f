package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/internal/cache"
	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/internal/store"
	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/pkg/models"
)

const catalogTTL = 5 * time.Minute

// Catalog serves style options. The active list is cached; lookups by id
// always hit the store so validation sees the current active flags.
type Catalog struct {
	store store.Store
	cache cache.Cache
}

func NewCatalog(st store.Store, ca cache.Cache) *Catalog {
	return &Catalog{store: st, cache: ca}
}

// ActiveStyles returns every active style option ordered by id.
func (c *Catalog) ActiveStyles(ctx context.Context) ([]*models.StyleOption, error) {
	key := cache.ActiveStylesKey()
	if raw, ok, err := c.cache.Get(ctx, key); err != nil {
		slog.Warn("style catalog cache read failed", "error", err)
	} else if ok {
		var styles []*models.StyleOption
		if err := json.Unmarshal(raw, &styles); err == nil {
			return styles, nil
		}
		slog.Warn("discarding corrupt style catalog cache entry")
	}

	styles, err := c.store.ListActiveStyleOptions(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing active styles: %w", err)
	}
	if raw, err := json.Marshal(styles); err == nil {
		if err := c.cache.Set(ctx, key, raw, catalogTTL); err != nil {
			slog.Warn("style catalog cache write failed", "error", err)
		}
	}
	return styles, nil
}

// Resolve looks up the given ids, active or not. Unknown ids are absent from
// the result.
func (c *Catalog) Resolve(ctx context.Context, ids []int64) (map[int64]*models.StyleOption, error) {
	styles, err := c.store.GetStyleOptionsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolving styles: %w", err)
	}
	byID := make(map[int64]*models.StyleOption, len(styles))
	for _, st := range styles {
		byID[st.ID] = st
	}
	return byID, nil
}

// StyleParams describes a new style option.
type StyleParams struct {
	Name             string
	Description      string
	BackgroundType   string
	BackgroundConfig string
	IsActive         bool
}

// CreateStyle adds a style option to the catalog.
func (c *Catalog) CreateStyle(ctx context.Context, p StyleParams) (*models.StyleOption, error) {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return nil, validationf("name is required")
	}
	if !models.IsValidBackgroundType(p.BackgroundType) {
		return nil, validationf("unsupported background_type %q", p.BackgroundType)
	}
	cfg := strings.TrimSpace(p.BackgroundConfig)
	if cfg == "" {
		cfg = "{}"
	}
	if !json.Valid([]byte(cfg)) {
		return nil, validationf("background_config must be valid JSON")
	}

	style := &models.StyleOption{
		Name:             name,
		Description:      p.Description,
		BackgroundType:   p.BackgroundType,
		BackgroundConfig: cfg,
		IsActive:         p.IsActive,
	}
	if err := c.store.CreateStyleOption(ctx, style); err != nil {
		return nil, fmt.Errorf("creating style option: %w", err)
	}
	c.invalidate(ctx)
	return style, nil
}

// SetActive toggles whether a style can be requested by new jobs.
func (c *Catalog) SetActive(ctx context.Context, id int64, active bool) (*models.StyleOption, error) {
	style, err := c.store.SetStyleOptionActive(ctx, id, active)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrStyleOptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("updating style option: %w", err)
	}
	c.invalidate(ctx)
	return style, nil
}

func (c *Catalog) invalidate(ctx context.Context) {
	if err := c.cache.Delete(ctx, cache.ActiveStylesKey()); err != nil {
		slog.Warn("style catalog cache invalidation failed", "error", err)
	}
}
