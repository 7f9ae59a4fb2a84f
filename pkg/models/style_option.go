package models

import "time"

const (
	BackgroundSolidColor    = "solid_color"
	BackgroundBlurredOffice = "blurred_office"
	BackgroundGradient      = "gradient"
	BackgroundStudio        = "studio"
)

var backgroundTypes = map[string]bool{
	BackgroundSolidColor:    true,
	BackgroundBlurredOffice: true,
	BackgroundGradient:      true,
	BackgroundStudio:        true,
}

// IsValidBackgroundType reports whether t is one of the supported background types.
func IsValidBackgroundType(t string) bool {
	return backgroundTypes[t]
}

// StyleOption is a catalog entry describing one headshot background style.
// BackgroundConfig is an opaque JSON document interpreted by the generator.
type StyleOption struct {
	ID               int64     `db:"id"                json:"id"`
	Name             string    `db:"name"              json:"name"`
	Description      string    `db:"description"       json:"description"`
	BackgroundType   string    `db:"background_type"   json:"background_type"`
	BackgroundConfig string    `db:"background_config" json:"background_config"`
	IsActive         bool      `db:"is_active"         json:"is_active"`
	CreatedAt        time.Time `db:"created_at"        json:"created_at"`
}
