package domain

import (
	"regexp"
	"strings"
	"time"
)

// TourDifficulty enumerates allowed difficulty grades.
type TourDifficulty string

const (
	DifficultyEasy      TourDifficulty = "easy"
	DifficultyMedium    TourDifficulty = "medium"
	DifficultyDifficult TourDifficulty = "difficult"
)

// Default rating values applied while a tour has no reviews.
const (
	DefaultRatingsAverage  = 4.5
	DefaultRatingsQuantity = 0
)

// Tour is the aggregate for bookable trips. Secret tours are excluded from
// all reads by the resource store's base filter.
type Tour struct {
	ID              string         `db:"id" json:"id"`
	Name            string         `db:"name" json:"name"`
	Slug            string         `db:"slug" json:"slug"`
	Price           float64        `db:"price" json:"price"`
	PriceDiscount   *float64       `db:"price_discount" json:"price_discount,omitempty"`
	Duration        int            `db:"duration" json:"duration"`
	MaxGroupSize    int            `db:"max_group_size" json:"max_group_size"`
	Difficulty      TourDifficulty `db:"difficulty" json:"difficulty"`
	RatingsAverage  float64        `db:"ratings_average" json:"ratings_average"`
	RatingsQuantity int            `db:"ratings_quantity" json:"ratings_quantity"`
	Summary         string         `db:"summary" json:"summary"`
	Description     string         `db:"description" json:"description"`
	ImageCover      string         `db:"image_cover" json:"image_cover"`
	Images          []string       `db:"images" json:"images"`
	StartDates      []time.Time    `db:"start_dates" json:"start_dates"`
	Secret          bool           `db:"secret" json:"-"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`

	// Guides is populated on demand, never stored on the tour row.
	Guides []User `db:"-" json:"guides,omitempty"`
}

var slugStrip = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives a URL-safe slug from a tour name.
func Slugify(name string) string {
	slug := slugStrip.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(slug, "-")
}
