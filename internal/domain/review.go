package domain

import "time"

// Review is a user's rating of a tour. One review per (tour, user) pair,
// enforced by a unique index.
type Review struct {
	ID        string    `db:"id" json:"id"`
	Review    string    `db:"review" json:"review"`
	Rating    float64   `db:"rating" json:"rating"`
	TourID    string    `db:"tour_id" json:"tour_id"`
	UserID    string    `db:"user_id" json:"user_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	// Author is populated on demand with the reviewer's public fields.
	Author *User `db:"-" json:"author,omitempty"`
}

// RatingStats aggregates review ratings for one tour.
type RatingStats struct {
	Quantity int
	Average  float64
}
