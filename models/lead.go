package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Lead is one business record imported from a completed job's CSV.
// CID, DataID and Link are the stable identifiers used for dedup, checked in
// that order. JSON-shaped CSV columns are kept as raw JSON; nil means the
// column was empty or unparseable.
type Lead struct {
	ID    uuid.UUID `json:"id" db:"id"`
	JobID uuid.UUID `json:"job_id" db:"job_id"`

	// Identifiers
	InputID string `json:"input_id" db:"input_id"`
	CID     string `json:"cid" db:"cid"`
	DataID  string `json:"data_id" db:"data_id"`

	// Basic info
	Title    string `json:"title" db:"title"`
	Link     string `json:"link" db:"link"`
	Category string `json:"category" db:"category"`

	// Contact info
	Address  string `json:"address" db:"address"`
	Phone    string `json:"phone" db:"phone"`
	Website  string `json:"website" db:"website"`
	PlusCode string `json:"plus_code" db:"plus_code"`
	Emails   string `json:"emails" db:"emails"`

	// Location
	Latitude        *float64        `json:"latitude" db:"latitude"`
	Longitude       *float64        `json:"longitude" db:"longitude"`
	Timezone        string          `json:"timezone" db:"timezone"`
	CompleteAddress json.RawMessage `json:"complete_address" db:"complete_address"`

	// Hours
	OpenHours    json.RawMessage `json:"open_hours" db:"open_hours"`
	PopularTimes json.RawMessage `json:"popular_times" db:"popular_times"`

	// Reviews
	ReviewCount         int             `json:"review_count" db:"review_count"`
	ReviewRating        *float64        `json:"review_rating" db:"review_rating"`
	ReviewsPerRating    json.RawMessage `json:"reviews_per_rating" db:"reviews_per_rating"`
	ReviewsLink         string          `json:"reviews_link" db:"reviews_link"`
	UserReviews         json.RawMessage `json:"user_reviews" db:"user_reviews"`
	UserReviewsExtended json.RawMessage `json:"user_reviews_extended" db:"user_reviews_extended"`

	// Media
	Thumbnail string          `json:"thumbnail" db:"thumbnail"`
	Images    json.RawMessage `json:"images" db:"images"`

	// Business details
	Status       string          `json:"status" db:"status"`
	Descriptions string          `json:"descriptions" db:"descriptions"`
	PriceRange   string          `json:"price_range" db:"price_range"`
	About        json.RawMessage `json:"about" db:"about"`
	Reservations json.RawMessage `json:"reservations" db:"reservations"`
	OrderOnline  json.RawMessage `json:"order_online" db:"order_online"`
	Menu         json.RawMessage `json:"menu" db:"menu"`
	Owner        json.RawMessage `json:"owner" db:"owner"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// HasWebsite reports whether the lead has a website worth fetching.
func (l *Lead) HasWebsite() bool {
	return l.Website != ""
}
