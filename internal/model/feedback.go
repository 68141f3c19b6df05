package model

import "time"

const (
	ReviewStatusVisible = "visible"
	ReviewStatusHidden  = "hidden"
)

var ValidReviewStatuses = map[string]bool{
	ReviewStatusVisible: true,
	ReviewStatusHidden:  true,
}

type Review struct {
	ID        int64     `json:"id" db:"id"`
	PluginID  int64     `json:"plugin_id" db:"plugin_id"`
	AccountID string    `json:"account_id" db:"account_id"`
	Rating    int       `json:"rating" db:"rating"`
	Comment   string    `json:"comment" db:"comment"`
	Status    string    `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ReviewSummary is a plugin's visible reviews with their average rating.
type ReviewSummary struct {
	PluginID      int64    `json:"plugin_id"`
	AverageRating float64  `json:"average_rating"`
	Count         int      `json:"count"`
	Reviews       []Review `json:"reviews"`
}

var ValidBugStatuses = map[string]bool{
	"open":      true,
	"confirmed": true,
	"fixed":     true,
	"closed":    true,
}

var ValidSuggestionStatuses = map[string]bool{
	"open":        true,
	"accepted":    true,
	"rejected":    true,
	"implemented": true,
}

// Submission is a bug report or a suggestion. Both share one shape and the
// same posting cooldown.
type Submission struct {
	ID        int64     `json:"id" db:"id"`
	PluginID  int64     `json:"plugin_id" db:"plugin_id"`
	AccountID string    `json:"account_id" db:"account_id"`
	Comment   string    `json:"comment" db:"comment"`
	Status    string    `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
