package strava

import (
	"io"
	"time"
)

// Athlete is the authenticated account.
type Athlete struct {
	ID        int64  `json:"id"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
}

// Activity is a summary activity as returned by the list endpoint.
type Activity struct {
	ID             int64   `json:"id"`
	Name           string  `json:"name"`
	Type           string  `json:"type"`
	SportType      string  `json:"sport_type"`
	StartDate      string  `json:"start_date"`
	StartDateLocal string  `json:"start_date_local"`
	ElapsedTime    int     `json:"elapsed_time"` // seconds
	Distance       float64 `json:"distance"`     // meters
	Description    string  `json:"description,omitempty"`
	Manual         bool    `json:"manual"`
}

// NewActivity describes a manually entered activity.
type NewActivity struct {
	Name           string
	Type           string
	StartDateLocal time.Time
	ElapsedTime    int     // seconds
	Distance       float64 // meters
	Description    string
}

// ListActivitiesParams bounds an activity listing.
type ListActivitiesParams struct {
	After   time.Time
	Before  time.Time
	Page    int
	PerPage int
}

// UploadRequest is a track file submission.
type UploadRequest struct {
	FileName     string
	File         io.Reader
	DataType     string // gpx, fit or tcx
	ActivityType string
	Description  string
	ExternalID   string
}

// Upload is the processing state of a submitted file.
type Upload struct {
	ID         int64  `json:"id"`
	ExternalID string `json:"external_id"`
	Error      string `json:"error"`
	Status     string `json:"status"`
	ActivityID int64  `json:"activity_id"`
}

// Err returns the classified processing error, or nil.
func (u *Upload) Err() error {
	if u == nil || u.Error == "" {
		return nil
	}
	return classifyUploadError(u.ID, u.Error)
}

// Done reports whether processing finished, successfully or not.
func (u *Upload) Done() bool {
	return u.ActivityID != 0 || u.Error != ""
}

// RateLimitUsage is the latest window usage reported by the API.
// Index 0 is the 15 minute window, index 1 the daily window.
type RateLimitUsage struct {
	Limit     [2]int
	Usage     [2]int
	UpdatedAt time.Time
}
