package strava

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Error classes surfaced by the client. Callers branch on these with
// errors.Is rather than on response text.
var (
	ErrRateLimitExceeded = errors.New("strava: rate limit exceeded")
	ErrConnectivity      = errors.New("strava: no connection")
	ErrUnauthorized      = errors.New("strava: unauthorized")
	ErrConflict          = errors.New("strava: conflicting activity")
	ErrDuplicateActivity = errors.New("strava: duplicate of existing activity")
	ErrUploadFailed      = errors.New("strava: upload failed")
)

var duplicateOfPattern = regexp.MustCompile(`duplicate of\D*(\d+)`)

// UploadError is an upload that Strava accepted but failed to process.
type UploadError struct {
	UploadID    int64
	Message     string
	DuplicateOf int64
	kind        error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %d: %s", e.UploadID, e.Message)
}

func (e *UploadError) Unwrap() error {
	return e.kind
}

// classifyUploadError turns the human-readable processing error of an
// upload into an UploadError of a known class.
func classifyUploadError(uploadID int64, message string) *UploadError {
	uerr := &UploadError{UploadID: uploadID, Message: message, kind: ErrUploadFailed}
	if !strings.Contains(strings.ToLower(message), "duplicate of") {
		return uerr
	}
	uerr.kind = ErrDuplicateActivity
	if m := duplicateOfPattern.FindStringSubmatch(message); m != nil {
		uerr.DuplicateOf, _ = strconv.ParseInt(m[1], 10, 64)
	}
	return uerr
}

// IsRateLimited reports whether err is a rate limit signal.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimitExceeded)
}
