// Package importer drives a cardio export into Strava one row at a time.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/barrald/strava-uploader/pkg/disposition"
	"github.com/barrald/strava-uploader/pkg/domain/activity"
	"github.com/barrald/strava-uploader/pkg/integrations/strava"
	"github.com/barrald/strava-uploader/pkg/ratelimit"
	"github.com/barrald/strava-uploader/pkg/source"
)

// ErrMalformedRow is a row whose duration, distance or date cannot be read.
var ErrMalformedRow = errors.New("malformed row")

// Destination is the part of the Strava API the importer calls.
type Destination interface {
	GetAthlete(ctx context.Context) (*strava.Athlete, error)
	ListActivities(ctx context.Context, params strava.ListActivitiesParams) ([]strava.Activity, error)
	UploadActivity(ctx context.Context, req strava.UploadRequest) (*strava.Upload, error)
	WaitUpload(ctx context.Context, uploadID int64) (*strava.Upload, error)
	CreateActivity(ctx context.Context, a strava.NewActivity) (*strava.Activity, error)
}

// Rows yields source records in file order.
type Rows interface {
	Next() (source.Record, error)
	DistanceMode() activity.DistanceMode
}

// Files moves track files once they have been dealt with.
type Files interface {
	Path(ref string) string
	Archive(ref string) (disposition.Disposition, error)
	Skip(ref string) (disposition.Disposition, error)
}

type Option func(*Importer)

// WithSearchBuffer sets how far either side of a start time the existence
// check looks.
func WithSearchBuffer(d time.Duration) Option {
	return func(i *Importer) {
		if d > 0 {
			i.searchBuffer = d
		}
	}
}

func WithPageSize(n int) Option {
	return func(i *Importer) {
		if n > 0 {
			i.pageSize = n
		}
	}
}

// WithClock replaces time.Now for summary timestamps.
func WithClock(now func() time.Time) Option {
	return func(i *Importer) { i.now = now }
}

// WithRunID fixes the run id instead of generating one.
func WithRunID(id string) Option {
	return func(i *Importer) { i.runID = id }
}

// Importer runs one import. It is not safe for concurrent use; rows are
// processed strictly in order.
type Importer struct {
	dest   Destination
	guard  *ratelimit.Guard
	files  Files
	logger *slog.Logger

	completed    *CompletionSet
	searchBuffer time.Duration
	pageSize     int
	now          func() time.Time
	runID        string
}

func New(dest Destination, guard *ratelimit.Guard, files Files, logger *slog.Logger, opts ...Option) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	i := &Importer{
		dest:         dest,
		guard:        guard,
		files:        files,
		logger:       logger.With("component", "importer"),
		completed:    NewCompletionSet(),
		searchBuffer: activity.DefaultSearchBuffer,
		pageSize:     defaultPageSize,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.runID == "" {
		i.runID = uuid.NewString()
	}
	return i
}

// Completed returns the run's completion set.
func (i *Importer) Completed() *CompletionSet {
	return i.completed
}

// Run authenticates and then processes every row. On a fatal error it stops
// at the failing row and returns the partial summary with the error.
func (i *Importer) Run(ctx context.Context, rows Rows) (*Summary, error) {
	summary := newSummary(i.runID, i.now())
	logger := i.logger.With("run_id", i.runID)

	fail := func(err error) (*Summary, error) {
		summary.FinishedAt = i.now()
		summary.Error = err.Error()
		return summary, err
	}

	logger.Debug("Connecting to Strava")
	athlete, err := ratelimit.Do(ctx, i.guard, "get athlete", i.dest.GetAthlete)
	if err != nil {
		logger.Error("Authentication failed", "error", err)
		return fail(fmt.Errorf("authenticate: %w", err))
	}
	summary.Athlete = fmt.Sprintf("%s %s", athlete.Firstname, athlete.Lastname)
	logger.Info("Now authenticated", "athlete", summary.Athlete)

	mode := rows.DistanceMode()
	for {
		rec, err := rows.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fail(fmt.Errorf("read source: %w", err))
		}

		rowLog := logger.With("activity_id", rec.ID, "line", rec.Line)
		result, err := i.process(ctx, rowLog, mode, rec)
		summary.record(result)
		if err != nil {
			rowLog.Error("Import aborted", "error", err)
			return fail(fmt.Errorf("activity %s (line %d): %w", rec.ID, rec.Line, err))
		}
		rowLog.Debug("Row done", "outcome", string(result.Outcome))
	}

	summary.FinishedAt = i.now()
	logger.Info(summary.Line(), "created", summary.Created)
	return summary, nil
}

// process routes a row to the upload or manual path. The returned Result
// always carries the row's single outcome; err is non-nil only when the run
// must stop.
func (i *Importer) process(ctx context.Context, logger *slog.Logger, mode activity.DistanceMode, rec source.Record) (Result, error) {
	res := Result{Line: rec.Line, ActivityID: rec.ID}

	var err error
	if rec.HasTrack() {
		err = i.uploadTrack(ctx, logger, rec, &res)
	} else {
		err = i.createManual(ctx, logger, mode, rec, &res)
	}
	if err != nil {
		res.Outcome = OutcomeFatal
		res.Detail = err.Error()
	}
	return res, err
}
