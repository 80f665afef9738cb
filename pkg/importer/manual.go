package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/barrald/strava-uploader/pkg/domain/activity"
	"github.com/barrald/strava-uploader/pkg/integrations/strava"
	"github.com/barrald/strava-uploader/pkg/ratelimit"
	"github.com/barrald/strava-uploader/pkg/source"
)

// createManual handles a row without a track file by creating a manual
// activity, unless one with the same generated name already exists.
func (i *Importer) createManual(ctx context.Context, logger *slog.Logger, mode activity.DistanceMode, rec source.Record, res *Result) error {
	if i.completed.Has(rec.ID) {
		logger.Warn("Activity should already be processed")
		res.Outcome = OutcomeSkippedAlreadyDone
		return nil
	}

	kind, ok := activity.Translate(rec.Type)
	if !ok {
		logger.Info("Invalid activity type, skipping", "type", rec.Type)
		res.Outcome = OutcomeSkippedInvalidType
		res.Detail = rec.Type
		return nil
	}

	seconds, err := activity.ParseDuration(rec.Duration)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedRow, err)
	}
	meters, err := mode.Meters(rec.Distance)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedRow, err)
	}
	start, err := source.ParseStart(rec.Date)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedRow, err)
	}

	name := activity.ManualName(start, kind)
	logger = logger.With("name", name)

	exists, err := i.activityExists(ctx, logger, name, start)
	if err != nil {
		return err
	}
	if exists {
		logger.Warn("Activity already created, skipping")
		res.Outcome = OutcomeDuplicate
		res.Detail = name
		return nil
	}

	logger.Info("Manually uploading activity")
	created, err := ratelimit.Do(ctx, i.guard, "create activity", func(ctx context.Context) (*strava.Activity, error) {
		return i.dest.CreateActivity(ctx, strava.NewActivity{
			Name:           name,
			Type:           kind.StravaType(),
			StartDateLocal: start,
			ElapsedTime:    seconds,
			Distance:       meters,
			Description:    rec.Notes,
		})
	})
	if errors.Is(err, strava.ErrConflict) {
		logger.Warn("Activity conflicts with an existing one, skipping", "error", err)
		res.Outcome = OutcomeSkippedConflict
		res.Detail = err.Error()
		return nil
	}
	if err != nil {
		return fmt.Errorf("create activity: %w", err)
	}

	logger.Debug("Manually created activity", "strava_id", created.ID)
	i.completed.Add(rec.ID)
	res.Outcome = OutcomeCreated
	res.Detail = name
	res.StravaID = created.ID
	return nil
}
