package importer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/barrald/strava-uploader/pkg/domain/activity"
	"github.com/barrald/strava-uploader/pkg/integrations/strava"
	"github.com/barrald/strava-uploader/pkg/ratelimit"
)

const defaultPageSize = 100

// activityExists reports whether an activity called name was recorded within
// the search buffer around start. Source timestamps have no zone, so the
// window is wide enough to cover any UTC offset.
func (i *Importer) activityExists(ctx context.Context, logger *slog.Logger, name string, start time.Time) (bool, error) {
	window, err := activity.DateRange(start, i.searchBuffer)
	if err != nil {
		return false, err
	}

	logger.Debug("Listing existing activities",
		"from", window.From.Format(time.RFC3339), "to", window.To.Format(time.RFC3339))

	for page := 1; ; page++ {
		params := strava.ListActivitiesParams{
			After:   window.From,
			Before:  window.To,
			Page:    page,
			PerPage: i.pageSize,
		}
		activities, err := ratelimit.Do(ctx, i.guard, "list activities", func(ctx context.Context) ([]strava.Activity, error) {
			return i.dest.ListActivities(ctx, params)
		})
		if err != nil {
			return false, fmt.Errorf("list activities: %w", err)
		}

		for _, a := range activities {
			if a.Name == name {
				return true, nil
			}
		}
		if len(activities) < i.pageSize {
			return false, nil
		}
	}
}
