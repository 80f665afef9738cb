package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/barrald/strava-uploader/pkg/domain/activity"
	"github.com/barrald/strava-uploader/pkg/integrations/strava"
	"github.com/barrald/strava-uploader/pkg/ratelimit"
	"github.com/barrald/strava-uploader/pkg/source"
)

// uploadTrack handles a row that references a GPX file. Duplicates are
// archived without being counted; any other upload failure is fatal.
func (i *Importer) uploadTrack(ctx context.Context, logger *slog.Logger, rec source.Record, res *Result) error {
	ref := rec.GPXFile
	logger = logger.With("file", ref)

	kind, ok := activity.Translate(rec.Type)
	if !ok {
		logger.Info("Invalid activity type, skipping file", "type", rec.Type)
		if _, err := i.files.Skip(ref); err != nil {
			return err
		}
		res.Outcome = OutcomeSkippedInvalidType
		res.Detail = rec.Type
		return nil
	}

	path := i.files.Path(ref)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn("No file found for activity")
			res.Outcome = OutcomeSkippedMissingFile
			res.Detail = ref
			return nil
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}

	logger.Debug("Uploading track", "type", kind.String())
	upload, err := ratelimit.Do(ctx, i.guard, "upload activity", func(ctx context.Context) (*strava.Upload, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()
		return i.dest.UploadActivity(ctx, strava.UploadRequest{
			FileName:     filepath.Base(ref),
			File:         f,
			DataType:     "gpx",
			ActivityType: kind.String(),
			Description:  rec.Notes,
		})
	})
	if err == nil {
		logger.Info("Upload accepted, waiting for processing", "upload_id", upload.ID)
		upload, err = ratelimit.Do(ctx, i.guard, "wait upload", func(ctx context.Context) (*strava.Upload, error) {
			return i.dest.WaitUpload(ctx, upload.ID)
		})
	}

	if err != nil {
		if !errors.Is(err, strava.ErrDuplicateActivity) {
			return fmt.Errorf("upload %s: %w", ref, err)
		}
		var uerr *strava.UploadError
		if errors.As(err, &uerr) {
			res.StravaID = uerr.DuplicateOf
		}
		logger.Info("Duplicate track, archiving", "duplicate_of", res.StravaID)
		if _, err := i.files.Archive(ref); err != nil {
			return err
		}
		res.Outcome = OutcomeDuplicate
		res.Detail = "duplicate of existing activity"
		return nil
	}

	logger.Info("Uploaded track", "strava_id", upload.ActivityID)
	if _, err := i.files.Archive(ref); err != nil {
		return err
	}
	res.Outcome = OutcomeCreated
	res.StravaID = upload.ActivityID
	return nil
}
