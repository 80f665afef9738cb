// Package report persists run summaries and announces finished runs.
package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	shared "github.com/barrald/strava-uploader/pkg"
	"github.com/barrald/strava-uploader/pkg/importer"
	infrapubsub "github.com/barrald/strava-uploader/pkg/infrastructure/pubsub"
)

// ImportCompleted is the payload of the run-completed event.
type ImportCompleted struct {
	RunID   string                   `json:"run_id"`
	Athlete string                   `json:"athlete,omitempty"`
	Created int                      `json:"created"`
	Counts  map[importer.Outcome]int `json:"counts"`
	Aborted bool                     `json:"aborted"`
	Error   string                   `json:"error,omitempty"`
	Report  string                   `json:"report,omitempty"`
}

// Reporter writes the summary to a blob store and publishes an event.
// Either side may be nil.
type Reporter struct {
	Store  shared.BlobStore
	Bucket string
	Pub    shared.Publisher
	Topic  string
	Logger *slog.Logger
}

// LatestObject always holds the summary of the most recent run.
const LatestObject = "reports/latest.json"

var marshalSummary = func(s *importer.Summary) ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// ObjectName is where the summary of a run is stored within the bucket.
func ObjectName(runID string) string {
	return fmt.Sprintf("reports/%s.json", runID)
}

// Report stores and announces s. Failures are logged as warnings and
// returned joined; they never affect the outcome of the run itself.
func (r *Reporter) Report(ctx context.Context, s *importer.Summary) error {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "report", "run_id", s.RunID)

	var errs []error
	object := ""
	if r.Store != nil {
		if err := r.store(ctx, s); err != nil {
			logger.Warn("Failed to write run report", "error", err)
			errs = append(errs, err)
		} else {
			object = ObjectName(s.RunID)
			logger.Info("Wrote run report", "bucket", r.Bucket, "object", object)
		}
	}

	if r.Pub != nil {
		payload := ImportCompleted{
			RunID:   s.RunID,
			Athlete: s.Athlete,
			Created: s.Created,
			Counts:  s.Counts,
			Aborted: s.Aborted(),
			Error:   s.Error,
			Report:  object,
		}
		e, err := infrapubsub.NewCloudEvent(infrapubsub.EventSourceUploader, infrapubsub.EventTypeImportCompleted, s.RunID, payload)
		if err != nil {
			return errors.Join(append(errs, fmt.Errorf("build event: %w", err))...)
		}
		topic := r.Topic
		if topic == "" {
			topic = infrapubsub.TopicImportCompleted
		}
		msgID, err := r.Pub.PublishCloudEvent(ctx, topic, e)
		if err != nil {
			logger.Warn("Failed to publish run event", "topic", topic, "error", err)
			errs = append(errs, err)
		} else {
			logger.Debug("Published run event", "topic", topic, "message_id", msgID)
		}
	}

	return errors.Join(errs...)
}

// store writes the run object first and only then moves the latest pointer.
func (r *Reporter) store(ctx context.Context, s *importer.Summary) error {
	data, err := marshalSummary(s)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	if err := r.Store.Write(ctx, r.Bucket, ObjectName(s.RunID), data); err != nil {
		return err
	}
	if err := r.Store.Write(ctx, r.Bucket, LatestObject, data); err != nil {
		return fmt.Errorf("update latest report: %w", err)
	}
	return nil
}

// Latest reads the summary of the most recent run. It returns nil and no
// error when no run has been reported yet.
func Latest(ctx context.Context, store shared.BlobStore, bucket string) (*importer.Summary, error) {
	data, err := store.Read(ctx, bucket, LatestObject)
	if errors.Is(err, shared.ErrBlobNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var s importer.Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode %s: %w", LatestObject, err)
	}
	return &s, nil
}
