package importer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barrald/strava-uploader/pkg/disposition"
	"github.com/barrald/strava-uploader/pkg/integrations/strava"
	"github.com/barrald/strava-uploader/pkg/ratelimit"
	"github.com/barrald/strava-uploader/pkg/source"
	"github.com/barrald/strava-uploader/pkg/testing/mocks"
)

const exportHeader = "Activity Id,Date,Type,Route Name,Distance (mi),Duration,Average Pace,Notes,GPX File\n"

// fakeStrava keeps created activities in memory and rejects a second upload
// of the same file name as a duplicate.
type fakeStrava struct {
	activities []strava.Activity
	uploads    map[int64]string
	byFile     map[string]int64
	nextID     int64

	lists   int
	creates []strava.NewActivity
}

func newFakeStrava() *fakeStrava {
	return &fakeStrava{uploads: map[int64]string{}, byFile: map[string]int64{}, nextID: 100}
}

func (f *fakeStrava) destination() *mocks.MockDestination {
	return &mocks.MockDestination{
		ListActivitiesFunc: func(ctx context.Context, p strava.ListActivitiesParams) ([]strava.Activity, error) {
			f.lists++
			var in []strava.Activity
			for _, a := range f.activities {
				start, _ := time.Parse("2006-01-02T15:04:05", a.StartDateLocal)
				if start.After(p.After) && start.Before(p.Before) {
					in = append(in, a)
				}
			}
			lo := (p.Page - 1) * p.PerPage
			if lo >= len(in) {
				return nil, nil
			}
			hi := lo + p.PerPage
			if hi > len(in) {
				hi = len(in)
			}
			return in[lo:hi], nil
		},
		UploadActivityFunc: func(ctx context.Context, req strava.UploadRequest) (*strava.Upload, error) {
			if _, err := io.ReadAll(req.File); err != nil {
				return nil, err
			}
			f.nextID++
			f.uploads[f.nextID] = req.FileName
			return &strava.Upload{ID: f.nextID, Status: "Your activity is still being processed."}, nil
		},
		WaitUploadFunc: func(ctx context.Context, id int64) (*strava.Upload, error) {
			name := f.uploads[id]
			if existing, ok := f.byFile[name]; ok {
				u := &strava.Upload{ID: id, Error: fmt.Sprintf("%s duplicate of activity %d", name, existing)}
				return u, u.Err()
			}
			f.nextID++
			f.byFile[name] = f.nextID
			f.activities = append(f.activities, strava.Activity{ID: f.nextID, Name: "Morning Run"})
			return &strava.Upload{ID: id, ActivityID: f.nextID}, nil
		},
		CreateActivityFunc: func(ctx context.Context, a strava.NewActivity) (*strava.Activity, error) {
			f.creates = append(f.creates, a)
			f.nextID++
			created := strava.Activity{
				ID:             f.nextID,
				Name:           a.Name,
				StartDateLocal: a.StartDateLocal.Format("2006-01-02T15:04:05"),
				Distance:       a.Distance,
				ElapsedTime:    a.ElapsedTime,
			}
			f.activities = append(f.activities, created)
			return &created, nil
		},
	}
}

type harness struct {
	root   string
	sleeps int
	guard  *ratelimit.Guard
	files  *disposition.Manager
}

func newHarness(t *testing.T, tracks ...string) *harness {
	t.Helper()
	h := &harness{root: t.TempDir()}
	for _, name := range tracks {
		require.NoError(t, os.WriteFile(filepath.Join(h.root, name), []byte("<gpx/>"), 0o644))
	}
	h.guard = &ratelimit.Guard{
		Policy:        ratelimit.DefaultPolicy,
		IsRateLimited: strava.IsRateLimited,
		Sleep: func(ctx context.Context, d time.Duration) error {
			h.sleeps++
			return nil
		},
	}
	h.files = disposition.NewManager(h.root, nil)
	return h
}

func (h *harness) run(t *testing.T, dest Destination, export string) (*Summary, error) {
	t.Helper()
	rows, err := source.NewReader(strings.NewReader(exportHeader + export))
	require.NoError(t, err)
	return New(dest, h.guard, h.files, nil, WithRunID("run-1")).Run(context.Background(), rows)
}

func (h *harness) exists(rel ...string) bool {
	_, err := os.Stat(filepath.Join(append([]string{h.root}, rel...)...))
	return err == nil
}

func outcomes(s *Summary) []Outcome {
	var out []Outcome
	for _, r := range s.Results {
		out = append(out, r.Outcome)
	}
	return out
}

const threeRows = `a1,2019-04-02 07:15:00,Running,,3.10,25:30,8:13,Easy run,run.gpx
a2,2019-04-02 18:00:00,Yoga,,0,1:00:00,,,yoga.gpx
a3,2019-04-03 07:15:00,Running,,3.1,25:30,8:13,Treadmill,
`

func TestRun_EndToEnd(t *testing.T) {
	h := newHarness(t, "run.gpx", "yoga.gpx")
	fake := newFakeStrava()

	summary, err := h.run(t, fake.destination(), threeRows)
	require.NoError(t, err)

	assert.Equal(t, []Outcome{OutcomeCreated, OutcomeSkippedInvalidType, OutcomeCreated}, outcomes(summary))
	assert.Equal(t, 2, summary.Created)
	assert.Equal(t, "Test Athlete", summary.Athlete)
	assert.Equal(t, "run-1", summary.RunID)
	assert.False(t, summary.Aborted())
	assert.Equal(t, "Complete! Created approximately [2] activities.", summary.Line())

	assert.True(t, h.exists("uploader-output", "archive", "run.gpx"))
	assert.True(t, h.exists("uploader-output", "skipped", "yoga.gpx"))
	assert.False(t, h.exists("run.gpx"))

	require.Len(t, fake.creates, 1)
	created := fake.creates[0]
	assert.Equal(t, "Evening run (Manual)", created.Name)
	assert.Equal(t, "Run", created.Type)
	assert.Equal(t, 1530, created.ElapsedTime)
	assert.InDelta(t, 4988.97, created.Distance, 0.01)
	assert.Equal(t, "Treadmill", created.Description)
	assert.Zero(t, h.sleeps)
}

func TestRun_SecondRunCreatesNothing(t *testing.T) {
	h := newHarness(t, "run.gpx", "yoga.gpx")
	fake := newFakeStrava()
	dest := fake.destination()

	first, err := h.run(t, dest, threeRows)
	require.NoError(t, err)
	require.Equal(t, 2, first.Created)

	second, err := h.run(t, dest, threeRows)
	require.NoError(t, err)
	assert.Zero(t, second.Created)
	assert.Equal(t, []Outcome{OutcomeSkippedMissingFile, OutcomeSkippedInvalidType, OutcomeDuplicate}, outcomes(second))
	assert.Len(t, fake.creates, 1)
}

func TestRun_RateLimitedTwiceAborts(t *testing.T) {
	h := newHarness(t, "run.gpx")
	fake := newFakeStrava()
	dest := fake.destination()
	dest.UploadActivityFunc = func(ctx context.Context, req strava.UploadRequest) (*strava.Upload, error) {
		return nil, fmt.Errorf("%w: 429", strava.ErrRateLimitExceeded)
	}

	summary, err := h.run(t, dest, threeRows)
	require.Error(t, err)
	assert.ErrorIs(t, err, ratelimit.ErrLimitExhausted)
	assert.True(t, summary.Aborted())
	assert.Equal(t, []Outcome{OutcomeFatal}, outcomes(summary))
	assert.Equal(t, 1, h.sleeps)
	assert.Empty(t, fake.creates, "no further rows may be processed")
	assert.True(t, h.exists("run.gpx"), "file must stay in place")
}

func TestRun_RateLimitedOnceRecovers(t *testing.T) {
	h := newHarness(t)
	fake := newFakeStrava()
	dest := fake.destination()
	calls := 0
	dest.GetAthleteFunc = func(ctx context.Context) (*strava.Athlete, error) {
		calls++
		if calls == 1 {
			return nil, strava.ErrRateLimitExceeded
		}
		return &strava.Athlete{Firstname: "Jane", Lastname: "Doe"}, nil
	}

	summary, err := h.run(t, dest, "")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", summary.Athlete)
	assert.Equal(t, 1, h.sleeps)
}

func TestRun_AuthenticationFailure(t *testing.T) {
	h := newHarness(t)
	dest := newFakeStrava().destination()
	dest.GetAthleteFunc = func(ctx context.Context) (*strava.Athlete, error) {
		return nil, strava.ErrUnauthorized
	}

	summary, err := h.run(t, dest, threeRows)
	assert.ErrorIs(t, err, strava.ErrUnauthorized)
	assert.Empty(t, summary.Results)
}

func TestRun_DuplicateUploadIsArchivedNotCounted(t *testing.T) {
	h := newHarness(t, "run.gpx")
	dest := newFakeStrava().destination()
	dest.WaitUploadFunc = func(ctx context.Context, id int64) (*strava.Upload, error) {
		u := &strava.Upload{ID: id, Error: "run.gpx duplicate of activity 4242"}
		return u, u.Err()
	}

	summary, err := h.run(t, dest, "a1,2019-04-02 07:15:00,Running,,3.10,25:30,8:13,,run.gpx\n")
	require.NoError(t, err)
	assert.Equal(t, []Outcome{OutcomeDuplicate}, outcomes(summary))
	assert.Equal(t, int64(4242), summary.Results[0].StravaID)
	assert.Zero(t, summary.Created)
	assert.True(t, h.exists("uploader-output", "archive", "run.gpx"))
}

func TestRun_UploadFailureIsFatal(t *testing.T) {
	h := newHarness(t, "run.gpx", "ride.gpx")
	dest := newFakeStrava().destination()
	dest.WaitUploadFunc = func(ctx context.Context, id int64) (*strava.Upload, error) {
		u := &strava.Upload{ID: id, Error: "Time information is missing from file."}
		return u, u.Err()
	}

	summary, err := h.run(t, dest, `a1,2019-04-02 07:15:00,Running,,3.10,25:30,8:13,,run.gpx
a2,2019-04-03 07:15:00,Cycling,,10,45:00,,,ride.gpx
`)
	assert.ErrorIs(t, err, strava.ErrUploadFailed)
	assert.Equal(t, []Outcome{OutcomeFatal}, outcomes(summary))
	assert.True(t, h.exists("run.gpx"))
	assert.True(t, h.exists("ride.gpx"))
}

func TestRun_MissingTrackIsSkipped(t *testing.T) {
	h := newHarness(t)
	fake := newFakeStrava()

	summary, err := h.run(t, fake.destination(), "a1,2019-04-02 07:15:00,Running,,3.10,25:30,8:13,,gone.gpx\n")
	require.NoError(t, err)
	assert.Equal(t, []Outcome{OutcomeSkippedMissingFile}, outcomes(summary))
	assert.Empty(t, fake.uploads)
}

func TestRun_ManualPaths(t *testing.T) {
	t.Run("repeated id is already done", func(t *testing.T) {
		h := newHarness(t)
		fake := newFakeStrava()
		summary, err := h.run(t, fake.destination(), `m1,2019-04-03 07:15:00,Running,,3.1,25:30,,,
m1,2019-04-03 07:15:00,Running,,3.1,25:30,,,
`)
		require.NoError(t, err)
		assert.Equal(t, []Outcome{OutcomeCreated, OutcomeSkippedAlreadyDone}, outcomes(summary))
		assert.Len(t, fake.creates, 1)
	})

	t.Run("unmapped type makes no remote call", func(t *testing.T) {
		h := newHarness(t)
		fake := newFakeStrava()
		summary, err := h.run(t, fake.destination(), "m1,2019-04-03 07:15:00,Yoga,,0,1:00:00,,,\n")
		require.NoError(t, err)
		assert.Equal(t, []Outcome{OutcomeSkippedInvalidType}, outcomes(summary))
		assert.Zero(t, fake.lists)
	})

	t.Run("conflict is recoverable", func(t *testing.T) {
		h := newHarness(t)
		fake := newFakeStrava()
		dest := fake.destination()
		create := dest.CreateActivityFunc
		dest.CreateActivityFunc = func(ctx context.Context, a strava.NewActivity) (*strava.Activity, error) {
			if a.StartDateLocal.Day() == 3 {
				return nil, fmt.Errorf("%w: 409", strava.ErrConflict)
			}
			return create(ctx, a)
		}

		summary, err := h.run(t, dest, `m1,2019-04-03 07:15:00,Running,,3.1,25:30,,,
m2,2019-04-05 19:00:00,Walking,,1,20:00,,,
`)
		require.NoError(t, err)
		assert.Equal(t, []Outcome{OutcomeSkippedConflict, OutcomeCreated}, outcomes(summary))
		assert.Equal(t, 1, summary.Created)
	})

	t.Run("connectivity loss is fatal without retry", func(t *testing.T) {
		h := newHarness(t)
		dest := newFakeStrava().destination()
		calls := 0
		dest.CreateActivityFunc = func(ctx context.Context, a strava.NewActivity) (*strava.Activity, error) {
			calls++
			return nil, fmt.Errorf("%w: dial tcp: refused", strava.ErrConnectivity)
		}
		_, err := h.run(t, dest, "m1,2019-04-03 07:15:00,Running,,3.1,25:30,,,\n")
		assert.ErrorIs(t, err, strava.ErrConnectivity)
		assert.Equal(t, 1, calls)
		assert.Zero(t, h.sleeps)
	})

	t.Run("malformed duration aborts", func(t *testing.T) {
		h := newHarness(t)
		summary, err := h.run(t, newFakeStrava().destination(), "m1,2019-04-03 07:15:00,Running,,3.1,25,,,\n")
		assert.ErrorIs(t, err, ErrMalformedRow)
		assert.Equal(t, []Outcome{OutcomeFatal}, outcomes(summary))
		assert.Contains(t, err.Error(), "line 2")
	})
}

func TestActivityExists_Pages(t *testing.T) {
	h := newHarness(t)
	pages := 0
	dest := &mocks.MockDestination{
		ListActivitiesFunc: func(ctx context.Context, p strava.ListActivitiesParams) ([]strava.Activity, error) {
			pages++
			if p.Page == 1 {
				return []strava.Activity{{Name: "Morning Ride"}, {Name: "Lunch Walk"}}, nil
			}
			return []strava.Activity{{Name: "Morning run (Manual)"}}, nil
		},
	}
	imp := New(dest, h.guard, h.files, nil, WithPageSize(2))
	start := time.Date(2019, 4, 3, 7, 15, 0, 0, time.UTC)

	found, err := imp.activityExists(context.Background(), imp.logger, "Morning run (Manual)", start)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 2, pages)

	pages = 0
	found, err = imp.activityExists(context.Background(), imp.logger, "Night run (Manual)", start)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 2, pages)
}

func TestActivityExists_Window(t *testing.T) {
	h := newHarness(t)
	var got strava.ListActivitiesParams
	dest := &mocks.MockDestination{
		ListActivitiesFunc: func(ctx context.Context, p strava.ListActivitiesParams) ([]strava.Activity, error) {
			got = p
			return nil, nil
		},
	}
	imp := New(dest, h.guard, h.files, nil)
	start := time.Date(2019, 4, 3, 7, 15, 0, 0, time.UTC)

	_, err := imp.activityExists(context.Background(), imp.logger, "x", start)
	require.NoError(t, err)
	assert.Equal(t, start.Add(-12*time.Hour), got.After)
	assert.Equal(t, start.Add(12*time.Hour), got.Before)

	_, err = imp.activityExists(context.Background(), imp.logger, "x", time.Time{})
	assert.Error(t, err)
}

func TestCompletionSet(t *testing.T) {
	c := NewCompletionSet()
	assert.False(t, c.Has("a"))
	c.Add("a")
	c.Add("a")
	assert.True(t, c.Has("a"))
	assert.Equal(t, 1, c.Len())
}

func TestSummaryLine(t *testing.T) {
	s := newSummary("id", time.Now())
	for i := 0; i < 1234; i++ {
		s.record(Result{Outcome: OutcomeCreated})
	}
	assert.Equal(t, "Complete! Created approximately [1234] activities.", s.Line())
	assert.Equal(t, 1234, s.Counts[OutcomeCreated])
}
