package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/barrald/strava-uploader/pkg/bootstrap"
	"github.com/barrald/strava-uploader/pkg/source"
)

const export = `Activity Id,Date,Type,Route Name,Distance (km),Duration,Average Pace,Notes,GPX File
a1,2019-04-02 07:15:00,Running,,5.0,25:30,5:06,,run.gpx
a2,2019-04-03 07:15:00,Cycling,,20,45:00,,,ride.gpx
a3,2019-04-04 07:15:00,Walking,,2,20:00,,,
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCheck(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "cardioActivities.csv"), []byte(export), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "run.gpx"), []byte("<gpx/>"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("STRAVA_UPLOADER_TOKEN", "tok")
	t.Setenv("REPORT_BUCKET", "")

	out, err := execute(t, "check", "--data-root", root)
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	for _, want := range []string{"distance column: Distance (km)", "rows:            3", "track files:     2 (1 missing)", "last run:        none"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestCheck_LastRun(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "cardioActivities.csv"), []byte(export), 0o644); err != nil {
		t.Fatal(err)
	}
	reports := filepath.Join(root, "uploader-output", "reports")
	if err := os.MkdirAll(reports, 0o755); err != nil {
		t.Fatal(err)
	}
	latest := `{"run_id":"run-7","created":4,"counts":{"created":4},"error":"rate limit exhausted"}`
	if err := os.WriteFile(filepath.Join(reports, "latest.json"), []byte(latest), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("STRAVA_UPLOADER_TOKEN", "tok")
	t.Setenv("REPORT_BUCKET", "")

	out, err := execute(t, "check", "--data-root", root)
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if want := "last run:        run-7 created 4 (aborted: rate limit exhausted)"; !strings.Contains(out, want) {
		t.Errorf("output missing %q:\n%s", want, out)
	}
}

func TestCheck_MissingCredential(t *testing.T) {
	t.Setenv("STRAVA_UPLOADER_TOKEN", "")
	t.Setenv("STRAVA_REFRESH_TOKEN", "")

	_, err := execute(t, "check", "--data-root", t.TempDir())
	if !errors.Is(err, bootstrap.ErrMissingCredential) {
		t.Errorf("error = %v, want ErrMissingCredential", err)
	}
}

func TestImport_MissingExport(t *testing.T) {
	t.Setenv("STRAVA_UPLOADER_TOKEN", "tok")

	_, err := execute(t, "import", "--data-root", t.TempDir())
	if !errors.Is(err, source.ErrInputNotFound) {
		t.Errorf("error = %v, want ErrInputNotFound", err)
	}
}

func TestLoadConfig_FlagsOverride(t *testing.T) {
	t.Setenv("DATA_ROOT_DIR", "from-env")
	path := filepath.Join(t.TempDir(), "uploader.yaml")
	if err := os.WriteFile(path, []byte("data_root: from-file\ncardio_file: other.csv\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(&options{configFile: path, dataRoot: "from-flag"})
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.DataRoot != "from-flag" {
		t.Errorf("DataRoot = %q, want from-flag", cfg.DataRoot)
	}
	if cfg.CardioFile != "other.csv" {
		t.Errorf("CardioFile = %q, want other.csv", cfg.CardioFile)
	}
}
