package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	shared "github.com/barrald/strava-uploader/pkg"
)

// LocalStore keeps blobs as files under Root. The bucket is a sub-directory
// and may be empty.
type LocalStore struct {
	Root string
}

func (s *LocalStore) path(bucket, object string) string {
	return filepath.Join(s.Root, bucket, filepath.FromSlash(object))
}

func (s *LocalStore) Write(ctx context.Context, bucket, object string, data []byte) error {
	p := s.path(bucket, object)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(p), err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", p, err)
	}
	return nil
}

func (s *LocalStore) Read(ctx context.Context, bucket, object string) ([]byte, error) {
	data, err := os.ReadFile(s.path(bucket, object))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read %s: %w", object, shared.ErrBlobNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", object, err)
	}
	return data, nil
}
