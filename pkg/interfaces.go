package shared

import (
	"context"
	"errors"

	"github.com/cloudevents/sdk-go/v2/event"
)

// --- Messaging Interfaces ---

type Publisher interface {
	PublishCloudEvent(ctx context.Context, topic string, e event.Event) (string, error)
}

// --- Storage Interfaces ---

// ErrBlobNotFound is wrapped by BlobStore.Read when the object does not exist.
var ErrBlobNotFound = errors.New("blob not found")

type BlobStore interface {
	Write(ctx context.Context, bucket, object string, data []byte) error
	Read(ctx context.Context, bucket, object string) ([]byte, error)
}
