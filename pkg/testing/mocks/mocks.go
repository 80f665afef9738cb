package mocks

import (
	"context"
	"fmt"

	"github.com/cloudevents/sdk-go/v2/event"

	"github.com/barrald/strava-uploader/pkg/integrations/strava"
)

// --- Mock Destination ---
type MockDestination struct {
	GetAthleteFunc     func(ctx context.Context) (*strava.Athlete, error)
	ListActivitiesFunc func(ctx context.Context, params strava.ListActivitiesParams) ([]strava.Activity, error)
	UploadActivityFunc func(ctx context.Context, req strava.UploadRequest) (*strava.Upload, error)
	WaitUploadFunc     func(ctx context.Context, uploadID int64) (*strava.Upload, error)
	CreateActivityFunc func(ctx context.Context, a strava.NewActivity) (*strava.Activity, error)
}

func (m *MockDestination) GetAthlete(ctx context.Context) (*strava.Athlete, error) {
	if m.GetAthleteFunc != nil {
		return m.GetAthleteFunc(ctx)
	}
	return &strava.Athlete{ID: 1, Firstname: "Test", Lastname: "Athlete"}, nil
}
func (m *MockDestination) ListActivities(ctx context.Context, params strava.ListActivitiesParams) ([]strava.Activity, error) {
	if m.ListActivitiesFunc != nil {
		return m.ListActivitiesFunc(ctx, params)
	}
	return nil, nil
}
func (m *MockDestination) UploadActivity(ctx context.Context, req strava.UploadRequest) (*strava.Upload, error) {
	if m.UploadActivityFunc != nil {
		return m.UploadActivityFunc(ctx, req)
	}
	return nil, fmt.Errorf("upload not configured")
}
func (m *MockDestination) WaitUpload(ctx context.Context, uploadID int64) (*strava.Upload, error) {
	if m.WaitUploadFunc != nil {
		return m.WaitUploadFunc(ctx, uploadID)
	}
	return &strava.Upload{ID: uploadID, ActivityID: uploadID + 1000}, nil
}
func (m *MockDestination) CreateActivity(ctx context.Context, a strava.NewActivity) (*strava.Activity, error) {
	if m.CreateActivityFunc != nil {
		return m.CreateActivityFunc(ctx, a)
	}
	return nil, fmt.Errorf("create not configured")
}

// --- Mock Publisher ---
type MockPublisher struct {
	PublishCloudEventFunc func(ctx context.Context, topic string, e event.Event) (string, error)
}

func (m *MockPublisher) PublishCloudEvent(ctx context.Context, topic string, e event.Event) (string, error) {
	if m.PublishCloudEventFunc != nil {
		return m.PublishCloudEventFunc(ctx, topic, e)
	}
	return "msg-id", nil
}

// --- Mock Storage ---
type MockBlobStore struct {
	WriteFunc func(ctx context.Context, bucket, object string, data []byte) error
	ReadFunc  func(ctx context.Context, bucket, object string) ([]byte, error)
}

func (m *MockBlobStore) Write(ctx context.Context, bucket, object string, data []byte) error {
	if m.WriteFunc != nil {
		return m.WriteFunc(ctx, bucket, object, data)
	}
	return nil
}
func (m *MockBlobStore) Read(ctx context.Context, bucket, object string) ([]byte, error) {
	if m.ReadFunc != nil {
		return m.ReadFunc(ctx, bucket, object)
	}
	return []byte("mock-data"), nil
}
