// Package bootstrap loads configuration and wires the services a run uses.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"

	shared "github.com/barrald/strava-uploader/pkg"
	"github.com/barrald/strava-uploader/pkg/disposition"
	"github.com/barrald/strava-uploader/pkg/importer"
	"github.com/barrald/strava-uploader/pkg/infrastructure/oauth"
	infrapubsub "github.com/barrald/strava-uploader/pkg/infrastructure/pubsub"
	infrastorage "github.com/barrald/strava-uploader/pkg/infrastructure/storage"
	"github.com/barrald/strava-uploader/pkg/integrations/strava"
	"github.com/barrald/strava-uploader/pkg/ratelimit"
	"github.com/barrald/strava-uploader/pkg/report"
)

// Service holds initialized dependencies
type Service struct {
	Config   *Config
	Logger   *slog.Logger
	Strava   *strava.Client
	Guard    *ratelimit.Guard
	Files    *disposition.Manager
	Reporter *report.Reporter

	closers []func() error
}

// NewTokenSource picks a refreshing source when refresh credentials are
// configured and a static one otherwise.
func NewTokenSource(cfg *Config) oauth.TokenSource {
	if cfg.CanRefresh() {
		return oauth.NewRefreshingTokenSource(cfg.ClientID, cfg.ClientSecret, cfg.AccessToken, cfg.RefreshToken)
	}
	return &oauth.StaticTokenSource{AccessToken: cfg.AccessToken}
}

// NewService initializes the Strava client, retry guard, file disposition
// and reporting for cfg.
func NewService(ctx context.Context, cfg *Config, logger *slog.Logger) (*Service, error) {
	logger.Info("Initializing service", "data_root", cfg.DataRoot, "project_id", cfg.ProjectID)

	httpClient := oauth.NewHTTPClient(NewTokenSource(cfg), logger)
	httpClient.Timeout = cfg.HTTPTimeout
	client := strava.NewClient(httpClient, strava.WithPollInterval(cfg.PollInterval))

	guard := ratelimit.NewGuard(strava.IsRateLimited, logger)
	guard.Policy.Backoff = cfg.RateLimitBackoff
	guard.Usage = func() string {
		u := client.Usage()
		if u.UpdatedAt.IsZero() {
			return ""
		}
		return fmt.Sprintf("15min %d/%d, daily %d/%d", u.Usage[0], u.Limit[0], u.Usage[1], u.Limit[1])
	}

	svc := &Service{
		Config: cfg,
		Logger: logger,
		Strava: client,
		Guard:  guard,
		Files:  disposition.NewManager(cfg.DataRoot, logger),
	}

	// Storage
	store, closeStore, err := NewBlobStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if closeStore != nil {
		svc.closers = append(svc.closers, closeStore)
	}

	// Pub/Sub
	var pub shared.Publisher
	if cfg.EnablePublish {
		psClient, err := pubsub.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			svc.Close()
			logger.Error("PubSub init failed", "error", err)
			return nil, fmt.Errorf("pubsub init: %w", err)
		}
		svc.closers = append(svc.closers, psClient.Close)
		pub = &infrapubsub.PubSubAdapter{Client: psClient}
		logger.Info("Pub/Sub: REAL (ENABLE_PUBLISH=true)")
	} else {
		pub = &infrapubsub.LogPublisher{Logger: logger}
		logger.Debug("Pub/Sub: MOCK (LogPublisher)")
	}

	svc.Reporter = &report.Reporter{
		Store:  store,
		Bucket: cfg.ReportBucket,
		Pub:    pub,
		Logger: logger,
	}
	return svc, nil
}

// NewBlobStore returns the GCS store when a report bucket is configured and
// the local output directory otherwise. The close func may be nil.
func NewBlobStore(ctx context.Context, cfg *Config, logger *slog.Logger) (shared.BlobStore, func() error, error) {
	if cfg.ReportBucket != "" {
		gcsClient, err := storage.NewClient(ctx)
		if err != nil {
			logger.Error("Storage init failed", "error", err)
			return nil, nil, fmt.Errorf("storage init: %w", err)
		}
		logger.Info("Reports: GCS", "bucket", cfg.ReportBucket)
		return &infrastorage.GCSStore{Client: gcsClient}, gcsClient.Close, nil
	}
	dir := filepath.Join(cfg.DataRoot, disposition.OutputDir)
	logger.Info("Reports: LOCAL", "dir", filepath.Join(dir, "reports"))
	return &infrastorage.LocalStore{Root: dir}, nil, nil
}

// NewImporter returns an importer bound to the service's dependencies.
func (s *Service) NewImporter(opts ...importer.Option) *importer.Importer {
	return importer.New(s.Strava, s.Guard, s.Files, s.Logger, opts...)
}

// Close releases cloud clients.
func (s *Service) Close() {
	for _, c := range s.closers {
		if err := c(); err != nil {
			s.Logger.Warn("Close failed", "error", err)
		}
	}
	s.closers = nil
}
