// Package strava is a small client for the parts of the Strava v3 API used
// by the importer.
package strava

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	httputil "github.com/barrald/strava-uploader/pkg/infrastructure/http"
)

const (
	baseURL = "https://www.strava.com/api/v3"

	defaultPollInterval = time.Second
	defaultMaxPolls     = 60
)

// Client is an API client for Strava. The http.Client is expected to
// authenticate requests, see oauth.Transport.
type Client struct {
	baseURL      string
	client       *http.Client
	pollInterval time.Duration
	maxPolls     int

	mu    sync.Mutex
	usage RateLimitUsage
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

func WithMaxPolls(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxPolls = n
		}
	}
}

// NewClient creates a new Strava API client
func NewClient(httpClient *http.Client, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	c := &Client{
		baseURL:      baseURL,
		client:       httpClient,
		pollInterval: defaultPollInterval,
		maxPolls:     defaultMaxPolls,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Usage returns the most recent rate limit usage seen in a response.
func (c *Client) Usage() RateLimitUsage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usage
}

// do executes the request and classifies failures. On success the caller
// owns the response body.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		// *url.Error is itself a net.Error, so look at what it wraps.
		cause := err
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			cause = urlErr.Err
		}
		var netErr net.Error
		if errors.As(cause, &netErr) {
			return nil, fmt.Errorf("%w: %v", ErrConnectivity, err)
		}
		return nil, fmt.Errorf("execute request: %w", err)
	}

	c.recordUsage(resp.Header)

	if err := httputil.ParseErrorResponse(resp); err != nil {
		resp.Body.Close()
		switch resp.StatusCode {
		case http.StatusTooManyRequests:
			return nil, fmt.Errorf("%w: %w", ErrRateLimitExceeded, err)
		case http.StatusUnauthorized:
			return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
		case http.StatusConflict:
			return nil, fmt.Errorf("%w: %w", ErrConflict, err)
		}
		return nil, err
	}
	return resp, nil
}

func (c *Client) recordUsage(h http.Header) {
	limit, okLimit := parsePair(h.Get("X-RateLimit-Limit"))
	usage, okUsage := parsePair(h.Get("X-RateLimit-Usage"))
	if !okLimit || !okUsage {
		return
	}
	c.mu.Lock()
	c.usage = RateLimitUsage{Limit: limit, Usage: usage, UpdatedAt: time.Now()}
	c.mu.Unlock()
}

func parsePair(v string) ([2]int, bool) {
	var out [2]int
	parts := strings.Split(v, ",")
	if len(parts) != 2 {
		return out, false
	}
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return out, false
		}
		out[i] = n
	}
	return out, true
}

func decode(resp *http.Response, v interface{}) error {
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// GetAthlete returns the authenticated athlete.
func (c *Client) GetAthlete(ctx context.Context) (*Athlete, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/athlete", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	var athlete Athlete
	if err := decode(resp, &athlete); err != nil {
		return nil, err
	}
	return &athlete, nil
}

// ListActivities retrieves one page of the athlete's activities.
func (c *Client) ListActivities(ctx context.Context, params ListActivitiesParams) ([]Activity, error) {
	q := url.Values{}
	if !params.After.IsZero() {
		q.Set("after", strconv.FormatInt(params.After.Unix(), 10))
	}
	if !params.Before.IsZero() {
		q.Set("before", strconv.FormatInt(params.Before.Unix(), 10))
	}
	if params.Page > 0 {
		q.Set("page", strconv.Itoa(params.Page))
	}
	if params.PerPage > 0 {
		q.Set("per_page", strconv.Itoa(params.PerPage))
	}

	path := c.baseURL + "/athlete/activities"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, "GET", path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	var activities []Activity
	if err := decode(resp, &activities); err != nil {
		return nil, err
	}
	return activities, nil
}

// CreateActivity creates a manual activity.
func (c *Client) CreateActivity(ctx context.Context, a NewActivity) (*Activity, error) {
	form := url.Values{}
	form.Set("name", a.Name)
	form.Set("type", a.Type)
	form.Set("sport_type", a.Type)
	form.Set("start_date_local", a.StartDateLocal.Format("2006-01-02T15:04:05"))
	form.Set("elapsed_time", strconv.Itoa(a.ElapsedTime))
	form.Set("distance", strconv.FormatFloat(a.Distance, 'f', 2, 64))
	if a.Description != "" {
		form.Set("description", a.Description)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/activities", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	var created Activity
	if err := decode(resp, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UploadActivity submits a track file. Processing is asynchronous; use
// WaitUpload to get the outcome. A processing error already present in the
// submit response is returned as an *UploadError alongside the upload.
func (c *Client) UploadActivity(ctx context.Context, r UploadRequest) (*Upload, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	name := r.FileName
	if name == "" {
		name = "activity." + r.DataType
	}
	part, err := writer.CreateFormFile("file", name)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, r.File); err != nil {
		return nil, fmt.Errorf("read track file: %w", err)
	}

	fields := map[string]string{
		"data_type":     r.DataType,
		"activity_type": r.ActivityType,
		"description":   r.Description,
		"external_id":   r.ExternalID,
	}
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := writer.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("write field %s: %w", k, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/uploads", body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	var upload Upload
	if err := decode(resp, &upload); err != nil {
		return nil, err
	}
	return &upload, upload.Err()
}

// GetUpload returns the current processing state of an upload.
func (c *Client) GetUpload(ctx context.Context, uploadID int64) (*Upload, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", fmt.Sprintf("%s/uploads/%d", c.baseURL, uploadID), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	var upload Upload
	if err := decode(resp, &upload); err != nil {
		return nil, err
	}
	return &upload, nil
}

// WaitUpload polls an upload until Strava reports an activity or an error.
func (c *Client) WaitUpload(ctx context.Context, uploadID int64) (*Upload, error) {
	for i := 0; i < c.maxPolls; i++ {
		upload, err := c.GetUpload(ctx, uploadID)
		if err != nil {
			return nil, err
		}
		if upload.Done() {
			return upload, upload.Err()
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
	return nil, fmt.Errorf("%w: upload %d still processing after %d polls", ErrUploadFailed, uploadID, c.maxPolls)
}
