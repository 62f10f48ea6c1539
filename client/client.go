// Package client is a thin typed wrapper over the background-removal REST
// API: job creation and upload, start parameters, status polling, credit
// balance, and webhook delivery history. Completed jobs convert into
// composition-ready foregrounds via FetchResult.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/peelkit/matte/internal/fetch"
	"github.com/peelkit/matte/internal/logging"
	"github.com/peelkit/matte/mediactx"
	"github.com/peelkit/matte/source"
)

// DefaultBaseURL is the production API endpoint.
const DefaultBaseURL = "https://api.peelkit.com/v1"

// DefaultPollInterval paces WaitForJob status checks.
const DefaultPollInterval = 5 * time.Second

// Job statuses reported by the API.
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusDone       = "done"
	StatusError      = "error"
)

// Job is one background-removal job.
type Job struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	Progress  int       `json:"progress"`
	Format    string    `json:"format,omitempty"`
	ResultURL string    `json:"result_url,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Done reports whether the job reached a terminal status.
func (j *Job) Done() bool {
	return j.Status == StatusDone || j.Status == StatusError
}

// CreditBalance is the account's remaining processing allowance.
type CreditBalance struct {
	Total         float64 `json:"total"`
	Subscription  float64 `json:"subscription"`
	PayAsYouGo    float64 `json:"payg"`
	FreeRemaining float64 `json:"free"`
}

// WebhookDelivery is one attempted webhook notification.
type WebhookDelivery struct {
	ID           string    `json:"id"`
	JobID        string    `json:"job_id"`
	URL          string    `json:"url"`
	ResponseCode int       `json:"response_code"`
	DeliveredAt  time.Time `json:"delivered_at"`
}

// StartOptions parameterize job processing.
type StartOptions struct {
	// BackgroundType requests server-side backdrop handling; empty keeps
	// full transparency.
	BackgroundType string
	// Format selects the result encoding (e.g. "alpha-webm", "pair-zip").
	Format string
	// WebhookURL, when set, receives completion notifications.
	WebhookURL string
}

// Client talks to the background-removal API.
type Client struct {
	baseURL      string
	apiKey       string
	httpClient   *http.Client
	pollInterval time.Duration
	logger       zerolog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL points the client at a non-default endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient swaps the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithPollInterval changes the WaitForJob polling pace.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) { c.pollInterval = d }
}

// WithLogger attaches a logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New builds a Client authenticating with apiKey.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:      DefaultBaseURL,
		apiKey:       apiKey,
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		pollInterval: DefaultPollInterval,
		logger:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.WithComponent(c.logger, "client")
	return c
}

// CreateJobFromFile uploads a local video and creates a job for it.
func (c *Client) CreateJobFromFile(ctx context.Context, path string) (*Job, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("video", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/jobs", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	job := &Job{}
	if err := c.do(req, job); err != nil {
		return nil, err
	}
	return job, nil
}

// CreateJobFromURL creates a job whose input the server downloads itself.
func (c *Client) CreateJobFromURL(ctx context.Context, videoURL string) (*Job, error) {
	payload, err := json.Marshal(map[string]string{"video_url": videoURL})
	if err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/jobs", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	job := &Job{}
	if err := c.do(req, job); err != nil {
		return nil, err
	}
	return job, nil
}

// StartJob begins processing a created job.
func (c *Client) StartJob(ctx context.Context, jobID string, opts StartOptions) (*Job, error) {
	params := map[string]string{}
	if opts.BackgroundType != "" {
		params["background_type"] = opts.BackgroundType
	}
	if opts.Format != "" {
		params["format"] = opts.Format
	}
	if opts.WebhookURL != "" {
		params["webhook_url"] = opts.WebhookURL
	}
	payload, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/jobs/"+url.PathEscape(jobID)+"/start", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	job := &Job{}
	if err := c.do(req, job); err != nil {
		return nil, err
	}
	return job, nil
}

// GetJob fetches the job's current status.
func (c *Client) GetJob(ctx context.Context, jobID string) (*Job, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/jobs/"+url.PathEscape(jobID), nil)
	if err != nil {
		return nil, err
	}
	job := &Job{}
	if err := c.do(req, job); err != nil {
		return nil, err
	}
	return job, nil
}

// WaitForJob polls until the job reaches a terminal status. A job ending in
// StatusError is returned as an error carrying the server's message.
// onProgress, when non-nil, receives each observed progress percentage.
func (c *Client) WaitForJob(ctx context.Context, jobID string, onProgress func(int)) (*Job, error) {
	for {
		job, err := c.GetJob(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if onProgress != nil {
			onProgress(job.Progress)
		}
		if job.Status == StatusDone {
			return job, nil
		}
		if job.Status == StatusError {
			return job, fmt.Errorf("job %s failed: %s", jobID, job.Error)
		}

		c.logger.Debug().
			Str("job", jobID).
			Str("status", job.Status).
			Int("progress", job.Progress).
			Msg("polling")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
}

// Credits fetches the account's remaining balance.
func (c *Client) Credits(ctx context.Context) (*CreditBalance, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/credits", nil)
	if err != nil {
		return nil, err
	}
	balance := &CreditBalance{}
	if err := c.do(req, balance); err != nil {
		return nil, err
	}
	return balance, nil
}

// WebhookDeliveries lists notification attempts for a job.
func (c *Client) WebhookDeliveries(ctx context.Context, jobID string) ([]WebhookDelivery, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/jobs/"+url.PathEscape(jobID)+"/webhook_deliveries", nil)
	if err != nil {
		return nil, err
	}
	var deliveries []WebhookDelivery
	if err := c.do(req, &deliveries); err != nil {
		return nil, err
	}
	return deliveries, nil
}

// FetchResult downloads a completed job's result and wraps it as a
// Foreground, inferring the encoding from the result's extension.
func (c *Client) FetchResult(ctx context.Context, job *Job) (*source.Foreground, error) {
	if job.Status != StatusDone {
		return nil, fmt.Errorf("job %s is %s, not %s", job.ID, job.Status, StatusDone)
	}
	if job.ResultURL == "" {
		return nil, fmt.Errorf("job %s has no result", job.ID)
	}

	mc := mediactx.Current()
	path, err := fetch.Download(ctx, c.httpClient, job.ResultURL, mc.TempDir)
	if err != nil {
		return nil, fmt.Errorf("failed to download result: %w", err)
	}
	mc.RegisterTemp(path)

	return source.FromFile(path)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apiError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func apiError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var payload struct {
		Errors []struct {
			Title  string `json:"title"`
			Detail string `json:"detail"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && len(payload.Errors) > 0 {
		e := payload.Errors[0]
		if e.Detail != "" {
			return fmt.Errorf("api error %d: %s: %s", resp.StatusCode, e.Title, e.Detail)
		}
		return fmt.Errorf("api error %d: %s", resp.StatusCode, e.Title)
	}
	return fmt.Errorf("api error %d: %s", resp.StatusCode, string(bytes.TrimSpace(body)))
}
