package jobstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/kmankuan/ChiPiLink-sub010/internal/receipt"
)

var (
	ErrJobNotFound = errors.New("job not found")
)

// Source records who queued a print job.
const (
	SourceManual          = "manual"
	SourceExternalTrigger = "external_trigger"
)

// Job statuses this client observes; the only transition it ever performs is
// queued → completed.
const (
	StatusQueued    = "queued"
	StatusCompleted = "completed"
)

// PrintJob is the full payload fetched from the external job store.
type PrintJob struct {
	JobID  string                  `json:"job_id"`
	Source string                  `json:"source"`
	Status string                  `json:"status"`
	Orders []receipt.OrderSnapshot `json:"orders"`
}

type Config struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	MaxRetries uint64
	RetryBase  time.Duration
}

// Client is a thin client for the external job API: fetch a job payload,
// mark a job complete. Transient failures on fetch are retried with
// fibonacci backoff; 4xx responses are final.
type Client struct {
	cfg  Config
	http *http.Client
	log  zerolog.Logger
}

func New(cfg Config, log zerolog.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBase == 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log.With().Str("component", "jobstore").Logger(),
	}
}

// Fetch retrieves the full job payload by id.
func (c *Client) Fetch(ctx context.Context, jobID string) (*PrintJob, error) {
	var job *PrintJob

	backoff := retry.WithMaxRetries(c.cfg.MaxRetries, retry.NewFibonacci(c.cfg.RetryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		fetched, err := c.fetchOnce(ctx, jobID)
		if err != nil {
			return err
		}
		job = fetched
		return nil
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (c *Client) fetchOnce(ctx context.Context, jobID string) (*PrintJob, error) {
	url := fmt.Sprintf("%s/jobs/%s", c.cfg.BaseURL, jobID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, retry.RetryableError(fmt.Errorf("fetch job %s: %w", jobID, err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	case resp.StatusCode >= 500:
		io.Copy(io.Discard, resp.Body)
		return nil, retry.RetryableError(fmt.Errorf("fetch job %s: http %d", jobID, resp.StatusCode))
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("fetch job %s: http %d", jobID, resp.StatusCode)
	}

	var job PrintJob
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", jobID, err)
	}
	if job.JobID == "" {
		job.JobID = jobID
	}
	return &job, nil
}

// Complete marks the job completed. The endpoint is idempotent: completing
// an already-completed job answers 2xx, so repeated calls are safe.
func (c *Client) Complete(ctx context.Context, jobID string) error {
	url := fmt.Sprintf("%s/jobs/%s/complete", c.cfg.BaseURL, jobID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return err
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("complete job %s: %w", jobID, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("complete job %s: http %d", jobID, resp.StatusCode)
	}

	c.log.Debug().Str("job_id", jobID).Msg("job marked complete")
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	req.Header.Set("Accept", "application/json")
}
