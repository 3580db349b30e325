// Package catalog talks to TAP archive services through the asynchronous
// (UWS) job protocol: submit a query, poll the job until it finishes, then
// download the result table.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/obsfinder/obsfinder/internal/table"
)

const (
	DefaultPollInterval = 500 * time.Millisecond
	DefaultTimeout      = 300 * time.Second

	// maxDiagnostic bounds how much of an error body is kept in errors.
	maxDiagnostic = 2048
)

var errJobRunning = errors.New("job still running")

// Service describes one TAP endpoint.
type Service struct {
	Name string `yaml:"name"`
	// BaseURL is the TAP root; the async endpoint is BaseURL + "/async".
	BaseURL string `yaml:"url"`
	// Params are extra form fields sent on submit (REQUEST, LANG, ...).
	Params map[string]string `yaml:"params"`
	// JobInfo sends JOBNAME and JOBDESCRIPTION with each submission.
	JobInfo bool `yaml:"job_info"`
	// Encoding is the character set of result payloads.
	Encoding string `yaml:"encoding"`
}

// Query is one catalog query to run as an async job.
type Query struct {
	Text        string
	IDColumn    string
	Name        string
	Description string
}

// Result is a finished job and its parsed table.
type Result struct {
	Job     Job
	Table   *table.Table
	Elapsed time.Duration
}

// Options tunes the polling loop.
type Options struct {
	PollInterval time.Duration
	Timeout      time.Duration
}

// Client runs queries against a single TAP service.
type Client struct {
	service   Service
	transport Transport
	opts      Options
}

// NewClient creates a client for service. Zero options fall back to the
// defaults.
func NewClient(service Service, transport Transport, opts Options) *Client {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	service.BaseURL = strings.TrimRight(service.BaseURL, "/")
	return &Client{
		service:   service,
		transport: transport,
		opts:      opts,
	}
}

// Service returns the endpoint the client talks to.
func (c *Client) Service() Service {
	return c.service
}

// Execute submits q, waits for the job to complete and returns its result.
// One transport session is held for the whole call and released on return.
func (c *Client) Execute(ctx context.Context, q Query) (*Result, error) {
	start := time.Now()

	session, err := c.transport.Open(ctx)
	if err != nil {
		return nil, &TransportError{Op: "open session", URL: c.asyncURL(), Err: err}
	}
	defer func() {
		if err := session.Close(); err != nil {
			slog.Warn("Failed to close session", "service", c.service.Name, "err", err)
		}
	}()

	job, err := c.submit(ctx, session, q)
	if err != nil {
		return nil, err
	}

	job.Phase, err = c.wait(ctx, session, job.ID)
	if err != nil {
		return nil, err
	}

	slog.Debug("Retrieving data", "service", c.service.Name, "job", job.ID)
	raw, err := c.fetch(ctx, session, job.ID)
	if err != nil {
		return nil, err
	}

	tbl, err := table.Parse(raw, q.IDColumn)
	if err != nil {
		return nil, fmt.Errorf("job %s: %w", job.ID, err)
	}

	return &Result{Job: job, Table: tbl, Elapsed: time.Since(start)}, nil
}

// submit posts the query and reads the job location from the redirect.
func (c *Client) submit(ctx context.Context, session Session, q Query) (Job, error) {
	form := url.Values{}
	for k, v := range c.service.Params {
		form.Set(k, v)
	}
	if c.service.JobInfo {
		if q.Name != "" {
			form.Set("JOBNAME", q.Name)
		}
		if q.Description != "" {
			form.Set("JOBDESCRIPTION", q.Description)
		}
	}
	form.Set("FORMAT", "csv")
	form.Set("PHASE", "RUN")
	form.Set("QUERY", q.Text)

	target := c.asyncURL()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		return Job{}, fmt.Errorf("failed to create submit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "text/plain")

	resp, err := session.Do(req)
	if err != nil {
		return Job{}, &TransportError{Op: "submit", URL: target, Err: err}
	}
	defer resp.Body.Close()

	slog.Debug("Job submitted", "service", c.service.Name, "status", resp.StatusCode, "reason", http.StatusText(resp.StatusCode))

	if resp.StatusCode < 300 || resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxDiagnostic))
		return Job{}, &ProtocolError{
			Op:      "submit",
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("expected a redirect to the job resource, got: %s", strings.TrimSpace(string(body))),
		}
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	location := resp.Header.Get("Location")
	if location == "" {
		return Job{}, &ProtocolError{Op: "submit", Status: resp.StatusCode, Message: "redirect without Location header"}
	}
	slog.Debug("Job location", "location", location)

	jobID, err := jobIDFromLocation(location)
	if err != nil {
		return Job{}, &ProtocolError{Op: "submit", Status: resp.StatusCode, Message: "bad Location header", Err: err}
	}
	slog.Debug("Job id", "job", jobID)

	return Job{ID: jobID, Location: location, Phase: PhasePending}, nil
}

// wait polls the job at a fixed interval until it reaches a terminal phase
// or the timeout elapses. The deadline also bounds a poll request that
// hangs.
func (c *Client) wait(ctx context.Context, session Session, jobID string) (Phase, error) {
	pollCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	backoff := retry.WithMaxDuration(c.opts.Timeout, retry.NewConstant(c.opts.PollInterval))

	last := PhasePending
	err := retry.Do(pollCtx, backoff, func(ctx context.Context) error {
		status, phase, err := c.status(ctx, session, jobID)
		if err != nil {
			return err
		}
		last = phase
		slog.Debug("Job status", "job", jobID, "phase", phase)

		switch {
		case phase == PhaseCompleted:
			return nil
		case phase.Failed():
			return &RemoteQueryError{JobID: jobID, Phase: phase, Diagnostic: status.diagnostic()}
		default:
			return retry.RetryableError(errJobRunning)
		}
	})

	timedOut := ctx.Err() == nil && errors.Is(pollCtx.Err(), context.DeadlineExceeded)
	if errors.Is(err, errJobRunning) || (err != nil && timedOut) {
		return last, &QueryTimeoutError{JobID: jobID, LastPhase: last, Timeout: c.opts.Timeout}
	}
	return last, err
}

func (c *Client) status(ctx context.Context, session Session, jobID string) (jobStatus, Phase, error) {
	target := c.jobURL(jobID)
	body, status, err := c.get(ctx, session, "poll", target)
	if err != nil {
		return jobStatus{}, "", err
	}
	if status != http.StatusOK {
		return jobStatus{}, "", &ProtocolError{Op: "poll", Status: status, Message: truncate(string(body))}
	}

	doc, phase, err := decodeJobStatus(body)
	if err != nil {
		return doc, "", &ProtocolError{Op: "poll", Status: status, Message: "malformed job document", Err: err}
	}
	if phase.Failed() && doc.diagnostic() == "" {
		doc.ErrorSummary = &errorSummary{Message: truncate(string(body))}
	}
	return doc, phase, nil
}

// fetch downloads the result table and decodes it to text.
func (c *Client) fetch(ctx context.Context, session Session, jobID string) (string, error) {
	target := c.jobURL(jobID) + "/results/result"
	body, status, err := c.get(ctx, session, "fetch", target)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", &ProtocolError{Op: "fetch", Status: status, Message: truncate(string(body))}
	}

	text, err := decodeText(body, c.service.Encoding)
	if err != nil {
		return "", &ProtocolError{Op: "fetch", Status: status, Message: "undecodable result payload", Err: err}
	}
	slog.Debug("Result downloaded", "job", jobID, "bytes", len(body))
	return text, nil
}

func (c *Client) get(ctx context.Context, session Session, op, target string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create %s request: %w", op, err)
	}

	resp, err := session.Do(req)
	if err != nil {
		return nil, 0, &TransportError{Op: op, URL: target, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, &TransportError{Op: op, URL: target, Err: fmt.Errorf("read body: %w", err)}
	}
	return body, resp.StatusCode, nil
}

func (c *Client) asyncURL() string {
	return c.service.BaseURL + "/async"
}

func (c *Client) jobURL(jobID string) string {
	return c.asyncURL() + "/" + url.PathEscape(jobID)
}

// jobIDFromLocation returns the last path segment of a job URL.
func jobIDFromLocation(location string) (string, error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", err
	}
	id := path.Base(strings.TrimRight(u.Path, "/"))
	if id == "" || id == "." || id == "/" {
		return "", fmt.Errorf("no job id in %q", location)
	}
	return id, nil
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxDiagnostic {
		return s[:maxDiagnostic] + "..."
	}
	return s
}
