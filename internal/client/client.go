// Package client is the Go client for the conversion engine API. It
// wraps the REST endpoints and provides a Watcher that reconciles the
// polling and websocket views of a job into one authoritative status.
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
	"strconv"
	"strings"
	"time"

	"github.com/slidecast/engine/internal/apperr"
	"github.com/slidecast/engine/internal/interfaces"
)

const apiPrefix = "/api/v1"

// Client talks to one engine instance.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for the engine at baseURL, e.g.
// "http://localhost:8080".
func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// NewWithHTTPClient creates a client using a caller-supplied HTTP
// client.
func NewWithHTTPClient(baseURL string, httpClient *http.Client) *Client {
	c := New(baseURL)
	c.httpClient = httpClient
	return c
}

// UploadParams control how an uploaded presentation is processed.
type UploadParams struct {
	Language      string
	MaxSlides     int
	GenerateVideo bool
	GenerateMCQs  bool
}

// UploadAck is the server's response to an accepted upload.
type UploadAck struct {
	JobID   string            `json:"job_id"`
	Status  interfaces.Status `json:"status"`
	Message string            `json:"message"`
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Upload submits a presentation file for conversion.
func (c *Client) Upload(ctx context.Context, path string, params UploadParams) (*UploadAck, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("build upload form: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	fields := map[string]string{
		"language":       params.Language,
		"generate_video": strconv.FormatBool(params.GenerateVideo),
		"generate_mcqs":  strconv.FormatBool(params.GenerateMCQs),
	}
	if params.MaxSlides > 0 {
		fields["max_slides"] = strconv.Itoa(params.MaxSlides)
	}
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := writer.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("build upload form: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("build upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+apiPrefix+"/process-ppt", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var ack UploadAck
	if err := c.do(req, http.StatusAccepted, &ack); err != nil {
		return nil, err
	}
	return &ack, nil
}

// GetStatus fetches the full status snapshot of a job.
func (c *Client) GetStatus(ctx context.Context, jobID string) (interfaces.JobStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+apiPrefix+"/jobs/"+url.PathEscape(jobID)+"/status", nil)
	if err != nil {
		return interfaces.JobStatus{}, err
	}

	var status interfaces.JobStatus
	if err := c.do(req, http.StatusOK, &status); err != nil {
		return interfaces.JobStatus{}, err
	}
	return status, nil
}

// GetResult fetches the result of a completed job.
func (c *Client) GetResult(ctx context.Context, jobID string) (*interfaces.JobResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+apiPrefix+"/jobs/"+url.PathEscape(jobID)+"/result", nil)
	if err != nil {
		return nil, err
	}

	var result interfaces.JobResult
	if err := c.do(req, http.StatusOK, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Cancel requests cancellation of a job and returns the server's
// outcome message.
func (c *Client) Cancel(ctx context.Context, jobID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+apiPrefix+"/jobs/"+url.PathEscape(jobID)+"/cancel", nil)
	if err != nil {
		return "", err
	}

	var ack struct {
		Message string `json:"message"`
		JobID   string `json:"job_id"`
	}
	if err := c.do(req, http.StatusOK, &ack); err != nil {
		return "", err
	}
	return ack.Message, nil
}

// ListJobs fetches summaries of recent jobs, newest first.
func (c *Client) ListJobs(ctx context.Context, limit int) ([]interfaces.JobSummary, error) {
	endpoint := c.baseURL + apiPrefix + "/jobs"
	if limit > 0 {
		endpoint += "?limit=" + strconv.Itoa(limit)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var summaries []interfaces.JobSummary
	if err := c.do(req, http.StatusOK, &summaries); err != nil {
		return nil, err
	}
	return summaries, nil
}

// Download streams a generated artifact into w.
func (c *Client) Download(ctx context.Context, artifactPath string, w io.Writer) error {
	endpoint := c.baseURL + apiPrefix + "/jobs/download?path=" + url.QueryEscape(artifactPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	_, err = io.Copy(w, resp.Body)
	return err
}

// streamURL converts the base URL into the websocket endpoint for a
// job.
func (c *Client) streamURL(jobID string) string {
	ws := strings.Replace(c.baseURL, "http", "ws", 1)
	return ws + "/ws/jobs/" + url.PathEscape(jobID)
}

func (c *Client) do(req *http.Request, want int, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		return apiError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// apiError converts a non-success response into an error, preserving
// the server's error code when the body carries one.
func apiError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var body errorBody
	if err := json.Unmarshal(data, &body); err == nil && body.Error != "" {
		return apperr.New(body.Error, body.Message)
	}
	return fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(data)))
}
