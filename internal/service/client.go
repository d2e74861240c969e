// Package service talks to the dictation backend over plain HTTP.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/rbright/scribe/internal/domain"
	"github.com/rbright/scribe/internal/version"
)

const (
	DefaultTranscribePath = "/api/transcribe"
	DefaultReportPath     = "/api/generate-report"
	DefaultLogErrorPath   = "/api/log-error"
	DefaultHealthPath     = "/api/health"

	uploadFieldName = "audio"
	uploadFileName  = "recording.wav"

	// maxErrorBody bounds how much of a failed response is read for diagnostics.
	maxErrorBody = 64 << 10
)

// Options configures a Client.
type Options struct {
	BaseURL        string
	TranscribePath string
	ReportPath     string
	LogErrorPath   string
	HealthPath     string
	Timeout        time.Duration
	SessionID      string
	HTTPClient     *http.Client
}

// Client calls the transcription, report, error-logging, and health endpoints.
type Client struct {
	base      *url.URL
	opts      Options
	http      *http.Client
	userAgent string
}

// StatusError is a non-2xx response from the service.
type StatusError struct {
	Endpoint string
	Status   int
	Message  string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s returned HTTP %d", e.Endpoint, e.Status)
	}
	return fmt.Sprintf("%s returned HTTP %d: %s", e.Endpoint, e.Status, e.Message)
}

// New validates the base URL and fills endpoint defaults.
func New(opts Options) (*Client, error) {
	raw := strings.TrimSpace(opts.BaseURL)
	if raw == "" {
		return nil, errors.New("service base url is empty")
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse service base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("service base url %q must use http or https", raw)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("service base url %q has no host", raw)
	}

	opts.TranscribePath = orDefault(opts.TranscribePath, DefaultTranscribePath)
	opts.ReportPath = orDefault(opts.ReportPath, DefaultReportPath)
	opts.LogErrorPath = orDefault(opts.LogErrorPath, DefaultLogErrorPath)
	opts.HealthPath = orDefault(opts.HealthPath, DefaultHealthPath)

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	return &Client{
		base:      base,
		opts:      opts,
		http:      httpClient,
		userAgent: version.UserAgent(),
	}, nil
}

// BaseURL returns the normalized service origin.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// Transcribe uploads one audio artifact and returns the transcription text as-is.
func (c *Client) Transcribe(ctx context.Context, audio domain.Audio) (string, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, uploadFieldName, uploadFileName))
	header.Set("Content-Type", orDefault(audio.Format, "application/octet-stream"))
	part, err := form.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("create audio part: %w", err)
	}
	if _, err := part.Write(audio.Data); err != nil {
		return "", fmt.Errorf("write audio part: %w", err)
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("close multipart body: %w", err)
	}

	var payload struct {
		Transcription *string `json:"transcription"`
	}
	if err := c.do(ctx, http.MethodPost, c.opts.TranscribePath, form.FormDataContentType(), &body, &payload); err != nil {
		return "", err
	}
	if payload.Transcription == nil {
		return "", fmt.Errorf("%s response is missing transcription", c.opts.TranscribePath)
	}
	return *payload.Transcription, nil
}

// GenerateReport submits transcription text and returns the structured result.
func (c *Client) GenerateReport(ctx context.Context, transcription string) (domain.Report, error) {
	reqBody, err := json.Marshal(map[string]string{"transcription": transcription})
	if err != nil {
		return domain.Report{}, fmt.Errorf("encode report request: %w", err)
	}

	var payload struct {
		StructuredData json.RawMessage `json:"structured_data"`
		Report         *struct {
			DischargeSummary string `json:"discharge_summary"`
		} `json:"report"`
	}
	if err := c.do(ctx, http.MethodPost, c.opts.ReportPath, "application/json", bytes.NewReader(reqBody), &payload); err != nil {
		return domain.Report{}, err
	}

	if !isJSONObject(payload.StructuredData) {
		return domain.Report{}, fmt.Errorf("%s response: structured_data is not an object", c.opts.ReportPath)
	}
	if payload.Report == nil {
		return domain.Report{}, fmt.Errorf("%s response is missing report", c.opts.ReportPath)
	}

	return domain.Report{
		StructuredData: payload.StructuredData,
		NarrativeText:  payload.Report.DischargeSummary,
	}, nil
}

// LogError forwards a diagnostic record. The response body is ignored.
func (c *Client) LogError(ctx context.Context, record domain.ErrorRecord) error {
	reqBody, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode error record: %w", err)
	}
	return c.do(ctx, http.MethodPost, c.opts.LogErrorPath, "application/json", bytes.NewReader(reqBody), nil)
}

// Health probes the readiness endpoint.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, c.opts.HealthPath, "", nil, nil)
}

func (c *Client) do(ctx context.Context, method string, path string, contentType string, body io.Reader, out any) error {
	endpoint := c.base.JoinPath(path).String()

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.opts.SessionID != "" {
		req.Header.Set("X-Session-ID", c.opts.SessionID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Endpoint: path, Status: resp.StatusCode, Message: errorMessage(raw)}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// errorMessage extracts the service's {"error": "..."} field, falling back to the trimmed body.
func errorMessage(raw []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	text := strings.TrimSpace(string(raw))
	if len(text) > 200 {
		text = text[:200] + "..."
	}
	return text
}

func isJSONObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false
	}
	return json.Valid(trimmed)
}

func orDefault(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}
