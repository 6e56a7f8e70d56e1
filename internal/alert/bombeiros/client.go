// Package bombeiros implements the client for the fire-brigade alerts API:
// multipart alert submission and the alert history listing.
package bombeiros

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/firealert/firealert/internal/alert"
	"github.com/firealert/firealert/internal/media"
	"github.com/firealert/firealert/internal/provider/resilience"
)

const (
	// EndpointName identifies this endpoint in the resilience registry.
	EndpointName = "bombeiros"

	// DefaultBaseURL is the production alerts API.
	DefaultBaseURL = "https://bombeiro.visionmoz.online/api"
)

// ClientConfig holds configuration for the alerts API client.
type ClientConfig struct {
	// BaseURL is the API base URL (optional, defaults to production).
	BaseURL string

	// HTTPClient is the resilient client to use (optional).
	HTTPClient *resilience.Client

	// Opener resolves media references to byte streams (optional,
	// defaults to local files).
	Opener media.Opener

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client talks to the alerts API.
type Client struct {
	baseURL    string
	httpClient *resilience.Client
	opener     media.Opener
	logger     zerolog.Logger
}

// NewClient creates an alerts API client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(EndpointName))
	}

	opener := cfg.Opener
	if opener == nil {
		opener = media.FileOpener{}
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		opener:     opener,
		logger:     cfg.Logger,
	}
}

// Submit posts one draft as a multipart request and classifies the outcome.
// It performs the network exchange and nothing else: no queue or state
// mutation happens here. The returned ID is the server-assigned alert ID.
func (c *Client) Submit(ctx context.Context, d *alert.Draft) (int64, error) {
	body, contentType, err := c.encodeDraft(ctx, d)
	if err != nil {
		return 0, fmt.Errorf("encoding alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/alerts", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, &alert.SubmissionError{Kind: alert.FailureTransport, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, &alert.SubmissionError{Kind: alert.FailureTransport, Err: err}
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		c.logger.Warn().
			Str("draft_id", d.ID).
			Int("status", resp.StatusCode).
			Msg("alert submission rejected")
		return 0, &alert.SubmissionError{
			Kind:       alert.FailureRejected,
			StatusCode: resp.StatusCode,
			Body:       string(raw),
		}
	}

	var parsed submitResponse
	if err := json.Unmarshal(raw, &parsed); err != nil || !parsed.Success {
		return 0, &alert.SubmissionError{
			Kind:       alert.FailureRejected,
			StatusCode: resp.StatusCode,
			Body:       string(raw),
		}
	}

	serverID := parsed.ID
	if serverID == 0 {
		serverID = parsed.Alert.ID
	}

	c.logger.Debug().
		Str("draft_id", d.ID).
		Int64("server_id", serverID).
		Msg("alert delivered")

	return serverID, nil
}

// List fetches all alert records from the server. Filtering by phone number
// happens client-side in the history service.
func (c *Client) List(ctx context.Context) ([]alert.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/alerts", http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var records []alert.Record
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return records, nil
}

// encodeDraft builds the multipart body: the required text fields followed
// by one named part per present media reference.
func (c *Client) encodeDraft(ctx context.Context, d *alert.Draft) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := []struct{ name, value string }{
		{"user_name", d.UserName},
		{"user_phone", d.UserPhone},
		{"message", d.Message},
		{"location", d.Location.DisplayAddress()},
		{"latitude", strconv.FormatFloat(d.Location.Latitude, 'f', -1, 64)},
		{"longitude", strconv.FormatFloat(d.Location.Longitude, 'f', -1, 64)},
	}
	for _, f := range fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, "", err
		}
	}

	for _, m := range d.Media() {
		if err := c.writeMediaPart(ctx, w, m); err != nil {
			return nil, "", fmt.Errorf("attaching %s: %w", m.Name, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func (c *Client) writeMediaPart(ctx context.Context, w *multipart.Writer, m alert.NamedMedia) error {
	src, err := c.opener.Open(ctx, m.Ref)
	if err != nil {
		return err
	}
	defer src.Close()

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name=%q; filename=%q`, m.Name, m.Filename))
	header.Set("Content-Type", m.Ref.MimeType)

	part, err := w.CreatePart(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, src)
	return err
}

// submitResponse is the server acknowledgement for a submitted alert.
type submitResponse struct {
	Success bool  `json:"success"`
	ID      int64 `json:"id"`
	Alert   struct {
		ID int64 `json:"id"`
	} `json:"alert"`
}
