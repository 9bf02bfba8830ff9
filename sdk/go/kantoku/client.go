package kantoku

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Config holds the settings needed to construct a Client.
type Config struct {
	// BaseURL is the root URL of the Kantoku server (e.g. "http://localhost:8080").
	BaseURL string

	// HTTPClient is an optional custom HTTP client. If nil, a default client
	// with a 30-second timeout is used.
	HTTPClient *http.Client

	// Timeout applies to individual API requests. Defaults to 30 seconds.
	Timeout time.Duration
}

// Client is an HTTP client for the Kantoku API.
// All methods are safe for concurrent use.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a Client from the given configuration.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("kantoku: BaseURL is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  httpClient,
	}, nil
}

// scriptPath builds /v1/owners/{owner}/scripts/{type}{suffix}.
func scriptPath(ownerID, scriptType, suffix string) string {
	return "/v1/owners/" + url.PathEscape(ownerID) + "/scripts/" + url.PathEscape(scriptType) + suffix
}

// coordinationPath builds the coordination collection path, or one entry's
// path when scriptType is set.
func coordinationPath(ownerID, scriptType string) string {
	p := "/v1/owners/" + url.PathEscape(ownerID) + "/coordination"
	if scriptType != "" {
		p += "/" + url.PathEscape(scriptType)
	}
	return p
}

// Health reports server status. A degraded server returns an *Error with
// status 503.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var resp Health
	if err := c.do(ctx, http.MethodGet, "/health", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ---------------------------------------------------------------------------
// Versioned scripts
// ---------------------------------------------------------------------------

// Publish stores content as the next version of the script.
func (c *Client) Publish(ctx context.Context, ownerID, scriptType string, req PublishRequest) (*Script, error) {
	var resp Script
	if err := c.do(ctx, http.MethodPost, scriptPath(ownerID, scriptType, "/versions"), req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListVersions returns every version of the script, newest first.
func (c *Client) ListVersions(ctx context.Context, ownerID, scriptType string) (*History, error) {
	var resp History
	if err := c.do(ctx, http.MethodGet, scriptPath(ownerID, scriptType, "/versions"), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetVersion fetches one version and whether its content hash verifies.
func (c *Client) GetVersion(ctx context.Context, ownerID, scriptType string, version int) (*VerifiedScript, error) {
	var resp VerifiedScript
	path := scriptPath(ownerID, scriptType, "/versions/"+strconv.Itoa(version))
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SetActive makes version the only active version of the script.
func (c *Client) SetActive(ctx context.Context, ownerID, scriptType string, version int) (*Script, error) {
	var resp Script
	body := map[string]int{"version": version}
	if err := c.do(ctx, http.MethodPut, scriptPath(ownerID, scriptType, "/active"), body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Current returns the active version, or the latest when none is active.
// It returns an error satisfying IsNotFound when the script has no versions.
func (c *Client) Current(ctx context.Context, ownerID, scriptType string) (*Script, error) {
	var resp Script
	if err := c.do(ctx, http.MethodGet, scriptPath(ownerID, scriptType, "/current"), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListScriptTypes returns the script types the owner has published.
func (c *Client) ListScriptTypes(ctx context.Context, ownerID string) ([]string, error) {
	var resp scriptTypesResponse
	if err := c.do(ctx, http.MethodGet, "/v1/owners/"+url.PathEscape(ownerID)+"/scripts", nil, &resp); err != nil {
		return nil, err
	}
	return resp.ScriptTypes, nil
}

// Render expands the current script with values. Tags without a value stay
// in the text and are listed in Unresolved.
func (c *Client) Render(ctx context.Context, ownerID, scriptType string, values map[string]string) (*Rendered, error) {
	var resp Rendered
	body := map[string]any{"values": values}
	if err := c.do(ctx, http.MethodPost, scriptPath(ownerID, scriptType, "/render"), body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Preview diffs candidate against the current script without storing it.
func (c *Client) Preview(ctx context.Context, ownerID, scriptType, candidate, algorithm string) (*Preview, error) {
	var resp Preview
	body := map[string]string{"content": candidate, "algorithm": algorithm}
	if err := c.do(ctx, http.MethodPost, scriptPath(ownerID, scriptType, "/preview"), body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Compare diffs two stored versions of the script.
func (c *Client) Compare(ctx context.Context, ownerID, scriptType string, from, to int, algorithm string) (*DiffResult, error) {
	params := url.Values{}
	params.Set("from", strconv.Itoa(from))
	params.Set("to", strconv.Itoa(to))
	if algorithm != "" {
		params.Set("algorithm", algorithm)
	}
	var resp DiffResult
	path := scriptPath(ownerID, scriptType, "/compare?"+params.Encode())
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ---------------------------------------------------------------------------
// Coordination scripts
// ---------------------------------------------------------------------------

// ListCoordination returns every coordination script for the owner.
func (c *Client) ListCoordination(ctx context.Context, ownerID string) ([]CoordinationScript, error) {
	var resp []CoordinationScript
	if err := c.do(ctx, http.MethodGet, coordinationPath(ownerID, ""), nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// GetCoordination fetches the coordination script for a type.
func (c *Client) GetCoordination(ctx context.Context, ownerID, scriptType string) (*CoordinationScript, error) {
	var resp CoordinationScript
	if err := c.do(ctx, http.MethodGet, coordinationPath(ownerID, scriptType), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpsertCoordination replaces the coordination script for a type.
func (c *Client) UpsertCoordination(ctx context.Context, ownerID, scriptType, content string) (*CoordinationScript, error) {
	var resp CoordinationScript
	body := map[string]string{"content": content}
	if err := c.do(ctx, http.MethodPut, coordinationPath(ownerID, scriptType), body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ---------------------------------------------------------------------------
// Stateless tools
// ---------------------------------------------------------------------------

// Substitute expands template with values on the server.
func (c *Client) Substitute(ctx context.Context, template string, values map[string]string) (*Substituted, error) {
	var resp Substituted
	body := map[string]any{"template": template, "values": values}
	if err := c.do(ctx, http.MethodPost, "/v1/substitute", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Diff compares two texts line by line on the server.
func (c *Client) Diff(ctx context.Context, original, candidate, algorithm string) (*DiffResult, error) {
	var resp DiffResult
	body := map[string]string{"original": original, "candidate": candidate, "algorithm": algorithm}
	if err := c.do(ctx, http.MethodPost, "/v1/diff", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ---------------------------------------------------------------------------
// HTTP transport
// ---------------------------------------------------------------------------

// apiEnvelope is the server's standard response wrapper.
type apiEnvelope struct {
	Data json.RawMessage `json:"data"`
}

// apiErrorEnvelope is the server's standard error response wrapper.
type apiErrorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// do sends one JSON request and decodes the unwrapped response into dest.
// A nil body sends no Content-Type; a nil dest discards the response.
func (c *Client) do(ctx context.Context, method, path string, body any, dest any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("kantoku: marshal request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("kantoku: create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("kantoku: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	return handleResponse(resp, dest)
}

// handleResponse maps status >= 400 to *Error and decodes everything else.
func handleResponse(resp *http.Response, dest any) error {
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("kantoku: read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return parseErrorResponse(resp.StatusCode, bodyBytes)
	}

	// Nothing to decode.
	if resp.StatusCode == http.StatusNoContent || dest == nil {
		return nil
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(bodyBytes, &envelope); err != nil {
		return fmt.Errorf("kantoku: decode response envelope: %w", err)
	}
	// A body without the {"data": ...} wrapper decodes as-is.
	if envelope.Data == nil {
		return json.Unmarshal(bodyBytes, dest)
	}
	return json.Unmarshal(envelope.Data, dest)
}

// parseErrorResponse reads the server's {"error": {...}} body. Errors from a
// proxy or a bare http.Error carry no envelope, so the status text becomes the
// code and the raw body becomes the message.
func parseErrorResponse(statusCode int, body []byte) *Error {
	apiErr := &Error{StatusCode: statusCode}

	var envelope apiErrorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
	} else {
		apiErr.Code = http.StatusText(statusCode)
		apiErr.Message = string(body)
	}

	return apiErr
}
