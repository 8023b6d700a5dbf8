package vesync

import (
	"bytes"
	"context"
	"crypto/md5" //nolint:gosec // The cloud API requires an MD5 password digest
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Cloud API constants. The app identity fields are required by the cloud
// and must match what the mobile app sends.
const (
	defaultBaseURL = "https://smartapi.vesync.com"
	defaultTimeout = 30 * time.Second

	appVersion      = "2.8.6"
	phoneBrand      = "SM N9005"
	phoneOS         = "Android"
	mobileID        = "1234567890123456"
	bypassUserAgent = "okhttp/3.12.1"

	defaultTimeZone = "America/New_York"
)

// maxResponseBytes caps how much of a response body is read. Cloud
// responses are small; anything larger indicates a broken endpoint.
const maxResponseBytes = 1 << 20

// Client is a low-level VeSync cloud API client.
//
// It owns the HTTP transport and the session credentials (token and
// account ID) obtained at login. Device types and the Manager build
// their requests through it.
//
// Thread Safety:
//   - Client is NOT safe for concurrent use. Callers serialise access;
//     the poller owns the single goroutine that touches the cloud.
type Client struct {
	baseURL  string
	http     *http.Client
	log      Logger
	timeZone string

	token       string
	accountID   string
	countryCode string
}

// ClientConfig contains Client construction options.
// Zero values select production defaults.
type ClientConfig struct {
	// BaseURL overrides the cloud endpoint. Used by tests to point the
	// client at a local stub server.
	BaseURL string

	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration

	// TimeZone is the IANA time zone name sent with every request.
	TimeZone string

	// Logger receives request diagnostics. Nil means no logging.
	Logger Logger
}

// NewClient creates a cloud API client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.TimeZone == "" {
		cfg.TimeZone = defaultTimeZone
	}
	var log Logger = noopLogger{}
	if cfg.Logger != nil {
		log = cfg.Logger
	}

	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		http:     &http.Client{Timeout: cfg.Timeout},
		log:      log,
		timeZone: cfg.TimeZone,
	}
}

// LoggedIn reports whether a login succeeded and session credentials are held.
func (c *Client) LoggedIn() bool {
	return c.token != "" && c.accountID != ""
}

// Token returns the session token, or empty before login.
func (c *Client) Token() string { return c.token }

// AccountID returns the cloud account ID, or empty before login.
func (c *Client) AccountID() string { return c.accountID }

// CountryCode returns the account country code reported at login.
func (c *Client) CountryCode() string { return c.countryCode }

// TimeZone returns the time zone sent with requests.
func (c *Client) TimeZone() string { return c.timeZone }

// Login authenticates against the cloud and stores the session token and
// account ID on success.
//
// Credentials are validated locally first: an empty username or password
// returns ErrMissingCredentials without a network call. The password is
// sent as an MD5 hex digest, as the cloud requires.
//
// Returns:
//   - error: ErrMissingCredentials, ErrLoginFailed, or a transport error
func (c *Client) Login(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return ErrMissingCredentials
	}

	body := loginRequest{
		baseRequest: c.newBaseRequest(),
		Email:       username,
		Password:    hashPassword(password),
		DevToken:    "",
		UserType:    "1",
		Method:      "login",
	}

	var result struct {
		Token       string `json:"token"`
		AccountID   string `json:"accountID"`
		CountryCode string `json:"countryCode"`
	}

	if err := c.post(ctx, "/cloud/v1/user/login", nil, body, &result); err != nil {
		return fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}

	if result.Token == "" || result.AccountID == "" {
		return fmt.Errorf("%w: empty session in response", ErrLoginFailed)
	}

	c.token = result.Token
	c.accountID = result.AccountID
	c.countryCode = result.CountryCode

	c.log.Debug("logged in to cloud", "account_id", c.accountID, "country", c.countryCode)
	return nil
}

// get issues an authenticated GET and decodes the envelope result into out.
func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.call(ctx, http.MethodGet, path, c.authHeaders(), nil, out)
}

// put issues an authenticated PUT with a JSON body.
func (c *Client) put(ctx context.Context, path string, body, out any) error {
	return c.call(ctx, http.MethodPut, path, c.authHeaders(), body, out)
}

// post issues a POST with a JSON body. Extra headers override defaults.
func (c *Client) post(ctx context.Context, path string, headers map[string]string, body, out any) error {
	h := map[string]string{"Content-Type": "application/json; charset=UTF-8"}
	for k, v := range headers {
		h[k] = v
	}
	return c.call(ctx, http.MethodPost, path, h, body, out)
}

// authHeaders returns the token-bearing header set used by the older
// per-family endpoints.
func (c *Client) authHeaders() map[string]string {
	return map[string]string{
		"tk":              c.token,
		"accountid":       c.accountID,
		"tz":              c.timeZone,
		"accept-language": "en",
		"appVersion":      appVersion,
		"Content-Type":    "application/json; charset=UTF-8",
	}
}

// bypassHeaders returns the header set the bypass endpoints expect.
func bypassHeaders() map[string]string {
	return map[string]string{
		"Content-Type": "application/json; charset=UTF-8",
		"User-Agent":   bypassUserAgent,
	}
}

// apiResponse is the outer envelope every cloud endpoint returns.
type apiResponse struct {
	Code    int64           `json:"code"`
	Msg     string          `json:"msg"`
	TraceID string          `json:"traceId"`
	Result  json.RawMessage `json:"result"`
}

// check validates the envelope code. Code zero means success.
func (r *apiResponse) check() error {
	if r.Code != 0 {
		return fmt.Errorf("%w: code %d: %s", ErrAPIResponse, r.Code, r.Msg)
	}
	return nil
}

// call performs one HTTP round trip against the cloud.
//
// The response envelope code is checked, and the envelope result field is
// decoded into out when out is non-nil. A nil out discards the result.
func (c *Client) call(ctx context.Context, method, path string, headers map[string]string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s %s: %w", method, path, err)
	}
	defer resp.Body.Close() //nolint:errcheck // Best effort cleanup

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("reading response from %s: %w", path, err)
	}

	c.log.Debug("cloud request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s %s returned HTTP %d", ErrAPIResponse, method, path, resp.StatusCode)
	}

	var envelope apiResponse
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("%w: decoding response from %s: %w", ErrAPIResponse, path, err)
	}
	if err := envelope.check(); err != nil {
		return err
	}

	if out != nil && len(envelope.Result) > 0 {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("%w: decoding result from %s: %w", ErrAPIResponse, path, err)
		}
	}
	return nil
}

// BypassV2 sends a device command through the v2 bypass endpoint.
//
// The bypass endpoints wrap the device payload in a second envelope with
// its own code field; both the outer and inner codes are checked. The
// inner result is returned raw for the caller to decode.
func (c *Client) BypassV2(ctx context.Context, dev *BaseDevice, method string, data map[string]any) (json.RawMessage, error) {
	if !c.LoggedIn() {
		return nil, ErrNotLoggedIn
	}
	if data == nil {
		data = map[string]any{}
	}

	body := bypassV2Request{
		authRequest:  c.newAuthRequest(),
		CID:          dev.CID,
		ConfigModule: dev.ConfigModule,
		DeviceRegion: dev.DeviceRegion,
		DebugMode:    false,
		Method:       "bypassV2",
		Payload: bypassPayload{
			Data:   data,
			Method: method,
			Source: "APP",
		},
	}

	var result struct {
		Code   int64           `json:"code"`
		Msg    string          `json:"msg"`
		Result json.RawMessage `json:"result"`
	}
	if err := c.post(ctx, "/cloud/v2/deviceManaged/bypassV2", bypassHeaders(), body, &result); err != nil {
		return nil, err
	}
	if result.Code != 0 {
		return nil, fmt.Errorf("%w: device code %d: %s", ErrAPIResponse, result.Code, result.Msg)
	}
	return result.Result, nil
}

// BypassV1 sends a device command through the v1 bypass endpoint used by
// the tunable bulbs and kitchen appliances.
func (c *Client) BypassV1(ctx context.Context, dev *BaseDevice, jsonCmd map[string]any) (json.RawMessage, error) {
	if !c.LoggedIn() {
		return nil, ErrNotLoggedIn
	}

	body := bypassV1Request{
		authRequest:  c.newAuthRequest(),
		CID:          dev.CID,
		ConfigModule: dev.ConfigModule,
		DeviceRegion: dev.DeviceRegion,
		Method:       "bypass",
		Debug:        false,
		JSONCmd:      jsonCmd,
	}

	var result json.RawMessage
	if err := c.post(ctx, "/cloud/v1/deviceManaged/bypass", bypassHeaders(), body, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// hashPassword returns the MD5 hex digest the login endpoint expects.
func hashPassword(password string) string {
	sum := md5.Sum([]byte(password)) //nolint:gosec // Required by the cloud API
	return hex.EncodeToString(sum[:])
}

// traceID returns the per-request trace identifier, a Unix timestamp.
func traceID() string {
	return strconv.FormatInt(time.Now().Unix(), 10)
}
