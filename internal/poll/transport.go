package poll

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/http2"
)

const maxResponseBodySize = 1 << 20 // 1MB

const (
	defaultMaxIdleConns        = 100
	defaultMaxIdleConnsPerHost = 10
	defaultMaxConnsPerHost     = 10
	defaultIdleConnTimeout     = 60 * time.Second
	defaultRequestTimeout      = 5 * time.Second
)

// Field names used on the wire.
const (
	CommandField         = "command"
	IsAuthenticatedField = "isAuthenticated"
	SaltField            = "salt"
	PasswordHashField    = "passwordHash"
	LoginResultField     = "loginResult"
)

// ErrNoValue is returned when a response lacks the expected field.
var ErrNoValue = errors.New("no value in response")

// Query is one periodic query as sent on the wire.
type Query struct {
	ID   string
	Expr string
}

// Transport carries requests to the remote process. Values are returned as
// raw JSON text; decoding is left to the caller.
type Transport interface {
	// Poll sends every query in one request and returns the raw value of
	// each identifier present in the response.
	Poll(ctx context.Context, queries []Query) (map[string]string, error)

	// Command sends a single free-form expression.
	Command(ctx context.Context, expr string) (string, error)
}

// Challenge is the first round of the login handshake.
type Challenge struct {
	Authenticated bool
	Salt          string
}

// Authenticator performs the two login round trips.
type Authenticator interface {
	LoginChallenge(ctx context.Context) (Challenge, error)
	LoginSubmit(ctx context.Context, passwordHash string) (bool, error)
}

// TransportOption configures an [HTTPTransport].
type TransportOption func(*HTTPTransport) error

// WithRequestTimeout bounds every request. The default is 5s.
func WithRequestTimeout(d time.Duration) TransportOption {
	return func(t *HTTPTransport) error {
		if d <= 0 {
			return fmt.Errorf("request timeout must be positive, got %v", d)
		}
		t.timeout = d
		return nil
	}
}

// WithHTTP2 enables HTTP/2 on the underlying transport.
func WithHTTP2() TransportOption {
	return func(t *HTTPTransport) error {
		if err := http2.ConfigureTransport(t.base); err != nil {
			return fmt.Errorf("failed to configure http2: %w", err)
		}
		return nil
	}
}

// HTTPTransport talks to the remote process over HTTP. Requests are form
// posts; responses are a ResultData XML document with one child element per
// field, each holding a JSON value.
//
// HTTPTransport is safe for concurrent use.
type HTTPTransport struct {
	endpoint   string
	loginURL   string
	timeout    time.Duration
	base       *http.Transport
	httpClient *http.Client
}

// NewHTTPTransport creates a transport posting to remoteURL. Login requests
// go to remoteURL + "/login".
func NewHTTPTransport(remoteURL string, opts ...TransportOption) (*HTTPTransport, error) {
	u, err := url.Parse(remoteURL)
	if err != nil {
		return nil, fmt.Errorf("invalid remote url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("remote url scheme must be http or https, got %q", u.Scheme)
	}

	base := &http.Transport{
		MaxIdleConns:        defaultMaxIdleConns,
		MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
		MaxConnsPerHost:     defaultMaxConnsPerHost,
		IdleConnTimeout:     defaultIdleConnTimeout,
	}
	t := &HTTPTransport{
		endpoint:   u.String(),
		loginURL:   strings.TrimSuffix(u.String(), "/") + "/login",
		timeout:    defaultRequestTimeout,
		base:       base,
		httpClient: &http.Client{Transport: base},
	}
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Poll implements [Transport].
func (t *HTTPTransport) Poll(ctx context.Context, queries []Query) (map[string]string, error) {
	form := url.Values{}
	for _, q := range queries {
		form.Set(q.ID, q.Expr)
	}
	return t.post(ctx, t.endpoint, form)
}

// Command implements [Transport].
func (t *HTTPTransport) Command(ctx context.Context, expr string) (string, error) {
	fields, err := t.post(ctx, t.endpoint, url.Values{CommandField: {expr}})
	if err != nil {
		return "", err
	}
	return field(fields, CommandField)
}

// LoginChallenge implements [Authenticator].
func (t *HTTPTransport) LoginChallenge(ctx context.Context) (Challenge, error) {
	fields, err := t.post(ctx, t.loginURL, url.Values{})
	if err != nil {
		return Challenge{}, err
	}
	var c Challenge
	raw, err := field(fields, IsAuthenticatedField)
	if err != nil {
		return Challenge{}, err
	}
	c.Authenticated = Truthy(Decode(raw))
	if raw, err := field(fields, SaltField); err == nil {
		if s, ok := Decode(raw).(string); ok {
			c.Salt = s
		}
	}
	return c, nil
}

// LoginSubmit implements [Authenticator].
func (t *HTTPTransport) LoginSubmit(ctx context.Context, passwordHash string) (bool, error) {
	fields, err := t.post(ctx, t.loginURL, url.Values{PasswordHashField: {passwordHash}})
	if err != nil {
		return false, err
	}
	raw, err := field(fields, LoginResultField)
	if err != nil {
		return false, err
	}
	return Truthy(Decode(raw)), nil
}

// Close closes idle connections. The transport remains usable.
func (t *HTTPTransport) Close() {
	if t == nil || t.base == nil {
		return
	}
	t.base.CloseIdleConnections()
}

func field(fields map[string]string, name string) (string, error) {
	raw, ok := fields[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoValue, name)
	}
	return raw, nil
}

func (t *HTTPTransport) post(ctx context.Context, target string, form url.Values) (map[string]string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("remote returned status %d", resp.StatusCode)
	}
	return parseResultData(body)
}

type resultData struct {
	XMLName xml.Name      `xml:"ResultData"`
	Items   []resultField `xml:",any"`
}

type resultField struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

// parseResultData maps each child of the ResultData element to its text.
func parseResultData(body []byte) (map[string]string, error) {
	var doc resultData
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse result data: %w", err)
	}
	fields := make(map[string]string, len(doc.Items))
	for _, item := range doc.Items {
		fields[item.XMLName.Local] = strings.TrimSpace(item.Value)
	}
	return fields, nil
}

// EncodeResultData renders fields as a ResultData document, the inverse of
// what [HTTPTransport] parses. Values must already be JSON text.
func EncodeResultData(w io.Writer, fields map[string]string, order []string) error {
	if _, err := io.WriteString(w, "<ResultData>"); err != nil {
		return err
	}
	for _, name := range order {
		raw, ok := fields[name]
		if !ok {
			continue
		}
		if _, err := fmt.Fprintf(w, "<%s>", name); err != nil {
			return err
		}
		if err := xml.EscapeText(w, []byte(raw)); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "</%s>", name); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "</ResultData>")
	return err
}
