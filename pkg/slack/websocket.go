package slack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultAPIBaseURL = "https://slack.com/api/"

	connOpenMethod = "apps.connections.open"
	timeout        = 3 * time.Second
	maxSize        = 1024 // 1 KiB.
)

type slackAPIResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	URL   string `json:"url,omitempty"`
}

// TokenFunc returns a Slack app-level token ("xapp-...").
// It is called before every connection attempt, so it may rotate tokens.
type TokenFunc func(ctx context.Context) (string, error)

// StaticToken returns a [TokenFunc] that always returns the same token.
func StaticToken(token string) TokenFunc {
	return func(context.Context) (string, error) {
		return token, nil
	}
}

// URLGenerator generates Socket Mode WebSocket URLs. Its Generate method
// matches the signature of [websocket.URLFunc], so it can be used by
// reconnecting clients, which need a new single-use URL for every connection.
//
// [websocket.URLFunc]: https://pkg.go.dev/github.com/tzrikka/socketmode/pkg/websocket#URLFunc
type URLGenerator struct {
	// Token is required.
	Token TokenFunc
	// BaseURL is the Slack API's base URL (default: [DefaultAPIBaseURL]).
	BaseURL string
	// DebugReconnects asks Slack to disconnect much sooner than usual,
	// to exercise reconnections during development.
	DebugReconnects bool
	// HTTPClient is optional (default: [http.DefaultClient]).
	HTTPClient *http.Client
}

// Generate generates a temporary Socket Mode WebSocket URL ("wss://...")
// that an unpublished Slack app can connect to, to receive events and interactive
// payloads. Based on https://docs.slack.dev/reference/methods/apps.connections.open.
func (g *URLGenerator) Generate(ctx context.Context) (string, error) {
	if g.Token == nil {
		return "", errors.New("missing Slack app token")
	}
	appToken, err := g.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get Slack app token: %w", err)
	}

	u, err := GenerateWebSocketURL(ctx, g.endpoint(), appToken, g.client())
	if err != nil {
		return "", err
	}

	if g.DebugReconnects {
		u = withDebugReconnects(u)
	}

	zerolog.Ctx(ctx).Debug().Msg("generated Slack Socket Mode URL")
	return u, nil
}

func (g *URLGenerator) endpoint() string {
	base := g.BaseURL
	if base == "" {
		base = DefaultAPIBaseURL
	}
	u, err := url.JoinPath(base, connOpenMethod)
	if err != nil {
		return DefaultAPIBaseURL + connOpenMethod
	}
	return u
}

func (g *URLGenerator) client() *http.Client {
	if g.HTTPClient != nil {
		return g.HTTPClient
	}
	return http.DefaultClient
}

// GenerateWebSocketURL calls the given "apps.connections.open" endpoint.
func GenerateWebSocketURL(ctx context.Context, endpoint, appToken string, client *http.Client) (string, error) {
	// Construct and send the request.
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("failed to construct HTTP request: %w", err)
	}

	req.Header.Add("Authorization", "Bearer "+appToken)

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send HTTP request: %w", err)
	}
	defer resp.Body.Close()

	// Read and parse the response.
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSize))
	if err != nil {
		return "", fmt.Errorf("failed to read HTTP response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := resp.Status
		if len(body) > 0 {
			msg = fmt.Sprintf("%s: %s", msg, string(body))
		}
		return "", errors.New(msg)
	}

	decoded := &slackAPIResponse{}
	if err := json.Unmarshal(body, decoded); err != nil {
		return "", fmt.Errorf("failed to parse JSON in HTTP response body: %w", err)
	}
	if !decoded.OK {
		return "", fmt.Errorf("Slack API error: %s", decoded.Error)
	}
	if decoded.URL == "" {
		return "", errors.New("Slack API error: missing URL in response")
	}

	return decoded.URL, nil
}

// withDebugReconnects adds the "debug_reconnects" query parameter, which
// makes Slack disconnect after approximately 6 minutes instead of hours.
func withDebugReconnects(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	q.Set("debug_reconnects", "true")
	u.RawQuery = q.Encode()
	return u.String()
}
