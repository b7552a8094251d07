// Package push delivers notifications to users' registered mobile devices
// through an external push gateway.
package push

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// Request is the payload sent to the gateway for one device.
type Request struct {
	UserID      string `json:"userId"`
	Message     string `json:"message"`
	DeviceToken string `json:"deviceToken"`
	Title       string `json:"title"`
	Body        string `json:"body"`
}

// Gateway sends one push request. Implementations must honour ctx.
type Gateway interface {
	Send(ctx context.Context, req Request) error
}

// ---------------------------------------------------------------------------
// HTTP gateway
// ---------------------------------------------------------------------------

const (
	SignatureHeader = "X-Push-Signature"
	TimestampHeader = "X-Push-Timestamp"
)

// SignPayload returns the hex HMAC-SHA256 of payload under secret.
func SignPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// verifySignature checks a "sha256=<hex>" or bare hex signature.
func verifySignature(payload []byte, secret, signature string) bool {
	if len(signature) > 7 && signature[:7] == "sha256=" {
		signature = signature[7:]
	}
	expected := SignPayload(payload, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// GatewayOption configures an HTTPGateway.
type GatewayOption func(*HTTPGateway)

// WithHTTPClient overrides the default client.
func WithHTTPClient(c *http.Client) GatewayOption {
	return func(g *HTTPGateway) { g.client = c }
}

// HTTPGateway POSTs each request as signed JSON to a gateway URL.
type HTTPGateway struct {
	url    string
	secret string
	client *http.Client
}

// NewHTTPGateway creates a gateway client for url.
func NewHTTPGateway(url, secret string, opts ...GatewayOption) *HTTPGateway {
	g := &HTTPGateway{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Send delivers req. Any non-2xx answer is an error.
func (g *HTTPGateway) Send(ctx context.Context, req Request) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal push request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build push request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(TimestampHeader, strconv.FormatInt(time.Now().Unix(), 10))
	if g.secret != "" {
		httpReq.Header.Set(SignatureHeader, "sha256="+SignPayload(payload, g.secret))
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("push gateway: %w", err)
	}
	defer resp.Body.Close()

	// Read at most 1KB of response body.
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("push gateway: non-2xx response %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return nil
}

// ---------------------------------------------------------------------------
// Log gateway
// ---------------------------------------------------------------------------

// LogGateway only logs requests. It is used when no gateway is configured.
type LogGateway struct {
	logger zerolog.Logger
}

func NewLogGateway(logger zerolog.Logger) *LogGateway {
	return &LogGateway{logger: logger.With().Str("component", "push").Logger()}
}

func (g *LogGateway) Send(_ context.Context, req Request) error {
	g.logger.Info().
		Str("user_id", req.UserID).
		Str("title", req.Title).
		Msg("push gateway not configured, skipping send")
	return nil
}
