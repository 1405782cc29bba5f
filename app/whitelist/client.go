package whitelist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/Black-And-White-Club/discord-rules-bot/app/shared/observability/attr"
	"github.com/cenkalti/backoff/v4"
)

//go:generate mockgen -destination=mocks/mock_relay.go -package=mocks github.com/Black-And-White-Club/discord-rules-bot/app/whitelist Relay

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,16}$`)

// ErrInvalidUsername is returned before any request is made.
var ErrInvalidUsername = errors.New("username must be 3-16 characters of letters, digits or underscore")

// Request is the body posted to the relay endpoint.
type Request struct {
	Username    string `json:"username"`
	GuildID     string `json:"guild_id"`
	RequestedBy string `json:"requested_by"`
}

// Response is the relay's answer.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Relay forwards whitelist requests.
type Relay interface {
	Relay(ctx context.Context, req Request) (Response, error)
}

// StatusError is a non-2xx answer from the relay.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("whitelist relay returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("whitelist relay returned status %d: %s", e.StatusCode, e.Message)
}

// IsStatusError checks if an error is a relay status error
func IsStatusError(err error) bool {
	var target *StatusError
	return errors.As(err, &target)
}

// Client posts whitelist requests to an HTTP endpoint.
type Client struct {
	httpClient *http.Client
	url        string
	token      string
	maxRetries int
	backoff    func() backoff.BackOff
	logger     *slog.Logger
}

// NewClient creates a relay client. timeout bounds each attempt.
func NewClient(url, token string, timeout time.Duration, maxRetries int, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		url:        url,
		token:      token,
		maxRetries: maxRetries,
		backoff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff(
				backoff.WithInitialInterval(250*time.Millisecond),
				backoff.WithMaxInterval(2*time.Second),
			)
		},
		logger: logger,
	}
}

// ValidUsername reports whether name is an acceptable game username.
func ValidUsername(name string) bool {
	return usernamePattern.MatchString(name)
}

// Relay sends req, retrying network failures, 429 and 5xx answers.
func (c *Client) Relay(ctx context.Context, req Request) (Response, error) {
	if !ValidUsername(req.Username) {
		return Response{}, ErrInvalidUsername
	}

	body, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	attempt := 0
	var out Response
	op := func() error {
		attempt++
		resp, err := c.post(ctx, body)
		if err != nil {
			return err
		}
		out = resp
		return nil
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Warn("Retrying whitelist relay",
			attr.String("username", req.Username),
			attr.Int("attempt", attempt),
			attr.Duration("retry_in", wait),
			attr.Error(err),
		)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(c.backoff(), uint64(c.maxRetries)), ctx)
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return Response{}, err
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, body []byte) (Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Response{}, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("failed to reach whitelist relay: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return Response{}, fmt.Errorf("failed to read relay response: %w", err)
	}

	var decoded Response
	var decodeErr error
	if len(raw) > 0 {
		decodeErr = json.Unmarshal(raw, &decoded)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{StatusCode: resp.StatusCode, Message: decoded.Message}
		if decodeErr != nil {
			c.logger.Debug("Relay error body is not JSON", attr.Int("status", resp.StatusCode), attr.Error(decodeErr))
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return Response{}, statusErr
		}
		return Response{}, backoff.Permanent(statusErr)
	}

	switch {
	case len(raw) == 0:
		decoded.Success = true
	case decodeErr != nil:
		// Plain-text answers are shown as they are; they carry no success flag.
		decoded = Response{Message: strings.TrimSpace(string(raw))}
	}
	return decoded, nil
}
