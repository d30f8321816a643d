package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"

	auth "github.com/goliatone/go-auth-client"
)

const (
	LoginPath    = "/auth/login"
	RegisterPath = "/auth/register"
	ProfilePath  = "/users/me"

	HeaderRequestID = "X-Request-ID"
)

// Client talks to the user service. It implements auth.AuthGateway and
// auth.ProfileProvider.
type Client struct {
	baseURL string
	http    *http.Client
	logger  auth.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the timeout of the default http.Client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.http.Timeout = timeout
		}
	}
}

// WithLogger overrides the logger.
func WithLogger(logger auth.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New returns a client for the service rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		logger:  auth.NopLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

type loginResponse struct {
	Token string `json:"token"`
}

type registerResponse struct {
	Message  string `json:"message"`
	Response struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"response"`
}

type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, creds auth.Credentials) (string, error) {
	var out loginResponse
	if err := c.do(ctx, http.MethodPost, LoginPath, "", creds, &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", rejected(errors.New("login response has no token"))
	}
	return out.Token, nil
}

// Register creates an account and returns its id.
func (c *Client) Register(ctx context.Context, reg auth.Registration) (string, error) {
	var out registerResponse
	if err := c.do(ctx, http.MethodPost, RegisterPath, "", reg, &out); err != nil {
		return "", err
	}
	if out.Response.ID == "" {
		return "", rejected(errors.New("register response has no user id"))
	}
	return out.Response.ID, nil
}

// GetProfile loads the profile of the token owner.
func (c *Client) GetProfile(ctx context.Context, token string) (*auth.UserProfile, error) {
	var out auth.UserProfile
	if err := c.do(ctx, http.MethodGet, ProfilePath, token, nil, &out); err != nil {
		return nil, auth.WrapError(auth.ErrProfileUnavailable, err)
	}
	if role, ok := auth.ParseRole(string(out.Role)); ok {
		out.Role = role
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return rejected(fmt.Errorf("encode request: %w", err))
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return unavailable(err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderRequestID, requestID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("auth backend request failed", "method", method, "path", path, "request_id", requestID, "error", err)
		return unavailable(err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return unavailable(err).WithCode(res.StatusCode)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		c.logger.Debug("auth backend rejected request", "method", method, "path", path, "status", res.StatusCode, "request_id", requestID)
		return statusError(res.StatusCode, raw)
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return rejected(fmt.Errorf("decode response: %w", err)).WithCode(res.StatusCode)
	}
	return nil
}

func statusError(status int, body []byte) error {
	msg := http.StatusText(status)
	var e errorResponse
	if json.Unmarshal(body, &e) == nil {
		switch {
		case e.Message != "":
			msg = e.Message
		case e.Error != "":
			msg = e.Error
		}
	}

	wrap := rejected
	if status >= http.StatusInternalServerError {
		wrap = unavailable
	}
	return wrap(errors.New(msg)).
		WithCode(status).
		WithMetadata(map[string]any{"message": msg, "status": status})
}

func rejected(err error) *goerrors.Error {
	return goerrors.Wrap(err, goerrors.CategoryAuth, "request rejected by auth backend").
		WithTextCode(auth.TextCodeGatewayRejected)
}

func unavailable(err error) *goerrors.Error {
	return goerrors.Wrap(err, goerrors.CategoryOperation, "auth backend unavailable").
		WithTextCode(auth.TextCodeGatewayUnavailable)
}
