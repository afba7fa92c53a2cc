// Package client provides a Go client for the PingWave chat API,
// including the optimistic-send sync engine the frontend builds on.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AdityaGahukar/PingWave/internal/domain"
)

// Client is a PingWave API client. The session cookie issued at login
// is held in the cookie jar and sent on every request, including the
// WebSocket handshake.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	ws *websocket.Conn
}

// New creates a client against the given base URL.
func New(baseURL string) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Jar:     jar,
			Timeout: 30 * time.Second,
		},
	}, nil
}

type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *apiError       `json:"error"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d (%s): %s", e.StatusCode, e.Code, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var envelope apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if resp.StatusCode >= 400 || !envelope.Success {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if envelope.Error != nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}

	if out != nil {
		return json.Unmarshal(envelope.Data, out)
	}
	return nil
}

// Signup registers a new account and stores the session cookie.
func (c *Client) Signup(ctx context.Context, fullName, email, password string) (*domain.UserResponse, error) {
	var user domain.UserResponse
	err := c.do(ctx, http.MethodPost, "/auth/signup", &domain.SignupRequest{
		FullName: fullName,
		Email:    email,
		Password: password,
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Login authenticates and stores the session cookie.
func (c *Client) Login(ctx context.Context, email, password string) (*domain.UserResponse, error) {
	var user domain.UserResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", &domain.LoginRequest{
		Email:    email,
		Password: password,
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Logout clears the server-side session cookie.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

// Contacts returns every other user.
func (c *Client) Contacts(ctx context.Context) ([]domain.UserResponse, error) {
	var out struct {
		Users []domain.UserResponse `json:"users"`
	}
	if err := c.do(ctx, http.MethodGet, "/messages/contacts", nil, &out); err != nil {
		return nil, err
	}
	return out.Users, nil
}

// ChatPartners returns users with prior conversations.
func (c *Client) ChatPartners(ctx context.Context) ([]domain.UserResponse, error) {
	var out struct {
		ChatPartners []domain.UserResponse `json:"chat_partners"`
	}
	if err := c.do(ctx, http.MethodGet, "/messages/chats", nil, &out); err != nil {
		return nil, err
	}
	return out.ChatPartners, nil
}

// History returns the ordered conversation with the given user.
func (c *Client) History(ctx context.Context, otherID string) ([]domain.Message, error) {
	var messages []domain.Message
	if err := c.do(ctx, http.MethodGet, "/messages/"+url.PathEscape(otherID), nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// SendMessage sends a message to the given user.
func (c *Client) SendMessage(ctx context.Context, receiverID string, req *domain.SendMessageRequest) (*domain.Message, error) {
	var msg domain.Message
	if err := c.do(ctx, http.MethodPost, "/messages/send/"+url.PathEscape(receiverID), req, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Connect establishes the real-time connection and returns an EventBus
// fed by it. The reader goroutine stops when the connection drops or
// ctx is cancelled.
func (c *Client) Connect(ctx context.Context) (*EventBus, error) {
	wsURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, err
	}
	switch wsURL.Scheme {
	case "https":
		wsURL.Scheme = "wss"
	default:
		wsURL.Scheme = "ws"
	}
	wsURL.Path = "/ws"

	dialer := websocket.Dialer{Jar: c.HTTPClient.Jar}
	conn, resp, err := dialer.DialContext(ctx, wsURL.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket handshake failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, err
	}
	c.ws = conn

	bus := NewEventBus()

	go func() {
		defer conn.Close()
		for {
			var evt IncomingEvent
			if err := conn.ReadJSON(&evt); err != nil {
				return
			}
			bus.Publish(evt)
		}
	}()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	return bus, nil
}

// NewSyncEngineFor returns a SyncEngine wired to this client and bus.
func (c *Client) NewSyncEngineFor(bus *EventBus) *SyncEngine {
	return NewSyncEngine(c.SendMessage, bus)
}

// Close tears down the real-time connection if one is open.
func (c *Client) Close() error {
	if c.ws != nil {
		return c.ws.Close()
	}
	return nil
}
