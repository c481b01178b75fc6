package wsclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"taskflow/pkg/logger"

	"github.com/gorilla/websocket"
)

const (
	defaultMaxReconnectAttempts = 5
	defaultReconnectDelay       = time.Second
)

// Notification mirrors the wire shape pushed by the notification service.
type Notification struct {
	ID        string                 `json:"id"`
	UserID    string                 `json:"userId"`
	Type      string                 `json:"type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Status    string                 `json:"status"`
	CreatedAt time.Time              `json:"createdAt"`
}

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type authenticateData struct {
	UserID     string `json:"userId"`
	Credential string `json:"credential"`
}

type authenticatedData struct {
	Success bool   `json:"success"`
	UserID  string `json:"userId"`
	Message string `json:"message"`
}

type authFailedData struct {
	Error string `json:"error"`
}

// authRejectedError is an in-band authentication rejection. The gateway keeps
// the transport open after sending it, so the client does too.
type authRejectedError struct {
	reason string
}

func (e *authRejectedError) Error() string {
	return "authentication failed: " + e.reason
}

// Config configures a notification client. URL is the WebSocket endpoint,
// APIBaseURL the HTTP base used by the pull operations.
type Config struct {
	URL        string
	APIBaseURL string
	UserID     string
	Credential string

	MaxReconnectAttempts int
	ReconnectDelay       time.Duration

	// OnNotification fires for every pushed notification, after it has been
	// merged into the local list.
	OnNotification func(n *Notification)
	// OnAuthFailure fires with the failure reason; the connection stays open
	// and the caller may update the credential and reconnect.
	OnAuthFailure func(reason string)

	HTTPClient *http.Client
	Logger     *logger.Logger
}

// Client maintains an authenticated WebSocket connection to the notification
// service, transparently reconnecting when the connection drops. It keeps a
// local notification list fed by both the pull API and live pushes.
type Client struct {
	cfg        Config
	dialer     *websocket.Dialer
	httpClient *http.Client
	logger     *logger.Logger

	mu            sync.Mutex
	conn          *websocket.Conn
	notifications []*Notification
	closed        bool
	reading       bool
	done          chan struct{}
}

func New(cfg Config) *Client {
	if cfg.MaxReconnectAttempts == 0 {
		cfg.MaxReconnectAttempts = defaultMaxReconnectAttempts
	}
	if cfg.ReconnectDelay == 0 {
		cfg.ReconnectDelay = defaultReconnectDelay
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.New()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	return &Client{
		cfg:        cfg,
		dialer:     websocket.DefaultDialer,
		httpClient: httpClient,
		logger:     cfg.Logger,
		done:       make(chan struct{}),
	}
}

// Connect dials the gateway, authenticates and starts the read loop. It
// returns once the connection is authenticated; subsequent drops are handled
// by the reconnect loop until the attempt budget is exhausted.
//
// When the gateway rejects the credential the transport stays open: the
// caller may update the credential with SetCredential and retry with
// Authenticate on the same connection.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.connectOnce(ctx); err != nil {
		return err
	}

	c.startReadLoop(ctx)
	return nil
}

// Authenticate retries the in-band handshake on the current connection,
// typically after an authentication rejection and a SetCredential.
func (c *Client) Authenticate(ctx context.Context) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("not connected")
	}

	if err := c.authenticate(conn); err != nil {
		var rejected *authRejectedError
		if errors.As(err, &rejected) {
			return err
		}
		c.dropConn(conn)
		return err
	}

	c.startReadLoop(ctx)
	return nil
}

// SetCredential replaces the bearer credential used for authentication and
// for the pull API.
func (c *Client) SetCredential(credential string) {
	c.mu.Lock()
	c.cfg.Credential = credential
	c.mu.Unlock()
}

func (c *Client) credential() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.Credential
}

// Close shuts the client down. It does not trigger reconnection.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.mu.Unlock()

	close(c.done)
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// Notifications returns a snapshot of the local list, newest first.
func (c *Client) Notifications() []*Notification {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*Notification, len(c.notifications))
	copy(out, c.notifications)
	return out
}

// UnreadCount counts unread notifications in the local list.
func (c *Client) UnreadCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for _, n := range c.notifications {
		if n.Status == "unread" {
			count++
		}
	}
	return count
}

func (c *Client) connectOnce(ctx context.Context) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		var err error
		conn, _, err = c.dialer.DialContext(ctx, c.cfg.URL, nil)
		if err != nil {
			return fmt.Errorf("failed to dial %s: %w", c.cfg.URL, err)
		}
		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()
	}

	if err := c.authenticate(conn); err != nil {
		var rejected *authRejectedError
		if errors.As(err, &rejected) {
			// Rejection is non-fatal to the connection; keep it for a retry
			// with a fresh credential.
			return err
		}
		c.dropConn(conn)
		return err
	}

	return nil
}

func (c *Client) startReadLoop(ctx context.Context) {
	c.mu.Lock()
	if c.reading {
		c.mu.Unlock()
		return
	}
	c.reading = true
	c.mu.Unlock()

	go c.readLoop(ctx)
}

// dropConn closes a dead connection and forgets it unless a newer one has
// already replaced it.
func (c *Client) dropConn(conn *websocket.Conn) {
	conn.Close()
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
}

// authenticate runs the in-band handshake. Frames other than the
// authentication outcome (a queued notification, a pong) are skipped.
func (c *Client) authenticate(conn *websocket.Conn) error {
	payload, err := json.Marshal(authenticateData{UserID: c.cfg.UserID, Credential: c.credential()})
	if err != nil {
		return err
	}
	if err := conn.WriteJSON(frame{Event: "authenticate", Data: payload}); err != nil {
		return fmt.Errorf("failed to send authenticate frame: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	defer conn.SetReadDeadline(time.Time{})

	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			return fmt.Errorf("failed to read authentication response: %w", err)
		}

		switch f.Event {
		case "authenticated":
			var data authenticatedData
			if err := json.Unmarshal(f.Data, &data); err != nil || !data.Success {
				return fmt.Errorf("authentication rejected")
			}
			return nil
		case "authentication_failed":
			var data authFailedData
			_ = json.Unmarshal(f.Data, &data)
			if c.cfg.OnAuthFailure != nil {
				c.cfg.OnAuthFailure(data.Error)
			}
			return &authRejectedError{reason: data.Error}
		}
	}
}

func (c *Client) readLoop(ctx context.Context) {
	defer func() {
		c.mu.Lock()
		c.reading = false
		c.mu.Unlock()
	}()

	for {
		c.mu.Lock()
		conn := c.conn
		closed := c.closed
		c.mu.Unlock()
		if closed || conn == nil {
			return
		}

		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			c.logger.Warn("Notification stream dropped: %v", err)
			c.dropConn(conn)
			if !c.reconnect(ctx) {
				return
			}
			continue
		}

		if f.Event == "notification" {
			var n Notification
			if err := json.Unmarshal(f.Data, &n); err != nil {
				c.logger.Error("Failed to decode pushed notification: %v", err)
				continue
			}
			c.mergeToHead(&n)
			if c.cfg.OnNotification != nil {
				c.cfg.OnNotification(&n)
			}
		}
	}
}

// reconnect re-dials and re-authenticates, up to the configured attempt
// budget. Every new connection authenticates from scratch.
func (c *Client) reconnect(ctx context.Context) bool {
	for attempt := 1; attempt <= c.cfg.MaxReconnectAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return false
		case <-c.done:
			return false
		case <-time.After(c.cfg.ReconnectDelay):
		}

		c.logger.Info("Reconnecting to notification stream (attempt %d/%d)", attempt, c.cfg.MaxReconnectAttempts)
		if err := c.connectOnce(ctx); err != nil {
			c.logger.Warn("Reconnect attempt %d failed: %v", attempt, err)
			continue
		}
		return true
	}

	c.logger.Error("Giving up on notification stream after %d reconnect attempts", c.cfg.MaxReconnectAttempts)
	return false
}

// mergeToHead prepends a pushed notification to the local list.
func (c *Client) mergeToHead(n *Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifications = append([]*Notification{n}, c.notifications...)
}

// FetchNotifications replaces the local list with the server's current page,
// newest first.
func (c *Client) FetchNotifications(ctx context.Context, page, limit int) error {
	url := fmt.Sprintf("%s/api/v1/notifications?page=%d&limit=%d", c.cfg.APIBaseURL, page, limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.credential())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch notifications: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to fetch notifications: status %d", resp.StatusCode)
	}

	var body struct {
		Data []*Notification `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("failed to decode notifications: %w", err)
	}

	c.mu.Lock()
	c.notifications = body.Data
	c.mu.Unlock()
	return nil
}

// MarkRead marks a notification as read optimistically: the local status
// flips immediately and is rolled back if the server rejects the update.
func (c *Client) MarkRead(ctx context.Context, notificationID string) error {
	previous, flipped := c.setLocalStatus(notificationID, "read")
	rollback := func() {
		if flipped {
			c.setLocalStatus(notificationID, previous)
		}
	}

	url := fmt.Sprintf("%s/api/v1/notifications/%s/read", c.cfg.APIBaseURL, notificationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, nil)
	if err != nil {
		rollback()
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.credential())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		rollback()
		return fmt.Errorf("failed to mark notification as read: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		rollback()
		return fmt.Errorf("failed to mark notification as read: status %d", resp.StatusCode)
	}
	return nil
}

// MarkAllRead marks every local notification as read and tells the server.
func (c *Client) MarkAllRead(ctx context.Context) error {
	url := fmt.Sprintf("%s/api/v1/notifications/read-all", c.cfg.APIBaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.credential())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to mark all notifications as read: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to mark all notifications as read: status %d", resp.StatusCode)
	}

	c.mu.Lock()
	for _, n := range c.notifications {
		n.Status = "read"
	}
	c.mu.Unlock()
	return nil
}

// setLocalStatus flips a local notification's status and reports the previous
// value. The second return is false when the notification isn't in the local
// list, in which case nothing changed.
func (c *Client) setLocalStatus(notificationID, status string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, n := range c.notifications {
		if n.ID == notificationID {
			previous := n.Status
			n.Status = status
			return previous, true
		}
	}
	return "", false
}
