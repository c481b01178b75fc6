package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"taskflow/pkg/jwt"
	"taskflow/pkg/logger"
	"taskflow/services/notification/internal/entity"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Auth failure reasons returned in authentication_failed frames.
const (
	ReasonInvalidUserID     = "invalid-userId"
	ReasonInvalidCredential = "invalid-credential"
	ReasonCredentialExpired = "credential-expired"
	ReasonCredentialInvalid = "credential-invalid"
	ReasonIdentityMismatch  = "identity-mismatch"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Frame is the wire envelope for every message in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type AuthenticateData struct {
	UserID     string `json:"userId"`
	Credential string `json:"credential"`
}

type AuthenticatedData struct {
	Success bool   `json:"success"`
	UserID  string `json:"userId,omitempty"`
	Message string `json:"message,omitempty"`
}

type AuthenticationFailedData struct {
	Error string `json:"error"`
}

// Gateway upgrades HTTP requests to WebSocket connections and runs each
// connection through the connected -> authenticated -> closed lifecycle.
// Connections that do not authenticate within the auth timeout are closed.
type Gateway struct {
	registry    Registry
	jwtService  *jwt.Service
	logger      *logger.Logger
	authTimeout time.Duration
}

func NewGateway(registry Registry, jwtService *jwt.Service, log *logger.Logger, authTimeout time.Duration) *Gateway {
	return &Gateway{
		registry:    registry,
		jwtService:  jwtService,
		logger:      log,
		authTimeout: authTimeout,
	}
}

// client is one WebSocket connection. userID is empty until the connection
// authenticates. Writes are serialized through writeMu; gorilla/websocket
// allows only one concurrent writer.
type client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	stateMu   sync.Mutex
	userID    string
	closed    bool
	authTimer *time.Timer
}

func (c *client) send(event string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(Frame{Event: event, Data: payload})
}

func (c *client) SendNotification(notification *entity.Notification) error {
	return c.send("notification", notification)
}

func (g *Gateway) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		g.logger.Error("Failed to upgrade connection to WebSocket: %v", err)
		return
	}

	cl := &client{conn: conn}
	g.logger.Info("Client connected: %s", conn.RemoteAddr())

	cl.authTimer = time.AfterFunc(g.authTimeout, func() {
		g.closeOnAuthTimeout(cl)
	})

	g.readLoop(cl)
	g.disconnect(cl)
}

func (g *Gateway) readLoop(cl *client) {
	for {
		var frame Frame
		if err := cl.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				g.logger.Warn("WebSocket read error: %v", err)
			}
			return
		}

		switch frame.Event {
		case "authenticate":
			g.handleAuthenticate(cl, frame.Data)
		case "ping":
			cl.send("pong", gin.H{"timestamp": time.Now().UTC().Format(time.RFC3339)})
		default:
			g.logger.Warn("Unknown WebSocket event: %s", frame.Event)
		}
	}
}

// handleAuthenticate validates the claimed identity against the presented
// bearer credential. On failure the connection stays open so the client can
// retry; on success the connection joins its user room.
func (g *Gateway) handleAuthenticate(cl *client, data json.RawMessage) {
	var auth AuthenticateData
	if err := json.Unmarshal(data, &auth); err != nil {
		g.rejectAuth(cl, ReasonInvalidCredential)
		return
	}

	if auth.UserID == "" {
		g.rejectAuth(cl, ReasonInvalidUserID)
		return
	}
	if auth.Credential == "" {
		g.rejectAuth(cl, ReasonInvalidCredential)
		return
	}

	claims, err := g.jwtService.ValidateToken(auth.Credential)
	if err != nil {
		if jwt.IsExpired(err) {
			g.rejectAuth(cl, ReasonCredentialExpired)
		} else {
			g.rejectAuth(cl, ReasonCredentialInvalid)
		}
		return
	}

	if claims.UserID != auth.UserID {
		g.rejectAuth(cl, ReasonIdentityMismatch)
		return
	}

	cl.stateMu.Lock()
	if cl.closed {
		// Disconnected while the credential was being verified; never join a
		// room on behalf of a dead connection.
		cl.stateMu.Unlock()
		return
	}
	cl.userID = auth.UserID
	cl.authTimer.Stop()
	cl.stateMu.Unlock()

	g.registry.Register(auth.UserID, cl)
	g.logger.Info("User %s authenticated and joined room (%s)", auth.UserID, cl.conn.RemoteAddr())

	cl.send("authenticated", AuthenticatedData{
		Success: true,
		UserID:  auth.UserID,
		Message: "Successfully authenticated to notifications service",
	})
}

func (g *Gateway) rejectAuth(cl *client, reason string) {
	g.logger.Warn("Authentication failed for client %s: %s", cl.conn.RemoteAddr(), reason)
	cl.send("authentication_failed", AuthenticationFailedData{Error: reason})
}

func (g *Gateway) closeOnAuthTimeout(cl *client) {
	cl.stateMu.Lock()
	if cl.closed || cl.userID != "" {
		cl.stateMu.Unlock()
		return
	}
	cl.closed = true
	cl.stateMu.Unlock()

	g.logger.Warn("Client %s disconnected due to authentication timeout", cl.conn.RemoteAddr())
	cl.send("error", gin.H{"message": "Authentication timeout"})
	cl.conn.Close()
}

func (g *Gateway) disconnect(cl *client) {
	cl.stateMu.Lock()
	cl.authTimer.Stop()
	alreadyClosed := cl.closed
	cl.closed = true
	userID := cl.userID
	cl.stateMu.Unlock()

	if userID != "" {
		g.registry.Unregister(userID, cl)
		g.logger.Info("User %s disconnected (%s)", userID, cl.conn.RemoteAddr())
	} else if !alreadyClosed {
		g.logger.Info("Anonymous client disconnected: %s", cl.conn.RemoteAddr())
	}

	cl.conn.Close()
}
