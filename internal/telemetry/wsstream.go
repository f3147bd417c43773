package telemetry

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
)

// Authenticator extracts and validates the caller identity of a live
// trace subscription request.
type Authenticator interface {
	Authenticate(r *http.Request) (subject string, err error)
}

var (
	ErrMissingToken = errors.New("missing authentication token")
	ErrInvalidToken = errors.New("invalid authentication token")
)

// JWTAuth validates bearer tokens signed with an HMAC secret, trying the
// Authorization header first and the "token" query parameter as a
// fallback — the latter is how browsers that cannot set a WebSocket
// Authorization header still authenticate.
type JWTAuth struct {
	secretKey string
}

func NewJWTAuth(secretKey string) *JWTAuth { return &JWTAuth{secretKey: secretKey} }

type jwtClaims struct {
	Subject string `json:"sub"`
	jwt.RegisteredClaims
}

func (a *JWTAuth) Authenticate(r *http.Request) (string, error) {
	raw := r.URL.Query().Get("token")
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		raw = strings.TrimPrefix(header, "Bearer ")
	}
	if raw == "" {
		return "", ErrMissingToken
	}
	token, err := jwt.ParseWithClaims(raw, &jwtClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(a.secretKey), nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}
	claims, ok := token.Claims.(*jwtClaims)
	if !ok || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// traceClient is one subscribed websocket connection, filtered to the
// single plan it subscribed to — a live trace viewer has no use for
// every plan's transitions, unlike the audit store.
type traceClient struct {
	conn   *websocket.Conn
	planID string
	send   chan TransitionEvent
}

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 64
)

// Hub fans out committed transitions to every websocket client
// subscribed to the originating plan. It implements TransitionObserver
// so it composes with LoggingObserver/AuditStore via MultiObserver.
type Hub struct {
	upgrader websocket.Upgrader
	auth     Authenticator

	mu      sync.RWMutex
	clients map[*traceClient]bool
	byPlan  map[string]map[*traceClient]bool
}

// NewHub builds a Hub. auth may be nil, in which case ServeHTTP accepts
// every connection without authentication (development mode).
func NewHub(auth Authenticator) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		auth:     auth,
		clients:  make(map[*traceClient]bool),
		byPlan:   make(map[string]map[*traceClient]bool),
	}
}

// ServeHTTP upgrades the request to a websocket and registers the
// connection against the plan named by the "plan_id" query parameter.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.auth != nil {
		if _, err := h.auth.Authenticate(r); err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	client := &traceClient{
		conn:   conn,
		planID: r.URL.Query().Get("plan_id"),
		send:   make(chan TransitionEvent, sendBufferSize),
	}
	h.register(client)
	go h.writePump(client)
}

func (h *Hub) register(c *traceClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = true
	if h.byPlan[c.planID] == nil {
		h.byPlan[c.planID] = make(map[*traceClient]bool)
	}
	h.byPlan[c.planID][c] = true
}

func (h *Hub) unregister(c *traceClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	if clients, ok := h.byPlan[c.planID]; ok {
		delete(clients, c)
		if len(clients) == 0 {
			delete(h.byPlan, c.planID)
		}
	}
	close(c.send)
}

func (h *Hub) writePump(c *traceClient) {
	defer func() {
		h.unregister(c)
		_ = c.conn.Close()
	}()
	for e := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		payload, err := json.Marshal(e)
		if err != nil {
			continue
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

// ObserveTransition implements TransitionObserver: fan out e to every
// client subscribed to e.PlanID, dropping it for a client whose send
// buffer is already full rather than blocking the scheduler.
func (h *Hub) ObserveTransition(e TransitionEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.byPlan[e.PlanID] {
		select {
		case c.send <- e:
		default:
		}
	}
}

// ClientCount reports the number of currently connected trace viewers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
