package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"resumebuilder/internal/api/middleware"
)

const (
	wsAuthTimeout  = 10 * time.Second
	wsPingInterval = 30 * time.Second
	wsWriteWait    = 5 * time.Second
)

// NotificationFeed streams the notification payloads published for a user.
type NotificationFeed interface {
	Subscribe(ctx context.Context, userID uint) (<-chan string, func() error)
}

var (
	errAuthFrame    = errors.New("first frame must be {\"type\":\"auth\",\"token\":...}")
	errAuthTimedOut = errors.New("auth frame not received in time")
)

// WsHandler pushes archive notifications to authenticated browser sessions.
type WsHandler struct {
	feed           NotificationFeed
	validator      middleware.TokenValidator
	logger         *slog.Logger
	upgrader       websocket.Upgrader
	allowedOrigins []string
	pingInterval   time.Duration
}

func NewWsHandler(feed NotificationFeed, validator middleware.TokenValidator, logger *slog.Logger, allowedOrigins []string) *WsHandler {
	h := &WsHandler{
		feed:           feed,
		validator:      validator,
		logger:         logger,
		allowedOrigins: allowedOrigins,
		pingInterval:   wsPingInterval,
	}
	h.upgrader = websocket.Upgrader{CheckOrigin: h.checkOrigin}
	return h
}

// checkOrigin accepts same-host origins unless an explicit list is set.
func (h *WsHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if len(h.allowedOrigins) == 0 {
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
	for _, allowed := range h.allowedOrigins {
		if strings.EqualFold(origin, strings.TrimSpace(allowed)) {
			return true
		}
	}
	return false
}

type wsAuthFrame struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// HandleConnection upgrades the request, authenticates the first frame and
// then relays the user's notifications until either side goes away.
func (h *WsHandler) HandleConnection(c *gin.Context) {
	if h.feed == nil {
		Unavailable(c, "notifications are not configured")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("upgrade websocket failed", slog.Any("error", err))
		return
	}
	defer conn.Close()

	log := h.logger.With(slog.String("client_ip", c.ClientIP()))

	userID, err := h.authenticate(conn)
	if err != nil {
		reason := "unauthorized"
		if errors.Is(err, errAuthTimedOut) {
			reason = "auth timeout"
		}
		writeClose(conn, websocket.ClosePolicyViolation, reason)
		log.Info("websocket authentication failed", slog.Any("error", err))
		return
	}
	log = log.With(slog.Uint64("user_id", uint64(userID)))
	log.Info("websocket authenticated")

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// Frames after auth are discarded; reading is what notices the close.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	err = h.relay(ctx, conn, userID)
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		log.Info("websocket connection closed")
	default:
		log.Warn("websocket relay stopped", slog.Any("error", err))
	}
}

func (h *WsHandler) authenticate(conn *websocket.Conn) (uint, error) {
	if err := conn.SetReadDeadline(time.Now().Add(wsAuthTimeout)); err != nil {
		return 0, err
	}
	_, message, err := conn.ReadMessage()
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return 0, errAuthTimedOut
		}
		return 0, fmt.Errorf("read auth frame: %w", err)
	}

	var frame wsAuthFrame
	if err := json.Unmarshal(message, &frame); err != nil || frame.Type != "auth" || frame.Token == "" {
		return 0, errAuthFrame
	}
	claims, err := h.validator.ValidateToken(frame.Token)
	if err != nil {
		return 0, fmt.Errorf("validate token: %w", err)
	}
	return claims.UserID, conn.SetReadDeadline(time.Time{})
}

// relay forwards payloads as text frames and pings on an interval. Only this
// goroutine writes data frames.
func (h *WsHandler) relay(ctx context.Context, conn *websocket.Conn, userID uint) error {
	payloads, unsubscribe := h.feed.Subscribe(ctx, userID)
	defer func() { _ = unsubscribe() }()

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload, ok := <-payloads:
			if !ok {
				return errors.New("notification feed closed")
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
				return fmt.Errorf("write notification: %w", err)
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return fmt.Errorf("write ping: %w", err)
			}
		}
	}
}

func writeClose(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(wsWriteWait))
}
