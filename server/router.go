package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/blkluv/dentist-ai/bridge"
	"github.com/blkluv/dentist-ai/services"
)

const fallbackMessage = "Sorry, our virtual receptionist is unavailable right now. Please hold while we connect you to the front desk."

// Options configures the HTTP surface.
type Options struct {
	// MediaStreamPath is the only path that accepts websocket upgrades.
	MediaStreamPath string
	// PublicHost is the host Twilio reaches us on. Empty uses the request Host.
	PublicHost string
	// BridgeEnabled is false when no model credentials are configured; calls
	// are then handed to FallbackNumber.
	BridgeEnabled  bool
	FallbackNumber string

	Registry *bridge.Registry
	Session  bridge.Deps
	Logger   *slog.Logger
}

type handler struct {
	opts     Options
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewRouter wires the media stream endpoint, the incoming-call webhook and
// the health check.
func NewRouter(opts Options) *gin.Engine {
	if opts.MediaStreamPath == "" {
		opts.MediaStreamPath = "/media-stream"
	}
	if opts.Registry == nil {
		opts.Registry = bridge.NewRegistry()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Session.Logger == nil {
		opts.Session.Logger = opts.Logger
	}

	h := &handler{
		opts:   opts,
		logger: opts.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}

	app := gin.New()
	app.Use(gin.Recovery(), requestLogger(opts.Logger), h.upgradeGuard)

	app.GET(opts.MediaStreamPath, h.mediaStream)
	app.POST("/incoming-call", h.incomingCall)
	app.GET("/healthz", h.health)
	app.NoRoute(h.reject)
	return app
}

func (h *handler) mediaStream(c *gin.Context) {
	if !websocket.IsWebSocketUpgrade(c.Request) {
		h.reject(c)
		return
	}
	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("media stream upgrade failed", "error", err)
		return
	}

	s := bridge.NewSession(ws, h.opts.Session)
	// The request context ends with the handler; shutdown goes through the registry.
	err = h.opts.Registry.Serve(context.WithoutCancel(c.Request.Context()), s)
	if err != nil && !errors.Is(err, bridge.ErrCallLegClosed) {
		h.logger.Info("session ended", "session_id", s.ID, "error", err)
	}
}

func (h *handler) incomingCall(c *gin.Context) {
	callSID := c.PostForm("CallSid")
	caller := c.PostForm("From")

	var (
		body string
		err  error
	)
	if h.opts.BridgeEnabled {
		host := h.opts.PublicHost
		if host == "" {
			host = c.Request.Host
		}
		params := map[string]string{}
		if caller != "" {
			params["caller"] = caller
		}
		body, err = services.StreamTwiML("wss://"+host+h.opts.MediaStreamPath, params)
	} else {
		h.logger.Warn("bridge disabled, forwarding call", "call_sid", callSID)
		body, err = services.FallbackTwiML(fallbackMessage, h.opts.FallbackNumber)
	}
	if err != nil {
		h.logger.Error("render twiml", "call_sid", callSID, "error", err)
		c.String(http.StatusInternalServerError, "cannot handle call atm")
		return
	}

	h.logger.Info("incoming call", "call_sid", callSID, "bridged", h.opts.BridgeEnabled)
	c.Header("Content-Type", "text/xml")
	c.String(http.StatusOK, body)
}

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":          "ok",
		"active_sessions": h.opts.Registry.Count(),
		"states":          h.opts.Registry.States(),
	})
}

// upgradeGuard refuses websocket handshakes on every path but the media stream.
func (h *handler) upgradeGuard(c *gin.Context) {
	if websocket.IsWebSocketUpgrade(c.Request) && c.Request.URL.Path != h.opts.MediaStreamPath {
		h.reject(c)
		return
	}
	c.Next()
}

// reject drops the connection without writing an HTTP response.
func (h *handler) reject(c *gin.Context) {
	conn, _, err := c.Writer.Hijack()
	if err != nil {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}
	h.logger.Debug("rejected request", "method", c.Request.Method, "path", c.Request.URL.Path)
	_ = conn.Close()
	c.Abort()
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if c.Request.URL.Path == "/healthz" {
			return
		}
		logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
