package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/blkluv/dentist-ai/bridge"
	"github.com/blkluv/dentist-ai/models"
	"github.com/blkluv/dentist-ai/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type rejectingConnector struct{}

func (rejectingConnector) Negotiate(context.Context) (models.RealtimeSessionResponse, error) {
	return models.RealtimeSessionResponse{}, &services.NegotiationError{StatusCode: http.StatusUnauthorized, Body: "invalid key"}
}

func (rejectingConnector) Dial(context.Context, string) (*websocket.Conn, error) {
	return nil, nil
}

func newTestRouter(bridgeEnabled bool) (*gin.Engine, *bridge.Registry) {
	registry := bridge.NewRegistry()
	return NewRouter(Options{
		MediaStreamPath: "/media-stream",
		PublicHost:      "bridge.example.com",
		BridgeEnabled:   bridgeEnabled,
		FallbackNumber:  "+15550009999",
		Registry:        registry,
		Session:         bridge.Deps{Connector: rejectingConnector{}, Keepalive: time.Minute},
	}), registry
}

func TestIncomingCall_ConnectsStream(t *testing.T) {
	router, _ := newTestRouter(true)

	form := url.Values{"CallSid": {"CA1"}, "From": {"+15550001111"}}
	req := httptest.NewRequest(http.MethodPost, "/incoming-call", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/xml") {
		t.Fatalf("Content-Type=%q", ct)
	}
	body := rec.Body.String()
	for _, want := range []string{"<Connect>", `url="wss://bridge.example.com/media-stream"`, `name="caller"`, `value="+15550001111"`} {
		if !strings.Contains(body, want) {
			t.Fatalf("twiml missing %s: %s", want, body)
		}
	}
}

func TestIncomingCall_FallbackWhenBridgeDisabled(t *testing.T) {
	router, _ := newTestRouter(false)

	req := httptest.NewRequest(http.MethodPost, "/incoming-call", strings.NewReader("CallSid=CA2"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	body := rec.Body.String()
	if rec.Code != http.StatusOK || !strings.Contains(body, "<Say>") || !strings.Contains(body, "+15550009999") {
		t.Fatalf("status=%d body=%s", rec.Code, body)
	}
	if strings.Contains(body, "<Stream") {
		t.Fatalf("fallback should not stream: %s", body)
	}
}

func TestHealthz(t *testing.T) {
	router, _ := newTestRouter(true)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	var got struct {
		Status         string `json:"status"`
		ActiveSessions int    `json:"active_sessions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Status != "ok" || got.ActiveSessions != 0 {
		t.Fatalf("health=%+v", got)
	}
}

func TestUpgradeOutsideMediaStream_DropsConnection(t *testing.T) {
	router, _ := newTestRouter(true)
	srv := httptest.NewServer(router)
	defer srv.Close()

	cases := []struct{ method, path string }{
		{http.MethodGet, "/"},
		{http.MethodGet, "/other-stream"},
		{http.MethodGet, "/media-stream/extra"},
		{http.MethodGet, "/healthz"},
		{http.MethodPost, "/incoming-call"},
	}
	for _, tc := range cases {
		path := tc.path
		conn, err := net.Dial("tcp", strings.TrimPrefix(srv.URL, "http://"))
		if err != nil {
			t.Fatalf("dial: %v", err)
		}
		_ = conn.SetDeadline(time.Now().Add(2 * time.Second))
		_, _ = io.WriteString(conn, tc.method+" "+path+" HTTP/1.1\r\nHost: test\r\nUpgrade: websocket\r\nConnection: Upgrade\r\nSec-WebSocket-Version: 13\r\nSec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\nContent-Length: 0\r\n\r\n")

		resp, err := http.ReadResponse(bufio.NewReader(conn), nil)
		if err == nil {
			resp.Body.Close()
			t.Fatalf("%s: got HTTP %d, want dropped connection", path, resp.StatusCode)
		}
		_ = conn.Close()
	}
}

func TestMediaStream_FailedNegotiationClosesCaller(t *testing.T) {
	router, registry := newTestRouter(true)
	srv := httptest.NewServer(router)
	defer srv.Close()

	caller, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/media-stream", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer caller.Close()

	_ = caller.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := caller.ReadMessage(); err == nil {
		t.Fatalf("expected the call leg to be closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if !registry.Wait(ctx) {
		t.Fatalf("session never unregistered")
	}
}
