package server

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rmndr/internal/bot"
)

type collectingHandler struct {
	mu     sync.Mutex
	events []bot.Event
}

func (h *collectingHandler) HandleEvent(_ context.Context, ev bot.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, ev)
}

func (h *collectingHandler) snapshot() []bot.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]bot.Event(nil), h.events...)
}

func newTestServer(t *testing.T, secret string) (*Server, *collectingHandler) {
	t.Helper()
	h := &collectingHandler{}
	s := New(Config{Listen: ":0", VerifyToken: "verify-me", AppSecret: secret}, h, zerolog.Nop())
	return s, h
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write(body)
	return "sha1=" + hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyHandshake(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, "")

	req := httptest.NewRequest(http.MethodGet,
		"/webhook?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=12345", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "12345", w.Body.String())
}

func TestVerifyHandshakeWrongToken(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, "")

	req := httptest.NewRequest(http.MethodGet,
		"/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestWebhookDispatchesEvents(t *testing.T) {
	t.Parallel()
	s, h := newTestServer(t, "shh")

	body := []byte(`{
		"object": "page",
		"entry": [{
			"id": "page1", "time": 1756000000000,
			"messaging": [
				{"sender": {"id": "u1"}, "timestamp": 1756000000001, "message": {"text": "!list"}},
				{"sender": {"id": "u2"}, "timestamp": 1756000000002, "message": {"text": "hi", "quick_reply": {"payload": "cancel"}}},
				{"sender": {"id": "u3"}, "timestamp": 1756000000003, "postback": {"payload": "get_started"}},
				{"timestamp": 1756000000004, "message": {"text": "no sender, dropped"}}
			]
		}]
	}`)

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("X-Hub-Signature", sign("shh", body))
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	// Processing is asynchronous after the ack.
	require.Eventually(t, func() bool { return len(h.snapshot()) == 3 }, 2*time.Second, 10*time.Millisecond)

	events := h.snapshot()
	assert.Equal(t, "u1", events[0].SenderID)
	assert.Equal(t, "!list", events[0].Text)
	assert.False(t, events[0].HasQuickReply)

	assert.Equal(t, "u2", events[1].SenderID)
	assert.True(t, events[1].HasQuickReply)
	assert.Equal(t, "cancel", events[1].QuickReplyPayload)

	assert.Equal(t, "u3", events[2].SenderID)
	assert.Equal(t, "get_started", events[2].PostbackPayload)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	t.Parallel()
	s, h := newTestServer(t, "shh")

	body := []byte(`{"object":"page","entry":[]}`)
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("X-Hub-Signature", sign("wrong-secret", body))
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, h.snapshot())
}

func TestWebhookRejectsMissingSignature(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, "shh")

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader([]byte(`{}`)))
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestWebhookBadJSON(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, "")

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader([]byte("{nope")))
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealth(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, "")

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}

func TestVerifySignature(t *testing.T) {
	t.Parallel()
	body := []byte("payload")

	assert.True(t, verifySignature("secret", body, sign("secret", body)))
	assert.False(t, verifySignature("secret", body, sign("other", body)))
	assert.False(t, verifySignature("secret", body, "sha1=zz-not-hex"))
	assert.False(t, verifySignature("secret", body, "md5=abcdef"))
	assert.False(t, verifySignature("secret", body, ""))
}
