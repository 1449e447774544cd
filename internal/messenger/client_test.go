package messenger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{APIBase: srv.URL, AccessToken: "tok", SendPerSec: 1000, SendBurst: 100}, zerolog.Nop())
}

func TestSendText(t *testing.T) {
	t.Parallel()
	var got outboundRequest
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/me/messages", r.URL.Path)
		assert.Equal(t, "tok", r.URL.Query().Get("access_token"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, c.SendText(context.Background(), "u1", "hello"))
	assert.Equal(t, "u1", got.Recipient.ID)
	assert.Equal(t, "hello", got.Message.Text)
	assert.Empty(t, got.Message.QuickReplies)
}

func TestSendQuickReply(t *testing.T) {
	t.Parallel()
	var got outboundRequest
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	})

	err := c.SendQuickReply(context.Background(), "u1", "confirm?", []QuickReply{
		{Label: "Yes", Payload: "p1"},
		{Label: "Cancel", Payload: "cancel"},
	})
	require.NoError(t, err)

	assert.Equal(t, "confirm?", got.Message.Text)
	require.Len(t, got.Message.QuickReplies, 2)
	assert.Equal(t, "text", got.Message.QuickReplies[0].ContentType)
	assert.Equal(t, "Yes", got.Message.QuickReplies[0].Title)
	assert.Equal(t, "p1", got.Message.QuickReplies[0].Payload)
}

func TestSendRejected(t *testing.T) {
	t.Parallel()
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	err := c.SendText(context.Background(), "u1", "hello")
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestUTCOffsetHours(t *testing.T) {
	t.Parallel()
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/u1", r.URL.Path)
		assert.Equal(t, "timezone", r.URL.Query().Get("fields"))
		_, _ = w.Write([]byte(`{"timezone": -5}`))
	})

	off, err := c.UTCOffsetHours(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, -5, off)
}

func TestUTCOffsetHoursUpstreamError(t *testing.T) {
	t.Parallel()
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := c.UTCOffsetHours(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrUpstream)
}
