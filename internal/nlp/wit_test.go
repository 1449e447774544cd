package nlp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientQuery(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/message", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "20170901", r.URL.Query().Get("v"))
		assert.Equal(t, "tomorrow at 4pm", r.URL.Query().Get("q"))

		var ref struct {
			ReferenceTime string `json:"reference_time"`
		}
		require.NoError(t, json.Unmarshal([]byte(r.URL.Query().Get("context")), &ref))
		assert.Contains(t, ref.ReferenceTime, "+02:00")

		_ = json.NewEncoder(w).Encode(Response{Entities: map[string][]Entity{
			"datetime": {{Value: "2026-09-02T16:00:00+02:00", Confidence: 0.95}},
		}})
	}))
	defer srv.Close()

	c := NewClient(Config{APIBase: srv.URL, Token: "test-token", Version: "20170901"}, zerolog.Nop())

	ref := time.Date(2026, 9, 1, 14, 0, 0, 0, time.FixedZone("", 2*3600))
	resp, err := c.Query(context.Background(), "tomorrow at 4pm", ref)
	require.NoError(t, err)
	require.Len(t, resp.Entities["datetime"], 1)
	assert.Equal(t, "2026-09-02T16:00:00+02:00", resp.Entities["datetime"][0].Value)
}

func TestClientQueryUpstreamError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(Config{APIBase: srv.URL, Token: "t", Version: "20170901"}, zerolog.Nop())
	_, err := c.Query(context.Background(), "x", time.Now())
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestClientQueryTimeout(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	c := NewClient(Config{APIBase: srv.URL, Token: "t", Version: "20170901", Timeout: 50 * time.Millisecond}, zerolog.Nop())
	_, err := c.Query(context.Background(), "x", time.Now())
	assert.ErrorIs(t, err, ErrUpstream)
}
