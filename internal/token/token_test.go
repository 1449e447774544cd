package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	t.Parallel()
	codec := NewCodec("0123456789abcdef")

	zones := []*time.Location{
		time.UTC,
		time.FixedZone("", 2*3600),
		time.FixedZone("", -7*3600),
	}
	for _, loc := range zones {
		due := time.Date(2026, 9, 2, 16, 0, 0, 0, loc)
		d := Draft{Text: "do laundry", DueAt: due}

		payload, err := codec.Encode(d)
		require.NoError(t, err)

		res, err := codec.Decode(payload)
		require.NoError(t, err)
		require.False(t, res.Cancelled)
		assert.Equal(t, d.Text, res.Draft.Text)
		assert.True(t, res.Draft.DueAt.Equal(d.DueAt))
		// The offset survives too, not just the instant.
		assert.Equal(t, d.DueAt.Format(time.RFC3339), res.Draft.DueAt.Format(time.RFC3339))
	}
}

func TestDecodeCancelSentinel(t *testing.T) {
	t.Parallel()
	codec := NewCodec("0123456789abcdef")

	res, err := codec.Decode(CancelPayload)
	require.NoError(t, err)
	assert.True(t, res.Cancelled)
}

func TestDecodeGarbage(t *testing.T) {
	t.Parallel()
	codec := NewCodec("0123456789abcdef")

	for _, payload := range []string{"", "not-a-token", "a.b.c", "{\"text\":\"x\"}"} {
		_, err := codec.Decode(payload)
		assert.ErrorIs(t, err, ErrDecode, "payload %q", payload)
	}
}

func TestDecodeRejectsForeignSignature(t *testing.T) {
	t.Parallel()
	ours := NewCodec("0123456789abcdef")
	theirs := NewCodec("fedcba9876543210")

	payload, err := theirs.Encode(Draft{Text: "x", DueAt: time.Now().Add(time.Hour)})
	require.NoError(t, err)

	_, err = ours.Decode(payload)
	assert.ErrorIs(t, err, ErrDecode)
}

func TestDecodeRejectsEmptyText(t *testing.T) {
	t.Parallel()
	codec := NewCodec("0123456789abcdef")

	payload, err := codec.Encode(Draft{Text: "", DueAt: time.Now().Add(time.Hour)})
	require.NoError(t, err)

	_, err = codec.Decode(payload)
	assert.ErrorIs(t, err, ErrDecode)
}
