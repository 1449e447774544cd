// Package token encodes a pending reminder draft into a self-contained
// quick-reply payload. The service holds no session state between the
// confirmation prompt and the user's answer; the payload carries the
// whole draft, signed so a tampered or foreign button is rejected.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CancelPayload is the distinguished payload carried by the "Cancel"
// quick-reply button. It is not a token and never reaches the JWT layer.
const CancelPayload = "cancel"

// ErrDecode reports a payload that is neither the cancel sentinel nor a
// validly signed draft token.
var ErrDecode = errors.New("token: invalid confirmation payload")

// Draft is an unconfirmed reminder. It exists only inside the payload.
type Draft struct {
	Text  string
	DueAt time.Time // keeps the offset resolved for the user
}

// Result is a decoded payload: either the cancel sentinel or a draft.
type Result struct {
	Cancelled bool
	Draft     Draft
}

type draftClaims struct {
	Text string `json:"txt"`
	Due  string `json:"due"` // RFC 3339 with explicit offset
	jwt.RegisteredClaims
}

// Codec signs and verifies draft payloads with an HMAC key.
type Codec struct {
	secret []byte
}

func NewCodec(secret string) *Codec {
	return &Codec{secret: []byte(secret)}
}

// Encode produces the signed payload for a draft.
func (c *Codec) Encode(d Draft) (string, error) {
	claims := &draftClaims{
		Text: d.Text,
		Due:  d.DueAt.Format(time.RFC3339),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(c.secret)
}

// Decode parses a quick-reply payload. The cancel sentinel yields a
// cancelled result; anything else must be a validly signed draft token
// or ErrDecode is returned (wrapped with the underlying cause).
func (c *Codec) Decode(payload string) (Result, error) {
	if payload == CancelPayload {
		return Result{Cancelled: true}, nil
	}

	var claims draftClaims
	tok, err := jwt.ParseWithClaims(payload, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if !tok.Valid {
		return Result{}, ErrDecode
	}

	due, err := time.Parse(time.RFC3339, claims.Due)
	if err != nil {
		return Result{}, fmt.Errorf("%w: bad due time: %v", ErrDecode, err)
	}
	if claims.Text == "" {
		return Result{}, fmt.Errorf("%w: empty reminder text", ErrDecode)
	}
	return Result{Draft: Draft{Text: claims.Text, DueAt: due}}, nil
}
