// Package messenger implements the Graph API send and profile calls the
// bot depends on: plain text sends, quick-reply sends, and the user
// timezone lookup used for time resolution.
package messenger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// ErrUpstream reports a failed platform call.
var ErrUpstream = errors.New("messenger: upstream unavailable")

// QuickReply is one button attached to a message.
type QuickReply struct {
	Label   string
	Payload string
}

// Config configures the client.
type Config struct {
	APIBase     string
	AccessToken string
	Timeout     time.Duration
	SendPerSec  float64
	SendBurst   int
}

// Client talks to the messaging platform. Outbound sends share a rate
// limiter so a burst of due reminders cannot trip the platform's send
// quota.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	log     zerolog.Logger
}

func New(cfg Config, log zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.SendPerSec <= 0 {
		cfg.SendPerSec = 10
	}
	if cfg.SendBurst <= 0 {
		cfg.SendBurst = 5
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.SendPerSec), cfg.SendBurst),
		log:     log.With().Str("component", "messenger").Logger(),
	}
}

type outboundMessage struct {
	Text         string          `json:"text"`
	QuickReplies []quickReplyDTO `json:"quick_replies,omitempty"`
}

type quickReplyDTO struct {
	ContentType string `json:"content_type"`
	Title       string `json:"title"`
	Payload     string `json:"payload"`
}

type outboundRequest struct {
	Recipient struct {
		ID string `json:"id"`
	} `json:"recipient"`
	Message outboundMessage `json:"message"`
}

// SendText delivers a plain text message.
func (c *Client) SendText(ctx context.Context, recipientID, text string) error {
	return c.send(ctx, recipientID, outboundMessage{Text: text})
}

// SendQuickReply delivers a message with attached quick-reply buttons.
func (c *Client) SendQuickReply(ctx context.Context, recipientID, text string, replies []QuickReply) error {
	msg := outboundMessage{Text: text}
	for _, r := range replies {
		msg.QuickReplies = append(msg.QuickReplies, quickReplyDTO{
			ContentType: "text",
			Title:       r.Label,
			Payload:     r.Payload,
		})
	}
	return c.send(ctx, recipientID, msg)
}

func (c *Client) send(ctx context.Context, recipientID string, msg outboundMessage) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	var req outboundRequest
	req.Recipient.ID = recipientID
	req.Message = msg

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	u := fmt.Sprintf("%s/me/messages?access_token=%s", c.cfg.APIBase, url.QueryEscape(c.cfg.AccessToken))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.Warn().Int("status", resp.StatusCode).Str("body", string(b)).Msg("send rejected")
		return fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}
	return nil
}

// UTCOffsetHours fetches the user's timezone as whole hours from UTC.
func (c *Client) UTCOffsetHours(ctx context.Context, userID string) (int, error) {
	u := fmt.Sprintf("%s/%s?fields=timezone&access_token=%s",
		c.cfg.APIBase, url.PathEscape(userID), url.QueryEscape(c.cfg.AccessToken))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	var out struct {
		Timezone int `json:"timezone"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return out.Timezone, nil
}
