// Package server exposes the webhook over HTTP: the subscription
// verification handshake, signed event intake, and a health endpoint.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"rmndr/internal/bot"
)

// Config configures the HTTP server.
type Config struct {
	Listen      string
	VerifyToken string
	// AppSecret signs webhook bodies. Empty disables signature checks
	// (local development only).
	AppSecret string
}

// EventHandler consumes one inbound event; the engine satisfies it.
type EventHandler interface {
	HandleEvent(ctx context.Context, ev bot.Event)
}

// Server acknowledges webhooks immediately and processes events
// asynchronously, one goroutine per delivery.
type Server struct {
	cfg     Config
	handler EventHandler
	log     zerolog.Logger
	srv     *http.Server
}

func New(cfg Config, handler EventHandler, log zerolog.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		handler: handler,
		log:     log.With().Str("component", "server").Logger(),
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", s.handleHealth)
	r.GET("/webhook", s.handleVerify)
	r.POST("/webhook", s.handleWebhook)

	s.srv = &http.Server{
		Addr:              cfg.Listen,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Router returns the HTTP handler, exposed for tests.
func (s *Server) Router() http.Handler { return s.srv.Handler }

// Start runs the listener until Shutdown.
func (s *Server) Start() error {
	s.log.Info().Str("listen", s.cfg.Listen).Msg("http server listening")
	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleVerify implements the subscription handshake: echo the
// challenge when the verify token matches.
func (s *Server) handleVerify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && token == s.cfg.VerifyToken {
		c.String(http.StatusOK, challenge)
		return
	}
	s.log.Warn().Str("mode", mode).Msg("webhook verification rejected")
	c.String(http.StatusForbidden, "verification failed")
}

func (s *Server) handleWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.String(http.StatusBadRequest, "bad body")
		return
	}

	if s.cfg.AppSecret != "" {
		sig := c.GetHeader("X-Hub-Signature")
		if !verifySignature(s.cfg.AppSecret, body, sig) {
			s.log.Warn().Msg("webhook signature mismatch")
			c.String(http.StatusForbidden, "invalid signature")
			return
		}
	}

	var cb callback
	if err := json.Unmarshal(body, &cb); err != nil {
		s.log.Warn().Err(err).Msg("undecodable webhook body")
		c.String(http.StatusBadRequest, "bad payload")
		return
	}

	// Acknowledge before processing: the platform redelivers on slow
	// responses, and redelivery is handled as a benign duplicate.
	c.Status(http.StatusOK)

	events := cb.events()
	if len(events) == 0 {
		return
	}
	go s.process(events)
}

func (s *Server) process(events []bot.Event) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("event processing panicked")
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, ev := range events {
		s.handler.HandleEvent(ctx, ev)
	}
}
