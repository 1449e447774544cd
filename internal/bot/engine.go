// Package bot holds the conversational engine: it classifies inbound
// events, drives time resolution and the confirmation exchange, and
// issues job store and scheduler operations.
//
// The engine keeps no session state between turns. A new-reminder
// conversation spans two webhook deliveries (propose, then confirm) and
// the draft travels inside the signed quick-reply payload, so any
// process instance can handle either half.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"rmndr/internal/messenger"
	"rmndr/internal/nlp"
	"rmndr/internal/store"
	"rmndr/internal/token"
)

// getStartedPayload is the platform's fixed postback for the welcome
// button shown to first-time users.
const getStartedPayload = "get_started"

// Event is one inbound messaging event, already unwrapped from the
// webhook envelope.
type Event struct {
	SenderID string
	Text     string

	// HasQuickReply distinguishes a quick-reply tap (possibly with an
	// empty payload) from a typed message.
	HasQuickReply     bool
	QuickReplyPayload string

	PostbackPayload string

	// Timestamp is the platform event time in milliseconds since epoch.
	Timestamp int64
}

// Messenger is the outbound surface the engine needs.
type Messenger interface {
	SendText(ctx context.Context, recipientID, text string) error
	SendQuickReply(ctx context.Context, recipientID, text string, replies []messenger.QuickReply) error
}

// Resolver turns free text plus an event time into candidate instants.
type Resolver interface {
	Resolve(ctx context.Context, userID, query string, eventTime time.Time) ([]time.Time, error)
}

// JobScheduler accepts a confirmed reminder for delivery.
type JobScheduler interface {
	Schedule(ctx context.Context, r store.Reminder) error
}

// Engine processes one inbound event per call. All dependencies are
// injected; the engine itself is stateless and safe for concurrent use.
type Engine struct {
	msgr     Messenger
	resolver Resolver
	jobs     store.Store
	sched    JobScheduler
	codec    *token.Codec
	log      zerolog.Logger

	// now is swapped out in tests.
	now func() time.Time
}

func NewEngine(msgr Messenger, resolver Resolver, jobs store.Store, sched JobScheduler, codec *token.Codec, log zerolog.Logger) *Engine {
	return &Engine{
		msgr:     msgr,
		resolver: resolver,
		jobs:     jobs,
		sched:    sched,
		codec:    codec,
		log:      log.With().Str("component", "engine").Logger(),
		now:      time.Now,
	}
}

// HandleEvent processes a single inbound event. Failures are reported
// to the user (at most one message) and logged; they never propagate.
func (e *Engine) HandleEvent(ctx context.Context, ev Event) {
	if ev.SenderID == "" {
		e.log.Error().Msg("event has no sender id")
		return
	}

	switch {
	case ev.PostbackPayload != "":
		e.handlePostback(ctx, ev)
	case ev.HasQuickReply:
		e.handleQuickReply(ctx, ev)
	case ev.Text != "":
		e.handleMessage(ctx, ev)
	default:
		e.log.Debug().Str("sender", ev.SenderID).Msg("event carries neither text nor payload")
	}
}

func (e *Engine) handlePostback(ctx context.Context, ev Event) {
	if ev.PostbackPayload == getStartedPayload {
		e.log.Info().Str("sender", ev.SenderID).Msg("get started postback")
		e.send(ctx, ev.SenderID, msgGetStarted)
	}
}

func (e *Engine) handleMessage(ctx context.Context, ev Event) {
	cmd, err := ParseCommand(ev.Text)
	if err != nil {
		var malformed *MalformedError
		if errors.As(err, &malformed) {
			e.send(ctx, ev.SenderID, malformed.Help)
			return
		}
		e.log.Error().Err(err).Msg("unexpected parse failure")
		e.send(ctx, ev.SenderID, msgUnexpectedError)
		return
	}

	switch cmd.Kind {
	case CmdCreate:
		e.handleCreate(ctx, ev, cmd)
	case CmdList:
		e.handleList(ctx, ev.SenderID)
	case CmdCancel:
		e.handleCancel(ctx, ev.SenderID, cmd.TargetID)
	case CmdClear:
		e.handleClear(ctx, ev.SenderID)
	default:
		e.send(ctx, ev.SenderID, msgHelp)
	}
}

// handleCreate resolves the time query and proposes the draft back to
// the user as a confirm/cancel quick reply. Nothing is persisted yet.
func (e *Engine) handleCreate(ctx context.Context, ev Event, cmd Command) {
	candidates, err := e.resolver.Resolve(ctx, ev.SenderID, cmd.Query, time.UnixMilli(ev.Timestamp))
	switch {
	case errors.Is(err, nlp.ErrNoCandidate):
		e.send(ctx, ev.SenderID, msgUnparsableDate)
		return
	case err != nil:
		e.log.Error().Err(err).Str("sender", ev.SenderID).Msg("time resolution failed")
		e.send(ctx, ev.SenderID, msgUnexpectedError)
		return
	}

	// First candidate wins; the upstream orders them by confidence.
	due := candidates[0]

	draft := token.Draft{Text: cmd.Body, DueAt: due}
	payload, err := e.codec.Encode(draft)
	if err != nil {
		e.log.Error().Err(err).Msg("draft encode failed")
		e.send(ctx, ev.SenderID, msgUnexpectedError)
		return
	}

	prompt := confirmationText(cmd.Body, due)
	err = e.msgr.SendQuickReply(ctx, ev.SenderID, prompt, []messenger.QuickReply{
		{Label: "Yes", Payload: payload},
		{Label: "Cancel", Payload: token.CancelPayload},
	})
	if err != nil {
		e.log.Error().Err(err).Str("sender", ev.SenderID).Msg("confirmation send failed")
		return
	}
	e.log.Info().Str("sender", ev.SenderID).Time("due", due).Msg("confirmation sent")
}

func (e *Engine) handleQuickReply(ctx context.Context, ev Event) {
	payload := ev.QuickReplyPayload
	if payload == "" {
		// Implicit cancel: the platform sends an empty payload when the
		// user dismisses the prompt. Nothing to do, nothing to say.
		e.log.Info().Str("sender", ev.SenderID).Msg("empty quick reply; treating as cancel")
		return
	}

	res, err := e.codec.Decode(payload)
	if err != nil {
		// Corrupted or foreign token, possibly a stale button from an
		// unrelated conversation. Drop without messaging the user.
		e.log.Warn().Err(err).Str("sender", ev.SenderID).Msg("undecodable quick reply payload")
		return
	}

	if res.Cancelled {
		e.log.Info().Str("sender", ev.SenderID).Msg("reminder cancelled at confirmation")
		e.send(ctx, ev.SenderID, msgCancelledDraft)
		return
	}

	draft := res.Draft
	if !draft.DueAt.After(e.now()) {
		e.log.Info().Str("sender", ev.SenderID).Time("due", draft.DueAt).Msg("confirmed reminder is in the past")
		e.send(ctx, ev.SenderID, msgDateMustBeFuture)
		return
	}

	r := store.Reminder{
		Owner:     ev.SenderID,
		ID:        newReminderID(),
		Text:      draft.Text,
		DueAt:     draft.DueAt,
		CreatedAt: e.now(),
	}
	if err := e.sched.Schedule(ctx, r); err != nil {
		e.log.Error().Err(err).Str("sender", ev.SenderID).Msg("scheduling failed")
		e.send(ctx, ev.SenderID, msgSchedulingError)
		return
	}

	e.log.Info().Str("sender", ev.SenderID).Str("id", r.ID).Time("due", r.DueAt).Msg("reminder scheduled")
	e.send(ctx, ev.SenderID, msgScheduled)
}

func (e *Engine) handleList(ctx context.Context, senderID string) {
	reminders, err := e.jobs.GetAllByOwner(ctx, senderID)
	if err != nil {
		e.log.Error().Err(err).Str("sender", senderID).Msg("list failed")
		e.send(ctx, senderID, msgUnexpectedError)
		return
	}
	if len(reminders) == 0 {
		e.send(ctx, senderID, msgNoReminders)
		return
	}
	for _, r := range reminders {
		e.send(ctx, senderID, listEntryText(r))
	}
}

func (e *Engine) handleCancel(ctx context.Context, senderID, id string) {
	ok, err := e.jobs.DeleteOne(ctx, senderID, id)
	if err != nil {
		e.log.Error().Err(err).Str("sender", senderID).Str("id", id).Msg("cancel failed")
		e.send(ctx, senderID, msgUnexpectedError)
		return
	}
	if !ok {
		// A normal user mistake, not a system fault.
		e.send(ctx, senderID, msgCancelNotFound)
		return
	}
	e.send(ctx, senderID, msgCancelled)
}

func (e *Engine) handleClear(ctx context.Context, senderID string) {
	if _, err := e.jobs.DeleteAll(ctx, senderID); err != nil {
		e.log.Error().Err(err).Str("sender", senderID).Msg("clear failed")
		e.send(ctx, senderID, msgClearFailed)
		return
	}
	e.send(ctx, senderID, msgCleared)
}

func (e *Engine) send(ctx context.Context, recipientID, text string) {
	if err := e.msgr.SendText(ctx, recipientID, text); err != nil {
		e.log.Error().Err(err).Str("recipient", recipientID).Msg("send failed")
	}
}

func newReminderID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func confirmationText(body string, due time.Time) string {
	return fmt.Sprintf(msgUserConfirmation, body, due.Format(humanDateFormat))
}

func listEntryText(r store.Reminder) string {
	return fmt.Sprintf(msgListEntry, r.ID, truncateText(r.Text), r.DueAt.Format(time.RFC3339))
}
