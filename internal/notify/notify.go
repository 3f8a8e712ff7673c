// Package notify delivers lifecycle events to members.
//
// Redis publishes every event as JSON on a channel for the gateway to fan out
// (the same pattern the tracker uses for card moves). Discord posts team
// announcements to a webhook. Async wraps any notifier so delivery never
// blocks the request that triggered it.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/redis/go-redis/v9"

	"github.com/kibanana/geteam-http-api/internal/recruit"
)

// DefaultChannel is the Redis channel events are published on.
const DefaultChannel = "geteam:events"

// ─── Redis ───────────────────────────────────────────────────────────────────

// Redis publishes events on a pub/sub channel.
type Redis struct {
	rdb     *redis.Client
	channel string
}

// NewRedis returns a Redis notifier publishing on channel.
func NewRedis(rdb *redis.Client, channel string) *Redis {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Redis{rdb: rdb, channel: channel}
}

// Notify implements recruit.Notifier.
func (r *Redis) Notify(ctx context.Context, ev recruit.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", ev.Kind, err)
	}
	if err := r.rdb.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Kind, err)
	}
	return nil
}

// ─── Discord ─────────────────────────────────────────────────────────────────

// Discord posts TeamFormed events to a channel webhook. Other events are
// ignored.
type Discord struct {
	session   *discordgo.Session
	webhookID string
	token     string
}

// NewDiscord returns a Discord notifier for the given webhook.
func NewDiscord(webhookID, token string) (*Discord, error) {
	// Webhook execution is authenticated by the token in the URL; the session
	// carries no bot credentials.
	session, err := discordgo.New("")
	if err != nil {
		return nil, fmt.Errorf("discordgo.New: %w", err)
	}
	return &Discord{session: session, webhookID: webhookID, token: token}, nil
}

// Notify implements recruit.Notifier.
func (d *Discord) Notify(ctx context.Context, ev recruit.Event) error {
	if ev.Kind != recruit.EventTeamFormed {
		return nil
	}
	_, err := d.session.WebhookExecute(d.webhookID, d.token, false, &discordgo.WebhookParams{
		Content: TeamFormedMessage(ev),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("discord webhook: %w", err)
	}
	return nil
}

// TeamFormedMessage renders the announcement for a TeamFormed event.
func TeamFormedMessage(ev recruit.Event) string {
	msg := fmt.Sprintf("[%s] %s: team %q formed (member <%s>)", ev.BoardKind, ev.BoardTitle, ev.TeamName, ev.RecipientID)
	if ev.Message != "" {
		msg += "\n" + ev.Message
	}
	return msg
}

// ─── Fan-out ─────────────────────────────────────────────────────────────────

// Multi delivers each event to every notifier and joins their errors.
type Multi []recruit.Notifier

// Notify implements recruit.Notifier.
func (m Multi) Notify(ctx context.Context, ev recruit.Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Async delivers events on background goroutines. Notify always returns nil;
// delivery failures are logged.
type Async struct {
	next    recruit.Notifier
	timeout time.Duration
	log     *slog.Logger
	wg      sync.WaitGroup
}

// NewAsync wraps next. Each delivery gets its own timeout, detached from the
// request context so a finished request does not cancel it.
func NewAsync(next recruit.Notifier, timeout time.Duration, log *slog.Logger) *Async {
	if log == nil {
		log = slog.Default()
	}
	return &Async{next: next, timeout: timeout, log: log}
}

// Notify implements recruit.Notifier.
func (a *Async) Notify(ctx context.Context, ev recruit.Event) error {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
		defer cancel()
		if err := a.next.Notify(ctx, ev); err != nil {
			a.log.Warn("notification delivery failed", "type", ev.Kind, "recipientId", ev.RecipientID, "err", err)
		}
	}()
	return nil
}

// Wait blocks until every pending delivery has finished.
func (a *Async) Wait() { a.wg.Wait() }

// ─── Recorder ────────────────────────────────────────────────────────────────

// Recorder keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []recruit.Event
	Err    error
}

// Notify implements recruit.Notifier. It records ev and returns r.Err.
func (r *Recorder) Notify(ctx context.Context, ev recruit.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.Err
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []recruit.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recruit.Event(nil), r.events...)
}
