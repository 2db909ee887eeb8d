// Package notify raises human-visible alerts for new inbound messages.
// Every active context (open dashboard) runs its own Poller; last-seen
// state is deliberately local so each context decides independently what it
// has already shown.
package notify

import (
	"context"
	"log"
	"time"

	"github.com/unimind/platform/internal/data"
	"github.com/unimind/platform/internal/normalize"
	"github.com/unimind/platform/internal/store"
)

// DefaultInterval is the fallback poll cadence; broadcasts wake the poller
// earlier, the ticker covers contexts that missed one.
const DefaultInterval = time.Second

// excerptLimit bounds the alert preview in runes.
const excerptLimit = 40

// Alert names a new inbound message: who sent it and a short excerpt.
type Alert struct {
	MessageID string `json:"messageId"`
	SenderID  string `json:"senderId"`
	Excerpt   string `json:"excerpt"`
}

// Poller watches the message log for the given viewer and invokes onAlert
// exactly once per newly observed inbound message. If several messages land
// between two scans only the newest one alerts; that is the documented
// trade-off of comparing a single newest-entry id.
type Poller struct {
	st       *store.Store
	msgs     *data.MessageLog
	marks    *data.ReadMarkers
	viewerID string
	interval time.Duration
	onAlert  func(Alert)

	// lastSeenID lives in this Poller only, never in the shared store:
	// it records what this context has already alerted on.
	lastSeenID string
}

// New returns a poller for the viewer. interval <= 0 means DefaultInterval.
func New(st *store.Store, msgs *data.MessageLog, marks *data.ReadMarkers, viewerID string, interval time.Duration, onAlert func(Alert)) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		st:       st,
		msgs:     msgs,
		marks:    marks,
		viewerID: normalize.ID(viewerID),
		interval: interval,
		onAlert:  onAlert,
	}
}

// Run blocks until ctx is cancelled, scanning on every tick and immediately
// on every messages broadcast. The initial scan runs before the first tick
// so a context opened after traffic sees the backlog's newest entry at
// once.
func (p *Poller) Run(ctx context.Context) error {
	wake, cancel, err := p.st.Subscribe(ctx, store.TopicMessages)
	if err != nil {
		return err
	}
	defer cancel()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.scan(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.scan(ctx)
		case _, ok := <-wake:
			if !ok {
				return nil
			}
			p.scan(ctx)
		}
	}
}

// scan looks at the newest log entry and alerts when it is new to this
// context and addressed to the viewer. Scan failures are logged and retried
// on the next trigger rather than surfaced; a missed poll is not fatal.
func (p *Poller) scan(ctx context.Context) {
	newest, ok, err := p.msgs.Newest(ctx)
	if err != nil {
		log.Printf("notification scan failed: %v", err)
		return
	}
	if !ok || newest.ID == p.lastSeenID {
		return
	}
	p.lastSeenID = newest.ID

	if newest.ReceiverID != p.viewerID || newest.SenderID == p.viewerID {
		return
	}
	if p.onAlert != nil {
		p.onAlert(Alert{
			MessageID: newest.ID,
			SenderID:  newest.SenderID,
			Excerpt:   excerpt(newest.Text),
		})
	}
}

// Ack is the click-through on an alert: it marks the conversation with the
// sender as read. The caller then opens that conversation.
func (p *Poller) Ack(ctx context.Context, a Alert) error {
	return p.marks.MarkRead(ctx, p.viewerID, a.SenderID)
}

func excerpt(text string) string {
	runes := []rune(text)
	if len(runes) <= excerptLimit {
		return text
	}
	return string(runes[:excerptLimit]) + "..."
}
