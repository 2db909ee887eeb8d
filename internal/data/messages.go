package data

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/unimind/platform/internal/normalize"
	"github.com/unimind/platform/internal/store"
)

// retentionWindow is how long messages stay readable. Pruning happens at
// write time: every Send rewrites the log filtered to the window, so the
// log never grows past seven days of traffic.
const retentionWindow = 7 * 24 * time.Hour

// MessageLog is the append-only direct-message channel over the shared
// store. All conversations share one log document; history and contacts are
// derived from it fresh on every call, never cached.
type MessageLog struct {
	st *store.Store

	// now is swappable so retention tests can move the clock.
	now func() time.Time
}

// NewMessageLog returns a MessageLog over the given store.
func NewMessageLog(st *store.Store) *MessageLog {
	return &MessageLog{st: st, now: time.Now}
}

func decodeMessages(raw []byte) ([]Message, error) {
	// Absent key on first run reads as an empty log.
	if len(raw) == 0 {
		return nil, nil
	}
	var msgs []Message
	if err := json.Unmarshal(raw, &msgs); err != nil {
		return nil, fmt.Errorf("decode message log: %w", err)
	}
	return msgs, nil
}

// Send appends a message and prunes the log to the retention window in one
// atomic update, then broadcasts the change. The id is wall-clock-derived
// (UnixNano), unique enough at this scale; the timestamp is Unix millis.
func (l *MessageLog) Send(ctx context.Context, senderID, receiverID, text string) (Message, error) {
	now := l.now()
	msg := Message{
		ID:         strconv.FormatInt(now.UnixNano(), 10),
		SenderID:   normalize.ID(senderID),
		ReceiverID: normalize.ID(receiverID),
		Text:       text,
		Timestamp:  now.UnixMilli(),
	}

	// Messages older than now-7d are dropped on every write; a message
	// sitting exactly on the boundary is dropped too (strictly newer
	// survives).
	cutoff := now.Add(-retentionWindow).UnixMilli()

	err := l.st.Update(ctx, store.KeyMessageLog, func(cur []byte) ([]byte, error) {
		msgs, err := decodeMessages(cur)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)

		kept := msgs[:0]
		for _, m := range msgs {
			if m.Timestamp > cutoff {
				kept = append(kept, m)
			}
		}
		return json.Marshal(kept)
	})
	if err != nil {
		return Message{}, err
	}

	// Fire-and-continue: the writer never waits for observers.
	if err := l.st.Notify(ctx, store.TopicMessages); err != nil {
		return msg, fmt.Errorf("broadcast message: %w", err)
	}
	return msg, nil
}

// History returns every message exchanged between the two users, oldest
// first. The pair is unordered: History(a, b) and History(b, a) are the
// same conversation.
func (l *MessageLog) History(ctx context.Context, userA, userB string) ([]Message, error) {
	a, b := normalize.ID(userA), normalize.ID(userB)

	raw, err := l.st.Get(ctx, store.KeyMessageLog)
	if err != nil {
		return nil, err
	}
	msgs, err := decodeMessages(raw)
	if err != nil {
		return nil, err
	}

	var conv []Message
	for _, m := range msgs {
		if (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a) {
			conv = append(conv, m)
		}
	}

	// The log is written in send order, but sort anyway so the contract
	// holds even if clocks across contexts disagree slightly.
	sort.Slice(conv, func(i, j int) bool {
		if conv[i].Timestamp != conv[j].Timestamp {
			return conv[i].Timestamp < conv[j].Timestamp
		}
		return conv[i].ID < conv[j].ID
	})
	return conv, nil
}

// RecentContacts walks the log newest-first and collects the distinct
// counterparts the user has exchanged messages with, most recent first.
func (l *MessageLog) RecentContacts(ctx context.Context, userID string) ([]string, error) {
	id := normalize.ID(userID)

	raw, err := l.st.Get(ctx, store.KeyMessageLog)
	if err != nil {
		return nil, err
	}
	msgs, err := decodeMessages(raw)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var contacts []string
	add := func(c string) {
		if c != id && !seen[c] {
			seen[c] = true
			contacts = append(contacts, c)
		}
	}
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].SenderID == id {
			add(msgs[i].ReceiverID)
		}
		if msgs[i].ReceiverID == id {
			add(msgs[i].SenderID)
		}
	}
	return contacts, nil
}

// Newest returns the most recent entry of the whole log, or ok=false when
// the log is empty. The notification poller compares its id against a
// locally remembered one.
func (l *MessageLog) Newest(ctx context.Context) (Message, bool, error) {
	raw, err := l.st.Get(ctx, store.KeyMessageLog)
	if err != nil {
		return Message{}, false, err
	}
	msgs, err := decodeMessages(raw)
	if err != nil {
		return Message{}, false, err
	}
	if len(msgs) == 0 {
		return Message{}, false, nil
	}
	return msgs[len(msgs)-1], true, nil
}
