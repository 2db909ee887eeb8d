package data

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/unimind/platform/internal/normalize"
	"github.com/unimind/platform/internal/store"
)

// ReadMarkers tracks, per (viewer, counterpart) pair, the timestamp below
// which inbound messages count as seen. Markers are asymmetric: A marking a
// conversation read says nothing about B's side. Unread state is never
// stored; it is derived from (log, marker) on every call so it can't go
// stale.
type ReadMarkers struct {
	st   *store.Store
	msgs *MessageLog

	now func() time.Time
}

// NewReadMarkers returns a tracker deriving unread state from the given
// message log.
func NewReadMarkers(st *store.Store, msgs *MessageLog) *ReadMarkers {
	return &ReadMarkers{st: st, msgs: msgs, now: time.Now}
}

// markerKey is the map key for one (viewer, counterpart) pair. Direction
// matters, so the two ids are not sorted.
func markerKey(viewerID, counterpartID string) string {
	return normalize.ID(viewerID) + "|" + normalize.ID(counterpartID)
}

func decodeMarkers(raw []byte) (map[string]int64, error) {
	if len(raw) == 0 {
		return map[string]int64{}, nil
	}
	var m map[string]int64
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode read markers: %w", err)
	}
	return m, nil
}

// MarkRead records that the viewer has seen everything the counterpart sent
// up to now, and broadcasts so the viewer's other open contexts drop their
// unread badge too.
func (r *ReadMarkers) MarkRead(ctx context.Context, viewerID, counterpartID string) error {
	ts := r.now().UnixMilli()
	err := r.st.Update(ctx, store.KeyReadMarkers, func(cur []byte) ([]byte, error) {
		markers, err := decodeMarkers(cur)
		if err != nil {
			return nil, err
		}
		markers[markerKey(viewerID, counterpartID)] = ts
		return json.Marshal(markers)
	})
	if err != nil {
		return err
	}
	return r.st.Notify(ctx, store.TopicReadMarkers)
}

// LastRead returns the viewer's marker for the counterpart, zero when the
// pair has never been marked.
func (r *ReadMarkers) LastRead(ctx context.Context, viewerID, counterpartID string) (int64, error) {
	raw, err := r.st.Get(ctx, store.KeyReadMarkers)
	if err != nil {
		return 0, err
	}
	markers, err := decodeMarkers(raw)
	if err != nil {
		return 0, err
	}
	return markers[markerKey(viewerID, counterpartID)], nil
}

// HasUnread reports whether the conversation holds any message from the
// counterpart newer than the viewer's marker. Pure derivation, O(history)
// per call, acceptable at this scale.
func (r *ReadMarkers) HasUnread(ctx context.Context, viewerID, counterpartID string) (bool, error) {
	last, err := r.LastRead(ctx, viewerID, counterpartID)
	if err != nil {
		return false, err
	}

	counterpart := normalize.ID(counterpartID)
	history, err := r.msgs.History(ctx, viewerID, counterpartID)
	if err != nil {
		return false, err
	}
	for _, m := range history {
		if m.SenderID == counterpart && m.Timestamp > last {
			return true, nil
		}
	}
	return false, nil
}

// UnreadCounts derives the unread message count per counterpart in a single
// pass over the log, for dashboards that would otherwise call HasUnread
// once per contact.
func (r *ReadMarkers) UnreadCounts(ctx context.Context, viewerID string) (map[string]int, error) {
	viewer := normalize.ID(viewerID)

	rawMarkers, err := r.st.Get(ctx, store.KeyReadMarkers)
	if err != nil {
		return nil, err
	}
	markers, err := decodeMarkers(rawMarkers)
	if err != nil {
		return nil, err
	}

	raw, err := r.st.Get(ctx, store.KeyMessageLog)
	if err != nil {
		return nil, err
	}
	msgs, err := decodeMessages(raw)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, m := range msgs {
		if m.ReceiverID != viewer || m.SenderID == viewer {
			continue
		}
		if m.Timestamp > markers[markerKey(viewer, m.SenderID)] {
			counts[m.SenderID]++
		}
	}
	return counts, nil
}
