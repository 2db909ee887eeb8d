package data

import (
	"context"
	"testing"
	"time"
)

func TestHasUnreadFlipsWithMarker(t *testing.T) {
	st := newTestStore(t)
	log := NewMessageLog(st)
	marks := NewReadMarkers(st, log)
	ctx := context.Background()

	base := time.Now()
	log.now = func() time.Time { return base }

	if _, err := log.Send(ctx, "T001", "2023001", "please come by"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	unread, err := marks.HasUnread(ctx, "2023001", "T001")
	if err != nil {
		t.Fatalf("HasUnread failed: %v", err)
	}
	if !unread {
		t.Fatal("expected unread before MarkRead")
	}

	marks.now = func() time.Time { return base.Add(time.Second) }
	if err := marks.MarkRead(ctx, "2023001", "T001"); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}

	unread, err = marks.HasUnread(ctx, "2023001", "T001")
	if err != nil {
		t.Fatalf("HasUnread after MarkRead failed: %v", err)
	}
	if unread {
		t.Fatal("expected no unread after MarkRead")
	}

	// One more inbound message flips it back.
	log.now = func() time.Time { return base.Add(2 * time.Second) }
	if _, err := log.Send(ctx, "T001", "2023001", "are you there?"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	unread, err = marks.HasUnread(ctx, "2023001", "T001")
	if err != nil {
		t.Fatalf("HasUnread failed: %v", err)
	}
	if !unread {
		t.Fatal("expected unread after a newer inbound message")
	}
}

func TestMarkersAreAsymmetric(t *testing.T) {
	st := newTestStore(t)
	log := NewMessageLog(st)
	marks := NewReadMarkers(st, log)
	ctx := context.Background()

	base := time.Now()
	log.now = func() time.Time { return base }

	// Both parties have an inbound message from the other.
	if _, err := log.Send(ctx, "T001", "2023001", "hi"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if _, err := log.Send(ctx, "2023001", "T001", "hi back"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	marks.now = func() time.Time { return base.Add(time.Second) }
	if err := marks.MarkRead(ctx, "2023001", "T001"); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}

	// The student's marker must not clear the counselor's side.
	unread, err := marks.HasUnread(ctx, "T001", "2023001")
	if err != nil {
		t.Fatalf("HasUnread failed: %v", err)
	}
	if !unread {
		t.Fatal("marking read for one viewer cleared the other viewer's unread state")
	}
}

func TestOutboundMessagesNeverCountAsUnread(t *testing.T) {
	st := newTestStore(t)
	log := NewMessageLog(st)
	marks := NewReadMarkers(st, log)
	ctx := context.Background()

	if _, err := log.Send(ctx, "2023001", "T001", "my own message"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	unread, err := marks.HasUnread(ctx, "2023001", "T001")
	if err != nil {
		t.Fatalf("HasUnread failed: %v", err)
	}
	if unread {
		t.Fatal("own outbound message counted as unread")
	}
}

func TestUnreadCounts(t *testing.T) {
	st := newTestStore(t)
	log := NewMessageLog(st)
	marks := NewReadMarkers(st, log)
	ctx := context.Background()

	base := time.Now()
	log.now = func() time.Time { return base }

	if _, err := log.Send(ctx, "T001", "2023001", "one"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if _, err := log.Send(ctx, "T001", "2023001", "two"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if _, err := log.Send(ctx, "A001", "2023001", "advisor ping"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	counts, err := marks.UnreadCounts(ctx, "2023001")
	if err != nil {
		t.Fatalf("UnreadCounts failed: %v", err)
	}
	if counts["T001"] != 2 || counts["A001"] != 1 {
		t.Fatalf("expected T001=2 A001=1, got %v", counts)
	}

	marks.now = func() time.Time { return base.Add(time.Second) }
	if err := marks.MarkRead(ctx, "2023001", "T001"); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}

	counts, err = marks.UnreadCounts(ctx, "2023001")
	if err != nil {
		t.Fatalf("UnreadCounts failed: %v", err)
	}
	if counts["T001"] != 0 || counts["A001"] != 1 {
		t.Fatalf("expected T001=0 A001=1 after MarkRead, got %v", counts)
	}
}
