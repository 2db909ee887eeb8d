package data

import (
	"context"
	"errors"
	"testing"
)

func TestCreateStartsPending(t *testing.T) {
	st := newTestStore(t)
	book := NewAppointmentBook(st, nil)
	ctx := context.Background()

	app, err := book.Create(ctx, "2023001", "T001", "2024-05-01 10:00", "Room 301")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if app.Status != StatusPending {
		t.Errorf("expected PENDING, got %s", app.Status)
	}

	// Immediately visible to both parties.
	forStudent, err := book.ForStudent(ctx, "2023001")
	if err != nil {
		t.Fatalf("ForStudent failed: %v", err)
	}
	forCounselor, err := book.ForCounselor(ctx, "T001")
	if err != nil {
		t.Fatalf("ForCounselor failed: %v", err)
	}
	if len(forStudent) != 1 || len(forCounselor) != 1 {
		t.Fatalf("expected appointment visible to both, got %d and %d", len(forStudent), len(forCounselor))
	}
}

func TestStatusLifecycle(t *testing.T) {
	st := newTestStore(t)
	book := NewAppointmentBook(st, nil)
	ctx := context.Background()

	app, err := book.Create(ctx, "2023001", "T001", "2024-05-01 10:00", "Room 301")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := book.SetStatus(ctx, app.ID, StatusConfirmed); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if err := book.SetStatus(ctx, app.ID, StatusCancelled); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	got, err := book.Get(ctx, app.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != StatusCancelled {
		t.Errorf("expected CANCELLED, got %s", got.Status)
	}

	// Terminal: no transition leaves CANCELLED.
	for _, next := range []Status{StatusPending, StatusConfirmed, StatusCompleted} {
		err := book.SetStatus(ctx, app.ID, next)
		var inv *ErrInvalidTransition
		if !errors.As(err, &inv) {
			t.Errorf("transition CANCELLED -> %s: expected ErrInvalidTransition, got %v", next, err)
		}
	}
}

func TestIllegalTransitionsRejected(t *testing.T) {
	st := newTestStore(t)
	book := NewAppointmentBook(st, nil)
	ctx := context.Background()

	app, err := book.Create(ctx, "2023001", "T001", "2024-05-02 14:00", "Room 301")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// PENDING cannot jump straight to COMPLETED.
	err = book.SetStatus(ctx, app.ID, StatusCompleted)
	var inv *ErrInvalidTransition
	if !errors.As(err, &inv) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if inv.From != StatusPending || inv.To != StatusCompleted {
		t.Errorf("unexpected transition in error: %s -> %s", inv.From, inv.To)
	}

	// CONFIRMED cannot go back to PENDING.
	if err := book.SetStatus(ctx, app.ID, StatusConfirmed); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if err := book.SetStatus(ctx, app.ID, StatusPending); !errors.As(err, &inv) {
		t.Errorf("expected ErrInvalidTransition for CONFIRMED -> PENDING, got %v", err)
	}

	// The rejected writes must not have bumped the row.
	got, err := book.Get(ctx, app.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != StatusConfirmed {
		t.Errorf("expected status CONFIRMED after rejected writes, got %s", got.Status)
	}
}

func TestConfirmCancelRaceResolvesDeterministically(t *testing.T) {
	st := newTestStore(t)
	book := NewAppointmentBook(st, nil)
	ctx := context.Background()

	app, err := book.Create(ctx, "2023001", "T001", "2024-05-03 09:00", "Room 301")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Counselor confirms first; the student's simultaneous cancel is then
	// judged against CONFIRMED, which still allows it.
	if err := book.SetStatus(ctx, app.ID, StatusConfirmed); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if err := book.SetStatus(ctx, app.ID, StatusCancelled); err != nil {
		t.Fatalf("cancel after confirm failed: %v", err)
	}

	got, err := book.Get(ctx, app.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != StatusCancelled {
		t.Errorf("expected CANCELLED, got %s", got.Status)
	}
	// Version counted the create and both transitions.
	if got.Version != 3 {
		t.Errorf("expected version 3, got %d", got.Version)
	}
}

func TestAmendAndDismissLocationNotice(t *testing.T) {
	st := newTestStore(t)
	book := NewAppointmentBook(st, nil)
	ctx := context.Background()

	app, err := book.Create(ctx, "2023001", "T001", "2024-05-01 10:00", "Room 301")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := book.AmendLocation(ctx, app.ID, "Room 302"); err != nil {
		t.Fatalf("AmendLocation failed: %v", err)
	}
	got, err := book.Get(ctx, app.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Location != "Room 302" || !got.LocationUpdated {
		t.Fatalf("expected amended location with notice flag, got %q updated=%v", got.Location, got.LocationUpdated)
	}

	if err := book.DismissLocationNotice(ctx, app.ID); err != nil {
		t.Fatalf("DismissLocationNotice failed: %v", err)
	}
	got, err = book.Get(ctx, app.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.LocationUpdated {
		t.Error("notice flag still set after dismissal")
	}
	if got.Location != "Room 302" {
		t.Errorf("dismissal altered the location: %q", got.Location)
	}
}

func TestMutateUnknownAppointment(t *testing.T) {
	st := newTestStore(t)
	book := NewAppointmentBook(st, nil)
	ctx := context.Background()

	if err := book.SetStatus(ctx, "missing", StatusConfirmed); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
