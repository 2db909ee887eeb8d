package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/unimind/platform/internal/normalize"
	"github.com/unimind/platform/internal/store"
)

// ErrNotFound is returned when an operation names an appointment id that is
// not in the log.
var ErrNotFound = errors.New("appointment not found")

// ErrInvalidTransition rejects a status change the lifecycle does not
// allow, including any change out of a terminal state.
type ErrInvalidTransition struct {
	From Status
	To   Status
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid appointment transition %s -> %s", e.From, e.To)
}

// statusTransitions is the full lifecycle. Cancelled and Completed have no
// outgoing edges.
var statusTransitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCancelled, StatusCompleted},
	StatusCancelled: {},
	StatusCompleted: {},
}

func canTransition(from, to Status) bool {
	for _, s := range statusTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// AppointmentBook manages the shared appointment log. Every mutation is an
// atomic read-modify-write with a per-row version bump, so a counselor
// confirming and a student cancelling at the same moment resolve
// deterministically: the first transition lands, the second is judged
// against the new status and rejected if the lifecycle forbids it.
type AppointmentBook struct {
	st     *store.Store
	roster *RosterStore

	now func() time.Time
}

// NewAppointmentBook returns a book over the given store. The roster is
// used to resolve display names at creation time and may be nil in tests.
func NewAppointmentBook(st *store.Store, roster *RosterStore) *AppointmentBook {
	return &AppointmentBook{st: st, roster: roster, now: time.Now}
}

func decodeAppointments(raw []byte) ([]Appointment, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var apps []Appointment
	if err := json.Unmarshal(raw, &apps); err != nil {
		return nil, fmt.Errorf("decode appointment log: %w", err)
	}
	return apps, nil
}

// Create opens a new appointment in PENDING. It is visible to both the
// student and the counselor as soon as the broadcast lands.
func (b *AppointmentBook) Create(ctx context.Context, studentID, counselorID, dateTime, location string) (Appointment, error) {
	now := b.now()
	app := Appointment{
		ID:          strconv.FormatInt(now.UnixNano(), 10),
		StudentID:   normalize.ID(studentID),
		CounselorID: normalize.ID(counselorID),
		DateTime:    dateTime,
		Location:    location,
		Status:      StatusPending,
		CreatedAt:   now.UnixMilli(),
		Version:     1,
	}

	// Display names are a convenience copy; missing roster entries leave
	// them empty rather than failing the creation.
	if b.roster != nil {
		if u, ok, err := b.roster.FindUser(ctx, app.StudentID); err == nil && ok {
			app.StudentName = u.Name
		}
		if u, ok, err := b.roster.FindUser(ctx, app.CounselorID); err == nil && ok {
			app.CounselorName = u.Name
		}
	}

	err := b.st.Update(ctx, store.KeyAppointments, func(cur []byte) ([]byte, error) {
		apps, err := decodeAppointments(cur)
		if err != nil {
			return nil, err
		}
		// Newest first, matching how dashboards list them.
		return json.Marshal(append([]Appointment{app}, apps...))
	})
	if err != nil {
		return Appointment{}, err
	}
	return app, b.st.Notify(ctx, store.TopicAppointments)
}

// mutate applies fn to the appointment with the given id inside one atomic
// update and bumps its version. fn errors abort the write untouched.
func (b *AppointmentBook) mutate(ctx context.Context, id string, fn func(*Appointment) error) error {
	err := b.st.Update(ctx, store.KeyAppointments, func(cur []byte) ([]byte, error) {
		apps, err := decodeAppointments(cur)
		if err != nil {
			return nil, err
		}
		for i := range apps {
			if apps[i].ID != id {
				continue
			}
			if err := fn(&apps[i]); err != nil {
				return nil, err
			}
			apps[i].Version++
			return json.Marshal(apps)
		}
		return nil, ErrNotFound
	})
	if err != nil {
		return err
	}
	return b.st.Notify(ctx, store.TopicAppointments)
}

// SetStatus moves the appointment through the lifecycle. Illegal moves,
// including anything out of CANCELLED or COMPLETED, fail with
// *ErrInvalidTransition and leave the row untouched.
func (b *AppointmentBook) SetStatus(ctx context.Context, id string, newStatus Status) error {
	return b.mutate(ctx, id, func(a *Appointment) error {
		if !canTransition(a.Status, newStatus) {
			return &ErrInvalidTransition{From: a.Status, To: newStatus}
		}
		a.Status = newStatus
		return nil
	})
}

// AmendLocation changes the meeting place and raises the one-shot notice
// flag the student's dashboard shows as a dismissible banner.
func (b *AppointmentBook) AmendLocation(ctx context.Context, id, newLocation string) error {
	return b.mutate(ctx, id, func(a *Appointment) error {
		a.Location = newLocation
		a.LocationUpdated = true
		return nil
	})
}

// DismissLocationNotice clears the notice flag; the amended location stays.
func (b *AppointmentBook) DismissLocationNotice(ctx context.Context, id string) error {
	return b.mutate(ctx, id, func(a *Appointment) error {
		a.LocationUpdated = false
		return nil
	})
}

// Get returns one appointment by id.
func (b *AppointmentBook) Get(ctx context.Context, id string) (Appointment, error) {
	apps, err := b.All(ctx)
	if err != nil {
		return Appointment{}, err
	}
	for _, a := range apps {
		if a.ID == id {
			return a, nil
		}
	}
	return Appointment{}, ErrNotFound
}

// All returns the whole log, newest first.
func (b *AppointmentBook) All(ctx context.Context) ([]Appointment, error) {
	raw, err := b.st.Get(ctx, store.KeyAppointments)
	if err != nil {
		return nil, err
	}
	return decodeAppointments(raw)
}

// ForStudent returns the student's appointments, newest first.
func (b *AppointmentBook) ForStudent(ctx context.Context, studentID string) ([]Appointment, error) {
	return b.filtered(ctx, func(a Appointment) bool { return a.StudentID == normalize.ID(studentID) })
}

// ForCounselor returns the counselor's appointments, newest first.
func (b *AppointmentBook) ForCounselor(ctx context.Context, counselorID string) ([]Appointment, error) {
	return b.filtered(ctx, func(a Appointment) bool { return a.CounselorID == normalize.ID(counselorID) })
}

func (b *AppointmentBook) filtered(ctx context.Context, keep func(Appointment) bool) ([]Appointment, error) {
	apps, err := b.All(ctx)
	if err != nil {
		return nil, err
	}
	var out []Appointment
	for _, a := range apps {
		if keep(a) {
			out = append(out, a)
		}
	}
	return out, nil
}
