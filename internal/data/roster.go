package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/unimind/platform/internal/auth"
	"github.com/unimind/platform/internal/normalize"
	"github.com/unimind/platform/internal/store"
)

// Login and mutation failures surfaced to callers as explicit results
// rather than opaque internals.
var (
	ErrAccountNotFound = errors.New("account not found")
	ErrWrongPassword   = errors.New("wrong password")
	ErrDuplicateID     = errors.New("id already exists")
)

// ValidationError reports a malformed field, rejected before any write.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Mainland mobile numbers, the only phone format the campus roster carries.
var phonePattern = regexp.MustCompile(`^1[3-9]\d{9}$`)

// RosterStore owns the shared user document and doubles as the health
// escalation publisher: SetHealthTag overwrites the tag and broadcasts, and
// every counselor/advisor dashboard re-derives its at-risk list from the
// roster on its own trigger. No push is sent anywhere.
type RosterStore struct {
	st *store.Store
}

// NewRosterStore returns a RosterStore over the given store.
func NewRosterStore(st *store.Store) *RosterStore {
	return &RosterStore{st: st}
}

func decodeRoster(raw []byte) (Roster, error) {
	if len(raw) == 0 {
		return Roster{}, nil
	}
	var r Roster
	if err := json.Unmarshal(raw, &r); err != nil {
		return Roster{}, fmt.Errorf("decode roster: %w", err)
	}
	return r, nil
}

// Load reads the whole roster; an absent document is an empty roster.
func (r *RosterStore) Load(ctx context.Context) (Roster, error) {
	raw, err := r.st.Get(ctx, store.KeyRoster)
	if err != nil {
		return Roster{}, err
	}
	return decodeRoster(raw)
}

func roleSlice(ro *Roster, role Role) *[]User {
	switch role {
	case RoleStudent:
		return &ro.Students
	case RoleCounselor:
		return &ro.Counselors
	case RoleAdvisor:
		return &ro.Advisors
	case RoleAdmin:
		return &ro.Admins
	}
	return nil
}

// UsersByRole returns one roster slice.
func (r *RosterStore) UsersByRole(ctx context.Context, role Role) ([]User, error) {
	ro, err := r.Load(ctx)
	if err != nil {
		return nil, err
	}
	if s := roleSlice(&ro, role); s != nil {
		return *s, nil
	}
	return nil, nil
}

// FindUser looks the id up across all four slices.
func (r *RosterStore) FindUser(ctx context.Context, id string) (User, bool, error) {
	ro, err := r.Load(ctx)
	if err != nil {
		return User{}, false, err
	}
	id = normalize.ID(id)
	for _, list := range [][]User{ro.Students, ro.Counselors, ro.Advisors, ro.Admins} {
		for _, u := range list {
			if u.ID == id {
				return u, true, nil
			}
		}
	}
	return User{}, false, nil
}

// validate rejects malformed users before any write reaches the store.
func validate(u User) error {
	if strings.TrimSpace(u.ID) == "" {
		return &ValidationError{Field: "id", Reason: "must not be empty"}
	}
	if strings.TrimSpace(u.Name) == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if roleOK := u.Role == RoleStudent || u.Role == RoleCounselor || u.Role == RoleAdvisor || u.Role == RoleAdmin; !roleOK {
		return &ValidationError{Field: "role", Reason: "unknown role"}
	}
	if u.Phone != "" && !phonePattern.MatchString(u.Phone) {
		return &ValidationError{Field: "phone", Reason: "malformed phone number"}
	}
	return nil
}

// AddUser validates the entry, hashes its plaintext password, and appends it
// to the slice for its role. Duplicate ids across any role are rejected.
func (r *RosterStore) AddUser(ctx context.Context, u User, plainPassword string) error {
	u.ID = normalize.ID(u.ID)
	if err := validate(u); err != nil {
		return err
	}
	hashed, err := auth.HashPassword(plainPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.Password = hashed
	if u.Role == RoleStudent && u.HealthTag == "" {
		u.HealthTag = TagHealthy
	}

	err = r.st.Update(ctx, store.KeyRoster, func(cur []byte) ([]byte, error) {
		ro, err := decodeRoster(cur)
		if err != nil {
			return nil, err
		}
		for _, list := range [][]User{ro.Students, ro.Counselors, ro.Advisors, ro.Admins} {
			for _, existing := range list {
				if existing.ID == u.ID {
					return nil, ErrDuplicateID
				}
			}
		}
		s := roleSlice(&ro, u.Role)
		*s = append(*s, u)
		return json.Marshal(ro)
	})
	if err != nil {
		return err
	}
	return r.st.Notify(ctx, store.TopicRoster)
}

// UpdateUser replaces the roster entry with the same id and role. The
// stored password hash is kept unless the update carries a new one.
func (r *RosterStore) UpdateUser(ctx context.Context, u User) error {
	u.ID = normalize.ID(u.ID)
	if err := validate(u); err != nil {
		return err
	}

	err := r.st.Update(ctx, store.KeyRoster, func(cur []byte) ([]byte, error) {
		ro, err := decodeRoster(cur)
		if err != nil {
			return nil, err
		}
		s := roleSlice(&ro, u.Role)
		for i := range *s {
			if (*s)[i].ID != u.ID {
				continue
			}
			if u.Password == "" {
				u.Password = (*s)[i].Password
			}
			(*s)[i] = u
			return json.Marshal(ro)
		}
		return nil, ErrAccountNotFound
	})
	if err != nil {
		return err
	}
	return r.st.Notify(ctx, store.TopicRoster)
}

// SetPassword hashes and stores a new password for the account.
func (r *RosterStore) SetPassword(ctx context.Context, id, plainPassword string) error {
	hashed, err := auth.HashPassword(plainPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return r.updateOne(ctx, id, func(u *User) { u.Password = hashed })
}

// SetHealthTag overwrites the user's health classification and broadcasts.
// This is the whole escalation path: dashboards pull the roster and filter.
func (r *RosterStore) SetHealthTag(ctx context.Context, id string, tag HealthTag) error {
	if tag != TagHealthy && tag != TagSubhealthy && tag != TagUnhealthy {
		return &ValidationError{Field: "healthTag", Reason: "unknown tag"}
	}
	return r.updateOne(ctx, id, func(u *User) { u.HealthTag = tag })
}

func (r *RosterStore) updateOne(ctx context.Context, id string, apply func(*User)) error {
	id = normalize.ID(id)
	err := r.st.Update(ctx, store.KeyRoster, func(cur []byte) ([]byte, error) {
		ro, err := decodeRoster(cur)
		if err != nil {
			return nil, err
		}
		for _, list := range []*[]User{&ro.Students, &ro.Counselors, &ro.Advisors, &ro.Admins} {
			for i := range *list {
				if (*list)[i].ID == id {
					apply(&(*list)[i])
					return json.Marshal(ro)
				}
			}
		}
		return nil, ErrAccountNotFound
	})
	if err != nil {
		return err
	}
	return r.st.Notify(ctx, store.TopicRoster)
}

// AtRisk derives the escalation list: every student currently tagged
// subhealthy or unhealthy. Recomputed from the roster on each call.
func (r *RosterStore) AtRisk(ctx context.Context) ([]User, error) {
	ro, err := r.Load(ctx)
	if err != nil {
		return nil, err
	}
	var out []User
	for _, s := range ro.Students {
		if s.HealthTag == TagSubhealthy || s.HealthTag == TagUnhealthy {
			out = append(out, s)
		}
	}
	return out, nil
}

// VerifyLogin checks the credentials for the given role. A missing account
// is an explicit ErrAccountNotFound result, not a generic failure.
func (r *RosterStore) VerifyLogin(ctx context.Context, id, password string, role Role) (User, error) {
	users, err := r.UsersByRole(ctx, role)
	if err != nil {
		return User{}, err
	}
	id = normalize.ID(id)
	for _, u := range users {
		if u.ID != id {
			continue
		}
		if err := auth.CheckPassword(u.Password, password); err != nil {
			return User{}, ErrWrongPassword
		}
		return u, nil
	}
	return User{}, ErrAccountNotFound
}

// EnsureAdmin seeds the bootstrap administrator account on first run; it is
// a no-op once any admin exists.
func (r *RosterStore) EnsureAdmin(ctx context.Context, id, name, plainPassword string) error {
	ro, err := r.Load(ctx)
	if err != nil {
		return err
	}
	if len(ro.Admins) > 0 {
		return nil
	}
	err = r.AddUser(ctx, User{ID: id, Name: name, Role: RoleAdmin}, plainPassword)
	if errors.Is(err, ErrDuplicateID) {
		return nil
	}
	return err
}
