package data

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/unimind/platform/internal/normalize"
	"github.com/unimind/platform/internal/store"
)

// DefaultMoodLogCap bounds the system-wide mood log. The log is stored
// newest-first; once full, the oldest entries fall off the end.
const DefaultMoodLogCap = 200

// MoodLog records self-reported moods. Entries are append-only and never
// mutated; visibility to counselor/advisor dashboards is pull, via the
// moods broadcast topic.
type MoodLog struct {
	st  *store.Store
	cap int

	now func() time.Time
}

// NewMoodLog returns a log capped at maxEntries (DefaultMoodLogCap when
// maxEntries is not positive).
func NewMoodLog(st *store.Store, maxEntries int) *MoodLog {
	if maxEntries <= 0 {
		maxEntries = DefaultMoodLogCap
	}
	return &MoodLog{st: st, cap: maxEntries, now: time.Now}
}

func decodeMoods(raw []byte) ([]MoodRecord, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var recs []MoodRecord
	if err := json.Unmarshal(raw, &recs); err != nil {
		return nil, fmt.Errorf("decode mood log: %w", err)
	}
	return recs, nil
}

// Record prepends a mood entry, truncates the log to the cap, and
// broadcasts.
func (l *MoodLog) Record(ctx context.Context, studentID string, mood Mood, note string) (MoodRecord, error) {
	switch mood {
	case MoodExcellent, MoodGood, MoodNeutral, MoodSad, MoodCrisis:
	default:
		return MoodRecord{}, &ValidationError{Field: "mood", Reason: "unknown mood"}
	}

	now := l.now()
	rec := MoodRecord{
		ID:        strconv.FormatInt(now.UnixNano(), 10),
		StudentID: normalize.ID(studentID),
		Mood:      mood,
		Note:      note,
		Timestamp: now.UnixMilli(),
	}

	err := l.st.Update(ctx, store.KeyMoodLog, func(cur []byte) ([]byte, error) {
		recs, err := decodeMoods(cur)
		if err != nil {
			return nil, err
		}
		recs = append([]MoodRecord{rec}, recs...)
		if len(recs) > l.cap {
			recs = recs[:l.cap]
		}
		return json.Marshal(recs)
	})
	if err != nil {
		return MoodRecord{}, err
	}
	return rec, l.st.Notify(ctx, store.TopicMoods)
}

// Recent returns the student's latest entries, newest first, at most limit
// (all of them when limit is not positive).
func (l *MoodLog) Recent(ctx context.Context, studentID string, limit int) ([]MoodRecord, error) {
	id := normalize.ID(studentID)
	all, err := l.All(ctx)
	if err != nil {
		return nil, err
	}
	var out []MoodRecord
	for _, rec := range all {
		if rec.StudentID != id {
			continue
		}
		out = append(out, rec)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// All returns the whole log, newest first.
func (l *MoodLog) All(ctx context.Context) ([]MoodRecord, error) {
	raw, err := l.st.Get(ctx, store.KeyMoodLog)
	if err != nil {
		return nil, err
	}
	return decodeMoods(raw)
}
