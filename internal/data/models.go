package data

// Role identifies which roster slice a user lives in.
type Role string

const (
	RoleStudent   Role = "STUDENT"
	RoleCounselor Role = "COUNSELOR"
	RoleAdvisor   Role = "ADVISOR"
	RoleAdmin     Role = "ADMIN"
)

// HealthTag is a student's current self-reported or tested mental-health
// classification. Counselor and advisor dashboards derive their at-risk
// lists by filtering on it.
type HealthTag string

const (
	TagHealthy    HealthTag = "healthy"
	TagSubhealthy HealthTag = "subhealthy"
	TagUnhealthy  HealthTag = "unhealthy"
)

// Mood is one entry of the student mood diary.
type Mood string

const (
	MoodExcellent Mood = "EXCELLENT"
	MoodGood      Mood = "GOOD"
	MoodNeutral   Mood = "NEUTRAL"
	MoodSad       Mood = "SAD"
	MoodCrisis    Mood = "CRISIS"
)

// Status is an appointment lifecycle state. Cancelled and Completed are
// terminal: no transition leaves them.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// User is one roster entry. Password holds a bcrypt hash, never plaintext.
// College doubles as the organizational unit for advisors; Specialization
// is only meaningful for counselors.
type User struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Password       string    `json:"password,omitempty"`
	Role           Role      `json:"role"`
	Phone          string    `json:"phone,omitempty"`
	College        string    `json:"college,omitempty"`
	Class          string    `json:"class,omitempty"`
	Specialization string    `json:"specialization,omitempty"`
	Gender         string    `json:"gender,omitempty"`
	HealthTag      HealthTag `json:"healthTag,omitempty"`
}

// Roster is the whole shared user document, one slice per role.
type Roster struct {
	Students   []User `json:"students"`
	Counselors []User `json:"counselors"`
	Advisors   []User `json:"advisors"`
	Admins     []User `json:"admins"`
}

// Message is one direct message. Immutable once written; Timestamp is Unix
// milliseconds and the conversation identity is the unordered
// {SenderID, ReceiverID} pair.
type Message struct {
	ID         string `json:"id"`
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
	Text       string `json:"text"`
	Timestamp  int64  `json:"timestamp"`
}

// Appointment is one counseling appointment. LocationUpdated is a one-shot
// flag: set when a counselor amends the location, cleared only when the
// student dismisses the notice. Version counts changes to the row.
type Appointment struct {
	ID              string `json:"id"`
	StudentID       string `json:"studentId"`
	StudentName     string `json:"studentName,omitempty"`
	CounselorID     string `json:"counselorId"`
	CounselorName   string `json:"counselorName,omitempty"`
	DateTime        string `json:"dateTime"`
	Location        string `json:"location"`
	Status          Status `json:"status"`
	CreatedAt       int64  `json:"createdAt"`
	LocationUpdated bool   `json:"locationUpdated"`
	Version         int64  `json:"version"`
}

// MoodRecord is one mood diary entry, append-only.
type MoodRecord struct {
	ID        string `json:"id"`
	StudentID string `json:"studentId"`
	Mood      Mood   `json:"mood"`
	Note      string `json:"note,omitempty"`
	Timestamp int64  `json:"timestamp"`
}
