package main

import (
	"net/http"

	"github.com/unimind/platform/internal/assistant"
	"github.com/unimind/platform/internal/auth"
	"github.com/unimind/platform/internal/data"
	"github.com/unimind/platform/internal/middleware"
	"github.com/unimind/platform/internal/store"
)

// Server holds the wired stores and services behind the HTTP surface.
type Server struct {
	st        *store.Store
	roster    *data.RosterStore
	msgs      *data.MessageLog
	marks     *data.ReadMarkers
	appts     *data.AppointmentBook
	moods     *data.MoodLog
	auth      *auth.JWTManager
	assistant *assistant.Client
}

// newServer returns a ready-to-use Server wired with stores and services.
func newServer(st *store.Store, roster *data.RosterStore, msgs *data.MessageLog, marks *data.ReadMarkers, appts *data.AppointmentBook, moods *data.MoodLog, jwtMgr *auth.JWTManager, ai *assistant.Client) *Server {
	return &Server{
		st:        st,
		roster:    roster,
		msgs:      msgs,
		marks:     marks,
		appts:     appts,
		moods:     moods,
		auth:      jwtMgr,
		assistant: ai,
	}
}

// routes assembles the full handler tree. Login is the only endpoint
// outside the auth wall; it is rate-limited by attempted account id.
func (s *Server) routes(limiter *middleware.LimiterStore) http.Handler {
	mux := http.NewServeMux()

	login := middleware.RateLimit(limiter, loginKey, http.HandlerFunc(s.handleLogin))
	mux.Handle("POST /v1/login", login)

	authed := http.NewServeMux()
	authed.HandleFunc("POST /v1/messages", s.handleSendMessage)
	authed.HandleFunc("GET /v1/messages", s.handleHistory)
	authed.HandleFunc("POST /v1/messages/read", s.handleMarkRead)
	authed.HandleFunc("GET /v1/contacts", s.handleContacts)
	authed.HandleFunc("GET /v1/unread", s.handleUnread)
	authed.HandleFunc("GET /v1/notifications", s.handleNotifications)

	authed.HandleFunc("POST /v1/appointments", s.handleCreateAppointment)
	authed.HandleFunc("GET /v1/appointments", s.handleListAppointments)
	authed.HandleFunc("POST /v1/appointments/status", s.handleAppointmentStatus)
	authed.HandleFunc("POST /v1/appointments/location", s.handleAppointmentLocation)
	authed.HandleFunc("POST /v1/appointments/dismiss-location", s.handleDismissLocation)

	authed.HandleFunc("POST /v1/moods", s.handleRecordMood)
	authed.HandleFunc("GET /v1/moods", s.handleListMoods)
	authed.HandleFunc("GET /v1/assessment", s.handleAssessmentQuestions)
	authed.HandleFunc("POST /v1/assessment", s.handleSubmitAssessment)
	authed.HandleFunc("POST /v1/health-tag", s.handleSetHealthTag)
	authed.HandleFunc("GET /v1/at-risk", s.handleAtRisk)

	authed.HandleFunc("GET /v1/roster", s.handleListRoster)
	authed.HandleFunc("POST /v1/roster", s.handleAddUser)
	authed.HandleFunc("PUT /v1/roster", s.handleUpdateUser)
	authed.HandleFunc("POST /v1/password", s.handleChangePassword)

	authed.HandleFunc("POST /v1/assistant", s.handleAssistant)

	mux.Handle("/v1/", s.requireAuth(authed))
	return mux
}
