package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"log"
	"net/http"

	"github.com/unimind/platform/internal/assistant"
	"github.com/unimind/platform/internal/data"
	"github.com/unimind/platform/internal/notify"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func readJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// readBodyAndRestore reads the full body and puts it back so a later
// handler can read it again (used by the login rate-limit key).
func readBodyAndRestore(r *http.Request) ([]byte, error) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(raw))
	return raw, nil
}

// writeDomainError maps domain failures onto HTTP statuses; everything the
// domain does not explicitly type is an internal error.
func writeDomainError(w http.ResponseWriter, err error) {
	var ve *data.ValidationError
	var inv *data.ErrInvalidTransition
	switch {
	case errors.Is(err, data.ErrAccountNotFound), errors.Is(err, data.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, data.ErrWrongPassword):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, data.ErrDuplicateID):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &ve), errors.As(err, &inv):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// public strips the password hash before a user leaves the API.
func public(u data.User) data.User {
	u.Password = ""
	return u
}

// handleLogin verifies credentials for a role and issues a JWT. A missing
// account is an explicit 404, not a generic failure.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID       string    `json:"id"`
		Password string    `json:"password"`
		Role     data.Role `json:"role"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	user, err := s.roster.VerifyLogin(r.Context(), req.ID, req.Password, req.Role)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	token, expiresAt, err := s.auth.GenerateToken(user.ID, string(user.Role))
	if err != nil {
		writeDomainError(w, fmt.Errorf("generate token: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":     token,
		"expiresAt": expiresAt,
		"user":      public(user),
	})
}

// handleSendMessage appends a direct message from the authenticated user.
func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())
	var req struct {
		To   string `json:"to"`
		Text string `json:"text"`
	}
	if err := readJSON(r, &req); err != nil || req.To == "" || req.Text == "" {
		writeError(w, http.StatusBadRequest, "to and text are required")
		return
	}

	// Recipient must exist so typos don't silently vanish into the log.
	if _, ok, err := s.roster.FindUser(r.Context(), req.To); err != nil {
		writeDomainError(w, err)
		return
	} else if !ok {
		writeError(w, http.StatusNotFound, "recipient not found")
		return
	}

	msg, err := s.msgs.Send(r.Context(), claims.UserID, req.To, html.EscapeString(req.Text))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// handleHistory returns the conversation with the requested counterpart.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())
	with := r.URL.Query().Get("with")
	if with == "" {
		writeError(w, http.StatusBadRequest, "with is required")
		return
	}
	history, err := s.msgs.History(r.Context(), claims.UserID, with)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

// handleMarkRead acknowledges a conversation for the authenticated viewer.
func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())
	var req struct {
		Counterpart string `json:"counterpart"`
	}
	if err := readJSON(r, &req); err != nil || req.Counterpart == "" {
		writeError(w, http.StatusBadRequest, "counterpart is required")
		return
	}
	if err := s.marks.MarkRead(r.Context(), claims.UserID, req.Counterpart); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleContacts(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())
	contacts, err := s.msgs.RecentContacts(r.Context(), claims.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contacts)
}

func (s *Server) handleUnread(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())
	counts, err := s.marks.UnreadCounts(r.Context(), claims.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// handleNotifications streams new-message alerts for the authenticated
// viewer as server-sent events. Each connection runs its own poller, so
// last-seen state stays local to the browsing context.
func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	alerts := make(chan notify.Alert, 16)
	poller := notify.New(s.st, s.msgs, s.marks, claims.UserID, 0, func(a notify.Alert) {
		select {
		case alerts <- a:
		default:
		}
	})

	ctx := r.Context()
	go func() { _ = poller.Run(ctx) }()

	for {
		select {
		case <-ctx.Done():
			return
		case a := <-alerts:
			payload, err := json.Marshal(a)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

// handleCreateAppointment opens a PENDING appointment for the
// authenticated student.
func (s *Server) handleCreateAppointment(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())
	if claims.Role != string(data.RoleStudent) {
		writeError(w, http.StatusForbidden, "only students create appointments")
		return
	}
	var req struct {
		CounselorID string `json:"counselorId"`
		DateTime    string `json:"dateTime"`
		Location    string `json:"location"`
	}
	if err := readJSON(r, &req); err != nil || req.CounselorID == "" || req.DateTime == "" {
		writeError(w, http.StatusBadRequest, "counselorId and dateTime are required")
		return
	}
	app, err := s.appts.Create(r.Context(), claims.UserID, req.CounselorID, req.DateTime, req.Location)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, app)
}

// handleListAppointments scopes the log to the caller: students see their
// own, counselors theirs, advisors and the admin see everything.
func (s *Server) handleListAppointments(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())
	var (
		apps []data.Appointment
		err  error
	)
	switch data.Role(claims.Role) {
	case data.RoleStudent:
		apps, err = s.appts.ForStudent(r.Context(), claims.UserID)
	case data.RoleCounselor:
		apps, err = s.appts.ForCounselor(r.Context(), claims.UserID)
	default:
		apps, err = s.appts.All(r.Context())
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apps)
}

func (s *Server) handleAppointmentStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     string      `json:"id"`
		Status data.Status `json:"status"`
	}
	if err := readJSON(r, &req); err != nil || req.ID == "" {
		writeError(w, http.StatusBadRequest, "id and status are required")
		return
	}
	if err := s.appts.SetStatus(r.Context(), req.ID, req.Status); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAppointmentLocation(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())
	if claims.Role != string(data.RoleCounselor) {
		writeError(w, http.StatusForbidden, "only counselors amend locations")
		return
	}
	var req struct {
		ID       string `json:"id"`
		Location string `json:"location"`
	}
	if err := readJSON(r, &req); err != nil || req.ID == "" || req.Location == "" {
		writeError(w, http.StatusBadRequest, "id and location are required")
		return
	}
	if err := s.appts.AmendLocation(r.Context(), req.ID, req.Location); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDismissLocation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if err := readJSON(r, &req); err != nil || req.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	if err := s.appts.DismissLocationNotice(r.Context(), req.ID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRecordMood(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())
	var req struct {
		Mood data.Mood `json:"mood"`
		Note string    `json:"note"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	rec, err := s.moods.Record(r.Context(), claims.UserID, req.Mood, req.Note)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// handleListMoods returns the caller's own diary; counselors and advisors
// may name a student instead.
func (s *Server) handleListMoods(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())
	student := claims.UserID
	if q := r.URL.Query().Get("student"); q != "" && claims.Role != string(data.RoleStudent) {
		student = q
	}
	recs, err := s.moods.Recent(r.Context(), student, 0)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleAssessmentQuestions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, data.AssessmentQuestions)
}

// handleSubmitAssessment scores the battery and publishes the resulting
// tag; scoring itself is pure, the publish is the explicit side effect.
func (s *Server) handleSubmitAssessment(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())
	var req struct {
		Answers []bool `json:"answers"`
	}
	if err := readJSON(r, &req); err != nil || len(req.Answers) != len(data.AssessmentQuestions) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("exactly %d answers are required", len(data.AssessmentQuestions)))
		return
	}

	tag, score := data.Assess(req.Answers)
	if err := s.roster.SetHealthTag(r.Context(), claims.UserID, tag); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"score": score, "tag": tag})
}

// handleSetHealthTag lets counselors, advisors, and the admin overwrite a
// student's tag directly; students may only set their own.
func (s *Server) handleSetHealthTag(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())
	var req struct {
		StudentID string         `json:"studentId"`
		Tag       data.HealthTag `json:"tag"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	target := req.StudentID
	if target == "" {
		target = claims.UserID
	}
	if claims.Role == string(data.RoleStudent) && target != claims.UserID {
		writeError(w, http.StatusForbidden, "students may only set their own tag")
		return
	}
	if err := s.roster.SetHealthTag(r.Context(), target, req.Tag); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAtRisk(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())
	if claims.Role == string(data.RoleStudent) {
		writeError(w, http.StatusForbidden, "not available to students")
		return
	}
	users, err := s.roster.AtRisk(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]data.User, 0, len(users))
	for _, u := range users {
		out = append(out, public(u))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListRoster(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())
	if claims.Role == string(data.RoleStudent) {
		writeError(w, http.StatusForbidden, "not available to students")
		return
	}
	role := data.Role(r.URL.Query().Get("role"))
	users, err := s.roster.UsersByRole(r.Context(), role)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]data.User, 0, len(users))
	for _, u := range users {
		out = append(out, public(u))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAddUser(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())
	if claims.Role != string(data.RoleAdmin) {
		writeError(w, http.StatusForbidden, "admin only")
		return
	}
	var req struct {
		data.User
		PlainPassword string `json:"plainPassword"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := s.roster.AddUser(r.Context(), req.User, req.PlainPassword); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// handleUpdateUser applies profile edits: the admin may edit anyone,
// everyone else only themselves.
func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())
	var u data.User
	if err := readJSON(r, &u); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if claims.Role != string(data.RoleAdmin) && u.ID != claims.UserID {
		writeError(w, http.StatusForbidden, "cannot edit another user")
		return
	}
	u.Password = "" // hashes only ever change via the password endpoint
	if err := s.roster.UpdateUser(r.Context(), u); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())
	var req struct {
		Old string `json:"old"`
		New string `json:"new"`
	}
	if err := readJSON(r, &req); err != nil || req.New == "" {
		writeError(w, http.StatusBadRequest, "old and new are required")
		return
	}
	if _, err := s.roster.VerifyLogin(r.Context(), claims.UserID, req.Old, data.Role(claims.Role)); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := s.roster.SetPassword(r.Context(), claims.UserID, req.New); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAssistant relays one turn to the AI chat boundary. The reply is
// always usable text; upstream failures surface as the canned apology.
func (s *Server) handleAssistant(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text    string           `json:"text"`
		History []assistant.Turn `json:"history"`
	}
	if err := readJSON(r, &req); err != nil || req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	reply := s.assistant.Reply(r.Context(), req.Text, req.History)
	writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}
