package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-cbt/internal/config"
	"github.com/stemsi/exstem-cbt/internal/middleware"
	"github.com/stemsi/exstem-cbt/internal/model"
	"github.com/stemsi/exstem-cbt/internal/response"
	"github.com/stemsi/exstem-cbt/internal/service"
	"github.com/stemsi/exstem-cbt/internal/validator"
	ws "github.com/stemsi/exstem-cbt/internal/websocket"
	"golang.org/x/crypto/bcrypt"
)

// ─── Fakes ──────────────────────────────────────────────────────────

type memKV struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *memKV) Get(_ context.Context, key string) *redis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *memKV) Set(_ context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch v := value.(type) {
	case string:
		m.data[key] = v
	case []byte:
		m.data[key] = string(v)
	}
	return redis.NewStatusResult("OK", nil)
}

func (m *memKV) Del(_ context.Context, keys ...string) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

type stubUsers map[int]*model.User

func (s stubUsers) GetByID(_ context.Context, id int) (*model.User, error) {
	if u, ok := s[id]; ok {
		return u, nil
	}
	return nil, pgx.ErrNoRows
}

func (s stubUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range s {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type stubExams map[uuid.UUID]*model.Exam

func (s stubExams) GetExamByID(_ context.Context, id uuid.UUID) (*model.Exam, error) {
	if e, ok := s[id]; ok {
		return e, nil
	}
	return nil, pgx.ErrNoRows
}

func (s stubExams) ListActive(_ context.Context) ([]model.Exam, error) {
	var out []model.Exam
	for _, e := range s {
		if e.Status == model.ExamStatusActive {
			out = append(out, *e)
		}
	}
	return out, nil
}

type stubResults struct {
	mu   sync.Mutex
	recs []*model.ResultRecord
}

func (s *stubResults) SubmitExamResult(_ context.Context, rec *model.ResultRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, rec)
	return nil
}

func (s *stubResults) ListByStudent(_ context.Context, id int) ([]model.ResultSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ResultSummary
	for _, r := range s.recs {
		if r.StudentID == id {
			out = append(out, model.ResultSummary{ID: r.ID, ExamID: r.ExamID, Score: r.Score, TotalScore: r.TotalScore, Grade: r.Grade})
		}
	}
	return out, nil
}

type staticFeedback struct{}

func (staticFeedback) Explain(context.Context, int, int, string) string { return "Terus berlatih" }

// ─── Harness ────────────────────────────────────────────────────────

type harness struct {
	engine  *gin.Engine
	exam    *model.Exam
	results *stubResults
	tokens  map[string]string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	validator.Setup()

	hash, _ := bcrypt.GenerateFromPassword([]byte("rahasia123"), bcrypt.MinCost)
	users := stubUsers{
		1: {ID: 1, Email: "ani@sekolah.sch.id", Name: "Ani", Role: model.RoleStudent, PasswordHash: string(hash)},
		2: {ID: 2, Email: "budi@sekolah.sch.id", Name: "Budi", Role: model.RoleStudent, PasswordHash: string(hash)},
	}
	exam := &model.Exam{
		ID:              uuid.New(),
		Title:           "Kuis Sains",
		Subject:         "Science",
		DurationMinutes: 30,
		Status:          model.ExamStatusActive,
		Questions: []model.Question{
			{ID: "q1", Type: model.QuestionTypeMultipleChoice, Options: []string{"A", "B"}, CorrectAnswer: model.SingleKey("A"), Points: 2},
			{ID: "q2", Type: model.QuestionTypeTrueFalse, CorrectAnswer: model.SingleKey("false"), Points: 2},
		},
	}

	cfg := &config.Config{JWTSecret: "handler-test", JWTExpiry: time.Hour, BcryptCost: bcrypt.MinCost}
	kv := &memKV{data: make(map[string]string)}
	log := zerolog.Nop()
	results := &stubResults{}

	authSvc := service.NewAuthService(cfg, users, kv, log)
	examSvc := service.NewExamService(stubExams{exam.ID: exam}, kv, 0, log)
	sessionSvc := service.NewExamSessionService(context.Background(), examSvc, results, staticFeedback{}, service.SessionOptions{}, log)
	t.Cleanup(sessionSvc.Shutdown)

	authH := NewAuthHandler(authSvc, log)
	sessionH := NewSessionHandler(examSvc, sessionSvc, service.NewResultService(results), log)
	wsH := NewWSHandler(sessionSvc, log, nil, 20*time.Millisecond)

	r := gin.New()
	r.Use(response.RequestIDMiddleware())
	r.POST("/api/v1/auth/login", authH.Login)
	authed := r.Group("", middleware.RequireAuth(authSvc))
	authed.POST("/api/v1/auth/logout", authH.Logout)
	authed.GET("/api/v1/auth/me", authH.Me)
	st := authed.Group("/api/v1/student", middleware.RequireRole(model.RoleStudent))
	st.GET("/exams", sessionH.ListExams)
	st.POST("/exams/:exam_id/sessions", sessionH.StartSession)
	st.GET("/sessions/:session_id", sessionH.GetSession)
	st.PUT("/sessions/:session_id/answers/:question_id", sessionH.RecordAnswer)
	st.POST("/sessions/:session_id/navigate", sessionH.Navigate)
	st.POST("/sessions/:session_id/review/:question_id", sessionH.ToggleReview)
	st.POST("/sessions/:session_id/submit", sessionH.Submit)
	st.DELETE("/sessions/:session_id", sessionH.Abandon)
	st.GET("/results", sessionH.ListResults)
	authed.GET("/ws/v1/student/sessions/:session_id/stream", middleware.RequireRole(model.RoleStudent), wsH.SessionStream)

	h := &harness{engine: r, exam: exam, results: results, tokens: map[string]string{}}
	for _, email := range []string{"ani@sekolah.sch.id", "budi@sekolah.sch.id"} {
		res, err := authSvc.Login(context.Background(), email, "rahasia123")
		if err != nil {
			t.Fatalf("login %s: %v", email, err)
		}
		h.tokens[email] = res.Token
	}
	return h
}

type envelope struct {
	Data  json.RawMessage     `json:"data"`
	Error *response.ErrorBody `json:"error"`
}

func (h *harness) do(t *testing.T, method, path, token, body string) (int, envelope) {
	t.Helper()
	var rdr *bytes.Reader
	if body != "" {
		rdr = bytes.NewReader([]byte(body))
	} else {
		rdr = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.engine.ServeHTTP(w, req)

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: decode %q: %v", method, path, w.Body.String(), err)
	}
	return w.Code, env
}

func (h *harness) start(t *testing.T, token string) StartResponse {
	t.Helper()
	code, env := h.do(t, http.MethodPost, "/api/v1/student/exams/"+h.exam.ID.String()+"/sessions", token, "")
	if code != http.StatusCreated {
		t.Fatalf("start: status %d, error %+v", code, env.Error)
	}
	var sr StartResponse
	if err := json.Unmarshal(env.Data, &sr); err != nil {
		t.Fatalf("decode start: %v", err)
	}
	return sr
}

// ─── Tests ──────────────────────────────────────────────────────────

func TestLoginHandler(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name   string
		body   string
		status int
		code   response.ErrCode
	}{
		{"ok", `{"email":"ani@sekolah.sch.id","password":"rahasia123"}`, http.StatusOK, ""},
		{"wrong password", `{"email":"ani@sekolah.sch.id","password":"salah123"}`, http.StatusUnauthorized, response.ErrInvalidCredentials},
		{"bad email", `{"email":"ani","password":"rahasia123"}`, http.StatusBadRequest, response.ErrValidation},
		{"missing body", ``, http.StatusBadRequest, response.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := h.do(t, http.MethodPost, "/api/v1/auth/login", "", tt.body)
			if code != tt.status {
				t.Fatalf("status = %d, want %d (%+v)", code, tt.status, env.Error)
			}
			if tt.code != "" && (env.Error == nil || env.Error.Code != tt.code) {
				t.Fatalf("error = %+v, want %s", env.Error, tt.code)
			}
		})
	}
}

func TestMeAndLogout(t *testing.T) {
	h := newHarness(t)
	token := h.tokens["ani@sekolah.sch.id"]

	code, env := h.do(t, http.MethodGet, "/api/v1/auth/me", token, "")
	if code != http.StatusOK || !strings.Contains(string(env.Data), `"Ani"`) {
		t.Fatalf("me = %d %s", code, env.Data)
	}
	if strings.Contains(string(env.Data), "password") {
		t.Fatal("profile leaks password hash")
	}

	if code, _ := h.do(t, http.MethodPost, "/api/v1/auth/logout", token, ""); code != http.StatusOK {
		t.Fatalf("logout = %d", code)
	}
	code, env = h.do(t, http.MethodGet, "/api/v1/auth/me", token, "")
	if code != http.StatusUnauthorized || env.Error.Code != response.ErrSessionInvalidated {
		t.Fatalf("me after logout = %d %+v", code, env.Error)
	}
}

func TestSessionFlow(t *testing.T) {
	h := newHarness(t)
	token := h.tokens["ani@sekolah.sch.id"]

	sr := h.start(t, token)
	if len(sr.Paper.Questions) != 2 || strings.Contains(mustJSON(t, sr.Paper), "correct_answer") {
		t.Fatalf("paper = %+v", sr.Paper)
	}
	base := "/api/v1/student/sessions/" + sr.State.SessionID.String()

	steps := []struct {
		name, method, path, body string
		status                   int
		code                     response.ErrCode
	}{
		{"answer q1", http.MethodPut, base + "/answers/q1", `{"value":"A"}`, http.StatusOK, ""},
		{"answer q2 false", http.MethodPut, base + "/answers/q2", `{"value":false}`, http.StatusOK, ""},
		{"wrong shape", http.MethodPut, base + "/answers/q2", `{"value":"false"}`, http.StatusUnprocessableEntity, response.ErrAnswerShape},
		{"unknown question", http.MethodPut, base + "/answers/q9", `{"value":"A"}`, http.StatusNotFound, response.ErrUnknownQuestion},
		{"null value", http.MethodPut, base + "/answers/q1", `{"value":null}`, http.StatusBadRequest, response.ErrValidation},
		{"next", http.MethodPost, base + "/navigate", `{"direction":"next"}`, http.StatusOK, ""},
		{"bad direction", http.MethodPost, base + "/navigate", `{"direction":"up"}`, http.StatusBadRequest, response.ErrValidation},
		{"both", http.MethodPost, base + "/navigate", `{"index":0,"direction":"next"}`, http.StatusBadRequest, response.ErrInvalidNavigation},
		{"out of range is no-op", http.MethodPost, base + "/navigate", `{"index":7}`, http.StatusOK, ""},
		{"flag", http.MethodPost, base + "/review/q1", ``, http.StatusOK, ""},
		{"no confirm", http.MethodPost, base + "/submit", `{"confirm":false}`, http.StatusUnprocessableEntity, response.ErrConfirmRequired},
	}
	for _, s := range steps {
		code, env := h.do(t, s.method, s.path, token, s.body)
		if code != s.status {
			t.Fatalf("%s: status = %d, want %d (%+v)", s.name, code, s.status, env.Error)
		}
		if s.code != "" && (env.Error == nil || env.Error.Code != s.code) {
			t.Fatalf("%s: error = %+v, want %s", s.name, env.Error, s.code)
		}
	}

	code, env := h.do(t, http.MethodGet, base, token, "")
	var view SessionView
	_ = json.Unmarshal(env.Data, &view)
	if code != http.StatusOK || view.State.CurrentIndex != 1 || view.State.AnsweredCount != 2 || !view.State.Palette[0].Flagged {
		t.Fatalf("state = %+v", view.State)
	}

	code, env = h.do(t, http.MethodPost, base+"/submit", token, `{"confirm":true}`)
	if code != http.StatusOK {
		t.Fatalf("submit = %d %+v", code, env.Error)
	}
	first := string(env.Data)
	if !strings.Contains(first, `"score":4`) || !strings.Contains(first, `"Terus berlatih"`) {
		t.Fatalf("outcome = %s", first)
	}

	code, env = h.do(t, http.MethodPost, base+"/submit", token, `{"confirm":true}`)
	if code != http.StatusOK || string(env.Data) != first {
		t.Fatalf("repeat submit = %d, same outcome %v", code, string(env.Data) == first)
	}
	if len(h.results.recs) != 1 {
		t.Fatalf("results written = %d, want 1", len(h.results.recs))
	}

	code, env = h.do(t, http.MethodPut, base+"/answers/q1", token, `{"value":"B"}`)
	if code != http.StatusConflict || env.Error.Code != response.ErrNotInProgress {
		t.Fatalf("answer after submit = %d %+v", code, env.Error)
	}

	code, env = h.do(t, http.MethodGet, "/api/v1/student/results", token, "")
	if code != http.StatusOK || !strings.Contains(string(env.Data), `"score":4`) {
		t.Fatalf("results = %d %s", code, env.Data)
	}
}

func TestSessionOwnership(t *testing.T) {
	h := newHarness(t)
	sr := h.start(t, h.tokens["ani@sekolah.sch.id"])
	path := "/api/v1/student/sessions/" + sr.State.SessionID.String()

	code, env := h.do(t, http.MethodGet, path, h.tokens["budi@sekolah.sch.id"], "")
	if code != http.StatusNotFound || env.Error.Code != response.ErrSessionNotFound {
		t.Fatalf("foreign get = %d %+v", code, env.Error)
	}
	code, env = h.do(t, http.MethodGet, "/api/v1/student/sessions/not-a-uuid", h.tokens["ani@sekolah.sch.id"], "")
	if code != http.StatusBadRequest || env.Error.Code != response.ErrInvalidID {
		t.Fatalf("bad id = %d %+v", code, env.Error)
	}
}

func TestAbandonHandler(t *testing.T) {
	h := newHarness(t)
	token := h.tokens["ani@sekolah.sch.id"]
	sr := h.start(t, token)
	path := "/api/v1/student/sessions/" + sr.State.SessionID.String()

	if code, _ := h.do(t, http.MethodDelete, path, token, ""); code != http.StatusOK {
		t.Fatalf("abandon = %d", code)
	}
	if code, _ := h.do(t, http.MethodGet, path, token, ""); code != http.StatusNotFound {
		t.Fatalf("get after abandon = %d", code)
	}
	if len(h.results.recs) != 0 {
		t.Fatal("abandon recorded a result")
	}
}

func TestStartUnknownExam(t *testing.T) {
	h := newHarness(t)
	code, env := h.do(t, http.MethodPost, "/api/v1/student/exams/"+uuid.NewString()+"/sessions", h.tokens["ani@sekolah.sch.id"], "")
	if code != http.StatusNotFound || env.Error.Code != response.ErrExamNotFound {
		t.Fatalf("start unknown = %d %+v", code, env.Error)
	}
}

func TestSessionStream(t *testing.T) {
	h := newHarness(t)
	token := h.tokens["ani@sekolah.sch.id"]
	sr := h.start(t, token)

	srv := httptest.NewServer(h.engine)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") +
		"/ws/v1/student/sessions/" + sr.State.SessionID.String() + "/stream?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	next := func() map[string]any {
		t.Helper()
		var ev map[string]any
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("read: %v", err)
		}
		return ev
	}
	// Skip ticks until an event of the wanted type arrives.
	await := func(event ws.Event) map[string]any {
		t.Helper()
		for {
			ev := next()
			if ev["event"] == string(event) {
				return ev
			}
			if ev["event"] != string(ws.EventTick) {
				t.Fatalf("got %v while waiting for %s", ev, event)
			}
		}
	}

	if ev := next(); ev["event"] != string(ws.EventTick) || ev["time_left"].(float64) <= 0 {
		t.Fatalf("first event = %v", ev)
	}

	_ = conn.WriteJSON(map[string]any{"action": "ping"})
	await(ws.EventPong)

	_ = conn.WriteJSON(map[string]any{"action": "answer", "question_id": "q1", "value": "A"})
	if ev := await(ws.EventSaved); ev["question_id"] != "q1" {
		t.Fatalf("saved = %v", ev)
	}

	_ = conn.WriteJSON(map[string]any{"action": "answer", "question_id": "q2", "value": "yes"})
	if ev := await(ws.EventError); ev["code"] != string(response.ErrAnswerShape) {
		t.Fatalf("error = %v", ev)
	}

	_ = conn.WriteJSON(map[string]any{"action": "submit", "confirm": true})
	ev := await(ws.EventSubmitted)
	outcome, _ := ev["outcome"].(map[string]any)
	result, _ := outcome["result"].(map[string]any)
	if result["score"].(float64) != 2 {
		t.Fatalf("outcome = %v", outcome)
	}
}

func TestSessionStream_EndsWhenAbandoned(t *testing.T) {
	h := newHarness(t)
	token := h.tokens["ani@sekolah.sch.id"]
	sr := h.start(t, token)

	srv := httptest.NewServer(h.engine)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") +
		"/ws/v1/student/sessions/" + sr.State.SessionID.String() + "/stream?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first map[string]any
	if err := conn.ReadJSON(&first); err != nil || first["event"] != string(ws.EventTick) {
		t.Fatalf("first event = %v, %v", first, err)
	}

	if code, env := h.do(t, http.MethodDelete, "/api/v1/student/sessions/"+sr.State.SessionID.String(), token, ""); code != http.StatusOK {
		t.Fatalf("abandon = %d %+v", code, env.Error)
	}

	for {
		var ev map[string]any
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("stream ended without a close notice: %v", err)
		}
		if ev["event"] == string(ws.EventTick) {
			continue
		}
		if ev["event"] != string(ws.EventError) || ev["code"] != string(response.ErrSessionClosed) {
			t.Fatalf("event after abandon = %v", ev)
		}
		break
	}

	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Fatalf("after close notice err = %v, want normal closure", err)
	}
}

func TestSessionStream_RejectsForeignSession(t *testing.T) {
	h := newHarness(t)
	sr := h.start(t, h.tokens["ani@sekolah.sch.id"])
	path := "/ws/v1/student/sessions/" + sr.State.SessionID.String() + "/stream?token=" + h.tokens["budi@sekolah.sch.id"]

	code, env := h.do(t, http.MethodGet, path, "", "")
	if code != http.StatusNotFound || env.Error.Code != response.ErrSessionNotFound {
		t.Fatalf("foreign stream = %d %+v", code, env.Error)
	}
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}
