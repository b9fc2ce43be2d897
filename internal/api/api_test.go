package api

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"resumebuilder/internal/auth"
	"resumebuilder/internal/database"
	"resumebuilder/internal/resume"
	"resumebuilder/internal/tasks"
)

type fakeRenderer struct {
	err   error
	calls int
}

func (f *fakeRenderer) Render(_ context.Context, r resume.Resume) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []byte("%PDF-1.4 " + r.PersonalInfo.Name), nil
}

type fakeQueue struct {
	mu    sync.Mutex
	tasks []*asynq.Task
}

func (q *fakeQueue) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, task)
	return &asynq.TaskInfo{ID: fmt.Sprintf("task-%d", len(q.tasks)), Queue: tasks.QueueDefault}, nil
}

type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}}
}

func (s *fakeStore) PutPDF(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *fakeStore) PresignedURL(_ context.Context, key string, ttl time.Duration, filename string) (string, error) {
	return fmt.Sprintf("https://files.example.test/%s?ttl=%d&name=%s", key, int(ttl.Seconds()), filename), nil
}

func (s *fakeStore) DeleteObject(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	s.deleted = append(s.deleted, key)
	return nil
}

type testEnv struct {
	router   *gin.Engine
	db       *gorm.DB
	auth     *auth.AuthService
	renderer *fakeRenderer
	queue    *fakeQueue
	store    *fakeStore
}

type envOption func(*Deps)

func withoutArchive() envOption {
	return func(d *Deps) {
		d.Queue = nil
		d.Storage = nil
	}
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	authService := auth.NewAuthServiceFromKeys(key, &key.PublicKey, time.Hour)

	env := &testEnv{
		db:       db,
		auth:     authService,
		renderer: &fakeRenderer{},
		queue:    &fakeQueue{},
		store:    newFakeStore(),
	}
	deps := Deps{
		DB:            db,
		Auth:          authService,
		Queue:         env.queue,
		Storage:       env.store,
		Renderer:      env.renderer,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		UIRedirectURL: "http://localhost:3000/auth/callback",
	}
	for _, opt := range opts {
		opt(&deps)
	}
	env.router = NewRouter(deps)
	return env
}

func (e *testEnv) userToken(t *testing.T, name, email string) (uint, string) {
	t.Helper()
	user := database.User{Name: name, Email: email}
	if err := e.db.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	token, _, err := e.auth.GenerateToken(user.ID)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	return user.ID, token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func expectMsg(t *testing.T, w *httptest.ResponseRecorder, status int, msg string) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("expected %d got %d: %s", status, w.Code, w.Body.String())
	}
	body := decode[map[string]any](t, w)
	if body["msg"] != msg {
		t.Fatalf("expected msg %q got %v", msg, body["msg"])
	}
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"ok"`) {
		t.Fatalf("unexpected health response %d %s", w.Code, w.Body.String())
	}

	env.do(t, http.MethodGet, "/api/resumes", "", nil)

	w = env.do(t, http.MethodGet, "/metrics", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("metrics endpoint: %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `resumebuilder_http_requests_total{code="401",method="GET",route="/api/resumes"}`) {
		t.Fatalf("metrics endpoint missing the resume route counter")
	}
}

func TestResumeRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/api/resumes", "/api/resumes/1", "/api/auth/profile"} {
		w := env.do(t, http.MethodGet, path, "", nil)
		expectMsg(t, w, http.StatusUnauthorized, "unauthorized")
	}
	w := env.do(t, http.MethodPost, "/api/ai/1/analyze", "not-a-token", nil)
	expectMsg(t, w, http.StatusUnauthorized, "unauthorized")
}

func TestCreateUpdateAndMerge(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.userToken(t, "Ada", "ada@example.com")

	w := env.do(t, http.MethodPost, "/api/resumes", token, map[string]any{
		"personalInfo": map[string]any{"name": "Ada Lovelace", "summary": "Analyst"},
		"experience":   []map[string]any{{"title": "Engineer", "description": "Built engines"}},
		"skills":       []map[string]any{{"name": "Math", "level": "Expert"}},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("create: %d %s", w.Code, w.Body.String())
	}
	created := decode[resume.Resume](t, w)
	if created.ID == 0 || created.Template != resume.TemplateProfessional {
		t.Fatalf("unexpected created resume %+v", created)
	}
	if created.Education == nil || len(created.Education) != 0 {
		t.Fatalf("absent sections should be empty lists, got %#v", created.Education)
	}

	path := fmt.Sprintf("/api/resumes/%d", created.ID)
	w = env.do(t, http.MethodPost, path, token, map[string]any{
		"template": "creative",
		"skills":   []map[string]any{},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("update: %d %s", w.Code, w.Body.String())
	}
	updated := decode[resume.Resume](t, w)
	if updated.ID != created.ID {
		t.Fatalf("update should keep the id, got %d", updated.ID)
	}
	if updated.Template != resume.TemplateCreative {
		t.Fatalf("template not updated: %q", updated.Template)
	}
	if updated.PersonalInfo.Name != "Ada Lovelace" || len(updated.Experience) != 1 {
		t.Fatalf("absent fields should be kept: %+v", updated)
	}
	if len(updated.Skills) != 0 {
		t.Fatalf("explicit empty list should replace skills: %+v", updated.Skills)
	}

	w = env.do(t, http.MethodGet, "/api/resumes", token, nil)
	list := decode[[]resume.Resume](t, w)
	if len(list) != 1 || list[0].ID != created.ID {
		t.Fatalf("unexpected list %+v", list)
	}
}

func TestSaveWithUnknownIDCreates(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.userToken(t, "Ada", "ada@example.com")

	w := env.do(t, http.MethodPost, "/api/resumes/999", token, map[string]any{"template": "technical"})
	if w.Code != http.StatusOK {
		t.Fatalf("save: %d %s", w.Code, w.Body.String())
	}
	saved := decode[resume.Resume](t, w)
	if saved.ID == 0 || saved.ID == 999 || saved.Template != resume.TemplateTechnical {
		t.Fatalf("unexpected resume %+v", saved)
	}
}

func TestCreateWithProfilePrefill(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.userToken(t, "Grace Hopper", "grace@example.com")

	w := env.do(t, http.MethodPost, "/api/resumes?prefill=profile", token, map[string]any{})
	saved := decode[resume.Resume](t, w)
	if saved.PersonalInfo.Name != "Grace Hopper" || saved.PersonalInfo.Email != "grace@example.com" {
		t.Fatalf("personal info not prefilled: %+v", saved.PersonalInfo)
	}
}

func TestSaveRejectsInvalidBody(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.userToken(t, "Ada", "ada@example.com")

	w := env.do(t, http.MethodPost, "/api/resumes", token, `{"template": "retro"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d: %s", w.Code, w.Body.String())
	}
	w = env.do(t, http.MethodPost, "/api/resumes", token, `{"experience": {}}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d: %s", w.Code, w.Body.String())
	}
}

func TestForeignResumeIsNotFound(t *testing.T) {
	env := newTestEnv(t)
	_, owner := env.userToken(t, "Ada", "ada@example.com")
	_, other := env.userToken(t, "Eve", "eve@example.com")

	created := decode[resume.Resume](t, env.do(t, http.MethodPost, "/api/resumes", owner, map[string]any{}))
	path := fmt.Sprintf("/api/resumes/%d", created.ID)

	expectMsg(t, env.do(t, http.MethodGet, path, other, nil), http.StatusNotFound, "Resume not found")
	expectMsg(t, env.do(t, http.MethodDelete, path, other, nil), http.StatusNotFound, "Resume not found")
	expectMsg(t, env.do(t, http.MethodPost, path+"/pdf", other, nil), http.StatusNotFound, "Resume not found")
	expectMsg(t, env.do(t, http.MethodPost, fmt.Sprintf("/api/ai/%d/analyze", created.ID), other, nil), http.StatusNotFound, "Resume not found")
	expectMsg(t, env.do(t, http.MethodGet, "/api/resumes/not-an-id", owner, nil), http.StatusNotFound, "Resume not found")

	if list := decode[[]resume.Resume](t, env.do(t, http.MethodGet, "/api/resumes", other, nil)); len(list) != 0 {
		t.Fatalf("other user should see nothing, got %d", len(list))
	}
}

func TestDeleteResume(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.userToken(t, "Ada", "ada@example.com")

	created := decode[resume.Resume](t, env.do(t, http.MethodPost, "/api/resumes", token, map[string]any{}))
	if err := env.db.Model(&database.Resume{}).Where("id = ?", created.ID).
		Update("pdf_object_key", "generated-resumes/1/old.pdf").Error; err != nil {
		t.Fatalf("set key: %v", err)
	}

	path := fmt.Sprintf("/api/resumes/%d", created.ID)
	expectMsg(t, env.do(t, http.MethodDelete, path, token, nil), http.StatusOK, "Resume removed")
	expectMsg(t, env.do(t, http.MethodGet, path, token, nil), http.StatusNotFound, "Resume not found")
	expectMsg(t, env.do(t, http.MethodDelete, path, token, nil), http.StatusNotFound, "Resume not found")

	if len(env.store.deleted) != 1 || env.store.deleted[0] != "generated-resumes/1/old.pdf" {
		t.Fatalf("archived object should be removed, got %v", env.store.deleted)
	}
}

func TestGeneratePDF(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.userToken(t, "Ada", "ada@example.com")

	created := decode[resume.Resume](t, env.do(t, http.MethodPost, "/api/resumes", token, map[string]any{
		"personalInfo": map[string]any{"name": "Ada King Lovelace"},
	}))

	w := env.do(t, http.MethodPost, fmt.Sprintf("/api/resumes/%d/pdf", created.ID), token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("pdf: %d %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); cd != "attachment; filename=Ada_King_Lovelace_Resume.pdf" {
		t.Fatalf("unexpected content disposition %q", cd)
	}
	if w.Header().Get("Content-Length") != fmt.Sprint(len(w.Body.Bytes())) {
		t.Fatalf("content length mismatch")
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF-")) {
		t.Fatalf("body is not the rendered pdf")
	}
}

func TestGeneratePDFDispositionWithPunctuation(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.userToken(t, "Ana", "ana@example.com")

	created := decode[resume.Resume](t, env.do(t, http.MethodPost, "/api/resumes", token, map[string]any{
		"personalInfo": map[string]any{"name": "Ana (Dev) Li"},
	}))

	w := env.do(t, http.MethodPost, fmt.Sprintf("/api/resumes/%d/pdf", created.ID), token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("pdf: %d %s", w.Code, w.Body.String())
	}
	disposition, params, err := mime.ParseMediaType(w.Header().Get("Content-Disposition"))
	if err != nil {
		t.Fatalf("parse %q: %v", w.Header().Get("Content-Disposition"), err)
	}
	if disposition != "attachment" || params["filename"] != "Ana_(Dev)_Li_Resume.pdf" {
		t.Fatalf("unexpected disposition %q %v", disposition, params)
	}
}

func TestGeneratePDFFailure(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.userToken(t, "Ada", "ada@example.com")
	env.renderer.err = errors.New("browser crashed")

	created := decode[resume.Resume](t, env.do(t, http.MethodPost, "/api/resumes", token, map[string]any{}))
	w := env.do(t, http.MethodPost, fmt.Sprintf("/api/resumes/%d/pdf", created.ID), token, nil)
	expectMsg(t, w, http.StatusInternalServerError, "Server Error")
}

func TestAnalyzePersists(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.userToken(t, "Ada", "ada@example.com")

	created := decode[resume.Resume](t, env.do(t, http.MethodPost, "/api/resumes", token, map[string]any{
		"personalInfo": map[string]any{"summary": "Experienced manager"},
	}))

	w := env.do(t, http.MethodPost, fmt.Sprintf("/api/ai/%d/analyze", created.ID), token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("analyze: %d %s", w.Code, w.Body.String())
	}
	result := decode[resume.Analysis](t, w)
	if result.PersonalityTone.Professional != 4 || result.ATSScore != 30 || len(result.Suggestions) != 2 {
		t.Fatalf("unexpected analysis %+v", result)
	}

	stored := decode[resume.Resume](t, env.do(t, http.MethodGet, fmt.Sprintf("/api/resumes/%d", created.ID), token, nil))
	if stored.Analysis == nil || stored.Analysis.ATSScore != 30 {
		t.Fatalf("analysis should be stored, got %+v", stored.Analysis)
	}
}

func TestCoverLetterAndOptimize(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.userToken(t, "Ada", "ada@example.com")

	created := decode[resume.Resume](t, env.do(t, http.MethodPost, "/api/resumes", token, map[string]any{
		"personalInfo": map[string]any{"name": "Ada"},
	}))
	base := fmt.Sprintf("/api/ai/%d", created.ID)

	w := env.do(t, http.MethodPost, base+"/cover-letter", token, map[string]any{
		"jobDescription": "Senior Go engineer for payments",
		"companyName":    "Acme",
		"position":       "Backend Engineer",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("cover letter: %d %s", w.Code, w.Body.String())
	}
	letter := decode[map[string]string](t, w)["coverLetter"]
	if !strings.Contains(letter, "Acme") || !strings.Contains(letter, "Backend Engineer") || !strings.Contains(letter, "Ada") {
		t.Fatalf("letter missing fields: %q", letter)
	}

	w = env.do(t, http.MethodPost, base+"/optimize", token, map[string]any{"jobDescription": "Senior Go engineer"})
	if w.Code != http.StatusOK {
		t.Fatalf("optimize: %d %s", w.Code, w.Body.String())
	}
	suggestions := decode[map[string][]string](t, w)["suggestions"]
	if len(suggestions) == 0 {
		t.Fatalf("expected suggestions")
	}

	w = env.do(t, http.MethodPost, base+"/optimize", token, map[string]any{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing job description should be 400, got %d", w.Code)
	}
}

func TestArchiveAndLink(t *testing.T) {
	env := newTestEnv(t)
	userID, token := env.userToken(t, "Ada", "ada@example.com")

	created := decode[resume.Resume](t, env.do(t, http.MethodPost, "/api/resumes", token, map[string]any{
		"personalInfo": map[string]any{"name": "Ada Lovelace"},
	}))
	base := fmt.Sprintf("/api/resumes/%d/pdf", created.ID)

	expectMsg(t, env.do(t, http.MethodGet, base+"/link", token, nil), http.StatusConflict, "PDF has not been archived yet")

	w := env.do(t, http.MethodPost, base+"/archive", token, nil)
	if w.Code != http.StatusAccepted {
		t.Fatalf("archive: %d %s", w.Code, w.Body.String())
	}
	if decode[map[string]any](t, w)["task_id"] != "task-1" {
		t.Fatalf("task id missing: %s", w.Body.String())
	}
	if len(env.queue.tasks) != 1 || env.queue.tasks[0].Type() != tasks.TypePDFArchive {
		t.Fatalf("expected one archive task, got %d", len(env.queue.tasks))
	}
	payload, err := tasks.ParsePDFArchivePayload(env.queue.tasks[0].Payload())
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload.ResumeID != created.ID || payload.UserID != userID {
		t.Fatalf("unexpected payload %+v", payload)
	}

	if err := env.db.Model(&database.Resume{}).Where("id = ?", created.ID).
		Update("pdf_object_key", "generated-resumes/1/abc.pdf").Error; err != nil {
		t.Fatalf("set key: %v", err)
	}
	w = env.do(t, http.MethodGet, base+"/link", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("link: %d %s", w.Code, w.Body.String())
	}
	link := decode[map[string]any](t, w)
	url, _ := link["url"].(string)
	if !strings.Contains(url, "generated-resumes/1/abc.pdf") || !strings.Contains(url, "Ada_Lovelace_Resume.pdf") {
		t.Fatalf("unexpected url %q", url)
	}
	if link["expires_in"] != float64(300) {
		t.Fatalf("unexpected expiry %v", link["expires_in"])
	}
}

func TestArchiveUnavailableWithoutStorage(t *testing.T) {
	env := newTestEnv(t, withoutArchive())
	_, token := env.userToken(t, "Ada", "ada@example.com")

	created := decode[resume.Resume](t, env.do(t, http.MethodPost, "/api/resumes", token, map[string]any{}))
	base := fmt.Sprintf("/api/resumes/%d/pdf", created.ID)

	expectMsg(t, env.do(t, http.MethodPost, base+"/archive", token, nil), http.StatusServiceUnavailable, "PDF archive is not configured")
	expectMsg(t, env.do(t, http.MethodGet, base+"/link", token, nil), http.StatusServiceUnavailable, "PDF archive is not configured")

	// Deleting still works without object storage.
	expectMsg(t, env.do(t, http.MethodDelete, fmt.Sprintf("/api/resumes/%d", created.ID), token, nil), http.StatusOK, "Resume removed")
}

func TestRegisterLoginProfile(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/auth/register", "", map[string]any{
		"name": "Ada", "email": "Ada@Example.com", "password": "secret1",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("register: %d %s", w.Code, w.Body.String())
	}
	registered := decode[tokenResponse](t, w)
	if registered.Token == "" || registered.ExpiresIn != 3600 {
		t.Fatalf("unexpected token response %+v", registered)
	}

	w = env.do(t, http.MethodPost, "/api/auth/register", "", map[string]any{
		"name": "Ada", "email": "ada@example.com", "password": "secret1",
	})
	expectMsg(t, w, http.StatusBadRequest, "User already exists")

	w = env.do(t, http.MethodPost, "/api/auth/register", "", map[string]any{
		"name": "Ada", "email": "short@example.com", "password": "123",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("short password should be rejected, got %d", w.Code)
	}

	expectMsg(t, env.do(t, http.MethodPost, "/api/auth/login", "", map[string]any{
		"email": "ada@example.com", "password": "wrong-password",
	}), http.StatusUnauthorized, "Invalid credentials")
	expectMsg(t, env.do(t, http.MethodPost, "/api/auth/login", "", map[string]any{
		"email": "nobody@example.com", "password": "secret1",
	}), http.StatusUnauthorized, "Invalid credentials")

	w = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]any{
		"email": "ADA@example.com", "password": "secret1",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login: %d %s", w.Code, w.Body.String())
	}
	token := decode[tokenResponse](t, w).Token

	w = env.do(t, http.MethodGet, "/api/auth/profile", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("profile: %d %s", w.Code, w.Body.String())
	}
	profile := decode[profileResponse](t, w)
	if profile.Name != "Ada" || profile.Email != "ada@example.com" || profile.Google {
		t.Fatalf("unexpected profile %+v", profile)
	}
}

func TestGoogleRoutesDisabled(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/auth/google/start", "", nil)
	expectMsg(t, w, http.StatusServiceUnavailable, auth.ErrGoogleDisabled.Error())
}

func TestWebsocketUnavailableWithoutRedis(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/ws", "", nil)
	expectMsg(t, w, http.StatusServiceUnavailable, "notifications are not configured")
}

type fakeFeed struct {
	mu         sync.Mutex
	subs       map[uint]chan string
	subscribed chan uint
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{subs: map[uint]chan string{}, subscribed: make(chan uint, 1)}
}

func (f *fakeFeed) Subscribe(_ context.Context, userID uint) (<-chan string, func() error) {
	ch := make(chan string, 4)
	f.mu.Lock()
	f.subs[userID] = ch
	f.mu.Unlock()
	f.subscribed <- userID
	return ch, func() error { return nil }
}

func (f *fakeFeed) publish(userID uint, payload string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs[userID] <- payload
}

func dialWS(t *testing.T, env *testEnv) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(env.router)
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func TestWebsocketRelaysNotifications(t *testing.T) {
	feed := newFakeFeed()
	env := newTestEnv(t, func(d *Deps) { d.Notifications = feed })
	userID, token := env.userToken(t, "Ada", "ada@example.com")

	conn := dialWS(t, env)
	if err := conn.WriteJSON(map[string]string{"type": "auth", "token": token}); err != nil {
		t.Fatalf("send auth: %v", err)
	}

	select {
	case got := <-feed.subscribed:
		if got != userID {
			t.Fatalf("subscribed for user %d, want %d", got, userID)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("handler never subscribed")
	}

	want := `{"status":"completed","resume_id":7}`
	feed.publish(userID, want)
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(msg) != want {
		t.Fatalf("got %s, want %s", msg, want)
	}
}

func TestWebsocketRejectsBadAuthFrame(t *testing.T) {
	cases := map[string]any{
		"bad token":  map[string]string{"type": "auth", "token": "not-a-jwt"},
		"wrong type": map[string]string{"type": "hello", "token": "x"},
		"not json":   "hello",
	}
	for name, frame := range cases {
		t.Run(name, func(t *testing.T) {
			feed := newFakeFeed()
			env := newTestEnv(t, func(d *Deps) { d.Notifications = feed })
			conn := dialWS(t, env)

			var err error
			if text, ok := frame.(string); ok {
				err = conn.WriteMessage(websocket.TextMessage, []byte(text))
			} else {
				err = conn.WriteJSON(frame)
			}
			if err != nil {
				t.Fatalf("send: %v", err)
			}

			_, _, err = conn.ReadMessage()
			var closeErr *websocket.CloseError
			if !errors.As(err, &closeErr) || closeErr.Code != websocket.ClosePolicyViolation || closeErr.Text != "unauthorized" {
				t.Fatalf("expected policy violation close, got %v", err)
			}
			if len(feed.subscribed) != 0 {
				t.Fatal("unauthenticated connection subscribed")
			}
		})
	}
}

func TestWebsocketOriginCheck(t *testing.T) {
	h := NewWsHandler(newFakeFeed(), nil, slog.Default(), nil)
	req := httptest.NewRequest(http.MethodGet, "http://api.example.com/api/ws", nil)

	req.Header.Set("Origin", "http://api.example.com")
	if !h.checkOrigin(req) {
		t.Fatal("same host origin rejected")
	}
	req.Header.Set("Origin", "http://evil.example.com")
	if h.checkOrigin(req) {
		t.Fatal("foreign origin accepted")
	}

	h = NewWsHandler(newFakeFeed(), nil, slog.Default(), []string{"https://app.example.com"})
	req.Header.Set("Origin", "HTTPS://APP.example.com")
	if !h.checkOrigin(req) {
		t.Fatal("listed origin rejected")
	}
}

func TestNilLoginLimiterAllows(t *testing.T) {
	var l *loginLimiter
	ok, err := l.Allow(context.Background(), "127.0.0.1", "a@example.com")
	if err != nil || !ok {
		t.Fatalf("nil limiter should allow, got %v %v", ok, err)
	}
	if newLoginLimiter(nil, 5) != nil {
		t.Fatalf("limiter without redis should be nil")
	}
}

func TestLoginLimiterKeyUsesHourWindow(t *testing.T) {
	l := &loginLimiter{now: func() time.Time { return time.Date(2024, 3, 9, 14, 59, 0, 0, time.UTC) }}
	if got := l.key("10.0.0.1", "Ada@Example.com"); got != "rate:login:10.0.0.1:ada@example.com:2024030914" {
		t.Fatalf("unexpected key %q", got)
	}
}

// TestLoginRateLimit needs a Redis server; set REDIS_ADDR to run it.
func TestLoginRateLimit(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	env := newTestEnv(t, func(d *Deps) {
		d.Redis = client
		d.LoginRateLimitPerHour = 2
	})
	email := uuid.NewString() + "@example.com"
	body := map[string]any{"email": email, "password": "wrong-password"}

	for i := 0; i < 2; i++ {
		expectMsg(t, env.do(t, http.MethodPost, "/api/auth/login", "", body), http.StatusUnauthorized, "Invalid credentials")
	}
	expectMsg(t, env.do(t, http.MethodPost, "/api/auth/login", "", body), http.StatusTooManyRequests, "Too many login attempts, try again later")
}
