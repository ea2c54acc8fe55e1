package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/garnizeh/fieldops/api"
	"github.com/garnizeh/fieldops/internal/config"
	"github.com/garnizeh/fieldops/internal/db"
	"github.com/garnizeh/fieldops/internal/db/dbtest"
	"github.com/garnizeh/fieldops/internal/models"
	"github.com/garnizeh/fieldops/internal/repository/sqlite"
)

const testPassword = "password123"

type testServer struct {
	t    *testing.T
	srv  *httptest.Server
	repo *sqlite.SQLiteRepo
	db   *db.DB
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	api.SetLogger(slog.New(slog.DiscardHandler))

	d := dbtest.Open(t)
	cfg := &config.Config{
		JWTSecret:            "testsecret",
		TokenDuration:        time.Hour,
		RefreshTokenDuration: 24 * time.Hour,
		Pagination:           config.PaginationConfig{DefaultPageSize: 10, MaxPageSize: 100},
	}
	srv := httptest.NewServer(api.SetupRoutes(cfg, "test", "now", d))
	t.Cleanup(srv.Close)

	return &testServer{t: t, srv: srv, repo: sqlite.New(d, nil), db: d}
}

// user stores an active user whose password is testPassword.
func (s *testServer) user(name string, role models.Role) *models.User {
	s.t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		s.t.Fatalf("hash: %v", err)
	}
	u := &models.User{Username: name, Email: name + "@example.com", PasswordHash: string(hash), Role: role, IsActive: true}
	id, err := s.repo.CreateUser(context.Background(), u)
	if err != nil {
		s.t.Fatalf("create user %s: %v", name, err)
	}
	u.ID = id
	return u
}

func (s *testServer) login(name string) string {
	s.t.Helper()
	return s.loginWith(name, testPassword)
}

// loginWith returns an access token for name signed in with password.
func (s *testServer) loginWith(name, password string) string {
	s.t.Helper()
	res, body := s.do(http.MethodPost, "/login", "", map[string]string{"username": name, "password": password})
	if res.StatusCode != http.StatusOK {
		s.t.Fatalf("login %s: status %d body %s", name, res.StatusCode, body)
	}
	var pair struct {
		Access string `json:"access"`
	}
	if err := json.Unmarshal(body, &pair); err != nil {
		s.t.Fatalf("decode login: %v", err)
	}
	return pair.Access
}

func (s *testServer) job(by, tech *models.User, title string, at time.Time) *models.Job {
	s.t.Helper()
	id, err := s.repo.CreateJob(context.Background(), &models.Job{
		Title: title, ClientName: "ACME", CreatedBy: by.ID, AssignedTo: tech.ID,
		Status: models.JobPending, Priority: models.PriorityMedium, ScheduledDate: at,
	})
	if err != nil {
		s.t.Fatalf("create job: %v", err)
	}
	j, err := s.repo.GetJob(context.Background(), id)
	if err != nil || j == nil {
		s.t.Fatalf("get job %d: %v", id, err)
	}
	return j
}

func (s *testServer) task(j *models.Job, title string, status models.TaskStatus) *models.JobTask {
	s.t.Helper()
	id, err := s.repo.CreateTask(context.Background(), &models.JobTask{JobID: j.ID, Title: title, Status: status, Order: 1}, nil)
	if err != nil {
		s.t.Fatalf("create task: %v", err)
	}
	tk, err := s.repo.GetTask(context.Background(), id)
	if err != nil || tk == nil {
		s.t.Fatalf("get task %d: %v", id, err)
	}
	return tk
}

// do sends body (marshalled unless it is already a string) and returns the
// response with its body read.
func (s *testServer) do(method, path, token string, body any) (*http.Response, []byte) {
	s.t.Helper()

	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rdr = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			s.t.Fatalf("marshal: %v", err)
		}
		rdr = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, s.srv.URL+path, rdr)
	if err != nil {
		s.t.Fatalf("new request: %v", err)
	}
	if rdr != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		s.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer res.Body.Close()

	out, err := io.ReadAll(res.Body)
	if err != nil {
		s.t.Fatalf("read body: %v", err)
	}
	return res, out
}

func decode[T any](t *testing.T, b []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		t.Fatalf("decode %s: %v", b, err)
	}
	return v
}
