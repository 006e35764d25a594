package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	app "github.com/earnhub/platform/internal/app"
	"github.com/earnhub/platform/internal/app/domain/user"
	"github.com/earnhub/platform/internal/app/storage/memory"
	"github.com/earnhub/platform/internal/config"
	"github.com/earnhub/platform/internal/middleware"
)

const testSecret = "router-test-secret"

func newTestRouter(t *testing.T) (http.Handler, *memory.Store) {
	t.Helper()
	router, _, store := newTestRouterOpts(t, RouterOptions{})
	return router, store
}

func newTestRouterOpts(t *testing.T, opts RouterOptions) (http.Handler, *app.Application, *memory.Store) {
	t.Helper()

	store := memory.New()
	cfg := &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:  testSecret,
			TokenTTL:   time.Hour,
			Issuer:     "test",
			BcryptCost: bcrypt.MinCost,
		},
	}
	application, err := app.New(cfg, app.Stores{
		Users:         store,
		Tasks:         store,
		Wallet:        store,
		Referrals:     store,
		Lottery:       store,
		Market:        store,
		Plans:         store,
		Courses:       store,
		Feed:          store,
		Notifications: store,
	}, app.Options{}, nil)
	if err != nil {
		t.Fatalf("build application: %v", err)
	}

	auth := middleware.NewAuthMiddleware([]byte(testSecret), nil, PublicPaths)
	return NewRouter(application, auth, nil, nil, opts, nil), application, store
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("encode payload: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func tokenFor(t *testing.T, u user.User) string {
	t.Helper()
	token, err := middleware.NewToken([]byte(testSecret), u.ID, u.Email, string(u.Role), "test", time.Hour)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestHealth(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRegisterLoginMe(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    "alice@example.com",
		"password": "s3cret-pass",
		"name":     "Alice",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "s3cret-pass",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var login struct {
		Token string    `json:"token"`
		User  user.User `json:"user"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &login); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	if login.Token == "" {
		t.Fatalf("login returned no token")
	}

	rec = doJSON(t, router, http.MethodGet, "/api/me", login.Token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("me: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var me struct {
		User user.User `json:"user"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &me); err != nil {
		t.Fatalf("decode me: %v", err)
	}
	if me.User.Email != "alice@example.com" {
		t.Fatalf("unexpected profile: %+v", me.User)
	}
	if me.User.PasswordHash != "" {
		t.Fatalf("password hash leaked in response")
	}
}

func TestAuthRequired(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/me", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
	rec = doJSON(t, router, http.MethodGet, "/api/me", "not-a-token", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", rec.Code)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    "bob@example.com",
		"password": "right-password",
		"name":     "Bob",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: %d", rec.Code)
	}
	rec = doJSON(t, router, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "bob@example.com",
		"password": "wrong-password",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestUnknownTaskIs404(t *testing.T) {
	router, store := newTestRouter(t)

	u, err := store.CreateUser(context.Background(), user.User{
		Email: "c@example.com", Name: "C", ReferralCode: "C1",
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	rec := doJSON(t, router, http.MethodGet, "/api/tasks/00000000-0000-0000-0000-000000000000", tokenFor(t, u), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAdminAccessControl(t *testing.T) {
	router, store := newTestRouter(t)
	ctx := context.Background()

	member, err := store.CreateUser(ctx, user.User{
		Email: "member@example.com", Name: "Member", Role: user.RoleUser, ReferralCode: "M1",
	})
	if err != nil {
		t.Fatalf("create member: %v", err)
	}
	admin, err := store.CreateUser(ctx, user.User{
		Email: "admin@example.com", Name: "Admin", Role: user.RoleAdmin, ReferralCode: "A1",
	})
	if err != nil {
		t.Fatalf("create admin: %v", err)
	}

	rec := doJSON(t, router, http.MethodGet, "/api/admin/users", tokenFor(t, member), nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for member, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/admin/users", tokenFor(t, admin), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d: %s", rec.Code, rec.Body.String())
	}

	// Admin traffic lands in the audit trail.
	rec = doJSON(t, router, http.MethodGet, "/api/admin/audit", tokenFor(t, admin), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("audit: expected 200, got %d", rec.Code)
	}
	var entries []auditEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode audit: %v", err)
	}
	if len(entries) == 0 {
		t.Fatalf("audit trail empty after admin request")
	}
	// The denied member request and the successful admin request both appear.
	var sawDenied, sawAllowed bool
	for _, e := range entries {
		if e.Path != "/api/admin/users" {
			continue
		}
		if e.User == member.ID && e.Status == http.StatusForbidden {
			sawDenied = true
		}
		if e.User == admin.ID && e.Status == http.StatusOK {
			sawAllowed = true
		}
	}
	if !sawDenied || !sawAllowed {
		t.Fatalf("audit trail incomplete: %+v", entries)
	}
}

func TestAdminBalanceAdjustment(t *testing.T) {
	router, store := newTestRouter(t)
	ctx := context.Background()

	admin, err := store.CreateUser(ctx, user.User{
		Email: "admin@example.com", Name: "Admin", Role: user.RoleAdmin, ReferralCode: "A1",
	})
	if err != nil {
		t.Fatalf("create admin: %v", err)
	}
	member, err := store.CreateUser(ctx, user.User{
		Email: "member@example.com", Name: "Member", ReferralCode: "M1",
	})
	if err != nil {
		t.Fatalf("create member: %v", err)
	}

	rec := doJSON(t, router, http.MethodPost, "/api/admin/users/"+member.ID+"/balance", tokenFor(t, admin),
		map[string]interface{}{"delta": 500, "reason": "signup bonus"})
	if rec.Code != http.StatusOK {
		t.Fatalf("adjust: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	got, _ := store.GetUser(ctx, member.ID)
	if got.PointsBalance != 500 {
		t.Fatalf("balance not adjusted: %d", got.PointsBalance)
	}
}

func TestCreatePostAndLike(t *testing.T) {
	router, store := newTestRouter(t)
	ctx := context.Background()

	author, err := store.CreateUser(ctx, user.User{
		Email: "author@example.com", Name: "Author", ReferralCode: "AU1",
	})
	if err != nil {
		t.Fatalf("create author: %v", err)
	}
	reader, err := store.CreateUser(ctx, user.User{
		Email: "reader@example.com", Name: "Reader", ReferralCode: "RD1",
	})
	if err != nil {
		t.Fatalf("create reader: %v", err)
	}

	rec := doJSON(t, router, http.MethodPost, "/api/feed", tokenFor(t, author),
		map[string]string{"body": "first post"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("post: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var post struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &post); err != nil {
		t.Fatalf("decode post: %v", err)
	}

	rec = doJSON(t, router, http.MethodPost, "/api/feed/"+post.ID+"/like", tokenFor(t, reader), nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("like: expected 204, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, router, http.MethodPost, "/api/feed/"+post.ID+"/like", tokenFor(t, reader), nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("double like: expected 409, got %d", rec.Code)
	}
}
