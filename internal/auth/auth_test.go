package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/pahanaedu/bookstore-billing/internal/auth/config"
	"github.com/pahanaedu/bookstore-billing/internal/model"
	"github.com/pahanaedu/bookstore-billing/internal/store"
)

type fakeStore struct {
	store.Store

	staff  map[string]model.Staff
	nextID int
}

func newFakeStore() *fakeStore {
	return &fakeStore{staff: make(map[string]model.Staff), nextID: 1}
}

func (f *fakeStore) StaffRegister(_ context.Context, staff model.Staff) (int, error) {
	if _, ok := f.staff[staff.Login]; ok {
		return 0, store.ErrAlreadyExists
	}
	staff.ID = f.nextID
	f.nextID++
	f.staff[staff.Login] = staff
	return staff.ID, nil
}

func (f *fakeStore) StaffByLogin(_ context.Context, login string) (model.Staff, error) {
	staff, ok := f.staff[login]
	if !ok {
		return model.Staff{}, store.ErrNoRows
	}
	return staff, nil
}

func testAuth() (Auth, *fakeStore) {
	st := newFakeStore()
	return NewAuth(config.Config{TokenSecret: "test-secret"}, st), st
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == cookieStaffToken {
			return cookie
		}
	}
	t.Fatal("session cookie not set")
	return nil
}

func TestRegister(t *testing.T) {
	a, st := testAuth()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register",
		strings.NewReader(`{"login":"anita","password":"s3cret","role":"MANAGER"}`))
	a.Register(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	cookie := sessionCookie(t, rec)
	assert.NotEmpty(t, cookie.Value)
	assert.Equal(t, model.StaffRoleManager, st.staff["anita"].Role)

	// password is stored hashed, never plain
	assert.NoError(t, bcrypt.CompareHashAndPassword(
		[]byte(st.staff["anita"].PasswordHash), []byte("s3cret")))
}

func TestRegisterDuplicateLogin(t *testing.T) {
	a, _ := testAuth()

	for i, wantCode := range []int{http.StatusOK, http.StatusConflict} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/auth/register",
			strings.NewReader(`{"login":"anita","password":"s3cret"}`))
		a.Register(rec, req)
		require.Equal(t, wantCode, rec.Code, "attempt %d", i)
	}
}

func TestRegisterRejectsUnknownRole(t *testing.T) {
	a, _ := testAuth()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register",
		strings.NewReader(`{"login":"anita","password":"s3cret","role":"OWNER"}`))
	a.Register(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogin(t *testing.T) {
	a, _ := testAuth()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register",
		strings.NewReader(`{"login":"anita","password":"s3cret"}`))
	a.Register(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"login":"anita","password":"s3cret"}`))
	a.Login(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, sessionCookie(t, rec).Value)
}

func TestLoginWrongPassword(t *testing.T) {
	a, _ := testAuth()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register",
		strings.NewReader(`{"login":"anita","password":"s3cret"}`))
	a.Register(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"login":"anita","password":"wrong"}`))
	a.Login(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Result().Cookies())
}

func TestMiddleware(t *testing.T) {
	a, _ := testAuth()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register",
		strings.NewReader(`{"login":"anita","password":"s3cret","role":"MANAGER"}`))
	a.Register(rec, req)
	cookie := sessionCookie(t, rec)

	var gotID, gotRole string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = r.Header.Get(HeaderStaffIDKey)
		gotRole = r.Header.Get(HeaderStaffRoleKey)
	})

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/clients", nil)
	req.AddCookie(cookie)
	a.Middleware(next).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", gotID)
	assert.Equal(t, model.StaffRoleManager, gotRole)
}

func TestMiddlewareWithoutCookie(t *testing.T) {
	a, _ := testAuth()

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("request without a session must not reach the handler")
	})

	rec := httptest.NewRecorder()
	a.Middleware(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/clients", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireManager(t *testing.T) {
	a, _ := testAuth()

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/admin/loyalty", nil)
	req.Header.Set(HeaderStaffRoleKey, model.StaffRoleCashier)
	a.RequireManager(next).ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	req.Header.Set(HeaderStaffRoleKey, model.StaffRoleManager)
	a.RequireManager(next).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}
