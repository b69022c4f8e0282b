// Package auth handles staff registration, login and the session
// middleware guarding the API.
package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"golang.org/x/crypto/bcrypt"

	"github.com/pahanaedu/bookstore-billing/internal/auth/config"
	"github.com/pahanaedu/bookstore-billing/internal/model"
	"github.com/pahanaedu/bookstore-billing/internal/store"
	"github.com/pahanaedu/bookstore-billing/internal/token"
)

type Auth interface {
	Register(w http.ResponseWriter, r *http.Request)
	Login(w http.ResponseWriter, r *http.Request)
	Middleware(next http.Handler) http.Handler
	RequireManager(next http.Handler) http.Handler
}

const (
	HeaderStaffIDKey   = "X-Staff-Id"
	HeaderStaffRoleKey = "X-Staff-Role"
	cookieStaffToken   = "billingStaffToken"
)

type auth struct {
	cfg   config.Config
	store store.Store
}

func NewAuth(cfg config.Config, store store.Store) Auth {
	return &auth{cfg: cfg, store: store}
}

type credentialsJSON struct {
	Login    string `json:"login"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

func (a *auth) Register(w http.ResponseWriter, r *http.Request) {
	var creds credentialsJSON
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if creds.Login == "" || creds.Password == "" {
		http.Error(w, "login and password required", http.StatusBadRequest)
		return
	}
	role := creds.Role
	if role == "" {
		role = model.StaffRoleCashier
	}
	if role != model.StaffRoleCashier && role != model.StaffRoleManager {
		http.Error(w, "unknown role", http.StatusBadRequest)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	staffID, err := a.store.StaffRegister(r.Context(), model.Staff{
		Login:        creds.Login,
		PasswordHash: string(hash),
		Role:         role,
	})
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if err := a.setSessionCookie(w, staffID, role); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (a *auth) Login(w http.ResponseWriter, r *http.Request) {
	var creds credentialsJSON
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	staff, err := a.store.StaffByLogin(r.Context(), creds.Login)
	if err != nil {
		if errors.Is(err, store.ErrNoRows) {
			http.Error(w, "wrong login or password", http.StatusUnauthorized)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(staff.PasswordHash), []byte(creds.Password)) != nil {
		http.Error(w, "wrong login or password", http.StatusUnauthorized)
		return
	}

	if err := a.setSessionCookie(w, staff.ID, staff.Role); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (a *auth) setSessionCookie(w http.ResponseWriter, staffID int, role string) error {
	tokenString, err := token.Build(a.cfg.TokenSecret, staffID, role)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cookieStaffToken,
		Value:    tokenString,
		Path:     "/",
		HttpOnly: true,
	})
	return nil
}

// Middleware resolves the staff session and passes the identity on via
// request headers, the way downstream handlers expect it.
func (a *auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenCookie, err := r.Cookie(cookieStaffToken)
		if err != nil {
			http.Error(w, "authorization required", http.StatusUnauthorized)
			return
		}
		claims, err := token.Parse(a.cfg.TokenSecret, tokenCookie.Value)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}

		r.Header.Set(HeaderStaffIDKey, strconv.Itoa(claims.StaffID))
		r.Header.Set(HeaderStaffRoleKey, claims.Role)

		next.ServeHTTP(w, r)
	})
}

// RequireManager guards the admin surface; loyalty policy changes are a
// manager action.
func (a *auth) RequireManager(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(HeaderStaffRoleKey) != model.StaffRoleManager {
			http.Error(w, "manager role required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
