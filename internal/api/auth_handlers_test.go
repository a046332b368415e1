package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func signupBody(email, password string) map[string]string {
	return map[string]string{
		"displayName": "Dana",
		"email":       email,
		"password":    password,
	}
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == "reelvault_session" {
			return cookie
		}
	}
	t.Fatal("no reelvault_session cookie in response")
	return nil
}

func TestSignupSetsSessionCookie(t *testing.T) {
	f := newFixture(t)
	req := jsonRequest(http.MethodPost, "/api/auth/signup", signupBody("dana@example.com", "correct horse battery"))
	rec := httptest.NewRecorder()
	f.handler.Signup(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp authResponse
	decodeBody(t, rec, &resp)
	if resp.User.Email != "dana@example.com" {
		t.Fatalf("email = %q", resp.User.Email)
	}
	if resp.ExpiresAt == "" {
		t.Fatal("expiresAt missing")
	}
	cookie := sessionCookie(t, rec)
	if !cookie.HttpOnly {
		t.Fatal("session cookie must be HttpOnly")
	}
	if cookie.Value == "" {
		t.Fatal("session cookie has no token")
	}
}

func TestSignupRejectsShortPassword(t *testing.T) {
	f := newFixture(t)
	req := jsonRequest(http.MethodPost, "/api/auth/signup", signupBody("dana@example.com", "short"))
	rec := httptest.NewRecorder()
	f.handler.Signup(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "at least 8 characters") {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "dana@example.com")

	req := jsonRequest(http.MethodPost, "/api/auth/login", map[string]string{
		"email":    "dana@example.com",
		"password": "not the password",
	})
	rec := httptest.NewRecorder()
	f.handler.Login(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "invalid credentials") {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestSessionRoundTrip(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "dana@example.com")

	loginReq := jsonRequest(http.MethodPost, "/api/auth/login", map[string]string{
		"email":    "dana@example.com",
		"password": "correct horse battery",
	})
	loginRec := httptest.NewRecorder()
	f.handler.Login(loginRec, loginReq)
	if loginRec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", loginRec.Code, loginRec.Body.String())
	}
	cookie := sessionCookie(t, loginRec)

	sessionReq := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	sessionReq.AddCookie(cookie)
	sessionRec := httptest.NewRecorder()
	f.handler.Session(sessionRec, sessionReq)
	if sessionRec.Code != http.StatusOK {
		t.Fatalf("session status = %d, body %s", sessionRec.Code, sessionRec.Body.String())
	}
	var resp struct {
		User userResponse `json:"user"`
	}
	decodeBody(t, sessionRec, &resp)
	if resp.User.Email != "dana@example.com" {
		t.Fatalf("session user = %q", resp.User.Email)
	}

	logoutReq := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	logoutReq.AddCookie(cookie)
	logoutRec := httptest.NewRecorder()
	f.handler.Logout(logoutRec, logoutReq)
	if logoutRec.Code != http.StatusNoContent {
		t.Fatalf("logout status = %d", logoutRec.Code)
	}

	afterReq := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	afterReq.AddCookie(cookie)
	afterRec := httptest.NewRecorder()
	f.handler.Session(afterRec, afterReq)
	if afterRec.Code != http.StatusUnauthorized {
		t.Fatalf("session after logout = %d", afterRec.Code)
	}
}
