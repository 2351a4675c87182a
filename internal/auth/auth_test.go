/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func newTestService(t *testing.T, password string) *Service {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return NewService("test-signing-key", string(hash), time.Hour)
}

func TestLoginAndParse(t *testing.T) {
	s := newTestService(t, "hunter2")

	token, err := s.Login("hunter2")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	subject, err := s.Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if subject != "admin" {
		t.Fatalf("subject = %q, want admin", subject)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	s := newTestService(t, "hunter2")
	if _, err := s.Login("wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestParseRejectsForeignToken(t *testing.T) {
	s := newTestService(t, "hunter2")
	other := NewService("other-key", s.passwordHash, time.Hour)

	token, err := other.Login("hunter2")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := s.Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("token signed with another key must fail, got %v", err)
	}
}

func TestMiddlewareRequiresToken(t *testing.T) {
	s := newTestService(t, "hunter2")
	handler := s.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token should be 401, got %d", rec.Code)
	}

	token, err := s.Login("hunter2")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid token should pass, got %d", rec.Code)
	}
}

func TestMiddlewareDisabledAuthPassesThrough(t *testing.T) {
	s := NewService("key", "", time.Hour)
	handler := s.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("disabled auth should pass requests, got %d", rec.Code)
	}
}
