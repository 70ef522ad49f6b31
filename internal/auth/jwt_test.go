// Geotrackd - Real-Time Location Tracking and Geofencing
// Copyright 2026 Geotrackd Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geotrackd/geotrackd

package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/geotrackd/geotrackd/internal/config"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestManager(t *testing.T, timeout time.Duration) *JWTManager {
	t.Helper()
	m, err := NewJWTManager(&config.SecurityConfig{
		JWTSecret:      testSecret,
		SessionTimeout: timeout,
	})
	if err != nil {
		t.Fatalf("NewJWTManager() error = %v", err)
	}
	return m
}

func TestNewJWTManagerRequiresSecret(t *testing.T) {
	_, err := NewJWTManager(&config.SecurityConfig{SessionTimeout: time.Hour})
	if err == nil {
		t.Error("NewJWTManager() with empty secret = nil error")
	}
}

func TestGenerateAndValidateToken(t *testing.T) {
	m := newTestManager(t, time.Hour)

	token, err := m.GenerateToken(42, "alice", true)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	claims, err := m.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if claims.UserID != 42 || claims.Username != "alice" || !claims.IsAdmin {
		t.Errorf("claims = %+v", claims)
	}
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	m := newTestManager(t, -time.Minute)

	token, err := m.GenerateToken(1, "bob", false)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	if _, err := m.ValidateToken(token); err == nil {
		t.Error("ValidateToken(expired) = nil error")
	}
}

func TestValidateTokenRejectsTampered(t *testing.T) {
	m := newTestManager(t, time.Hour)

	token, err := m.GenerateToken(1, "bob", false)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	parts := strings.Split(token, ".")
	tampered := parts[0] + "." + parts[1] + ".AAAA" + parts[2][4:]
	if _, err := m.ValidateToken(tampered); err == nil {
		t.Error("ValidateToken(tampered) = nil error")
	}
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	m := newTestManager(t, time.Hour)
	other, err := NewJWTManager(&config.SecurityConfig{
		JWTSecret:      "ffffffffffffffffffffffffffffffff",
		SessionTimeout: time.Hour,
	})
	if err != nil {
		t.Fatalf("NewJWTManager() error = %v", err)
	}

	token, err := other.GenerateToken(1, "bob", false)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	if _, err := m.ValidateToken(token); err == nil {
		t.Error("ValidateToken(wrong secret) = nil error")
	}
}

func TestValidateTokenRejectsNoneAlgorithm(t *testing.T) {
	m := newTestManager(t, time.Hour)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		UserID:   1,
		Username: "mallory",
		IsAdmin:  true,
	})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	if _, err := m.ValidateToken(token); err == nil {
		t.Error("ValidateToken(alg=none) = nil error")
	}
}
