package main

import (
	"testing"

	"optikpos/backend/internal/config"
)

func TestValidateSecurityConfigRejectsShortSecret(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: "short", ShiftLockTTLSeconds: 10})
	if err == nil {
		t.Fatalf("expected short auth secret to be rejected")
	}
}

func TestValidateSecurityConfigRejectsNonPositiveLockTTL(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: "0123456789abcdef0123456789abcdef", ShiftLockTTLSeconds: 0})
	if err == nil {
		t.Fatalf("expected zero lock ttl to be rejected")
	}
}

func TestValidateSecurityConfigAcceptsStrongValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: "0123456789abcdef0123456789abcdef", ShiftLockTTLSeconds: 10})
	if err != nil {
		t.Fatalf("expected strong config to pass, got %v", err)
	}
}
