package store

import (
	"log"
	"os"
	"time"

	"golang.org/x/crypto/bcrypt"

	"optikpos/backend/internal/domain"
)

// SeedAccounts builds the initial user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD
// environment variables. If unset, hardcoded dev defaults are used with a
// warning tagged with component.
func SeedAccounts(component string) []domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Printf("[%s] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override.", component)
	}

	now := time.Now().UTC()
	accounts := make([]domain.UserAccount, 0, 3)
	for _, u := range []struct {
		id          int64
		username    string
		password    string
		role        string
		canDiscount bool
	}{
		{1, "admin", adminPwd, domain.RoleAdmin, true},
		{7, "cashier", cashierPwd, domain.RoleCashier, false},
		{8, "optician", cashierPwd, domain.RoleCashier, true},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[%s] failed to hash seed password for %s: %v", component, u.username, err)
		}
		accounts = append(accounts, domain.UserAccount{
			ID:          u.id,
			Username:    u.username,
			Password:    string(hash),
			Role:        u.role,
			CanDiscount: u.canDiscount,
			Active:      true,
			CreatedAt:   now,
		})
	}
	return accounts
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
