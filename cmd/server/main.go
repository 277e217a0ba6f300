package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"optikpos/backend/internal/config"
	"optikpos/backend/internal/httpapi"
	"optikpos/backend/internal/lock"
	"optikpos/backend/internal/service"
	"optikpos/backend/internal/store"
	"optikpos/backend/internal/store/memory"
	pgstore "optikpos/backend/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("invalid security configuration: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var repo store.Store
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres unavailable (%v) and DATABASE_URL is set; refusing to start with in-memory fallback", err)
		}
		closers = append(closers, pg.Close)
		if cfg.RunMigrations {
			if err := pg.Migrate(ctx); err != nil {
				log.Fatalf("postgres migration failed: %v", err)
			}
		}
		if err := pg.EnsureUsers(ctx, store.SeedAccounts("postgres")); err != nil {
			log.Fatalf("postgres user seeding failed: %v", err)
		}
		repo = pg
		log.Println("repository: postgres")
	} else {
		repo = memory.NewSeeded()
		log.Println("repository: in-memory")
	}

	var locker lock.Locker
	if cfg.RedisAddr != "" {
		redisLocker := lock.NewRedisLocker(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisLocker.Ping(ctx); err != nil {
			log.Printf("redis unavailable (%v), using in-process locks", err)
			_ = redisLocker.Close()
		} else {
			locker = redisLocker
			closers = append(closers, redisLocker.Close)
			log.Println("locks: redis")
		}
	} else {
		log.Println("locks: in-process")
	}

	svc := service.New(repo, locker, nil, cfg.ShiftLockTTL()).WithInstance(cfg.InstanceName)

	// Shifts this instance left open before restarting can no longer take payments until reviewed.
	interrupted, err := svc.InterruptActiveShifts(ctx)
	if err != nil {
		log.Fatalf("failed to interrupt stale shifts: %v", err)
	}
	if interrupted > 0 {
		log.Printf("interrupted %d shift(s) left active by a previous run of %s", interrupted, cfg.InstanceName)
	}

	auth := httpapi.NewAuthManager(cfg.AuthSecret, cfg.AccessTokenTTL(), svc)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      35 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("optikpos backend listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.ShiftLockTTLSeconds < 1 {
		return fmt.Errorf("SHIFT_LOCK_TTL_SECONDS must be positive")
	}
	return nil
}
