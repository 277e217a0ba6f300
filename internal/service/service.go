package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"optikpos/backend/internal/apperr"
	"optikpos/backend/internal/domain"
	"optikpos/backend/internal/lock"
	"optikpos/backend/internal/store"
	"optikpos/backend/internal/xid"
)

// Permissions answers authorization questions the ledger cannot decide on its own.
type Permissions interface {
	CanApplyDiscount(ctx context.Context, userID int64) (bool, error)
}

// StorePermissions grants discounts to admins and to users flagged with CanDiscount.
type StorePermissions struct {
	store store.Store
}

func NewStorePermissions(st store.Store) StorePermissions {
	return StorePermissions{store: st}
}

func (p StorePermissions) CanApplyDiscount(ctx context.Context, userID int64) (bool, error) {
	var allowed bool
	err := p.store.View(ctx, func(tx store.Tx) error {
		user, err := tx.GetUserByID(ctx, userID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		allowed = user.Active && (user.Role == domain.RoleAdmin || user.CanDiscount)
		return nil
	})
	return allowed, err
}

const defaultLockTTL = 10 * time.Second

type Service struct {
	store   store.Store
	locker  lock.Locker
	perms   Permissions
	lockTTL time.Duration
	now     func() time.Time

	instance string
	bootID   string
}

// New wires the ledger. A nil locker falls back to an in-process lock and nil
// permissions fall back to the user records in st.
func New(st store.Store, locker lock.Locker, perms Permissions, lockTTL time.Duration) *Service {
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	if perms == nil {
		perms = NewStorePermissions(st)
	}
	if lockTTL <= 0 {
		lockTTL = defaultLockTTL
	}

	return &Service{
		store:   st,
		locker:  locker,
		perms:   perms,
		lockTTL: lockTTL,
		now:     func() time.Time { return time.Now().UTC() },

		instance: defaultInstance,
		bootID:   xid.New("boot"),
	}
}

const defaultInstance = "local"

// WithInstance names the process for shift ownership. Restarts must reuse the name so
// InterruptActiveShifts can find the shifts their previous boot left Active.
func (s *Service) WithInstance(name string) *Service {
	if name = strings.TrimSpace(name); name != "" {
		s.instance = name
	}
	return s
}

// update runs fn as one unit of work, retrying once after a transient store conflict.
// fn must assign its results afresh on every call.
func (s *Service) update(ctx context.Context, op string, fn func(store.Tx) error) error {
	err := s.store.Update(ctx, fn)
	if err != nil && errors.Is(err, store.ErrTransient) {
		log.Printf("[service] retrying %s after transient conflict: %v", op, err)
		err = s.store.Update(ctx, fn)
	}
	return translate(op, err)
}

func (s *Service) view(ctx context.Context, op string, fn func(store.Tx) error) error {
	return translate(op, s.store.View(ctx, fn))
}

// translate maps store failures onto the error kinds callers see. Errors that already
// carry a kind pass through untouched.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		return apperr.Wrap(apperr.KindNotFound, err, "%s: record not found", op)
	case errors.Is(err, store.ErrInsufficientStock):
		return apperr.Wrap(apperr.KindValidation, err, "%s: quantity on hand would become negative", op)
	case errors.Is(err, store.ErrOutOfRange):
		return apperr.Wrap(apperr.KindValidation, err, "%s: value exceeds the storable range", op)
	}
	log.Printf("[service] %s failed: %v", op, err)
	return apperr.Persistence(fmt.Errorf("%s: %w", op, err))
}

// notFound turns a store miss into a NotFound naming the entity; other errors pass through.
func notFound(err error, entity string, id string) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperr.Wrap(apperr.KindNotFound, err, "%s %s not found", entity, id)
	}
	return err
}

// audit appends entry inside tx so it commits or rolls back with the change it documents.
func (s *Service) audit(ctx context.Context, tx store.Tx, entry domain.AuditLog) error {
	entry.ID = xid.New("audit")
	entry.CreatedAt = s.now()
	if err := tx.AppendAudit(ctx, entry); err != nil {
		log.Printf("[audit] failed to write audit log action=%s entity=%s/%s: %v", entry.Action, entry.EntityType, entry.RecordKey, err)
		return err
	}
	return nil
}

func validateActor(field string, userID int64) error {
	var v domain.Validator
	v.Check(userID > 0, field, "must be a positive user id")
	return v.Err("invalid actor")
}

func requireID(field string, id string) error {
	var v domain.Validator
	v.Check(strings.TrimSpace(id) != "", field, "is required")
	return v.Err("invalid identifier")
}

// FindUserByUsername backs credential checks at the HTTP edge.
func (s *Service) FindUserByUsername(ctx context.Context, username string) (domain.UserAccount, error) {
	var user domain.UserAccount
	err := s.view(ctx, "find user", func(tx store.Tx) error {
		var err error
		user, err = tx.GetUserByUsername(ctx, username)
		return notFound(err, "user", username)
	})
	return user, err
}

func (s *Service) ListAuditLogs(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditLog, error) {
	var v domain.Validator
	v.Check(filter.From.IsZero() || filter.To.IsZero() || filter.From.Before(filter.To), "from", "must be before to")
	if err := v.Err("invalid audit filter"); err != nil {
		return nil, err
	}
	if filter.Limit < 1 {
		filter.Limit = 100
	}
	if filter.Limit > 1000 {
		filter.Limit = 1000
	}

	var logs []domain.AuditLog
	err := s.view(ctx, "list audit logs", func(tx store.Tx) error {
		var err error
		logs, err = tx.ListAuditLogs(ctx, filter)
		return err
	})
	return logs, err
}
