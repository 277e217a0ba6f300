package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"optikpos/backend/internal/apperr"
	"optikpos/backend/internal/domain"
	"optikpos/backend/internal/store"
	"optikpos/backend/internal/xid"
)

func (s *Service) StartShift(ctx context.Context, userID int64, req domain.ShiftStartRequest) (domain.Shift, error) {
	if err := validateActor("user_id", userID); err != nil {
		return domain.Shift{}, err
	}
	if err := req.Validate(); err != nil {
		return domain.Shift{}, err
	}

	release, err := s.locker.Acquire(ctx, fmt.Sprintf("shift-start:%d", userID), s.lockTTL)
	if err != nil {
		return domain.Shift{}, apperr.Persistence(fmt.Errorf("acquire shift lock for user %d: %w", userID, err))
	}
	defer release()

	var shift domain.Shift
	err = s.update(ctx, "start shift", func(tx store.Tx) error {
		open, err := tx.FindOpenShift(ctx, userID)
		if err == nil {
			return apperr.New(apperr.KindShiftConflict, "user %d already has %s shift %s", userID, open.Status, open.ID)
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		now := s.now()
		shift = domain.Shift{
			ID:           xid.New("shift"),
			UserID:       userID,
			Status:       domain.ShiftStatusActive,
			OpeningFloat: req.OpeningFloat,
			StartedAt:    now,
			UpdatedAt:    now,
			Instance:     s.instance,
			BootID:       s.bootID,
		}
		if err := tx.InsertShift(ctx, shift); err != nil {
			if errors.Is(err, store.ErrConflict) {
				// Lost a race with another process; the retry re-reads and reports the conflict.
				return errors.Join(store.ErrTransient, err)
			}
			return err
		}
		return s.audit(ctx, tx, domain.AuditLog{
			EntityType:  "shift",
			RecordKey:   shift.ID,
			Field:       "status",
			NewValue:    shift.Status,
			ActorUserID: userID,
			Action:      "shift_start",
			Detail:      "opening_float=" + shift.OpeningFloat.StringFixed(2),
		})
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domain.Shift{}, apperr.Wrap(apperr.KindShiftConflict, err, "user %d already has an open shift", userID)
		}
		return domain.Shift{}, err
	}
	return shift, nil
}

func (s *Service) PauseShift(ctx context.Context, shiftID string, actingUserID int64) (domain.Shift, error) {
	return s.transitionShift(ctx, "pause shift", shiftID, actingUserID, domain.ShiftStatusPaused, nil)
}

func (s *Service) ResumeShift(ctx context.Context, shiftID string, actingUserID int64) (domain.Shift, error) {
	return s.transitionShift(ctx, "resume shift", shiftID, actingUserID, domain.ShiftStatusActive, nil)
}

// EndShift closes the shift and returns it with the cash reconciliation computed in the same unit of work.
func (s *Service) EndShift(ctx context.Context, shiftID string, actingUserID int64, req domain.ShiftEndRequest) (domain.ShiftCloseResponse, error) {
	if err := req.Validate(); err != nil {
		return domain.ShiftCloseResponse{}, err
	}

	var report domain.ShiftReport
	shift, err := s.transitionShift(ctx, "end shift", shiftID, actingUserID, domain.ShiftStatusEnded, func(tx store.Tx, shift *domain.Shift) error {
		endedAt := s.now()
		counted := req.ClosingCashCounted
		shift.EndedAt = &endedAt
		shift.ClosingCashCounted = &counted
		shift.Notes = req.Notes

		var err error
		report, err = buildShiftReport(ctx, tx, *shift)
		return err
	})
	if err != nil {
		return domain.ShiftCloseResponse{}, err
	}
	return domain.ShiftCloseResponse{Shift: shift, Report: report}, nil
}

func (s *Service) transitionShift(ctx context.Context, op string, shiftID string, actingUserID int64, to string, mutate func(store.Tx, *domain.Shift) error) (domain.Shift, error) {
	if err := requireID("shift_id", shiftID); err != nil {
		return domain.Shift{}, err
	}
	if err := validateActor("acting_user_id", actingUserID); err != nil {
		return domain.Shift{}, err
	}

	var shift domain.Shift
	err := s.update(ctx, op, func(tx store.Tx) error {
		var err error
		shift, err = tx.GetShift(ctx, shiftID)
		if err != nil {
			return notFound(err, "shift", shiftID)
		}
		if shift.UserID != actingUserID {
			return apperr.New(apperr.KindNotAuthorized, "shift %s belongs to another user", shiftID)
		}
		if !domain.CanTransitionShift(shift.Status, to) {
			return apperr.InvalidTransition("shift %s cannot move from %s to %s", shiftID, shift.Status, to)
		}

		from := shift.Status
		shift.Status = to
		shift.UpdatedAt = s.now()
		if to == domain.ShiftStatusActive {
			shift.Instance = s.instance
			shift.BootID = s.bootID
		}
		if mutate != nil {
			if err := mutate(tx, &shift); err != nil {
				return err
			}
		}
		if err := tx.UpdateShift(ctx, shift); err != nil {
			return err
		}

		entry := domain.AuditLog{
			EntityType:  "shift",
			RecordKey:   shift.ID,
			Field:       "status",
			OldValue:    from,
			NewValue:    to,
			ActorUserID: actingUserID,
			Action:      shiftAction(to),
		}
		if shift.ClosingCashCounted != nil {
			entry.Detail = "closing_cash_counted=" + shift.ClosingCashCounted.StringFixed(2)
		}
		return s.audit(ctx, tx, entry)
	})
	if err != nil {
		return domain.Shift{}, err
	}
	return shift, nil
}

func (s *Service) FindOpenShift(ctx context.Context, userID int64) (domain.Shift, error) {
	if err := validateActor("user_id", userID); err != nil {
		return domain.Shift{}, err
	}

	var shift domain.Shift
	err := s.view(ctx, "find open shift", func(tx store.Tx) error {
		var err error
		shift, err = tx.FindOpenShift(ctx, userID)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.Wrap(apperr.KindNotFound, err, "user %d has no open shift", userID)
		}
		return err
	})
	return shift, err
}

func (s *Service) GetShift(ctx context.Context, shiftID string) (domain.Shift, error) {
	var shift domain.Shift
	err := s.view(ctx, "get shift", func(tx store.Tx) error {
		var err error
		shift, err = tx.GetShift(ctx, shiftID)
		return notFound(err, "shift", shiftID)
	})
	return shift, err
}

func (s *Service) ShiftReport(ctx context.Context, shiftID string) (domain.ShiftReport, error) {
	var report domain.ShiftReport
	err := s.view(ctx, "shift report", func(tx store.Tx) error {
		shift, err := tx.GetShift(ctx, shiftID)
		if err != nil {
			return notFound(err, "shift", shiftID)
		}
		report, err = buildShiftReport(ctx, tx, shift)
		return err
	})
	return report, err
}

// InterruptActiveShifts marks Interrupted every Active shift that an earlier boot of this
// instance left behind. Shifts owned by other live instances are not touched. It runs
// once at process start.
func (s *Service) InterruptActiveShifts(ctx context.Context) (int, error) {
	var interrupted int
	err := s.update(ctx, "interrupt active shifts", func(tx store.Tx) error {
		interrupted = 0
		shifts, err := tx.ListShiftsByStatus(ctx, domain.ShiftStatusActive)
		if err != nil {
			return err
		}
		for _, shift := range shifts {
			if shift.Instance != s.instance || shift.BootID == s.bootID {
				continue
			}
			shift.Status = domain.ShiftStatusInterrupted
			shift.UpdatedAt = s.now()
			if err := tx.UpdateShift(ctx, shift); err != nil {
				return err
			}
			if err := s.audit(ctx, tx, domain.AuditLog{
				EntityType:  "shift",
				RecordKey:   shift.ID,
				Field:       "status",
				OldValue:    domain.ShiftStatusActive,
				NewValue:    domain.ShiftStatusInterrupted,
				ActorUserID: domain.SystemUserID,
				Action:      "shift_interrupted",
				Detail:      "restart of instance " + s.instance,
			}); err != nil {
				return err
			}
			interrupted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if interrupted > 0 {
		log.Printf("[service] marked %d active shift(s) of instance %s as interrupted", interrupted, s.instance)
	}
	return interrupted, nil
}

func buildShiftReport(ctx context.Context, tx store.Tx, shift domain.Shift) (domain.ShiftReport, error) {
	totals, err := tx.ShiftCashTotals(ctx, shift.ID)
	if err != nil {
		return domain.ShiftReport{}, err
	}

	expected := shift.OpeningFloat.Add(totals.CashReceived).Sub(totals.CashExpenses)
	report := domain.ShiftReport{
		ShiftID:            shift.ID,
		UserID:             shift.UserID,
		Status:             shift.Status,
		StartedAt:          shift.StartedAt,
		EndedAt:            shift.EndedAt,
		OpeningFloat:       shift.OpeningFloat,
		CashReceived:       totals.CashReceived,
		CashExpenses:       totals.CashExpenses,
		NonCashReceived:    totals.NonCashReceived,
		PaymentCount:       totals.PaymentCount,
		ExpenseCount:       totals.ExpenseCount,
		ExpectedCash:       expected,
		ClosingCashCounted: shift.ClosingCashCounted,
	}
	if shift.ClosingCashCounted != nil {
		variance := shift.ClosingCashCounted.Sub(expected)
		report.Variance = &variance
	}
	return report, nil
}

func shiftAction(to string) string {
	switch to {
	case domain.ShiftStatusPaused:
		return "shift_pause"
	case domain.ShiftStatusActive:
		return "shift_resume"
	case domain.ShiftStatusEnded:
		return "shift_end"
	default:
		return "shift_" + to
	}
}
