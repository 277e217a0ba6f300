package service

import (
	"context"
	"errors"
	"strings"

	"optikpos/backend/internal/apperr"
	"optikpos/backend/internal/domain"
	"optikpos/backend/internal/store"
	"optikpos/backend/internal/xid"
)

// RecordExpense takes cash out of the drawer of the user's Active shift.
func (s *Service) RecordExpense(ctx context.Context, userID int64, req domain.ExpenseRequest) (domain.Expense, error) {
	if err := validateActor("user_id", userID); err != nil {
		return domain.Expense{}, err
	}
	if err := req.Validate(); err != nil {
		return domain.Expense{}, err
	}

	var expense domain.Expense
	err := s.update(ctx, "record expense", func(tx store.Tx) error {
		shift, err := tx.FindOpenShift(ctx, userID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if err != nil || shift.Status != domain.ShiftStatusActive {
			return apperr.New(apperr.KindNoActiveShift, "user %d has no active shift for an expense", userID)
		}

		expense = domain.Expense{
			ID:          xid.New("exp"),
			ShiftID:     shift.ID,
			UserID:      userID,
			Amount:      req.Amount,
			Category:    strings.TrimSpace(req.Category),
			Description: strings.TrimSpace(req.Description),
			SpentAt:     s.now(),
		}
		if err := tx.InsertExpense(ctx, expense); err != nil {
			return err
		}
		return s.audit(ctx, tx, domain.AuditLog{
			EntityType:  "expense",
			RecordKey:   expense.ID,
			Field:       "amount",
			NewValue:    expense.Amount.StringFixed(2),
			ActorUserID: userID,
			Action:      "expense_record",
			Detail:      joinDetail("shift="+shift.ID, "category="+expense.Category),
		})
	})
	if err != nil {
		return domain.Expense{}, err
	}
	return expense, nil
}

func (s *Service) ListShiftExpenses(ctx context.Context, shiftID string) ([]domain.Expense, error) {
	var expenses []domain.Expense
	err := s.view(ctx, "list shift expenses", func(tx store.Tx) error {
		if _, err := tx.GetShift(ctx, shiftID); err != nil {
			return notFound(err, "shift", shiftID)
		}
		var err error
		expenses, err = tx.ListExpensesByShift(ctx, shiftID)
		return err
	})
	return expenses, err
}
