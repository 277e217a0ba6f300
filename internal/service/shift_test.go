package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optikpos/backend/internal/apperr"
	"optikpos/backend/internal/domain"
	"optikpos/backend/internal/store/memory"
)

func TestShiftStateMachine(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	shift, err := svc.StartShift(ctx, cashierID, domain.ShiftStartRequest{OpeningFloat: dec("20.00")})
	require.NoError(t, err)

	_, err = svc.ResumeShift(ctx, shift.ID, cashierID)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition, "resume from active")

	_, err = svc.PauseShift(ctx, shift.ID, opticianID)
	assert.ErrorIs(t, err, apperr.ErrNotAuthorized)

	paused, err := svc.PauseShift(ctx, shift.ID, cashierID)
	require.NoError(t, err)
	assert.Equal(t, domain.ShiftStatusPaused, paused.Status)

	_, err = svc.PauseShift(ctx, shift.ID, cashierID)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition, "pause from paused")

	open, err := svc.FindOpenShift(ctx, cashierID)
	require.NoError(t, err)
	assert.Equal(t, shift.ID, open.ID)

	resumed, err := svc.ResumeShift(ctx, shift.ID, cashierID)
	require.NoError(t, err)
	assert.Equal(t, domain.ShiftStatusActive, resumed.Status)

	_, err = svc.EndShift(ctx, shift.ID, cashierID, domain.ShiftEndRequest{ClosingCashCounted: dec("-1")})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	ended, err := svc.EndShift(ctx, shift.ID, cashierID, domain.ShiftEndRequest{ClosingCashCounted: dec("20.00")})
	require.NoError(t, err)
	assert.Equal(t, domain.ShiftStatusEnded, ended.Shift.Status)

	for name, attempt := range map[string]func() error{
		"pause":  func() error { _, err := svc.PauseShift(ctx, shift.ID, cashierID); return err },
		"resume": func() error { _, err := svc.ResumeShift(ctx, shift.ID, cashierID); return err },
		"end": func() error {
			_, err := svc.EndShift(ctx, shift.ID, cashierID, domain.ShiftEndRequest{ClosingCashCounted: dec("0")})
			return err
		},
	} {
		assert.ErrorIs(t, attempt(), apperr.ErrInvalidTransition, "%s after end", name)
	}

	_, err = svc.FindOpenShift(ctx, cashierID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.StartShift(ctx, cashierID, domain.ShiftStartRequest{OpeningFloat: dec("20.00")})
	assert.NoError(t, err, "a new shift may start after the previous one ended")
}

func TestEndShiftFromPaused(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	shift, err := svc.StartShift(ctx, cashierID, domain.ShiftStartRequest{OpeningFloat: dec("20.00")})
	require.NoError(t, err)
	_, err = svc.PauseShift(ctx, shift.ID, cashierID)
	require.NoError(t, err)

	closed, err := svc.EndShift(ctx, shift.ID, cashierID, domain.ShiftEndRequest{ClosingCashCounted: dec("18.50")})
	require.NoError(t, err)
	require.NotNil(t, closed.Report.Variance)
	assertMoney(t, "-1.50", *closed.Report.Variance)
}

func TestShiftTransitionsOnUnknownShift(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.PauseShift(context.Background(), "shift-missing", cashierID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.ShiftReport(context.Background(), "shift-missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestInterruptActiveShiftsLeavesOtherInstancesAlone(t *testing.T) {
	st := memory.NewSeeded()
	ctx := context.Background()
	first := New(st, nil, nil, 0).WithInstance("pos-a")
	second := New(st, nil, nil, 0).WithInstance("pos-b")

	shift, err := first.StartShift(ctx, cashierID, domain.ShiftStartRequest{OpeningFloat: dec("20")})
	require.NoError(t, err)

	n, err := second.InterruptActiveShifts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = first.InterruptActiveShifts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "a running instance never interrupts its own live shifts")

	order := createTestOrder(t, first, domain.OrderItemInput{ServiceProductID: "eye-exam", Quantity: 1, UnitPrice: dec("15.00")})
	paid, err := first.RecordPayment(ctx, order.ID, cashierID, domain.PaymentRequest{Amount: dec("15.00"), Method: domain.PaymentMethodCash})
	require.NoError(t, err)
	assert.Equal(t, shift.ID, paid.Payment.ShiftID)

	restarted := New(st, nil, nil, 0).WithInstance("pos-a")
	n, err = restarted.InterruptActiveShifts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := second.GetShift(ctx, shift.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ShiftStatusInterrupted, got.Status)
	assert.Equal(t, "pos-a", got.Instance)

	resumed, err := second.ResumeShift(ctx, shift.ID, cashierID)
	require.NoError(t, err)
	assert.Equal(t, "pos-b", resumed.Instance, "resuming hands the shift to the serving instance")

	n, err = New(st, nil, nil, 0).WithInstance("pos-a").InterruptActiveShifts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestInterruptActiveShifts(t *testing.T) {
	before, st := newTestService()
	ctx := context.Background()

	active, err := before.StartShift(ctx, cashierID, domain.ShiftStartRequest{OpeningFloat: dec("10")})
	require.NoError(t, err)
	paused, err := before.StartShift(ctx, opticianID, domain.ShiftStartRequest{OpeningFloat: dec("10")})
	require.NoError(t, err)
	_, err = before.PauseShift(ctx, paused.ID, opticianID)
	require.NoError(t, err)

	svc := New(st, nil, nil, 0)
	n, err := svc.InterruptActiveShifts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := svc.GetShift(ctx, active.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ShiftStatusInterrupted, got.Status)

	got, err = svc.GetShift(ctx, paused.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ShiftStatusPaused, got.Status)

	_, err = svc.StartShift(ctx, cashierID, domain.ShiftStartRequest{OpeningFloat: dec("10")})
	assert.ErrorIs(t, err, apperr.ErrShiftConflict, "interrupted shift still holds the drawer")

	_, err = svc.RecordExpense(ctx, cashierID, domain.ExpenseRequest{Amount: dec("5"), Category: "supplies"})
	assert.ErrorIs(t, err, apperr.ErrNoActiveShift)

	resumed, err := svc.ResumeShift(ctx, active.ID, cashierID)
	require.NoError(t, err)
	assert.Equal(t, domain.ShiftStatusActive, resumed.Status)

	logs, err := svc.ListAuditLogs(ctx, domain.AuditFilter{RecordKey: active.ID})
	require.NoError(t, err)
	var systemEntries int
	for _, entry := range logs {
		if entry.Action == "shift_interrupted" {
			systemEntries++
			assert.Equal(t, domain.SystemUserID, entry.ActorUserID)
		}
	}
	assert.Equal(t, 1, systemEntries)
}

func TestShiftReportReconcilesCashAndExpenses(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	shift, err := svc.StartShift(ctx, cashierID, domain.ShiftStartRequest{OpeningFloat: dec("100.00")})
	require.NoError(t, err)

	order, err := svc.CreateOrder(ctx, cashierID, domain.OrderCreateRequest{Items: []domain.OrderItemInput{
		{ServiceProductID: "eye-exam", Quantity: 1, UnitPrice: dec("80.00")},
	}})
	require.NoError(t, err)
	_, err = svc.RecordPayment(ctx, order.ID, cashierID, domain.PaymentRequest{Amount: dec("50.00"), Method: domain.PaymentMethodCash})
	require.NoError(t, err)
	_, err = svc.RecordPayment(ctx, order.ID, cashierID, domain.PaymentRequest{
		Amount: dec("30.00"), Method: domain.PaymentMethodBank, BankRef: "BCA", TransactionID: "TRX-1",
	})
	require.NoError(t, err)

	expense, err := svc.RecordExpense(ctx, cashierID, domain.ExpenseRequest{Amount: dec("20.00"), Category: "courier", Description: "lens lab pickup"})
	require.NoError(t, err)
	assert.Equal(t, shift.ID, expense.ShiftID)

	_, err = svc.RecordExpense(ctx, cashierID, domain.ExpenseRequest{Amount: dec("0"), Category: ""})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	report, err := svc.ShiftReport(ctx, shift.ID)
	require.NoError(t, err)
	assertMoney(t, "50.00", report.CashReceived)
	assertMoney(t, "30.00", report.NonCashReceived)
	assertMoney(t, "20.00", report.CashExpenses)
	assertMoney(t, "130.00", report.ExpectedCash)
	assert.Equal(t, 2, report.PaymentCount)
	assert.Equal(t, 1, report.ExpenseCount)
	assert.Nil(t, report.Variance, "no variance before the shift is counted")

	expenses, err := svc.ListShiftExpenses(ctx, shift.ID)
	require.NoError(t, err)
	require.Len(t, expenses, 1)

	closed, err := svc.EndShift(ctx, shift.ID, cashierID, domain.ShiftEndRequest{ClosingCashCounted: dec("125.00")})
	require.NoError(t, err)
	require.NotNil(t, closed.Report.Variance)
	assertMoney(t, "-5.00", *closed.Report.Variance)
}
