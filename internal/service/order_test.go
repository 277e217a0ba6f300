package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optikpos/backend/internal/apperr"
	"optikpos/backend/internal/domain"
)

func createTestOrder(t *testing.T, svc *Service, items ...domain.OrderItemInput) domain.SalesOrder {
	t.Helper()
	order, err := svc.CreateOrder(context.Background(), cashierID, domain.OrderCreateRequest{Items: items})
	require.NoError(t, err)
	return order
}

func TestCreateOrderValidation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.CreateOrder(ctx, cashierID, domain.OrderCreateRequest{})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.CreateOrder(ctx, cashierID, domain.OrderCreateRequest{Items: []domain.OrderItemInput{
		{InventoryItemID: "frame-classic-52", ServiceProductID: "fitting", Quantity: 1, UnitPrice: dec("10")},
	}})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.CreateOrder(ctx, cashierID, domain.OrderCreateRequest{Items: []domain.OrderItemInput{
		{InventoryItemID: "no-such-frame", Quantity: 1, UnitPrice: dec("10")},
	}})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCreateOrderRejectsValuesBeyondColumnRange(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.CreateOrder(ctx, cashierID, domain.OrderCreateRequest{Items: []domain.OrderItemInput{
		{ServiceProductID: "eye-exam", Quantity: 3_000_000_000, UnitPrice: dec("1")},
	}})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, []string{"items[0].quantity"}, violationFields(err))

	_, err = svc.CreateOrder(ctx, cashierID, domain.OrderCreateRequest{Items: []domain.OrderItemInput{
		{ServiceProductID: "eye-exam", Quantity: domain.MaxQuantity, UnitPrice: dec("1000.00")},
	}})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, []string{"subtotal"}, violationFields(err))

	order := createTestOrder(t, svc, domain.OrderItemInput{ServiceProductID: "eye-exam", Quantity: 1, UnitPrice: dec("10")})
	qty := domain.MaxQuantity
	_, err = svc.UpdateItem(ctx, order.ID, order.Items[0].ID, cashierID, domain.OrderItemUpdateRequest{Quantity: &qty, UnitPrice: ptrDec("999.00")})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func ptrDec(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func TestItemChangesKeepTotalsConsistent(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	prescription := json.RawMessage(`{"od":{"sph":-1.25,"cyl":-0.5},"os":{"sph":-1.0}}`)

	order := createTestOrder(t, svc,
		domain.OrderItemInput{InventoryItemID: "frame-classic-52", Quantity: 1, UnitPrice: dec("45.00")},
	)
	assertTotalsConsistent(t, order)

	order, err := svc.AddItem(ctx, order.ID, cashierID, domain.OrderItemInput{
		InventoryItemID: "lens-sv-156", Quantity: 2, UnitPrice: dec("12.50"), Prescription: prescription,
	})
	require.NoError(t, err)
	require.Len(t, order.Items, 2)
	assertMoney(t, "70.00", order.Subtotal)
	assertTotalsConsistent(t, order)
	assert.JSONEq(t, string(prescription), string(order.Items[1].Prescription))

	lensLine := order.Items[1].ID
	qty := 1
	order, err = svc.UpdateItem(ctx, order.ID, lensLine, cashierID, domain.OrderItemUpdateRequest{Quantity: &qty})
	require.NoError(t, err)
	assertMoney(t, "57.50", order.Subtotal)
	assertMoney(t, "12.50", order.Items[1].LineSubtotal)
	assertTotalsConsistent(t, order)

	frameLine := order.Items[0].ID
	order, err = svc.RemoveItem(ctx, order.ID, frameLine, cashierID)
	require.NoError(t, err)
	require.Len(t, order.Items, 1)
	assertMoney(t, "12.50", order.Subtotal)
	assertTotalsConsistent(t, order)

	_, err = svc.RemoveItem(ctx, order.ID, lensLine, cashierID)
	assert.ErrorIs(t, err, apperr.ErrValidation, "the last line cannot be removed")
	assert.Equal(t, []string{"item_id"}, violationFields(err))

	_, err = svc.RemoveItem(ctx, order.ID, frameLine, cashierID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.AddItem(ctx, "so-missing", cashierID, domain.OrderItemInput{ServiceProductID: "fitting", Quantity: 1, UnitPrice: dec("5")})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	stored, err := svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assertTotalsConsistent(t, stored)
}

func TestApplyDiscountBoundary(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	order := createTestOrder(t, svc, domain.OrderItemInput{ServiceProductID: "eye-exam", Quantity: 2, UnitPrice: dec("25.00")})

	_, err := svc.ApplyDiscount(ctx, order.ID, opticianID, domain.DiscountRequest{Amount: dec("50.01")})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.ApplyDiscount(ctx, order.ID, opticianID, domain.DiscountRequest{Amount: dec("-1")})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.ApplyDiscount(ctx, order.ID, cashierID, domain.DiscountRequest{Amount: dec("5")})
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)

	discounted, err := svc.ApplyDiscount(ctx, order.ID, opticianID, domain.DiscountRequest{Amount: dec("50.00")})
	require.NoError(t, err)
	assertMoney(t, "0.00", discounted.Total)
	assertMoney(t, "0.00", discounted.BalanceDue)
	assertTotalsConsistent(t, discounted)
}

func TestItemChangeRejectedWhenDiscountWouldExceedSubtotal(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	order := createTestOrder(t, svc,
		domain.OrderItemInput{ServiceProductID: "eye-exam", Quantity: 1, UnitPrice: dec("30.00")},
		domain.OrderItemInput{ServiceProductID: "fitting", Quantity: 1, UnitPrice: dec("10.00")},
	)

	_, err := svc.ApplyDiscount(ctx, order.ID, adminID, domain.DiscountRequest{Amount: dec("35.00")})
	require.NoError(t, err)

	_, err = svc.RemoveItem(ctx, order.ID, order.Items[1].ID, cashierID)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	stored, err := svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Items, 2, "rejected change must not remove the line")
	assertMoney(t, "5.00", stored.Total)
}

func TestItemChangeRejectedWhenPaidWouldExceedTotal(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	_, err := svc.StartShift(ctx, cashierID, domain.ShiftStartRequest{OpeningFloat: dec("0")})
	require.NoError(t, err)
	order := createTestOrder(t, svc, domain.OrderItemInput{ServiceProductID: "eye-exam", Quantity: 2, UnitPrice: dec("20.00")})
	_, err = svc.RecordPayment(ctx, order.ID, cashierID, domain.PaymentRequest{Amount: dec("30.00"), Method: domain.PaymentMethodCash})
	require.NoError(t, err)

	qty := 1
	_, err = svc.UpdateItem(ctx, order.ID, order.Items[0].ID, cashierID, domain.OrderItemUpdateRequest{Quantity: &qty})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestCompleteRequiresZeroBalance(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	order := createTestOrder(t, svc, domain.OrderItemInput{InventoryItemID: "care-kit", Quantity: 1, UnitPrice: dec("8.00")})

	_, err := svc.ChangeStatus(ctx, order.ID, cashierID, domain.OrderStatusCompleted)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, 25, stockOf(t, svc, "care-kit"))
}

func TestCompletionRollsBackAllLinesOnInsufficientStock(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	order := createTestOrder(t, svc,
		domain.OrderItemInput{InventoryItemID: "frame-classic-52", Quantity: 1, UnitPrice: dec("0")},
		domain.OrderItemInput{InventoryItemID: "cl-monthly-6", Quantity: 3, UnitPrice: dec("0")},
	)

	_, err := svc.ChangeStatus(ctx, order.ID, cashierID, domain.OrderStatusCompleted)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	assert.Equal(t, 10, stockOf(t, svc, "frame-classic-52"), "first line must be rolled back")
	assert.Equal(t, 2, stockOf(t, svc, "cl-monthly-6"))
	stored, err := svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, stored.Status)

	logs, err := svc.ListAuditLogs(ctx, domain.AuditFilter{EntityType: "stock_level"})
	require.NoError(t, err)
	assert.Empty(t, logs, "audit rows roll back with the failed completion")
}

func TestOrderLifecycleTransitions(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	cancelled := createTestOrder(t, svc, domain.OrderItemInput{InventoryItemID: "care-kit", Quantity: 1, UnitPrice: dec("8.00")})
	got, err := svc.ChangeStatus(ctx, cancelled.ID, cashierID, domain.OrderStatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, got.Status)
	assert.Equal(t, 25, stockOf(t, svc, "care-kit"))

	_, err = svc.AddItem(ctx, cancelled.ID, cashierID, domain.OrderItemInput{ServiceProductID: "fitting", Quantity: 1, UnitPrice: dec("1")})
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
	_, err = svc.ChangeStatus(ctx, cancelled.ID, cashierID, domain.OrderStatusPending)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)

	_, err = svc.ChangeStatus(ctx, cancelled.ID, cashierID, domain.OrderStatusPartiallyPaid)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
	_, err = svc.ChangeStatus(ctx, cancelled.ID, cashierID, "shipped")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = svc.ChangeStatus(ctx, "so-missing", cashierID, domain.OrderStatusCancelled)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	free := createTestOrder(t, svc, domain.OrderItemInput{InventoryItemID: "care-kit", Quantity: 3, UnitPrice: dec("0")})
	_, err = svc.ChangeStatus(ctx, free.ID, cashierID, domain.OrderStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, 22, stockOf(t, svc, "care-kit"))

	_, err = svc.ChangeStatus(ctx, free.ID, cashierID, domain.OrderStatusCancelled)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
	_, err = svc.RemoveItem(ctx, free.ID, free.Items[0].ID, cashierID)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)

	reversed, err := svc.ChangeStatus(ctx, free.ID, cashierID, domain.OrderStatusAbandoned)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusAbandoned, reversed.Status)
	assert.Equal(t, 25, stockOf(t, svc, "care-kit"), "reversal restocks")

	abandoned := createTestOrder(t, svc, domain.OrderItemInput{InventoryItemID: "care-kit", Quantity: 1, UnitPrice: dec("8.00")})
	_, err = svc.ChangeStatus(ctx, abandoned.ID, cashierID, domain.OrderStatusAbandoned)
	require.NoError(t, err)
	assert.Equal(t, 25, stockOf(t, svc, "care-kit"), "abandoning an open order has no stock effect")
}
