package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optikpos/backend/internal/apperr"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestRecomputeTotalsIsIdempotent(t *testing.T) {
	order := SalesOrder{
		Discount:   dec("5.00"),
		AmountPaid: dec("20.00"),
		Items: []SalesOrderItem{
			{Quantity: 2, UnitPrice: dec("25.00")},
			{Quantity: 1, UnitPrice: dec("12.50")},
		},
	}

	RecomputeTotals(&order)
	first := order
	RecomputeTotals(&order)

	assert.True(t, dec("62.50").Equal(order.Subtotal))
	assert.True(t, dec("57.50").Equal(order.Total))
	assert.True(t, dec("37.50").Equal(order.BalanceDue))
	assert.True(t, dec("50.00").Equal(order.Items[0].LineSubtotal))
	assert.True(t, first.Total.Equal(order.Total))
	assert.True(t, first.BalanceDue.Equal(order.BalanceDue))
}

func TestCheckTotalsRejectsDiscountAboveSubtotal(t *testing.T) {
	order := SalesOrder{Discount: dec("10.01"), Items: []SalesOrderItem{{Quantity: 1, UnitPrice: dec("10.00")}}}
	RecomputeTotals(&order)

	err := CheckTotals(order)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	order.Discount = dec("10.00")
	RecomputeTotals(&order)
	assert.NoError(t, CheckTotals(order))
	assert.True(t, order.Total.IsZero())
}

func TestPaymentRequestValidate(t *testing.T) {
	cases := []struct {
		name   string
		req    PaymentRequest
		fields []string
	}{
		{name: "valid cash", req: PaymentRequest{Amount: dec("50.00"), Method: PaymentMethodCash}},
		{name: "valid other", req: PaymentRequest{Amount: dec("1"), Method: PaymentMethodOther}},
		{name: "zero amount", req: PaymentRequest{Amount: decimal.Zero, Method: PaymentMethodCash}, fields: []string{"amount"}},
		{name: "unknown method", req: PaymentRequest{Amount: dec("5"), Method: "crypto"}, fields: []string{"method"}},
		{name: "bank without refs", req: PaymentRequest{Amount: dec("5"), Method: PaymentMethodBank}, fields: []string{"bank_ref", "transaction_id"}},
		{name: "fractional cents", req: PaymentRequest{Amount: dec("0.005"), Method: PaymentMethodCash}, fields: []string{"amount"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate()
			if len(tc.fields) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var fields []string
			for _, v := range apperr.ViolationsOf(err) {
				fields = append(fields, v.Field)
			}
			assert.Equal(t, tc.fields, fields)
		})
	}
}

func TestOrderCreateRequestValidateReportsEveryItem(t *testing.T) {
	req := OrderCreateRequest{Items: []OrderItemInput{
		{InventoryItemID: "frame-1", Quantity: 1, UnitPrice: dec("25.00")},
		{InventoryItemID: "frame-1", ServiceProductID: "eye-exam", Quantity: 0, UnitPrice: dec("-1")},
		{ServiceProductID: "eye-exam", Quantity: 1, UnitPrice: dec("10"), Prescription: json.RawMessage(`{"sph":`)},
	}}

	err := req.Validate()
	require.Error(t, err)
	fields := map[string]bool{}
	for _, v := range apperr.ViolationsOf(err) {
		fields[v.Field] = true
	}
	assert.True(t, fields["items[1].inventory_item_id"])
	assert.True(t, fields["items[1].quantity"])
	assert.True(t, fields["items[1].unit_price"])
	assert.True(t, fields["items[2].prescription"])
	assert.False(t, fields["items[0].quantity"])

	assert.Error(t, OrderCreateRequest{}.Validate())
}

func TestOrderTransitions(t *testing.T) {
	assert.True(t, CanTransitionOrder(OrderStatusPending, OrderStatusCancelled))
	assert.True(t, CanTransitionOrder(OrderStatusPartiallyPaid, OrderStatusCompleted))
	assert.True(t, CanTransitionOrder(OrderStatusCompleted, OrderStatusAbandoned))
	assert.False(t, CanTransitionOrder(OrderStatusPartiallyPaid, OrderStatusCancelled))
	assert.False(t, CanTransitionOrder(OrderStatusCancelled, OrderStatusPending))
	assert.False(t, CanTransitionOrder(OrderStatusAbandoned, OrderStatusCompleted))

	assert.True(t, CanTransitionShift(ShiftStatusInterrupted, ShiftStatusActive))
	assert.False(t, CanTransitionShift(ShiftStatusActive, ShiftStatusActive))
	assert.False(t, CanTransitionShift(ShiftStatusEnded, ShiftStatusActive))
}

func TestRequestsRejectValuesBeyondColumnRange(t *testing.T) {
	tooMany := MaxQuantity + 1
	tooMuch := dec("1000000000000")

	cases := []struct {
		name  string
		err   error
		field string
	}{
		{"order item quantity", OrderItemInput{ServiceProductID: "eye-exam", Quantity: tooMany, UnitPrice: dec("1")}.Validate(), "quantity"},
		{"order item price", OrderItemInput{ServiceProductID: "eye-exam", Quantity: 1, UnitPrice: tooMuch}.Validate(), "unit_price"},
		{"item update quantity", OrderItemUpdateRequest{Quantity: &tooMany}.Validate(), "quantity"},
		{"stock delta", StockAdjustRequest{Delta: tooMany, Reason: "recount"}.Validate(), "delta"},
		{"negative stock delta", StockAdjustRequest{Delta: -tooMany, Reason: "recount"}.Validate(), "delta"},
		{"purchase quantity", PurchaseOrderCreateRequest{SupplierName: "Lab", Items: []PurchaseOrderLine{{InventoryItemID: "care-kit", QuantityOrdered: tooMany, UnitCost: dec("1")}}}.Validate(), "items[0].quantity_ordered"},
		{"receive quantity", ReceiveRequest{Quantity: tooMany, PurchasePrice: dec("1")}.Validate(), "quantity"},
		{"payment amount", PaymentRequest{Amount: tooMuch, Method: PaymentMethodCash}.Validate(), "amount"},
		{"discount amount", DiscountRequest{Amount: tooMuch}.Validate(), "amount"},
		{"opening float", ShiftStartRequest{OpeningFloat: tooMuch}.Validate(), "opening_float"},
		{"expense amount", ExpenseRequest{Amount: tooMuch, Category: "supplies"}.Validate(), "amount"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Error(t, tc.err)
			assert.True(t, errors.Is(tc.err, apperr.ErrValidation))
			var fields []string
			for _, v := range apperr.ViolationsOf(tc.err) {
				fields = append(fields, v.Field)
			}
			assert.Contains(t, fields, tc.field)
		})
	}

	assert.NoError(t, OrderItemInput{ServiceProductID: "eye-exam", Quantity: MaxQuantity, UnitPrice: dec("999999999999.99")}.Validate())
}

func TestCheckTotalsRejectsSubtotalBeyondColumnRange(t *testing.T) {
	order := SalesOrder{Items: []SalesOrderItem{{Quantity: MaxQuantity, UnitPrice: dec("1000.00")}}}
	RecomputeTotals(&order)

	err := CheckTotals(order)
	require.Error(t, err)
	assert.Equal(t, "subtotal", apperr.ViolationsOf(err)[0].Field)
}
