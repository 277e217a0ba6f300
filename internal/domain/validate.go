package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"optikpos/backend/internal/apperr"
)

// Quantities are stored as INTEGER and money as NUMERIC(14,2).
const MaxQuantity = math.MaxInt32

var MaxMoney = decimal.New(1, 12)

// Validator collects field violations so a request reports every problem at once.
type Validator struct {
	violations []apperr.Violation
}

func (v *Validator) Check(ok bool, field string, message string) {
	if !ok {
		v.violations = append(v.violations, apperr.Violation{Field: field, Message: message})
	}
}

func (v *Validator) Add(field string, message string) {
	v.Check(false, field, message)
}

func (v *Validator) Valid() bool {
	return len(v.violations) == 0
}

func (v *Validator) Violations() []apperr.Violation {
	return v.violations
}

// Err returns a validation error carrying every collected violation, or nil.
func (v *Validator) Err(message string) error {
	if v.Valid() {
		return nil
	}
	return &apperr.Error{Kind: apperr.KindValidation, Message: message, Violations: v.violations}
}

func (v *Validator) money(value decimal.Decimal, field string) {
	v.Check(value.Equal(value.Round(2)), field, "must have at most 2 decimal places")
	v.Check(value.Abs().LessThan(MaxMoney), field, "must be less than "+MaxMoney.String())
}

func (v *Validator) quantity(value int, field string) {
	v.Check(value > 0, field, "must be greater than zero")
	v.Check(value <= MaxQuantity, field, fmt.Sprintf("must not exceed %d", MaxQuantity))
}

func (v *Validator) nonNegativeMoney(value decimal.Decimal, field string) {
	v.Check(!value.IsNegative(), field, "must not be negative")
	v.money(value, field)
}

func (v *Validator) positiveMoney(value decimal.Decimal, field string) {
	v.Check(value.IsPositive(), field, "must be greater than zero")
	v.money(value, field)
}

func (r ShiftStartRequest) Validate() error {
	var v Validator
	v.nonNegativeMoney(r.OpeningFloat, "opening_float")
	return v.Err("invalid shift start")
}

func (r ShiftEndRequest) Validate() error {
	var v Validator
	v.nonNegativeMoney(r.ClosingCashCounted, "closing_cash_counted")
	return v.Err("invalid shift end")
}

func (in OrderItemInput) validate(v *Validator, prefix string) {
	hasInventory := strings.TrimSpace(in.InventoryItemID) != ""
	hasService := strings.TrimSpace(in.ServiceProductID) != ""
	v.Check(hasInventory != hasService, prefix+"inventory_item_id", "exactly one of inventory_item_id or service_product_id is required")
	v.quantity(in.Quantity, prefix+"quantity")
	v.nonNegativeMoney(in.UnitPrice, prefix+"unit_price")
	if len(in.Prescription) > 0 {
		v.Check(json.Valid(in.Prescription), prefix+"prescription", "must be valid JSON")
	}
}

func (in OrderItemInput) Validate() error {
	var v Validator
	in.validate(&v, "")
	return v.Err("invalid order item")
}

func (r OrderCreateRequest) Validate() error {
	var v Validator
	v.Check(len(r.Items) > 0, "items", "at least one item is required")
	if r.PatientID != nil {
		v.Check(*r.PatientID > 0, "patient_id", "must be a positive id")
	}
	for i, item := range r.Items {
		item.validate(&v, fmt.Sprintf("items[%d].", i))
	}
	return v.Err("invalid order")
}

func (r OrderItemUpdateRequest) Validate() error {
	var v Validator
	v.Check(r.Quantity != nil || r.UnitPrice != nil || len(r.Prescription) > 0, "item", "nothing to update")
	if r.Quantity != nil {
		v.quantity(*r.Quantity, "quantity")
	}
	if r.UnitPrice != nil {
		v.nonNegativeMoney(*r.UnitPrice, "unit_price")
	}
	if len(r.Prescription) > 0 {
		v.Check(json.Valid(r.Prescription), "prescription", "must be valid JSON")
	}
	return v.Err("invalid item update")
}

func (r DiscountRequest) Validate() error {
	var v Validator
	v.nonNegativeMoney(r.Amount, "amount")
	return v.Err("invalid discount")
}

func (r PaymentRequest) Validate() error {
	var v Validator
	v.positiveMoney(r.Amount, "amount")
	v.Check(IsKnownPaymentMethod(r.Method), "method", "must be one of cash, bank, other")
	if r.Method == PaymentMethodBank {
		v.Check(strings.TrimSpace(r.BankRef) != "", "bank_ref", "is required for bank payments")
		v.Check(strings.TrimSpace(r.TransactionID) != "", "transaction_id", "is required for bank payments")
	}
	return v.Err("invalid payment")
}

func (r StockAdjustRequest) Validate() error {
	var v Validator
	v.Check(r.Delta != 0, "delta", "must not be zero")
	v.Check(r.Delta >= -MaxQuantity && r.Delta <= MaxQuantity, "delta", fmt.Sprintf("must be within ±%d", MaxQuantity))
	v.Check(strings.TrimSpace(r.Reason) != "", "reason", "is required")
	return v.Err("invalid stock adjustment")
}

func (r PurchaseOrderCreateRequest) Validate() error {
	var v Validator
	v.Check(strings.TrimSpace(r.SupplierName) != "", "supplier_name", "is required")
	v.Check(len(r.Items) > 0, "items", "at least one item is required")
	for i, line := range r.Items {
		prefix := fmt.Sprintf("items[%d].", i)
		v.Check(strings.TrimSpace(line.InventoryItemID) != "", prefix+"inventory_item_id", "is required")
		v.quantity(line.QuantityOrdered, prefix+"quantity_ordered")
		v.nonNegativeMoney(line.UnitCost, prefix+"unit_cost")
	}
	return v.Err("invalid purchase order")
}

func (r ReceiveRequest) Validate() error {
	var v Validator
	v.quantity(r.Quantity, "quantity")
	v.nonNegativeMoney(r.PurchasePrice, "purchase_price")
	return v.Err("invalid receipt")
}

func (r ExpenseRequest) Validate() error {
	var v Validator
	v.positiveMoney(r.Amount, "amount")
	v.Check(strings.TrimSpace(r.Category) != "", "category", "is required")
	return v.Err("invalid expense")
}

// RecomputeTotals derives every line subtotal and the order totals from items, discount and
// amount paid. Applying it twice yields the same order.
func RecomputeTotals(order *SalesOrder) {
	subtotal := decimal.Zero
	for i := range order.Items {
		line := &order.Items[i]
		line.LineSubtotal = line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
		subtotal = subtotal.Add(line.LineSubtotal)
	}
	order.Subtotal = subtotal
	order.Total = subtotal.Sub(order.Discount)
	order.BalanceDue = order.Total.Sub(order.AmountPaid)
}

// CheckTotals reports the financial bounds a recomputed order must respect.
func CheckTotals(order SalesOrder) error {
	var v Validator
	v.Check(order.Discount.LessThanOrEqual(order.Subtotal), "discount", "must not exceed the order subtotal")
	v.Check(order.AmountPaid.LessThanOrEqual(order.Total), "amount_paid", "must not exceed the order total")
	v.Check(order.Subtotal.LessThan(MaxMoney), "subtotal", "must be less than "+MaxMoney.String())
	return v.Err("order totals out of bounds")
}
