package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type Shift struct {
	ID                 string           `json:"id"`
	UserID             int64            `json:"user_id"`
	Status             string           `json:"status"`
	OpeningFloat       decimal.Decimal  `json:"opening_float"`
	ClosingCashCounted *decimal.Decimal `json:"closing_cash_counted,omitempty"`
	Notes              string           `json:"notes,omitempty"`
	StartedAt          time.Time        `json:"started_at"`
	EndedAt            *time.Time       `json:"ended_at,omitempty"`
	UpdatedAt          time.Time        `json:"updated_at"`
	// Instance and BootID name the process that last made the shift Active.
	Instance string `json:"instance,omitempty"`
	BootID   string `json:"-"`
}

type ShiftStartRequest struct {
	OpeningFloat decimal.Decimal `json:"opening_float"`
}

type ShiftEndRequest struct {
	ClosingCashCounted decimal.Decimal `json:"closing_cash_counted"`
	Notes              string          `json:"notes"`
}

// ShiftReport is derived from payments and expenses tagged with the shift; nothing in it is stored.
type ShiftReport struct {
	ShiftID            string           `json:"shift_id"`
	UserID             int64            `json:"user_id"`
	Status             string           `json:"status"`
	StartedAt          time.Time        `json:"started_at"`
	EndedAt            *time.Time       `json:"ended_at,omitempty"`
	OpeningFloat       decimal.Decimal  `json:"opening_float"`
	CashReceived       decimal.Decimal  `json:"cash_received"`
	CashExpenses       decimal.Decimal  `json:"cash_expenses"`
	NonCashReceived    decimal.Decimal  `json:"non_cash_received"`
	PaymentCount       int              `json:"payment_count"`
	ExpenseCount       int              `json:"expense_count"`
	ExpectedCash       decimal.Decimal  `json:"expected_cash"`
	ClosingCashCounted *decimal.Decimal `json:"closing_cash_counted,omitempty"`
	Variance           *decimal.Decimal `json:"variance,omitempty"`
}

type ShiftCloseResponse struct {
	Shift  Shift       `json:"shift"`
	Report ShiftReport `json:"report"`
}

// ShiftCashTotals are the per-shift sums a store computes for reconciliation.
type ShiftCashTotals struct {
	CashReceived    decimal.Decimal
	NonCashReceived decimal.Decimal
	CashExpenses    decimal.Decimal
	PaymentCount    int
	ExpenseCount    int
}

type SalesOrder struct {
	ID         string           `json:"id"`
	PatientID  *int64           `json:"patient_id,omitempty"`
	OrderDate  time.Time        `json:"order_date"`
	Status     string           `json:"status"`
	Subtotal   decimal.Decimal  `json:"subtotal"`
	Discount   decimal.Decimal  `json:"discount"`
	Total      decimal.Decimal  `json:"total"`
	AmountPaid decimal.Decimal  `json:"amount_paid"`
	BalanceDue decimal.Decimal  `json:"balance_due"`
	CreatedBy  int64            `json:"created_by"`
	ShiftID    string           `json:"shift_id,omitempty"`
	Remarks    string           `json:"remarks,omitempty"`
	UpdatedAt  time.Time        `json:"updated_at"`
	Items      []SalesOrderItem `json:"items,omitempty"`
}

type SalesOrderItem struct {
	ID               string          `json:"id"`
	OrderID          string          `json:"order_id"`
	InventoryItemID  string          `json:"inventory_item_id,omitempty"`
	ServiceProductID string          `json:"service_product_id,omitempty"`
	Quantity         int             `json:"quantity"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	LineSubtotal     decimal.Decimal `json:"line_subtotal"`
	Prescription     json.RawMessage `json:"prescription,omitempty"`
}

type OrderItemInput struct {
	InventoryItemID  string          `json:"inventory_item_id,omitempty"`
	ServiceProductID string          `json:"service_product_id,omitempty"`
	Quantity         int             `json:"quantity"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	Prescription     json.RawMessage `json:"prescription,omitempty"`
}

type OrderCreateRequest struct {
	PatientID *int64           `json:"patient_id,omitempty"`
	Remarks   string           `json:"remarks"`
	Items     []OrderItemInput `json:"items"`
}

type OrderItemUpdateRequest struct {
	Quantity     *int             `json:"quantity,omitempty"`
	UnitPrice    *decimal.Decimal `json:"unit_price,omitempty"`
	Prescription json.RawMessage  `json:"prescription,omitempty"`
}

type DiscountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type StatusChangeRequest struct {
	Status string `json:"status"`
}

type Payment struct {
	ID            string          `json:"id"`
	OrderID       string          `json:"order_id"`
	PaidAt        time.Time       `json:"paid_at"`
	Amount        decimal.Decimal `json:"amount"`
	Method        string          `json:"method"`
	BankRef       string          `json:"bank_ref,omitempty"`
	TransactionID string          `json:"transaction_id,omitempty"`
	ReceivedBy    int64           `json:"received_by"`
	ShiftID       string          `json:"shift_id,omitempty"`
	Notes         string          `json:"notes,omitempty"`
}

type PaymentRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	Method        string          `json:"method"`
	BankRef       string          `json:"bank_ref,omitempty"`
	TransactionID string          `json:"transaction_id,omitempty"`
	ShiftID       string          `json:"shift_id,omitempty"`
	Notes         string          `json:"notes,omitempty"`
}

type PaymentResponse struct {
	Order   SalesOrder `json:"order"`
	Payment Payment    `json:"payment"`
}

type StockLevel struct {
	InventoryItemID string          `json:"inventory_item_id"`
	Name            string          `json:"name"`
	QuantityOnHand  int             `json:"quantity_on_hand"`
	CostPrice       decimal.Decimal `json:"cost_price"`
	MinStock        int             `json:"min_stock"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type StockAdjustRequest struct {
	Delta  int    `json:"delta"`
	Reason string `json:"reason"`
}

type StockAdjustment struct {
	InventoryItemID string `json:"inventory_item_id"`
	OldQuantity     int    `json:"old_quantity"`
	NewQuantity     int    `json:"new_quantity"`
	Delta           int    `json:"delta"`
	Reason          string `json:"reason"`
}

type ReorderSuggestion struct {
	InventoryItemID string          `json:"inventory_item_id"`
	Name            string          `json:"name"`
	QuantityOnHand  int             `json:"quantity_on_hand"`
	MinStock        int             `json:"min_stock"`
	RecommendedQty  int             `json:"recommended_qty"`
	CostPrice       decimal.Decimal `json:"cost_price"`
	EstimatedCost   decimal.Decimal `json:"estimated_cost"`
}

type PurchaseOrder struct {
	ID           string              `json:"id"`
	SupplierName string              `json:"supplier_name"`
	Status       string              `json:"status"`
	CreatedBy    int64               `json:"created_by"`
	CreatedAt    time.Time           `json:"created_at"`
	ReceivedAt   *time.Time          `json:"received_at,omitempty"`
	Items        []PurchaseOrderItem `json:"items"`
}

type PurchaseOrderItem struct {
	ID               string          `json:"id"`
	PurchaseOrderID  string          `json:"purchase_order_id"`
	InventoryItemID  string          `json:"inventory_item_id"`
	QuantityOrdered  int             `json:"quantity_ordered"`
	QuantityReceived int             `json:"quantity_received"`
	UnitCost         decimal.Decimal `json:"unit_cost"`
}

type PurchaseOrderLine struct {
	InventoryItemID string          `json:"inventory_item_id"`
	QuantityOrdered int             `json:"quantity_ordered"`
	UnitCost        decimal.Decimal `json:"unit_cost"`
}

type PurchaseOrderCreateRequest struct {
	SupplierName string              `json:"supplier_name"`
	Items        []PurchaseOrderLine `json:"items"`
}

type ReceiveRequest struct {
	Quantity      int             `json:"quantity"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
}

type ReceiveResponse struct {
	PurchaseOrder PurchaseOrder `json:"purchase_order"`
	Stock         StockLevel    `json:"stock"`
}

type Expense struct {
	ID          string          `json:"id"`
	ShiftID     string          `json:"shift_id"`
	UserID      int64           `json:"user_id"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	Description string          `json:"description,omitempty"`
	SpentAt     time.Time       `json:"spent_at"`
}

type ExpenseRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
}

type AuditLog struct {
	ID          string    `json:"id"`
	EntityType  string    `json:"entity_type"`
	RecordKey   string    `json:"record_key"`
	Field       string    `json:"field,omitempty"`
	OldValue    string    `json:"old_value,omitempty"`
	NewValue    string    `json:"new_value,omitempty"`
	ActorUserID int64     `json:"actor_user_id"`
	Action      string    `json:"action"`
	Detail      string    `json:"detail,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type AuditFilter struct {
	EntityType string
	RecordKey  string
	From       time.Time
	To         time.Time
	Limit      int
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	UserID      int64  `json:"user_id"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	UserID   int64
	Username string
	Role     string
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	ID          int64
	Username    string
	Password    string
	Role        string
	CanDiscount bool
	Active      bool
	CreatedAt   time.Time
}

const (
	ShiftStatusActive      = "active"
	ShiftStatusPaused      = "paused"
	ShiftStatusInterrupted = "interrupted"
	ShiftStatusEnded       = "ended"
)

const (
	OrderStatusPending       = "pending"
	OrderStatusPartiallyPaid = "partially_paid"
	OrderStatusCompleted     = "completed"
	OrderStatusCancelled     = "cancelled"
	OrderStatusAbandoned     = "abandoned"
)

const (
	PaymentMethodCash  = "cash"
	PaymentMethodBank  = "bank"
	PaymentMethodOther = "other"
)

const (
	POStatusOrdered   = "ordered"
	POStatusPartial   = "partial"
	POStatusReceived  = "received"
	POStatusCancelled = "cancelled"
)

const (
	RoleAdmin   = "admin"
	RoleCashier = "cashier"
)

// SystemUserID is the actor recorded for mutations the process makes on its own.
const SystemUserID int64 = 0
