package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"optikpos/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrTransient marks serialization failures and deadlocks; the unit of work may be retried.
	ErrTransient = errors.New("transient conflict")
	ErrReadOnly  = errors.New("read-only transaction")
	// ErrOutOfRange marks a value the schema's column types cannot hold.
	ErrOutOfRange = errors.New("value out of range")
)

// Store runs units of work. Update commits when fn returns nil and rolls back every
// write, audit rows included, when it returns an error.
type Store interface {
	Update(ctx context.Context, fn func(Tx) error) error
	View(ctx context.Context, fn func(Tx) error) error
}

// Tx is the set of reads and writes available inside one unit of work.
// Reads made inside Update lock the rows they return until commit.
type Tx interface {
	InsertShift(ctx context.Context, shift domain.Shift) error
	UpdateShift(ctx context.Context, shift domain.Shift) error
	GetShift(ctx context.Context, id string) (domain.Shift, error)
	FindOpenShift(ctx context.Context, userID int64) (domain.Shift, error)
	ListShiftsByStatus(ctx context.Context, status string) ([]domain.Shift, error)
	ShiftCashTotals(ctx context.Context, shiftID string) (domain.ShiftCashTotals, error)

	InsertOrder(ctx context.Context, order domain.SalesOrder) error
	UpdateOrder(ctx context.Context, order domain.SalesOrder) error
	GetOrder(ctx context.Context, id string) (domain.SalesOrder, error)
	InsertOrderItem(ctx context.Context, item domain.SalesOrderItem) error
	UpdateOrderItem(ctx context.Context, item domain.SalesOrderItem) error
	DeleteOrderItem(ctx context.Context, orderID string, itemID string) error

	InsertPayment(ctx context.Context, payment domain.Payment) error
	GetPayment(ctx context.Context, id string) (domain.Payment, error)
	ListPayments(ctx context.Context, orderID string) ([]domain.Payment, error)

	GetStock(ctx context.Context, inventoryItemID string) (domain.StockLevel, error)
	ListStock(ctx context.Context) ([]domain.StockLevel, error)
	// AddStock applies delta atomically and returns the quantities before and after.
	// It fails with ErrInsufficientStock when the result would be negative.
	AddStock(ctx context.Context, inventoryItemID string, delta int) (oldQty int, newQty int, err error)
	SetCostPrice(ctx context.Context, inventoryItemID string, cost decimal.Decimal) error

	InsertPurchaseOrder(ctx context.Context, po domain.PurchaseOrder) error
	GetPurchaseOrder(ctx context.Context, id string) (domain.PurchaseOrder, error)
	GetPurchaseOrderItem(ctx context.Context, itemID string) (domain.PurchaseOrderItem, error)
	UpdatePurchaseOrderItem(ctx context.Context, item domain.PurchaseOrderItem) error
	UpdatePurchaseOrderStatus(ctx context.Context, id string, status string, receivedAt *time.Time) error

	InsertExpense(ctx context.Context, expense domain.Expense) error
	ListExpensesByShift(ctx context.Context, shiftID string) ([]domain.Expense, error)

	AppendAudit(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditLog, error)

	GetUserByID(ctx context.Context, id int64) (domain.UserAccount, error)
	GetUserByUsername(ctx context.Context, username string) (domain.UserAccount, error)
}
