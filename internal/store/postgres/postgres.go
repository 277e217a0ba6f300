package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"optikpos/backend/internal/domain"
	"optikpos/backend/internal/store"
)

type Store struct {
	db *sqlx.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sqlx.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Update runs fn in a serializable transaction. Serialization failures surface as
// store.ErrTransient so the caller can retry the whole unit of work.
func (s *Store) Update(ctx context.Context, fn func(store.Tx) error) error {
	return s.run(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable}, true, fn)
}

func (s *Store) View(ctx context.Context, fn func(store.Tx) error) error {
	return s.run(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}, false, fn)
}

func (s *Store) run(ctx context.Context, opts *sql.TxOptions, writable bool, fn func(store.Tx) error) error {
	sqlTx, err := s.db.BeginTxx(ctx, opts)
	if err != nil {
		return classify(err)
	}
	defer func() { _ = sqlTx.Rollback() }()

	if err := fn(&tx{tx: sqlTx, writable: writable}); err != nil {
		return err
	}
	return classify(sqlTx.Commit())
}

// EnsureUsers inserts accounts whose id is not taken yet. Existing rows are left alone.
func (s *Store) EnsureUsers(ctx context.Context, accounts []domain.UserAccount) error {
	for _, account := range accounts {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO app_users (id, username, password, role, can_discount, active, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,now())
			ON CONFLICT (id) DO NOTHING
		`, account.ID, strings.ToLower(account.Username), account.Password, account.Role, account.CanDiscount, account.Active, account.CreatedAt)
		if err != nil {
			return fmt.Errorf("ensure user %s: %w", account.Username, classify(err))
		}
	}
	return nil
}

type tx struct {
	tx       *sqlx.Tx
	writable bool
}

func (t *tx) write() error {
	if !t.writable {
		return store.ErrReadOnly
	}
	return nil
}

// forUpdate locks the rows a read returns when the unit of work may write them.
func (t *tx) forUpdate() string {
	if t.writable {
		return " FOR UPDATE"
	}
	return ""
}

type shiftRow struct {
	ID                 string              `db:"id"`
	UserID             int64               `db:"user_id"`
	Status             string              `db:"status"`
	OpeningFloat       decimal.Decimal     `db:"opening_float"`
	ClosingCashCounted decimal.NullDecimal `db:"closing_cash_counted"`
	Notes              string              `db:"notes"`
	StartedAt          time.Time           `db:"started_at"`
	EndedAt            sql.NullTime        `db:"ended_at"`
	UpdatedAt          time.Time           `db:"updated_at"`
	InstanceName       string              `db:"instance_name"`
	BootID             string              `db:"boot_id"`
}

func (r shiftRow) toDomain() domain.Shift {
	shift := domain.Shift{
		ID:           r.ID,
		UserID:       r.UserID,
		Status:       r.Status,
		OpeningFloat: r.OpeningFloat,
		Notes:        r.Notes,
		StartedAt:    r.StartedAt.UTC(),
		EndedAt:      timePtr(r.EndedAt),
		UpdatedAt:    r.UpdatedAt.UTC(),
		Instance:     r.InstanceName,
		BootID:       r.BootID,
	}
	if r.ClosingCashCounted.Valid {
		counted := r.ClosingCashCounted.Decimal
		shift.ClosingCashCounted = &counted
	}
	return shift
}

const shiftColumns = `id, user_id, status, opening_float, closing_cash_counted, notes, started_at, ended_at, updated_at, instance_name, boot_id`

func (t *tx) InsertShift(ctx context.Context, shift domain.Shift) error {
	if err := t.write(); err != nil {
		return err
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO shifts (`+shiftColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, shift.ID, shift.UserID, shift.Status, shift.OpeningFloat, nullDecimal(shift.ClosingCashCounted),
		shift.Notes, shift.StartedAt, shift.EndedAt, shift.UpdatedAt, shift.Instance, shift.BootID)
	return classify(err)
}

func (t *tx) UpdateShift(ctx context.Context, shift domain.Shift) error {
	if err := t.write(); err != nil {
		return err
	}
	res, err := t.tx.ExecContext(ctx, `
		UPDATE shifts
		SET status = $2, closing_cash_counted = $3, notes = $4, ended_at = $5, updated_at = $6,
			instance_name = $7, boot_id = $8
		WHERE id = $1
	`, shift.ID, shift.Status, nullDecimal(shift.ClosingCashCounted), shift.Notes, shift.EndedAt, shift.UpdatedAt,
		shift.Instance, shift.BootID)
	return expectRow(res, err)
}

func (t *tx) GetShift(ctx context.Context, id string) (domain.Shift, error) {
	var row shiftRow
	if err := t.tx.GetContext(ctx, &row, `SELECT `+shiftColumns+` FROM shifts WHERE id = $1`+t.forUpdate(), id); err != nil {
		return domain.Shift{}, classify(err)
	}
	return row.toDomain(), nil
}

func (t *tx) FindOpenShift(ctx context.Context, userID int64) (domain.Shift, error) {
	var row shiftRow
	err := t.tx.GetContext(ctx, &row, `
		SELECT `+shiftColumns+`
		FROM shifts
		WHERE user_id = $1 AND status <> 'ended'
		ORDER BY started_at DESC
		LIMIT 1`+t.forUpdate(), userID)
	if err != nil {
		return domain.Shift{}, classify(err)
	}
	return row.toDomain(), nil
}

func (t *tx) ListShiftsByStatus(ctx context.Context, status string) ([]domain.Shift, error) {
	rows := make([]shiftRow, 0, 8)
	if err := t.tx.SelectContext(ctx, &rows, `
		SELECT `+shiftColumns+`
		FROM shifts
		WHERE status = $1
		ORDER BY started_at ASC`+t.forUpdate(), status); err != nil {
		return nil, classify(err)
	}
	shifts := make([]domain.Shift, 0, len(rows))
	for _, row := range rows {
		shifts = append(shifts, row.toDomain())
	}
	return shifts, nil
}

func (t *tx) ShiftCashTotals(ctx context.Context, shiftID string) (domain.ShiftCashTotals, error) {
	var payments struct {
		Cash    decimal.Decimal `db:"cash_received"`
		NonCash decimal.Decimal `db:"non_cash_received"`
		Count   int             `db:"payment_count"`
	}
	if err := t.tx.GetContext(ctx, &payments, `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE method = 'cash'), 0) AS cash_received,
			COALESCE(SUM(amount) FILTER (WHERE method <> 'cash'), 0) AS non_cash_received,
			COUNT(*) AS payment_count
		FROM payments
		WHERE shift_id = $1
	`, shiftID); err != nil {
		return domain.ShiftCashTotals{}, classify(err)
	}

	var expenses struct {
		Total decimal.Decimal `db:"cash_expenses"`
		Count int             `db:"expense_count"`
	}
	if err := t.tx.GetContext(ctx, &expenses, `
		SELECT COALESCE(SUM(amount), 0) AS cash_expenses, COUNT(*) AS expense_count
		FROM expenses
		WHERE shift_id = $1
	`, shiftID); err != nil {
		return domain.ShiftCashTotals{}, classify(err)
	}

	return domain.ShiftCashTotals{
		CashReceived:    payments.Cash,
		NonCashReceived: payments.NonCash,
		CashExpenses:    expenses.Total,
		PaymentCount:    payments.Count,
		ExpenseCount:    expenses.Count,
	}, nil
}

type orderRow struct {
	ID         string          `db:"id"`
	PatientID  sql.NullInt64   `db:"patient_id"`
	OrderDate  time.Time       `db:"order_date"`
	Status     string          `db:"status"`
	Subtotal   decimal.Decimal `db:"subtotal"`
	Discount   decimal.Decimal `db:"discount"`
	Total      decimal.Decimal `db:"total"`
	AmountPaid decimal.Decimal `db:"amount_paid"`
	BalanceDue decimal.Decimal `db:"balance_due"`
	CreatedBy  int64           `db:"created_by"`
	ShiftID    string          `db:"shift_id"`
	Remarks    string          `db:"remarks"`
	UpdatedAt  time.Time       `db:"updated_at"`
}

type orderItemRow struct {
	ID               string          `db:"id"`
	OrderID          string          `db:"order_id"`
	InventoryItemID  string          `db:"inventory_item_id"`
	ServiceProductID string          `db:"service_product_id"`
	Quantity         int             `db:"quantity"`
	UnitPrice        decimal.Decimal `db:"unit_price"`
	LineSubtotal     decimal.Decimal `db:"line_subtotal"`
	Prescription     string          `db:"prescription"`
}

func (r orderItemRow) toDomain() domain.SalesOrderItem {
	item := domain.SalesOrderItem{
		ID:               r.ID,
		OrderID:          r.OrderID,
		InventoryItemID:  r.InventoryItemID,
		ServiceProductID: r.ServiceProductID,
		Quantity:         r.Quantity,
		UnitPrice:        r.UnitPrice,
		LineSubtotal:     r.LineSubtotal,
	}
	if r.Prescription != "" {
		item.Prescription = json.RawMessage(r.Prescription)
	}
	return item
}

func (t *tx) InsertOrder(ctx context.Context, order domain.SalesOrder) error {
	if err := t.write(); err != nil {
		return err
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO sales_orders (
			id, patient_id, order_date, status, subtotal, discount, total,
			amount_paid, balance_due, created_by, shift_id, remarks, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NULLIF($11,''),$12,$13)
	`, order.ID, order.PatientID, order.OrderDate, order.Status, order.Subtotal, order.Discount, order.Total,
		order.AmountPaid, order.BalanceDue, order.CreatedBy, order.ShiftID, order.Remarks, order.UpdatedAt)
	if err != nil {
		return classify(err)
	}
	for _, item := range order.Items {
		if err := t.InsertOrderItem(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

func (t *tx) UpdateOrder(ctx context.Context, order domain.SalesOrder) error {
	if err := t.write(); err != nil {
		return err
	}
	res, err := t.tx.ExecContext(ctx, `
		UPDATE sales_orders
		SET patient_id = $2, status = $3, subtotal = $4, discount = $5, total = $6,
			amount_paid = $7, balance_due = $8, shift_id = NULLIF($9,''), remarks = $10, updated_at = $11
		WHERE id = $1
	`, order.ID, order.PatientID, order.Status, order.Subtotal, order.Discount, order.Total,
		order.AmountPaid, order.BalanceDue, order.ShiftID, order.Remarks, order.UpdatedAt)
	return expectRow(res, err)
}

func (t *tx) GetOrder(ctx context.Context, id string) (domain.SalesOrder, error) {
	var row orderRow
	if err := t.tx.GetContext(ctx, &row, `
		SELECT id, patient_id, order_date, status, subtotal, discount, total, amount_paid, balance_due,
			created_by, COALESCE(shift_id, '') AS shift_id, remarks, updated_at
		FROM sales_orders
		WHERE id = $1`+t.forUpdate(), id); err != nil {
		return domain.SalesOrder{}, classify(err)
	}

	items := make([]orderItemRow, 0, 8)
	if err := t.tx.SelectContext(ctx, &items, `
		SELECT id, order_id, COALESCE(inventory_item_id, '') AS inventory_item_id,
			COALESCE(service_product_id, '') AS service_product_id, quantity, unit_price, line_subtotal,
			COALESCE(prescription::text, '') AS prescription
		FROM sales_order_items
		WHERE order_id = $1
		ORDER BY seq ASC`+t.forUpdate(), id); err != nil {
		return domain.SalesOrder{}, classify(err)
	}

	order := domain.SalesOrder{
		ID:         row.ID,
		OrderDate:  row.OrderDate.UTC(),
		Status:     row.Status,
		Subtotal:   row.Subtotal,
		Discount:   row.Discount,
		Total:      row.Total,
		AmountPaid: row.AmountPaid,
		BalanceDue: row.BalanceDue,
		CreatedBy:  row.CreatedBy,
		ShiftID:    row.ShiftID,
		Remarks:    row.Remarks,
		UpdatedAt:  row.UpdatedAt.UTC(),
		Items:      make([]domain.SalesOrderItem, 0, len(items)),
	}
	if row.PatientID.Valid {
		patientID := row.PatientID.Int64
		order.PatientID = &patientID
	}
	for _, item := range items {
		order.Items = append(order.Items, item.toDomain())
	}
	return order, nil
}

func (t *tx) InsertOrderItem(ctx context.Context, item domain.SalesOrderItem) error {
	if err := t.write(); err != nil {
		return err
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO sales_order_items (
			id, order_id, inventory_item_id, service_product_id, quantity, unit_price, line_subtotal, prescription
		)
		VALUES ($1,$2,NULLIF($3,''),NULLIF($4,''),$5,$6,$7,$8::jsonb)
	`, item.ID, item.OrderID, item.InventoryItemID, item.ServiceProductID, item.Quantity, item.UnitPrice,
		item.LineSubtotal, nullJSON(item.Prescription))
	return classify(err)
}

func (t *tx) UpdateOrderItem(ctx context.Context, item domain.SalesOrderItem) error {
	if err := t.write(); err != nil {
		return err
	}
	res, err := t.tx.ExecContext(ctx, `
		UPDATE sales_order_items
		SET quantity = $3, unit_price = $4, line_subtotal = $5, prescription = $6::jsonb
		WHERE id = $1 AND order_id = $2
	`, item.ID, item.OrderID, item.Quantity, item.UnitPrice, item.LineSubtotal, nullJSON(item.Prescription))
	return expectRow(res, err)
}

func (t *tx) DeleteOrderItem(ctx context.Context, orderID string, itemID string) error {
	if err := t.write(); err != nil {
		return err
	}
	res, err := t.tx.ExecContext(ctx, `DELETE FROM sales_order_items WHERE id = $1 AND order_id = $2`, itemID, orderID)
	return expectRow(res, err)
}

type paymentRow struct {
	ID            string          `db:"id"`
	OrderID       string          `db:"order_id"`
	PaidAt        time.Time       `db:"paid_at"`
	Amount        decimal.Decimal `db:"amount"`
	Method        string          `db:"method"`
	BankRef       string          `db:"bank_ref"`
	TransactionID string          `db:"transaction_id"`
	ReceivedBy    int64           `db:"received_by"`
	ShiftID       string          `db:"shift_id"`
	Notes         string          `db:"notes"`
}

func (r paymentRow) toDomain() domain.Payment {
	return domain.Payment{
		ID:            r.ID,
		OrderID:       r.OrderID,
		PaidAt:        r.PaidAt.UTC(),
		Amount:        r.Amount,
		Method:        r.Method,
		BankRef:       r.BankRef,
		TransactionID: r.TransactionID,
		ReceivedBy:    r.ReceivedBy,
		ShiftID:       r.ShiftID,
		Notes:         r.Notes,
	}
}

const paymentColumns = `id, order_id, paid_at, amount, method, bank_ref, transaction_id, received_by,
	COALESCE(shift_id, '') AS shift_id, notes`

func (t *tx) InsertPayment(ctx context.Context, payment domain.Payment) error {
	if err := t.write(); err != nil {
		return err
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO payments (id, order_id, paid_at, amount, method, bank_ref, transaction_id, received_by, shift_id, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NULLIF($9,''),$10)
	`, payment.ID, payment.OrderID, payment.PaidAt, payment.Amount, payment.Method, payment.BankRef,
		payment.TransactionID, payment.ReceivedBy, payment.ShiftID, payment.Notes)
	return classify(err)
}

func (t *tx) GetPayment(ctx context.Context, id string) (domain.Payment, error) {
	var row paymentRow
	if err := t.tx.GetContext(ctx, &row, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id); err != nil {
		return domain.Payment{}, classify(err)
	}
	return row.toDomain(), nil
}

func (t *tx) ListPayments(ctx context.Context, orderID string) ([]domain.Payment, error) {
	rows := make([]paymentRow, 0, 4)
	if err := t.tx.SelectContext(ctx, &rows, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE order_id = $1
		ORDER BY paid_at ASC, seq ASC
	`, orderID); err != nil {
		return nil, classify(err)
	}
	payments := make([]domain.Payment, 0, len(rows))
	for _, row := range rows {
		payments = append(payments, row.toDomain())
	}
	return payments, nil
}

type stockRow struct {
	InventoryItemID string          `db:"inventory_item_id"`
	Name            string          `db:"name"`
	QuantityOnHand  int             `db:"quantity_on_hand"`
	CostPrice       decimal.Decimal `db:"cost_price"`
	MinStock        int             `db:"min_stock"`
	UpdatedAt       time.Time       `db:"updated_at"`
}

func (r stockRow) toDomain() domain.StockLevel {
	return domain.StockLevel{
		InventoryItemID: r.InventoryItemID,
		Name:            r.Name,
		QuantityOnHand:  r.QuantityOnHand,
		CostPrice:       r.CostPrice,
		MinStock:        r.MinStock,
		UpdatedAt:       r.UpdatedAt.UTC(),
	}
}

const stockColumns = `inventory_item_id, name, quantity_on_hand, cost_price, min_stock, updated_at`

func (t *tx) GetStock(ctx context.Context, inventoryItemID string) (domain.StockLevel, error) {
	var row stockRow
	if err := t.tx.GetContext(ctx, &row, `SELECT `+stockColumns+` FROM stock_levels WHERE inventory_item_id = $1`, inventoryItemID); err != nil {
		return domain.StockLevel{}, classify(err)
	}
	return row.toDomain(), nil
}

func (t *tx) ListStock(ctx context.Context) ([]domain.StockLevel, error) {
	rows := make([]stockRow, 0, 64)
	if err := t.tx.SelectContext(ctx, &rows, `SELECT `+stockColumns+` FROM stock_levels ORDER BY inventory_item_id`); err != nil {
		return nil, classify(err)
	}
	levels := make([]domain.StockLevel, 0, len(rows))
	for _, row := range rows {
		levels = append(levels, row.toDomain())
	}
	return levels, nil
}

// AddStock applies delta in a single conditional UPDATE so concurrent writers can
// never take the quantity below zero.
func (t *tx) AddStock(ctx context.Context, inventoryItemID string, delta int) (int, int, error) {
	if err := t.write(); err != nil {
		return 0, 0, err
	}
	var newQty int
	err := t.tx.QueryRowxContext(ctx, `
		UPDATE stock_levels
		SET quantity_on_hand = quantity_on_hand + $2, updated_at = now()
		WHERE inventory_item_id = $1 AND quantity_on_hand + $2 >= 0
		RETURNING quantity_on_hand
	`, inventoryItemID, delta).Scan(&newQty)
	if err == nil {
		return newQty - delta, newQty, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, 0, classify(err)
	}

	var current int
	if err := t.tx.GetContext(ctx, &current, `SELECT quantity_on_hand FROM stock_levels WHERE inventory_item_id = $1`, inventoryItemID); err != nil {
		return 0, 0, classify(err)
	}
	return current, current, store.ErrInsufficientStock
}

func (t *tx) SetCostPrice(ctx context.Context, inventoryItemID string, cost decimal.Decimal) error {
	if err := t.write(); err != nil {
		return err
	}
	res, err := t.tx.ExecContext(ctx, `
		UPDATE stock_levels SET cost_price = $2, updated_at = now() WHERE inventory_item_id = $1
	`, inventoryItemID, cost)
	return expectRow(res, err)
}

type purchaseOrderRow struct {
	ID           string       `db:"id"`
	SupplierName string       `db:"supplier_name"`
	Status       string       `db:"status"`
	CreatedBy    int64        `db:"created_by"`
	CreatedAt    time.Time    `db:"created_at"`
	ReceivedAt   sql.NullTime `db:"received_at"`
}

type purchaseOrderItemRow struct {
	ID               string          `db:"id"`
	PurchaseOrderID  string          `db:"purchase_order_id"`
	InventoryItemID  string          `db:"inventory_item_id"`
	QuantityOrdered  int             `db:"quantity_ordered"`
	QuantityReceived int             `db:"quantity_received"`
	UnitCost         decimal.Decimal `db:"unit_cost"`
}

func (r purchaseOrderItemRow) toDomain() domain.PurchaseOrderItem {
	return domain.PurchaseOrderItem{
		ID:               r.ID,
		PurchaseOrderID:  r.PurchaseOrderID,
		InventoryItemID:  r.InventoryItemID,
		QuantityOrdered:  r.QuantityOrdered,
		QuantityReceived: r.QuantityReceived,
		UnitCost:         r.UnitCost,
	}
}

const purchaseOrderItemColumns = `id, purchase_order_id, inventory_item_id, quantity_ordered, quantity_received, unit_cost`

func (t *tx) InsertPurchaseOrder(ctx context.Context, po domain.PurchaseOrder) error {
	if err := t.write(); err != nil {
		return err
	}
	if _, err := t.tx.ExecContext(ctx, `
		INSERT INTO purchase_orders (id, supplier_name, status, created_by, created_at, received_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, po.ID, po.SupplierName, po.Status, po.CreatedBy, po.CreatedAt, po.ReceivedAt); err != nil {
		return classify(err)
	}
	for _, item := range po.Items {
		if _, err := t.tx.ExecContext(ctx, `
			INSERT INTO purchase_order_items (`+purchaseOrderItemColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, item.ID, po.ID, item.InventoryItemID, item.QuantityOrdered, item.QuantityReceived, item.UnitCost); err != nil {
			return classify(err)
		}
	}
	return nil
}

func (t *tx) GetPurchaseOrder(ctx context.Context, id string) (domain.PurchaseOrder, error) {
	var row purchaseOrderRow
	if err := t.tx.GetContext(ctx, &row, `
		SELECT id, supplier_name, status, created_by, created_at, received_at
		FROM purchase_orders
		WHERE id = $1`+t.forUpdate(), id); err != nil {
		return domain.PurchaseOrder{}, classify(err)
	}

	items := make([]purchaseOrderItemRow, 0, 8)
	if err := t.tx.SelectContext(ctx, &items, `
		SELECT `+purchaseOrderItemColumns+`
		FROM purchase_order_items
		WHERE purchase_order_id = $1
		ORDER BY seq ASC`+t.forUpdate(), id); err != nil {
		return domain.PurchaseOrder{}, classify(err)
	}

	po := domain.PurchaseOrder{
		ID:           row.ID,
		SupplierName: row.SupplierName,
		Status:       row.Status,
		CreatedBy:    row.CreatedBy,
		CreatedAt:    row.CreatedAt.UTC(),
		ReceivedAt:   timePtr(row.ReceivedAt),
		Items:        make([]domain.PurchaseOrderItem, 0, len(items)),
	}
	for _, item := range items {
		po.Items = append(po.Items, item.toDomain())
	}
	return po, nil
}

func (t *tx) GetPurchaseOrderItem(ctx context.Context, itemID string) (domain.PurchaseOrderItem, error) {
	var row purchaseOrderItemRow
	if err := t.tx.GetContext(ctx, &row, `
		SELECT `+purchaseOrderItemColumns+` FROM purchase_order_items WHERE id = $1`+t.forUpdate(), itemID); err != nil {
		return domain.PurchaseOrderItem{}, classify(err)
	}
	return row.toDomain(), nil
}

func (t *tx) UpdatePurchaseOrderItem(ctx context.Context, item domain.PurchaseOrderItem) error {
	if err := t.write(); err != nil {
		return err
	}
	res, err := t.tx.ExecContext(ctx, `
		UPDATE purchase_order_items SET quantity_received = $3 WHERE id = $1 AND purchase_order_id = $2
	`, item.ID, item.PurchaseOrderID, item.QuantityReceived)
	return expectRow(res, err)
}

func (t *tx) UpdatePurchaseOrderStatus(ctx context.Context, id string, status string, receivedAt *time.Time) error {
	if err := t.write(); err != nil {
		return err
	}
	res, err := t.tx.ExecContext(ctx, `
		UPDATE purchase_orders SET status = $2, received_at = $3 WHERE id = $1
	`, id, status, receivedAt)
	return expectRow(res, err)
}

func (t *tx) InsertExpense(ctx context.Context, expense domain.Expense) error {
	if err := t.write(); err != nil {
		return err
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO expenses (id, shift_id, user_id, amount, category, description, spent_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, expense.ID, expense.ShiftID, expense.UserID, expense.Amount, expense.Category, expense.Description, expense.SpentAt)
	return classify(err)
}

func (t *tx) ListExpensesByShift(ctx context.Context, shiftID string) ([]domain.Expense, error) {
	var rows []struct {
		ID          string          `db:"id"`
		ShiftID     string          `db:"shift_id"`
		UserID      int64           `db:"user_id"`
		Amount      decimal.Decimal `db:"amount"`
		Category    string          `db:"category"`
		Description string          `db:"description"`
		SpentAt     time.Time       `db:"spent_at"`
	}
	if err := t.tx.SelectContext(ctx, &rows, `
		SELECT id, shift_id, user_id, amount, category, description, spent_at
		FROM expenses
		WHERE shift_id = $1
		ORDER BY spent_at ASC, seq ASC
	`, shiftID); err != nil {
		return nil, classify(err)
	}
	expenses := make([]domain.Expense, 0, len(rows))
	for _, row := range rows {
		expenses = append(expenses, domain.Expense{
			ID:          row.ID,
			ShiftID:     row.ShiftID,
			UserID:      row.UserID,
			Amount:      row.Amount,
			Category:    row.Category,
			Description: row.Description,
			SpentAt:     row.SpentAt.UTC(),
		})
	}
	return expenses, nil
}

func (t *tx) AppendAudit(ctx context.Context, entry domain.AuditLog) error {
	if err := t.write(); err != nil {
		return err
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO audit_logs (id, entity_type, record_key, field, old_value, new_value, actor_user_id, action, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, entry.ID, entry.EntityType, entry.RecordKey, entry.Field, entry.OldValue, entry.NewValue,
		entry.ActorUserID, entry.Action, entry.Detail, entry.CreatedAt)
	return classify(err)
}

func (t *tx) ListAuditLogs(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditLog, error) {
	where := make([]string, 0, 4)
	args := make([]any, 0, 5)
	add := func(clause string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if v := strings.TrimSpace(filter.EntityType); v != "" {
		add("entity_type = $%d", v)
	}
	if v := strings.TrimSpace(filter.RecordKey); v != "" {
		add("record_key = $%d", v)
	}
	if !filter.From.IsZero() {
		add("created_at >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("created_at < $%d", filter.To)
	}

	query := `
		SELECT id, entity_type, record_key, field, old_value, new_value, actor_user_id, action, detail, created_at
		FROM audit_logs`
	if len(where) > 0 {
		query += "\n\t\tWHERE " + strings.Join(where, " AND ")
	}
	query += "\n\t\tORDER BY created_at DESC, seq DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf("\n\t\tLIMIT $%d", len(args))
	}

	var rows []struct {
		ID          string    `db:"id"`
		EntityType  string    `db:"entity_type"`
		RecordKey   string    `db:"record_key"`
		Field       string    `db:"field"`
		OldValue    string    `db:"old_value"`
		NewValue    string    `db:"new_value"`
		ActorUserID int64     `db:"actor_user_id"`
		Action      string    `db:"action"`
		Detail      string    `db:"detail"`
		CreatedAt   time.Time `db:"created_at"`
	}
	if err := t.tx.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, classify(err)
	}
	logs := make([]domain.AuditLog, 0, len(rows))
	for _, row := range rows {
		logs = append(logs, domain.AuditLog{
			ID:          row.ID,
			EntityType:  row.EntityType,
			RecordKey:   row.RecordKey,
			Field:       row.Field,
			OldValue:    row.OldValue,
			NewValue:    row.NewValue,
			ActorUserID: row.ActorUserID,
			Action:      row.Action,
			Detail:      row.Detail,
			CreatedAt:   row.CreatedAt.UTC(),
		})
	}
	return logs, nil
}

type userRow struct {
	ID          int64     `db:"id"`
	Username    string    `db:"username"`
	Password    string    `db:"password"`
	Role        string    `db:"role"`
	CanDiscount bool      `db:"can_discount"`
	Active      bool      `db:"active"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r userRow) toDomain() domain.UserAccount {
	return domain.UserAccount{
		ID:          r.ID,
		Username:    r.Username,
		Password:    r.Password,
		Role:        r.Role,
		CanDiscount: r.CanDiscount,
		Active:      r.Active,
		CreatedAt:   r.CreatedAt.UTC(),
	}
}

func (t *tx) GetUserByID(ctx context.Context, id int64) (domain.UserAccount, error) {
	var row userRow
	if err := t.tx.GetContext(ctx, &row, `
		SELECT id, username, password, role, can_discount, active, created_at FROM app_users WHERE id = $1
	`, id); err != nil {
		return domain.UserAccount{}, classify(err)
	}
	return row.toDomain(), nil
}

func (t *tx) GetUserByUsername(ctx context.Context, username string) (domain.UserAccount, error) {
	var row userRow
	if err := t.tx.GetContext(ctx, &row, `
		SELECT id, username, password, role, can_discount, active, created_at FROM app_users WHERE username = $1
	`, strings.ToLower(strings.TrimSpace(username))); err != nil {
		return domain.UserAccount{}, classify(err)
	}
	return row.toDomain(), nil
}

// classify maps driver errors onto the store sentinels, keeping the original error in the chain.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return errors.Join(store.ErrConflict, err)
		case "23503":
			return errors.Join(store.ErrNotFound, err)
		case "23514":
			if pgErr.ConstraintName == "stock_levels_quantity_on_hand_check" {
				return errors.Join(store.ErrInsufficientStock, err)
			}
		case "22003":
			return errors.Join(store.ErrOutOfRange, err)
		case "40001", "40P01":
			return errors.Join(store.ErrTransient, err)
		}
	}
	return err
}

func expectRow(res sql.Result, err error) error {
	if err != nil {
		return classify(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func nullJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}
