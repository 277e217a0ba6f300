package memory

import (
	"context"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"optikpos/backend/internal/domain"
	"optikpos/backend/internal/store"
)

// Store keeps the whole ledger in process memory. Update works on a copy of the state
// and swaps it in only when the unit of work succeeds.
type Store struct {
	mu    sync.RWMutex
	state *state
}

type state struct {
	shifts          map[string]domain.Shift
	orders          map[string]domain.SalesOrder
	payments        map[string]domain.Payment
	paymentsByOrder map[string][]string
	stock           map[string]domain.StockLevel
	purchaseOrders  map[string]domain.PurchaseOrder
	poItemOwner     map[string]string
	expenses        []domain.Expense
	auditLogs       []domain.AuditLog
	usersByID       map[int64]domain.UserAccount
}

func newState() *state {
	return &state{
		shifts:          make(map[string]domain.Shift),
		orders:          make(map[string]domain.SalesOrder),
		payments:        make(map[string]domain.Payment),
		paymentsByOrder: make(map[string][]string),
		stock:           make(map[string]domain.StockLevel),
		purchaseOrders:  make(map[string]domain.PurchaseOrder),
		poItemOwner:     make(map[string]string),
		expenses:        make([]domain.Expense, 0, 32),
		auditLogs:       make([]domain.AuditLog, 0, 128),
		usersByID:       make(map[int64]domain.UserAccount),
	}
}

func (s *state) clone() *state {
	c := &state{
		shifts:          maps.Clone(s.shifts),
		orders:          make(map[string]domain.SalesOrder, len(s.orders)),
		payments:        maps.Clone(s.payments),
		paymentsByOrder: make(map[string][]string, len(s.paymentsByOrder)),
		stock:           maps.Clone(s.stock),
		purchaseOrders:  make(map[string]domain.PurchaseOrder, len(s.purchaseOrders)),
		poItemOwner:     maps.Clone(s.poItemOwner),
		expenses:        slices.Clone(s.expenses),
		auditLogs:       slices.Clone(s.auditLogs),
		usersByID:       maps.Clone(s.usersByID),
	}
	for id, order := range s.orders {
		c.orders[id] = cloneOrder(order)
	}
	for id, ids := range s.paymentsByOrder {
		c.paymentsByOrder[id] = slices.Clone(ids)
	}
	for id, po := range s.purchaseOrders {
		po.Items = slices.Clone(po.Items)
		c.purchaseOrders[id] = po
	}
	return c
}

func cloneOrder(order domain.SalesOrder) domain.SalesOrder {
	order.Items = slices.Clone(order.Items)
	return order
}

func seedUsers() map[int64]domain.UserAccount {
	users := map[int64]domain.UserAccount{}
	for _, account := range store.SeedAccounts("memory-store") {
		users[account.ID] = account
	}
	return users
}

func New() *Store {
	return &Store{state: newState()}
}

func NewSeeded() *Store {
	now := time.Now().UTC()
	st := newState()
	st.usersByID = seedUsers()
	for _, item := range []domain.StockLevel{
		{InventoryItemID: "frame-classic-52", Name: "Classic Acetate Frame 52", QuantityOnHand: 10, CostPrice: decimal.RequireFromString("12.00"), MinStock: 3},
		{InventoryItemID: "frame-titan-54", Name: "Titanium Frame 54", QuantityOnHand: 4, CostPrice: decimal.RequireFromString("38.50"), MinStock: 2},
		{InventoryItemID: "lens-sv-156", Name: "Single Vision Lens 1.56", QuantityOnHand: 40, CostPrice: decimal.RequireFromString("6.25"), MinStock: 10},
		{InventoryItemID: "lens-prog-167", Name: "Progressive Lens 1.67", QuantityOnHand: 6, CostPrice: decimal.RequireFromString("44.00"), MinStock: 4},
		{InventoryItemID: "cl-monthly-6", Name: "Monthly Contact Lens 6pk", QuantityOnHand: 2, CostPrice: decimal.RequireFromString("9.80"), MinStock: 5},
		{InventoryItemID: "care-kit", Name: "Lens Care Kit", QuantityOnHand: 25, CostPrice: decimal.RequireFromString("2.40"), MinStock: 8},
	} {
		item.UpdatedAt = now
		st.stock[item.InventoryItemID] = item
	}
	return &Store{state: st}
}

func (s *Store) Update(ctx context.Context, fn func(store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.state.clone()
	if err := fn(&tx{st: working, writable: true}); err != nil {
		return err
	}
	s.state = working
	return nil
}

func (s *Store) View(ctx context.Context, fn func(store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&tx{st: s.state})
}

type tx struct {
	st       *state
	writable bool
}

func (t *tx) write() error {
	if !t.writable {
		return store.ErrReadOnly
	}
	return nil
}

func (t *tx) InsertShift(_ context.Context, shift domain.Shift) error {
	if err := t.write(); err != nil {
		return err
	}
	if _, exists := t.st.shifts[shift.ID]; exists {
		return store.ErrConflict
	}
	if domain.IsOpenShiftStatus(shift.Status) {
		if _, err := t.FindOpenShift(context.Background(), shift.UserID); err == nil {
			return store.ErrConflict
		}
	}
	t.st.shifts[shift.ID] = shift
	return nil
}

func (t *tx) UpdateShift(_ context.Context, shift domain.Shift) error {
	if err := t.write(); err != nil {
		return err
	}
	if _, exists := t.st.shifts[shift.ID]; !exists {
		return store.ErrNotFound
	}
	if domain.IsOpenShiftStatus(shift.Status) {
		for id, other := range t.st.shifts {
			if id != shift.ID && other.UserID == shift.UserID && domain.IsOpenShiftStatus(other.Status) {
				return store.ErrConflict
			}
		}
	}
	t.st.shifts[shift.ID] = shift
	return nil
}

func (t *tx) GetShift(_ context.Context, id string) (domain.Shift, error) {
	shift, ok := t.st.shifts[id]
	if !ok {
		return domain.Shift{}, store.ErrNotFound
	}
	return shift, nil
}

func (t *tx) FindOpenShift(_ context.Context, userID int64) (domain.Shift, error) {
	for _, shift := range t.st.shifts {
		if shift.UserID == userID && domain.IsOpenShiftStatus(shift.Status) {
			return shift, nil
		}
	}
	return domain.Shift{}, store.ErrNotFound
}

func (t *tx) ListShiftsByStatus(_ context.Context, status string) ([]domain.Shift, error) {
	shifts := make([]domain.Shift, 0, 8)
	for _, shift := range t.st.shifts {
		if shift.Status == status {
			shifts = append(shifts, shift)
		}
	}
	sort.Slice(shifts, func(i, j int) bool {
		return shifts[i].StartedAt.Before(shifts[j].StartedAt)
	})
	return shifts, nil
}

func (t *tx) ShiftCashTotals(_ context.Context, shiftID string) (domain.ShiftCashTotals, error) {
	totals := domain.ShiftCashTotals{
		CashReceived:    decimal.Zero,
		NonCashReceived: decimal.Zero,
		CashExpenses:    decimal.Zero,
	}
	for _, payment := range t.st.payments {
		if payment.ShiftID != shiftID {
			continue
		}
		totals.PaymentCount++
		if payment.Method == domain.PaymentMethodCash {
			totals.CashReceived = totals.CashReceived.Add(payment.Amount)
		} else {
			totals.NonCashReceived = totals.NonCashReceived.Add(payment.Amount)
		}
	}
	for _, expense := range t.st.expenses {
		if expense.ShiftID != shiftID {
			continue
		}
		totals.ExpenseCount++
		totals.CashExpenses = totals.CashExpenses.Add(expense.Amount)
	}
	return totals, nil
}

func (t *tx) InsertOrder(_ context.Context, order domain.SalesOrder) error {
	if err := t.write(); err != nil {
		return err
	}
	if _, exists := t.st.orders[order.ID]; exists {
		return store.ErrConflict
	}
	t.st.orders[order.ID] = cloneOrder(order)
	return nil
}

func (t *tx) UpdateOrder(_ context.Context, order domain.SalesOrder) error {
	if err := t.write(); err != nil {
		return err
	}
	existing, ok := t.st.orders[order.ID]
	if !ok {
		return store.ErrNotFound
	}
	order.Items = existing.Items
	t.st.orders[order.ID] = order
	return nil
}

func (t *tx) GetOrder(_ context.Context, id string) (domain.SalesOrder, error) {
	order, ok := t.st.orders[id]
	if !ok {
		return domain.SalesOrder{}, store.ErrNotFound
	}
	return cloneOrder(order), nil
}

func (t *tx) InsertOrderItem(_ context.Context, item domain.SalesOrderItem) error {
	if err := t.write(); err != nil {
		return err
	}
	order, ok := t.st.orders[item.OrderID]
	if !ok {
		return store.ErrNotFound
	}
	if slices.ContainsFunc(order.Items, func(existing domain.SalesOrderItem) bool { return existing.ID == item.ID }) {
		return store.ErrConflict
	}
	order.Items = append(order.Items, item)
	t.st.orders[order.ID] = order
	return nil
}

func (t *tx) UpdateOrderItem(_ context.Context, item domain.SalesOrderItem) error {
	if err := t.write(); err != nil {
		return err
	}
	order, ok := t.st.orders[item.OrderID]
	if !ok {
		return store.ErrNotFound
	}
	idx := slices.IndexFunc(order.Items, func(existing domain.SalesOrderItem) bool { return existing.ID == item.ID })
	if idx < 0 {
		return store.ErrNotFound
	}
	order.Items[idx] = item
	t.st.orders[order.ID] = order
	return nil
}

func (t *tx) DeleteOrderItem(_ context.Context, orderID string, itemID string) error {
	if err := t.write(); err != nil {
		return err
	}
	order, ok := t.st.orders[orderID]
	if !ok {
		return store.ErrNotFound
	}
	idx := slices.IndexFunc(order.Items, func(existing domain.SalesOrderItem) bool { return existing.ID == itemID })
	if idx < 0 {
		return store.ErrNotFound
	}
	order.Items = slices.Delete(order.Items, idx, idx+1)
	t.st.orders[order.ID] = order
	return nil
}

func (t *tx) InsertPayment(_ context.Context, payment domain.Payment) error {
	if err := t.write(); err != nil {
		return err
	}
	if _, exists := t.st.payments[payment.ID]; exists {
		return store.ErrConflict
	}
	if _, ok := t.st.orders[payment.OrderID]; !ok {
		return store.ErrNotFound
	}
	t.st.payments[payment.ID] = payment
	t.st.paymentsByOrder[payment.OrderID] = append(t.st.paymentsByOrder[payment.OrderID], payment.ID)
	return nil
}

func (t *tx) GetPayment(_ context.Context, id string) (domain.Payment, error) {
	payment, ok := t.st.payments[id]
	if !ok {
		return domain.Payment{}, store.ErrNotFound
	}
	return payment, nil
}

func (t *tx) ListPayments(_ context.Context, orderID string) ([]domain.Payment, error) {
	ids := t.st.paymentsByOrder[orderID]
	payments := make([]domain.Payment, 0, len(ids))
	for _, id := range ids {
		payments = append(payments, t.st.payments[id])
	}
	return payments, nil
}

func (t *tx) GetStock(_ context.Context, inventoryItemID string) (domain.StockLevel, error) {
	level, ok := t.st.stock[inventoryItemID]
	if !ok {
		return domain.StockLevel{}, store.ErrNotFound
	}
	return level, nil
}

func (t *tx) ListStock(_ context.Context) ([]domain.StockLevel, error) {
	levels := make([]domain.StockLevel, 0, len(t.st.stock))
	for _, level := range t.st.stock {
		levels = append(levels, level)
	}
	sort.Slice(levels, func(i, j int) bool {
		return levels[i].InventoryItemID < levels[j].InventoryItemID
	})
	return levels, nil
}

func (t *tx) AddStock(_ context.Context, inventoryItemID string, delta int) (int, int, error) {
	if err := t.write(); err != nil {
		return 0, 0, err
	}
	level, ok := t.st.stock[inventoryItemID]
	if !ok {
		return 0, 0, store.ErrNotFound
	}
	oldQty := level.QuantityOnHand
	newQty := oldQty + delta
	if newQty < 0 {
		return oldQty, oldQty, store.ErrInsufficientStock
	}
	if newQty > domain.MaxQuantity {
		return oldQty, oldQty, store.ErrOutOfRange
	}
	level.QuantityOnHand = newQty
	level.UpdatedAt = time.Now().UTC()
	t.st.stock[inventoryItemID] = level
	return oldQty, newQty, nil
}

func (t *tx) SetCostPrice(_ context.Context, inventoryItemID string, cost decimal.Decimal) error {
	if err := t.write(); err != nil {
		return err
	}
	level, ok := t.st.stock[inventoryItemID]
	if !ok {
		return store.ErrNotFound
	}
	level.CostPrice = cost
	level.UpdatedAt = time.Now().UTC()
	t.st.stock[inventoryItemID] = level
	return nil
}

func (t *tx) InsertPurchaseOrder(_ context.Context, po domain.PurchaseOrder) error {
	if err := t.write(); err != nil {
		return err
	}
	if _, exists := t.st.purchaseOrders[po.ID]; exists {
		return store.ErrConflict
	}
	for _, item := range po.Items {
		if _, ok := t.st.stock[item.InventoryItemID]; !ok {
			return store.ErrNotFound
		}
		if _, taken := t.st.poItemOwner[item.ID]; taken {
			return store.ErrConflict
		}
	}
	po.Items = slices.Clone(po.Items)
	t.st.purchaseOrders[po.ID] = po
	for _, item := range po.Items {
		t.st.poItemOwner[item.ID] = po.ID
	}
	return nil
}

func (t *tx) GetPurchaseOrder(_ context.Context, id string) (domain.PurchaseOrder, error) {
	po, ok := t.st.purchaseOrders[id]
	if !ok {
		return domain.PurchaseOrder{}, store.ErrNotFound
	}
	po.Items = slices.Clone(po.Items)
	return po, nil
}

func (t *tx) GetPurchaseOrderItem(_ context.Context, itemID string) (domain.PurchaseOrderItem, error) {
	poID, ok := t.st.poItemOwner[itemID]
	if !ok {
		return domain.PurchaseOrderItem{}, store.ErrNotFound
	}
	for _, item := range t.st.purchaseOrders[poID].Items {
		if item.ID == itemID {
			return item, nil
		}
	}
	return domain.PurchaseOrderItem{}, store.ErrNotFound
}

func (t *tx) UpdatePurchaseOrderItem(_ context.Context, item domain.PurchaseOrderItem) error {
	if err := t.write(); err != nil {
		return err
	}
	po, ok := t.st.purchaseOrders[item.PurchaseOrderID]
	if !ok {
		return store.ErrNotFound
	}
	idx := slices.IndexFunc(po.Items, func(existing domain.PurchaseOrderItem) bool { return existing.ID == item.ID })
	if idx < 0 {
		return store.ErrNotFound
	}
	po.Items[idx] = item
	t.st.purchaseOrders[po.ID] = po
	return nil
}

func (t *tx) UpdatePurchaseOrderStatus(_ context.Context, id string, status string, receivedAt *time.Time) error {
	if err := t.write(); err != nil {
		return err
	}
	po, ok := t.st.purchaseOrders[id]
	if !ok {
		return store.ErrNotFound
	}
	po.Status = status
	po.ReceivedAt = receivedAt
	t.st.purchaseOrders[id] = po
	return nil
}

func (t *tx) InsertExpense(_ context.Context, expense domain.Expense) error {
	if err := t.write(); err != nil {
		return err
	}
	if _, ok := t.st.shifts[expense.ShiftID]; !ok {
		return store.ErrNotFound
	}
	t.st.expenses = append(t.st.expenses, expense)
	return nil
}

func (t *tx) ListExpensesByShift(_ context.Context, shiftID string) ([]domain.Expense, error) {
	expenses := make([]domain.Expense, 0, 8)
	for _, expense := range t.st.expenses {
		if expense.ShiftID == shiftID {
			expenses = append(expenses, expense)
		}
	}
	return expenses, nil
}

func (t *tx) AppendAudit(_ context.Context, entry domain.AuditLog) error {
	if err := t.write(); err != nil {
		return err
	}
	t.st.auditLogs = append(t.st.auditLogs, entry)
	return nil
}

func (t *tx) ListAuditLogs(_ context.Context, filter domain.AuditFilter) ([]domain.AuditLog, error) {
	entityType := strings.TrimSpace(filter.EntityType)
	recordKey := strings.TrimSpace(filter.RecordKey)

	logs := make([]domain.AuditLog, 0, 32)
	for i := len(t.st.auditLogs) - 1; i >= 0; i-- {
		entry := t.st.auditLogs[i]
		if entityType != "" && entry.EntityType != entityType {
			continue
		}
		if recordKey != "" && entry.RecordKey != recordKey {
			continue
		}
		if !filter.From.IsZero() && entry.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !entry.CreatedAt.Before(filter.To) {
			continue
		}
		logs = append(logs, entry)
		if filter.Limit > 0 && len(logs) >= filter.Limit {
			break
		}
	}
	return logs, nil
}

func (t *tx) GetUserByID(_ context.Context, id int64) (domain.UserAccount, error) {
	user, ok := t.st.usersByID[id]
	if !ok {
		return domain.UserAccount{}, store.ErrNotFound
	}
	return user, nil
}

func (t *tx) GetUserByUsername(_ context.Context, username string) (domain.UserAccount, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	for _, user := range t.st.usersByID {
		if user.Username == username {
			return user, nil
		}
	}
	return domain.UserAccount{}, store.ErrNotFound
}
