package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optikpos/backend/internal/domain"
	"optikpos/backend/internal/store"
)

func TestUpdateRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	st := NewSeeded()
	boom := errors.New("boom")

	err := st.Update(ctx, func(tx store.Tx) error {
		if _, _, err := tx.AddStock(ctx, "frame-classic-52", -3); err != nil {
			return err
		}
		if err := tx.AppendAudit(ctx, domain.AuditLog{ID: "audit-1", EntityType: "stock", CreatedAt: time.Now().UTC()}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.NoError(t, st.View(ctx, func(tx store.Tx) error {
		level, err := tx.GetStock(ctx, "frame-classic-52")
		require.NoError(t, err)
		assert.Equal(t, 10, level.QuantityOnHand)

		logs, err := tx.ListAuditLogs(ctx, domain.AuditFilter{})
		require.NoError(t, err)
		assert.Empty(t, logs)
		return nil
	}))
}

func TestAddStockRefusesNegativeResult(t *testing.T) {
	ctx := context.Background()
	st := NewSeeded()

	err := st.Update(ctx, func(tx store.Tx) error {
		_, _, err := tx.AddStock(ctx, "cl-monthly-6", -3)
		return err
	})
	assert.ErrorIs(t, err, store.ErrInsufficientStock)

	err = st.Update(ctx, func(tx store.Tx) error {
		oldQty, newQty, err := tx.AddStock(ctx, "cl-monthly-6", -2)
		assert.Equal(t, 2, oldQty)
		assert.Equal(t, 0, newQty)
		return err
	})
	assert.NoError(t, err)

	err = st.Update(ctx, func(tx store.Tx) error {
		_, _, err := tx.AddStock(ctx, "missing", 1)
		return err
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestViewIsReadOnly(t *testing.T) {
	ctx := context.Background()
	st := NewSeeded()

	err := st.View(ctx, func(tx store.Tx) error {
		return tx.SetCostPrice(ctx, "care-kit", decimal.NewFromInt(1))
	})
	assert.ErrorIs(t, err, store.ErrReadOnly)
}

func TestInsertShiftRejectsSecondOpenShift(t *testing.T) {
	ctx := context.Background()
	st := New()

	insert := func(id string, status string) error {
		return st.Update(ctx, func(tx store.Tx) error {
			return tx.InsertShift(ctx, domain.Shift{ID: id, UserID: 7, Status: status, StartedAt: time.Now().UTC()})
		})
	}

	require.NoError(t, insert("shift-a", domain.ShiftStatusInterrupted))
	assert.ErrorIs(t, insert("shift-b", domain.ShiftStatusActive), store.ErrConflict)
	require.NoError(t, insert("shift-c", domain.ShiftStatusEnded))
}

func TestReadsDoNotAliasState(t *testing.T) {
	ctx := context.Background()
	st := New()
	order := domain.SalesOrder{ID: "order-1", Status: domain.OrderStatusPending, Items: []domain.SalesOrderItem{{ID: "item-1", OrderID: "order-1", Quantity: 1}}}
	require.NoError(t, st.Update(ctx, func(tx store.Tx) error { return tx.InsertOrder(ctx, order) }))

	require.NoError(t, st.View(ctx, func(tx store.Tx) error {
		got, err := tx.GetOrder(ctx, "order-1")
		require.NoError(t, err)
		got.Items[0].Quantity = 99
		return nil
	}))

	require.NoError(t, st.View(ctx, func(tx store.Tx) error {
		got, err := tx.GetOrder(ctx, "order-1")
		require.NoError(t, err)
		assert.Equal(t, 1, got.Items[0].Quantity)
		return nil
	}))
}

func TestListAuditLogsNewestFirstWithFilter(t *testing.T) {
	ctx := context.Background()
	st := New()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, st.Update(ctx, func(tx store.Tx) error {
		for i, key := range []string{"a", "b", "a"} {
			if err := tx.AppendAudit(ctx, domain.AuditLog{
				ID:         key + string(rune('0'+i)),
				EntityType: "stock",
				RecordKey:  key,
				CreatedAt:  base.Add(time.Duration(i) * time.Minute),
			}); err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, st.View(ctx, func(tx store.Tx) error {
		logs, err := tx.ListAuditLogs(ctx, domain.AuditFilter{RecordKey: "a"})
		require.NoError(t, err)
		require.Len(t, logs, 2)
		assert.Equal(t, "a2", logs[0].ID)
		assert.Equal(t, "a0", logs[1].ID)

		logs, err = tx.ListAuditLogs(ctx, domain.AuditFilter{From: base.Add(time.Minute), Limit: 1})
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.Equal(t, "a2", logs[0].ID)
		return nil
	}))
}
