package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optikpos/backend/internal/apperr"
	"optikpos/backend/internal/domain"
)

func createTestPurchaseOrder(t *testing.T, svc *Service, lines ...domain.PurchaseOrderLine) domain.PurchaseOrder {
	t.Helper()
	po, err := svc.CreatePurchaseOrder(context.Background(), adminID, domain.PurchaseOrderCreateRequest{
		SupplierName: "Lensa Prima",
		Items:        lines,
	})
	require.NoError(t, err)
	return po
}

func TestCreatePurchaseOrderValidation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.CreatePurchaseOrder(ctx, adminID, domain.PurchaseOrderCreateRequest{SupplierName: "Lensa Prima"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.CreatePurchaseOrder(ctx, adminID, domain.PurchaseOrderCreateRequest{
		SupplierName: "Lensa Prima",
		Items:        []domain.PurchaseOrderLine{{InventoryItemID: "care-kit", QuantityOrdered: 0, UnitCost: dec("1")}},
	})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.CreatePurchaseOrder(ctx, adminID, domain.PurchaseOrderCreateRequest{
		SupplierName: "Lensa Prima",
		Items:        []domain.PurchaseOrderLine{{InventoryItemID: "no-such-item", QuantityOrdered: 2, UnitCost: dec("1")}},
	})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestReceiveRejectsOverReceipt(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	po := createTestPurchaseOrder(t, svc, domain.PurchaseOrderLine{InventoryItemID: "cl-monthly-6", QuantityOrdered: 8, UnitCost: dec("9.00")})
	before, err := svc.GetStock(ctx, "cl-monthly-6")
	require.NoError(t, err)

	_, err = svc.ReceivePurchaseItem(ctx, po.Items[0].ID, adminID, domain.ReceiveRequest{Quantity: 10, PurchasePrice: dec("9.50")})
	assert.ErrorIs(t, err, apperr.ErrOverReceipt)

	after, err := svc.GetStock(ctx, "cl-monthly-6")
	require.NoError(t, err)
	assert.Equal(t, before, after, "rejected receipt changes nothing")
	stored, err := svc.GetPurchaseOrder(ctx, po.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.POStatusOrdered, stored.Status)
	assert.Zero(t, stored.Items[0].QuantityReceived)
}

func TestPartialThenFullReceipt(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	po := createTestPurchaseOrder(t, svc,
		domain.PurchaseOrderLine{InventoryItemID: "cl-monthly-6", QuantityOrdered: 8, UnitCost: dec("9.00")},
		domain.PurchaseOrderLine{InventoryItemID: "care-kit", QuantityOrdered: 5, UnitCost: dec("3.00")},
	)
	careKitCost, err := svc.GetStock(ctx, "care-kit")
	require.NoError(t, err)

	resp, err := svc.ReceivePurchaseItem(ctx, po.Items[0].ID, adminID, domain.ReceiveRequest{Quantity: 5, PurchasePrice: dec("9.50")})
	require.NoError(t, err)
	assert.Equal(t, domain.POStatusPartial, resp.PurchaseOrder.Status)
	assert.Nil(t, resp.PurchaseOrder.ReceivedAt)
	assert.Equal(t, 7, resp.Stock.QuantityOnHand)
	assertMoney(t, "9.50", resp.Stock.CostPrice)

	resp, err = svc.ReceivePurchaseItem(ctx, po.Items[0].ID, adminID, domain.ReceiveRequest{Quantity: 3, PurchasePrice: dec("9.50")})
	require.NoError(t, err)
	assert.Equal(t, domain.POStatusPartial, resp.PurchaseOrder.Status, "second line still open")
	assert.Equal(t, 10, resp.Stock.QuantityOnHand)

	resp, err = svc.ReceivePurchaseItem(ctx, po.Items[1].ID, adminID, domain.ReceiveRequest{Quantity: 5, PurchasePrice: careKitCost.CostPrice})
	require.NoError(t, err)
	assert.Equal(t, domain.POStatusReceived, resp.PurchaseOrder.Status)
	require.NotNil(t, resp.PurchaseOrder.ReceivedAt)
	assert.Equal(t, 30, stockOf(t, svc, "care-kit"))

	_, err = svc.ReceivePurchaseItem(ctx, po.Items[1].ID, adminID, domain.ReceiveRequest{Quantity: 1, PurchasePrice: dec("3.00")})
	assert.ErrorIs(t, err, apperr.ErrOverReceipt)

	costLogs, err := svc.ListAuditLogs(ctx, domain.AuditFilter{EntityType: "stock_level", RecordKey: "cl-monthly-6"})
	require.NoError(t, err)
	var costChanges int
	for _, entry := range costLogs {
		if entry.Field == "cost_price" {
			costChanges++
		}
	}
	assert.Equal(t, 1, costChanges, "unchanged price is not audited again")

	careLogs, err := svc.ListAuditLogs(ctx, domain.AuditFilter{EntityType: "stock_level", RecordKey: "care-kit"})
	require.NoError(t, err)
	for _, entry := range careLogs {
		assert.NotEqual(t, "cost_price", entry.Field)
	}
}

func TestReceiveValidation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	po := createTestPurchaseOrder(t, svc, domain.PurchaseOrderLine{InventoryItemID: "care-kit", QuantityOrdered: 5, UnitCost: dec("3.00")})

	_, err := svc.ReceivePurchaseItem(ctx, po.Items[0].ID, adminID, domain.ReceiveRequest{Quantity: 0, PurchasePrice: dec("3")})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.ReceivePurchaseItem(ctx, po.Items[0].ID, adminID, domain.ReceiveRequest{Quantity: 1, PurchasePrice: dec("-3")})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.ReceivePurchaseItem(ctx, "poi-missing", adminID, domain.ReceiveRequest{Quantity: 1, PurchasePrice: dec("3")})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.GetPurchaseOrder(ctx, "po-missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
