package service

import (
	"context"
	"fmt"
	"strings"

	"optikpos/backend/internal/apperr"
	"optikpos/backend/internal/domain"
	"optikpos/backend/internal/store"
	"optikpos/backend/internal/xid"
)

func (s *Service) CreatePurchaseOrder(ctx context.Context, actingUserID int64, req domain.PurchaseOrderCreateRequest) (domain.PurchaseOrder, error) {
	if err := validateActor("acting_user_id", actingUserID); err != nil {
		return domain.PurchaseOrder{}, err
	}
	if err := req.Validate(); err != nil {
		return domain.PurchaseOrder{}, err
	}

	var po domain.PurchaseOrder
	err := s.update(ctx, "create purchase order", func(tx store.Tx) error {
		po = domain.PurchaseOrder{
			ID:           xid.New("po"),
			SupplierName: strings.TrimSpace(req.SupplierName),
			Status:       domain.POStatusOrdered,
			CreatedBy:    actingUserID,
			CreatedAt:    s.now(),
			Items:        make([]domain.PurchaseOrderItem, 0, len(req.Items)),
		}
		for _, line := range req.Items {
			inventoryItemID := strings.TrimSpace(line.InventoryItemID)
			if err := ensureInventoryItem(ctx, tx, inventoryItemID); err != nil {
				return err
			}
			po.Items = append(po.Items, domain.PurchaseOrderItem{
				ID:              xid.New("poi"),
				PurchaseOrderID: po.ID,
				InventoryItemID: inventoryItemID,
				QuantityOrdered: line.QuantityOrdered,
				UnitCost:        line.UnitCost,
			})
		}
		if err := tx.InsertPurchaseOrder(ctx, po); err != nil {
			return err
		}
		return s.audit(ctx, tx, domain.AuditLog{
			EntityType:  "purchase_order",
			RecordKey:   po.ID,
			Field:       "status",
			NewValue:    po.Status,
			ActorUserID: actingUserID,
			Action:      "purchase_order_create",
			Detail:      fmt.Sprintf("supplier=%s,items=%d", po.SupplierName, len(po.Items)),
		})
	})
	if err != nil {
		return domain.PurchaseOrder{}, err
	}
	return po, nil
}

func (s *Service) GetPurchaseOrder(ctx context.Context, purchaseOrderID string) (domain.PurchaseOrder, error) {
	var po domain.PurchaseOrder
	err := s.view(ctx, "get purchase order", func(tx store.Tx) error {
		var err error
		po, err = tx.GetPurchaseOrder(ctx, purchaseOrderID)
		return notFound(err, "purchase order", purchaseOrderID)
	})
	return po, err
}

// ReceivePurchaseItem books a delivery against one purchase-order line: stock goes up,
// the item's cost price becomes the purchase price, and the order advances to
// partial or received. Nothing changes when the delivery would exceed the ordered quantity.
func (s *Service) ReceivePurchaseItem(ctx context.Context, poItemID string, actingUserID int64, req domain.ReceiveRequest) (domain.ReceiveResponse, error) {
	if err := requireID("purchase_order_item_id", poItemID); err != nil {
		return domain.ReceiveResponse{}, err
	}
	if err := validateActor("acting_user_id", actingUserID); err != nil {
		return domain.ReceiveResponse{}, err
	}
	if err := req.Validate(); err != nil {
		return domain.ReceiveResponse{}, err
	}

	var resp domain.ReceiveResponse
	err := s.update(ctx, "receive purchase item", func(tx store.Tx) error {
		item, err := tx.GetPurchaseOrderItem(ctx, poItemID)
		if err != nil {
			return notFound(err, "purchase order item", poItemID)
		}
		po, err := tx.GetPurchaseOrder(ctx, item.PurchaseOrderID)
		if err != nil {
			return notFound(err, "purchase order", item.PurchaseOrderID)
		}
		if po.Status == domain.POStatusCancelled {
			return apperr.InvalidTransition("purchase order %s is cancelled", po.ID)
		}
		if item.QuantityReceived+req.Quantity > item.QuantityOrdered {
			return apperr.New(apperr.KindOverReceipt, "receiving %d would exceed ordered %d for %s (already received %d)",
				req.Quantity, item.QuantityOrdered, poItemID, item.QuantityReceived)
		}

		reason := fmt.Sprintf("purchase order %s line %s", po.ID, item.ID)
		if _, err := s.adjustStock(ctx, tx, item.InventoryItemID, req.Quantity, reason, actingUserID, "purchase_receive"); err != nil {
			return err
		}

		level, err := tx.GetStock(ctx, item.InventoryItemID)
		if err != nil {
			return notFound(err, "inventory item", item.InventoryItemID)
		}
		if !level.CostPrice.Equal(req.PurchasePrice) {
			if err := tx.SetCostPrice(ctx, item.InventoryItemID, req.PurchasePrice); err != nil {
				return err
			}
			if err := s.audit(ctx, tx, domain.AuditLog{
				EntityType:  "stock_level",
				RecordKey:   item.InventoryItemID,
				Field:       "cost_price",
				OldValue:    level.CostPrice.StringFixed(2),
				NewValue:    req.PurchasePrice.StringFixed(2),
				ActorUserID: actingUserID,
				Action:      "cost_price_update",
				Detail:      reason,
			}); err != nil {
				return err
			}
			level.CostPrice = req.PurchasePrice
		}

		item.QuantityReceived += req.Quantity
		if err := tx.UpdatePurchaseOrderItem(ctx, item); err != nil {
			return err
		}
		for i := range po.Items {
			if po.Items[i].ID == item.ID {
				po.Items[i] = item
			}
		}

		from := po.Status
		po.Status = domain.POStatusPartial
		if fullyReceived(po.Items) {
			now := s.now()
			po.Status = domain.POStatusReceived
			po.ReceivedAt = &now
		}
		if err := tx.UpdatePurchaseOrderStatus(ctx, po.ID, po.Status, po.ReceivedAt); err != nil {
			return err
		}
		if err := s.audit(ctx, tx, domain.AuditLog{
			EntityType:  "purchase_order_item",
			RecordKey:   item.ID,
			Field:       "quantity_received",
			OldValue:    fmt.Sprint(item.QuantityReceived - req.Quantity),
			NewValue:    fmt.Sprint(item.QuantityReceived),
			ActorUserID: actingUserID,
			Action:      "purchase_receive",
			Detail:      fmt.Sprintf("po=%s,status=%s->%s,unit_price=%s", po.ID, from, po.Status, req.PurchasePrice.StringFixed(2)),
		}); err != nil {
			return err
		}

		resp = domain.ReceiveResponse{PurchaseOrder: po, Stock: level}
		return nil
	})
	if err != nil {
		return domain.ReceiveResponse{}, err
	}
	return resp, nil
}

func fullyReceived(items []domain.PurchaseOrderItem) bool {
	for _, item := range items {
		if item.QuantityReceived < item.QuantityOrdered {
			return false
		}
	}
	return true
}
