package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"optikpos/backend/internal/apperr"
	"optikpos/backend/internal/domain"
	"optikpos/backend/internal/store"
	"optikpos/backend/internal/xid"
)

func (s *Service) CreateOrder(ctx context.Context, createdBy int64, req domain.OrderCreateRequest) (domain.SalesOrder, error) {
	if err := validateActor("created_by", createdBy); err != nil {
		return domain.SalesOrder{}, err
	}
	if err := req.Validate(); err != nil {
		return domain.SalesOrder{}, err
	}

	var order domain.SalesOrder
	err := s.update(ctx, "create order", func(tx store.Tx) error {
		now := s.now()
		order = domain.SalesOrder{
			ID:         xid.New("so"),
			PatientID:  req.PatientID,
			OrderDate:  now,
			Status:     domain.OrderStatusPending,
			Discount:   decimal.Zero,
			AmountPaid: decimal.Zero,
			CreatedBy:  createdBy,
			Remarks:    strings.TrimSpace(req.Remarks),
			UpdatedAt:  now,
			Items:      make([]domain.SalesOrderItem, 0, len(req.Items)),
		}
		for _, in := range req.Items {
			if err := ensureInventoryItem(ctx, tx, in.InventoryItemID); err != nil {
				return err
			}
			order.Items = append(order.Items, newOrderItem(order.ID, in))
		}
		domain.RecomputeTotals(&order)
		if err := domain.CheckTotals(order); err != nil {
			return err
		}

		if err := tx.InsertOrder(ctx, order); err != nil {
			return err
		}
		return s.audit(ctx, tx, domain.AuditLog{
			EntityType:  "sales_order",
			RecordKey:   order.ID,
			Field:       "status",
			NewValue:    order.Status,
			ActorUserID: createdBy,
			Action:      "order_create",
			Detail:      fmt.Sprintf("items=%d,subtotal=%s", len(order.Items), order.Subtotal.StringFixed(2)),
		})
	})
	if err != nil {
		return domain.SalesOrder{}, err
	}
	return order, nil
}

func (s *Service) GetOrder(ctx context.Context, orderID string) (domain.SalesOrder, error) {
	var order domain.SalesOrder
	err := s.view(ctx, "get order", func(tx store.Tx) error {
		var err error
		order, err = tx.GetOrder(ctx, orderID)
		return notFound(err, "order", orderID)
	})
	return order, err
}

func (s *Service) AddItem(ctx context.Context, orderID string, actingUserID int64, in domain.OrderItemInput) (domain.SalesOrder, error) {
	if err := in.Validate(); err != nil {
		return domain.SalesOrder{}, err
	}

	return s.mutateOrder(ctx, "add order item", orderID, actingUserID, func(tx store.Tx, order *domain.SalesOrder) (domain.AuditLog, error) {
		if err := ensureInventoryItem(ctx, tx, in.InventoryItemID); err != nil {
			return domain.AuditLog{}, err
		}
		item := newOrderItem(order.ID, in)
		item.LineSubtotal = item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		if err := tx.InsertOrderItem(ctx, item); err != nil {
			return domain.AuditLog{}, err
		}
		order.Items = append(order.Items, item)
		return domain.AuditLog{
			EntityType: "sales_order_item",
			RecordKey:  item.ID,
			Action:     "order_item_add",
			Detail:     fmt.Sprintf("order=%s,qty=%d,unit_price=%s", order.ID, item.Quantity, item.UnitPrice.StringFixed(2)),
		}, nil
	})
}

func (s *Service) UpdateItem(ctx context.Context, orderID string, itemID string, actingUserID int64, req domain.OrderItemUpdateRequest) (domain.SalesOrder, error) {
	if err := req.Validate(); err != nil {
		return domain.SalesOrder{}, err
	}

	return s.mutateOrder(ctx, "update order item", orderID, actingUserID, func(tx store.Tx, order *domain.SalesOrder) (domain.AuditLog, error) {
		idx := findItem(order.Items, itemID)
		if idx < 0 {
			return domain.AuditLog{}, apperr.NotFound("item %s not found on order %s", itemID, orderID)
		}
		item := &order.Items[idx]
		before := fmt.Sprintf("qty=%d,unit_price=%s", item.Quantity, item.UnitPrice.StringFixed(2))
		if req.Quantity != nil {
			item.Quantity = *req.Quantity
		}
		if req.UnitPrice != nil {
			item.UnitPrice = *req.UnitPrice
		}
		if len(req.Prescription) > 0 {
			item.Prescription = req.Prescription
		}
		item.LineSubtotal = item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		if err := tx.UpdateOrderItem(ctx, *item); err != nil {
			return domain.AuditLog{}, notFound(err, "item", itemID)
		}
		return domain.AuditLog{
			EntityType: "sales_order_item",
			RecordKey:  item.ID,
			OldValue:   before,
			NewValue:   fmt.Sprintf("qty=%d,unit_price=%s", item.Quantity, item.UnitPrice.StringFixed(2)),
			Action:     "order_item_update",
			Detail:     "order=" + order.ID,
		}, nil
	})
}

func (s *Service) RemoveItem(ctx context.Context, orderID string, itemID string, actingUserID int64) (domain.SalesOrder, error) {
	return s.mutateOrder(ctx, "remove order item", orderID, actingUserID, func(tx store.Tx, order *domain.SalesOrder) (domain.AuditLog, error) {
		idx := findItem(order.Items, itemID)
		if idx < 0 {
			return domain.AuditLog{}, apperr.NotFound("item %s not found on order %s", itemID, orderID)
		}
		if len(order.Items) == 1 {
			return domain.AuditLog{}, &apperr.Error{
				Kind:       apperr.KindValidation,
				Message:    "cannot remove the last item",
				Violations: []apperr.Violation{{Field: "item_id", Message: "an order keeps at least one item; cancel it instead"}},
			}
		}
		removed := order.Items[idx]
		if err := tx.DeleteOrderItem(ctx, orderID, itemID); err != nil {
			return domain.AuditLog{}, notFound(err, "item", itemID)
		}
		order.Items = append(order.Items[:idx], order.Items[idx+1:]...)
		return domain.AuditLog{
			EntityType: "sales_order_item",
			RecordKey:  removed.ID,
			OldValue:   fmt.Sprintf("qty=%d,unit_price=%s", removed.Quantity, removed.UnitPrice.StringFixed(2)),
			Action:     "order_item_remove",
			Detail:     "order=" + order.ID,
		}, nil
	})
}

func (s *Service) ApplyDiscount(ctx context.Context, orderID string, actingUserID int64, req domain.DiscountRequest) (domain.SalesOrder, error) {
	if err := validateActor("acting_user_id", actingUserID); err != nil {
		return domain.SalesOrder{}, err
	}
	if err := req.Validate(); err != nil {
		return domain.SalesOrder{}, err
	}
	allowed, err := s.perms.CanApplyDiscount(ctx, actingUserID)
	if err != nil {
		return domain.SalesOrder{}, translate("check discount permission", err)
	}
	if !allowed {
		return domain.SalesOrder{}, apperr.New(apperr.KindPermissionDenied, "user %d may not apply discounts", actingUserID)
	}

	return s.mutateOrder(ctx, "apply discount", orderID, actingUserID, func(_ store.Tx, order *domain.SalesOrder) (domain.AuditLog, error) {
		if req.Amount.GreaterThan(order.Subtotal) {
			return domain.AuditLog{}, &apperr.Error{
				Kind:       apperr.KindValidation,
				Message:    "invalid discount",
				Violations: []apperr.Violation{{Field: "amount", Message: "must not exceed subtotal " + order.Subtotal.StringFixed(2)}},
			}
		}
		old := order.Discount
		order.Discount = req.Amount
		return domain.AuditLog{
			EntityType: "sales_order",
			RecordKey:  order.ID,
			Field:      "discount",
			OldValue:   old.StringFixed(2),
			NewValue:   req.Amount.StringFixed(2),
			Action:     "order_discount",
		}, nil
	})
}

// mutateOrder loads an editable order, applies change, recomputes and bounds-checks the
// totals, then persists the header and the audit entry change describes.
func (s *Service) mutateOrder(ctx context.Context, op string, orderID string, actingUserID int64, change func(store.Tx, *domain.SalesOrder) (domain.AuditLog, error)) (domain.SalesOrder, error) {
	if err := requireID("order_id", orderID); err != nil {
		return domain.SalesOrder{}, err
	}
	if err := validateActor("acting_user_id", actingUserID); err != nil {
		return domain.SalesOrder{}, err
	}

	var order domain.SalesOrder
	err := s.update(ctx, op, func(tx store.Tx) error {
		var err error
		order, err = tx.GetOrder(ctx, orderID)
		if err != nil {
			return notFound(err, "order", orderID)
		}
		if !domain.IsOrderEditable(order.Status) {
			return apperr.InvalidTransition("order %s is %s and can no longer change", orderID, order.Status)
		}

		oldTotal := order.Total
		entry, err := change(tx, &order)
		if err != nil {
			return err
		}
		domain.RecomputeTotals(&order)
		if err := domain.CheckTotals(order); err != nil {
			return err
		}
		domain.SettlePaymentStatus(&order)
		order.UpdatedAt = s.now()
		if err := tx.UpdateOrder(ctx, order); err != nil {
			return err
		}

		entry.ActorUserID = actingUserID
		if !oldTotal.Equal(order.Total) {
			entry.Detail = joinDetail(entry.Detail, fmt.Sprintf("total=%s->%s", oldTotal.StringFixed(2), order.Total.StringFixed(2)))
		}
		return s.audit(ctx, tx, entry)
	})
	if err != nil {
		return domain.SalesOrder{}, err
	}
	return order, nil
}

// ChangeStatus moves an order through its lifecycle. Completing decrements stock for every
// inventory line and reversing a completed order restocks them, all in one unit of work.
func (s *Service) ChangeStatus(ctx context.Context, orderID string, actingUserID int64, newStatus string) (domain.SalesOrder, error) {
	if err := requireID("order_id", orderID); err != nil {
		return domain.SalesOrder{}, err
	}
	if err := validateActor("acting_user_id", actingUserID); err != nil {
		return domain.SalesOrder{}, err
	}
	newStatus = strings.ToLower(strings.TrimSpace(newStatus))
	if !domain.IsKnownOrderStatus(newStatus) {
		return domain.SalesOrder{}, &apperr.Error{
			Kind:       apperr.KindValidation,
			Message:    "invalid status change",
			Violations: []apperr.Violation{{Field: "status", Message: "unknown order status " + newStatus}},
		}
	}

	var order domain.SalesOrder
	err := s.update(ctx, "change order status", func(tx store.Tx) error {
		var err error
		order, err = tx.GetOrder(ctx, orderID)
		if err != nil {
			return notFound(err, "order", orderID)
		}
		from := order.Status
		if newStatus == domain.OrderStatusPartiallyPaid {
			return apperr.InvalidTransition("order %s becomes partially paid only by recording a payment", orderID)
		}
		if !domain.CanTransitionOrder(from, newStatus) {
			return apperr.InvalidTransition("order %s cannot move from %s to %s", orderID, from, newStatus)
		}

		switch {
		case newStatus == domain.OrderStatusCompleted:
			if !order.BalanceDue.IsZero() {
				return &apperr.Error{
					Kind:       apperr.KindValidation,
					Message:    "order cannot be completed",
					Violations: []apperr.Violation{{Field: "balance_due", Message: "must be zero, is " + order.BalanceDue.StringFixed(2)}},
				}
			}
			if err := s.applyLineStock(ctx, tx, order, -1, actingUserID, "order_complete"); err != nil {
				return err
			}
		case newStatus == domain.OrderStatusAbandoned && from == domain.OrderStatusCompleted:
			if err := s.applyLineStock(ctx, tx, order, 1, actingUserID, "order_reverse"); err != nil {
				return err
			}
		}

		order.Status = newStatus
		order.UpdatedAt = s.now()
		if err := tx.UpdateOrder(ctx, order); err != nil {
			return err
		}
		return s.audit(ctx, tx, domain.AuditLog{
			EntityType:  "sales_order",
			RecordKey:   order.ID,
			Field:       "status",
			OldValue:    from,
			NewValue:    newStatus,
			ActorUserID: actingUserID,
			Action:      "order_status",
		})
	})
	if err != nil {
		return domain.SalesOrder{}, err
	}
	return order, nil
}

// applyLineStock moves stock for every inventory line of order; sign -1 sells, +1 restocks.
func (s *Service) applyLineStock(ctx context.Context, tx store.Tx, order domain.SalesOrder, sign int, actingUserID int64, action string) error {
	for _, item := range order.Items {
		if item.InventoryItemID == "" {
			continue
		}
		reason := fmt.Sprintf("order %s line %s", order.ID, item.ID)
		if _, err := s.adjustStock(ctx, tx, item.InventoryItemID, sign*item.Quantity, reason, actingUserID, action); err != nil {
			return err
		}
	}
	return nil
}

func newOrderItem(orderID string, in domain.OrderItemInput) domain.SalesOrderItem {
	return domain.SalesOrderItem{
		ID:               xid.New("soi"),
		OrderID:          orderID,
		InventoryItemID:  strings.TrimSpace(in.InventoryItemID),
		ServiceProductID: strings.TrimSpace(in.ServiceProductID),
		Quantity:         in.Quantity,
		UnitPrice:        in.UnitPrice,
		Prescription:     in.Prescription,
	}
}

func ensureInventoryItem(ctx context.Context, tx store.Tx, inventoryItemID string) error {
	inventoryItemID = strings.TrimSpace(inventoryItemID)
	if inventoryItemID == "" {
		return nil
	}
	_, err := tx.GetStock(ctx, inventoryItemID)
	return notFound(err, "inventory item", inventoryItemID)
}

func findItem(items []domain.SalesOrderItem, itemID string) int {
	for i, item := range items {
		if item.ID == itemID {
			return i
		}
	}
	return -1
}

func joinDetail(parts ...string) string {
	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ",")
}
