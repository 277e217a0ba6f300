package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"optikpos/backend/internal/apperr"
	"optikpos/backend/internal/domain"
	"optikpos/backend/internal/store"
)

func (s *Service) AdjustStock(ctx context.Context, inventoryItemID string, actingUserID int64, req domain.StockAdjustRequest) (domain.StockAdjustment, error) {
	if err := requireID("inventory_item_id", inventoryItemID); err != nil {
		return domain.StockAdjustment{}, err
	}
	if err := validateActor("acting_user_id", actingUserID); err != nil {
		return domain.StockAdjustment{}, err
	}
	if err := req.Validate(); err != nil {
		return domain.StockAdjustment{}, err
	}

	var adj domain.StockAdjustment
	err := s.update(ctx, "adjust stock", func(tx store.Tx) error {
		var err error
		adj, err = s.adjustStock(ctx, tx, inventoryItemID, req.Delta, strings.TrimSpace(req.Reason), actingUserID, "stock_adjust")
		return err
	})
	if err != nil {
		return domain.StockAdjustment{}, err
	}
	return adj, nil
}

// adjustStock applies delta through the store's floor-checked add and audits the change
// inside tx. Every stock movement in the ledger goes through here.
func (s *Service) adjustStock(ctx context.Context, tx store.Tx, inventoryItemID string, delta int, reason string, actingUserID int64, action string) (domain.StockAdjustment, error) {
	oldQty, newQty, err := tx.AddStock(ctx, inventoryItemID, delta)
	if err != nil {
		if errors.Is(err, store.ErrInsufficientStock) {
			return domain.StockAdjustment{}, &apperr.Error{
				Kind:    apperr.KindValidation,
				Message: "insufficient stock",
				Violations: []apperr.Violation{{
					Field:   "delta",
					Message: fmt.Sprintf("%s has %d on hand, cannot apply %d", inventoryItemID, oldQty, delta),
				}},
				Err: err,
			}
		}
		if errors.Is(err, store.ErrOutOfRange) {
			return domain.StockAdjustment{}, &apperr.Error{
				Kind:    apperr.KindValidation,
				Message: "stock out of range",
				Violations: []apperr.Violation{{
					Field:   "delta",
					Message: fmt.Sprintf("%s cannot hold more than %d on hand", inventoryItemID, domain.MaxQuantity),
				}},
				Err: err,
			}
		}
		return domain.StockAdjustment{}, notFound(err, "inventory item", inventoryItemID)
	}

	if err := s.audit(ctx, tx, domain.AuditLog{
		EntityType:  "stock_level",
		RecordKey:   inventoryItemID,
		Field:       "quantity_on_hand",
		OldValue:    fmt.Sprint(oldQty),
		NewValue:    fmt.Sprint(newQty),
		ActorUserID: actingUserID,
		Action:      action,
		Detail:      fmt.Sprintf("delta=%d,reason=%s", delta, reason),
	}); err != nil {
		return domain.StockAdjustment{}, err
	}

	return domain.StockAdjustment{
		InventoryItemID: inventoryItemID,
		OldQuantity:     oldQty,
		NewQuantity:     newQty,
		Delta:           delta,
		Reason:          reason,
	}, nil
}

func (s *Service) GetStock(ctx context.Context, inventoryItemID string) (domain.StockLevel, error) {
	var level domain.StockLevel
	err := s.view(ctx, "get stock", func(tx store.Tx) error {
		var err error
		level, err = tx.GetStock(ctx, inventoryItemID)
		return notFound(err, "inventory item", inventoryItemID)
	})
	return level, err
}

// ReorderSuggestions lists items at or below their minimum stock, topping each up to twice the minimum.
func (s *Service) ReorderSuggestions(ctx context.Context) ([]domain.ReorderSuggestion, error) {
	var levels []domain.StockLevel
	err := s.view(ctx, "reorder suggestions", func(tx store.Tx) error {
		var err error
		levels, err = tx.ListStock(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	suggestions := make([]domain.ReorderSuggestion, 0, 16)
	for _, level := range levels {
		if level.MinStock < 1 || level.QuantityOnHand > level.MinStock {
			continue
		}
		recommendedQty := level.MinStock*2 - level.QuantityOnHand
		if recommendedQty < 1 {
			continue
		}
		suggestions = append(suggestions, domain.ReorderSuggestion{
			InventoryItemID: level.InventoryItemID,
			Name:            level.Name,
			QuantityOnHand:  level.QuantityOnHand,
			MinStock:        level.MinStock,
			RecommendedQty:  recommendedQty,
			CostPrice:       level.CostPrice,
			EstimatedCost:   level.CostPrice.Mul(decimal.NewFromInt(int64(recommendedQty))),
		})
	}

	sort.Slice(suggestions, func(i, j int) bool {
		if suggestions[i].QuantityOnHand == suggestions[j].QuantityOnHand {
			return suggestions[i].EstimatedCost.GreaterThan(suggestions[j].EstimatedCost)
		}
		return suggestions[i].QuantityOnHand < suggestions[j].QuantityOnHand
	})
	return suggestions, nil
}
