package service

import (
	"context"
	"errors"
	"strings"

	"optikpos/backend/internal/apperr"
	"optikpos/backend/internal/domain"
	"optikpos/backend/internal/store"
	"optikpos/backend/internal/xid"
)

// RecordPayment inserts the payment and updates the order's paid and balance fields
// in one unit of work. Cash needs the receiver's Active shift; other methods are
// tagged with it when there is one. The order is never completed here.
func (s *Service) RecordPayment(ctx context.Context, orderID string, receivedBy int64, req domain.PaymentRequest) (domain.PaymentResponse, error) {
	if err := requireID("order_id", orderID); err != nil {
		return domain.PaymentResponse{}, err
	}
	if err := validateActor("received_by", receivedBy); err != nil {
		return domain.PaymentResponse{}, err
	}
	req.Method = strings.ToLower(strings.TrimSpace(req.Method))
	if err := req.Validate(); err != nil {
		return domain.PaymentResponse{}, err
	}

	var resp domain.PaymentResponse
	err := s.update(ctx, "record payment", func(tx store.Tx) error {
		order, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return notFound(err, "order", orderID)
		}
		if !domain.IsOrderEditable(order.Status) {
			return apperr.InvalidTransition("order %s is %s and accepts no payments", orderID, order.Status)
		}

		shiftID, err := resolvePaymentShift(ctx, tx, receivedBy, req)
		if err != nil {
			return err
		}

		oldPaid := order.AmountPaid
		order.AmountPaid = oldPaid.Add(req.Amount)
		domain.RecomputeTotals(&order)
		if order.AmountPaid.GreaterThan(order.Total) {
			return &apperr.Error{
				Kind:       apperr.KindValidation,
				Message:    "overpayment rejected",
				Violations: []apperr.Violation{{Field: "amount", Message: "exceeds balance due " + order.Total.Sub(oldPaid).StringFixed(2)}},
			}
		}

		payment := domain.Payment{
			ID:            xid.New("pay"),
			OrderID:       order.ID,
			PaidAt:        s.now(),
			Amount:        req.Amount,
			Method:        req.Method,
			BankRef:       strings.TrimSpace(req.BankRef),
			TransactionID: strings.TrimSpace(req.TransactionID),
			ReceivedBy:    receivedBy,
			ShiftID:       shiftID,
			Notes:         strings.TrimSpace(req.Notes),
		}
		if err := tx.InsertPayment(ctx, payment); err != nil {
			return err
		}

		if payment.Method == domain.PaymentMethodCash && order.ShiftID == "" {
			order.ShiftID = shiftID
		}
		domain.SettlePaymentStatus(&order)
		order.UpdatedAt = payment.PaidAt
		if err := tx.UpdateOrder(ctx, order); err != nil {
			return err
		}

		if err := s.audit(ctx, tx, domain.AuditLog{
			EntityType:  "sales_order",
			RecordKey:   order.ID,
			Field:       "amount_paid",
			OldValue:    oldPaid.StringFixed(2),
			NewValue:    order.AmountPaid.StringFixed(2),
			ActorUserID: receivedBy,
			Action:      "payment_record",
			Detail:      joinDetail("payment="+payment.ID, "method="+payment.Method, "shift="+payment.ShiftID),
		}); err != nil {
			return err
		}

		resp = domain.PaymentResponse{Order: order, Payment: payment}
		return nil
	})
	if err != nil {
		return domain.PaymentResponse{}, err
	}
	return resp, nil
}

func resolvePaymentShift(ctx context.Context, tx store.Tx, receivedBy int64, req domain.PaymentRequest) (string, error) {
	requested := strings.TrimSpace(req.ShiftID)
	open, err := tx.FindOpenShift(ctx, receivedBy)
	hasActive := err == nil && open.Status == domain.ShiftStatusActive
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return "", err
	}

	if req.Method == domain.PaymentMethodCash && !hasActive {
		return "", apperr.New(apperr.KindNoActiveShift, "user %d has no active shift for a cash payment", receivedBy)
	}
	if requested != "" && (!hasActive || requested != open.ID) {
		return "", &apperr.Error{
			Kind:       apperr.KindValidation,
			Message:    "invalid payment",
			Violations: []apperr.Violation{{Field: "shift_id", Message: "is not the receiving user's active shift"}},
		}
	}
	if hasActive {
		return open.ID, nil
	}
	return "", nil
}

func (s *Service) ListPayments(ctx context.Context, orderID string) ([]domain.Payment, error) {
	var payments []domain.Payment
	err := s.view(ctx, "list payments", func(tx store.Tx) error {
		if _, err := tx.GetOrder(ctx, orderID); err != nil {
			return notFound(err, "order", orderID)
		}
		var err error
		payments, err = tx.ListPayments(ctx, orderID)
		return err
	})
	return payments, err
}

func (s *Service) GetPayment(ctx context.Context, paymentID string) (domain.Payment, error) {
	var payment domain.Payment
	err := s.view(ctx, "get payment", func(tx store.Tx) error {
		var err error
		payment, err = tx.GetPayment(ctx, paymentID)
		return notFound(err, "payment", paymentID)
	})
	return payment, err
}
