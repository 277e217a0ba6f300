package httpapi

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"optikpos/backend/internal/apperr"
	"optikpos/backend/internal/domain"
	"optikpos/backend/internal/report"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (a *API) handleStartShift(w http.ResponseWriter, r *http.Request) {
	var req domain.ShiftStartRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	shift, err := a.service.StartShift(r.Context(), actorFrom(r.Context()).UserID, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, shift)
}

func (a *API) handleOpenShift(w http.ResponseWriter, r *http.Request) {
	shift, err := a.service.FindOpenShift(r.Context(), actorFrom(r.Context()).UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, shift)
}

func (a *API) handleGetShift(w http.ResponseWriter, r *http.Request) {
	shift, ok := a.loadOwnShift(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, shift)
}

// loadOwnShift fetches the shift named in the path. Cashiers may only read their own shifts.
func (a *API) loadOwnShift(w http.ResponseWriter, r *http.Request) (domain.Shift, bool) {
	shiftID := chi.URLParam(r, "id")
	shift, err := a.service.GetShift(r.Context(), shiftID)
	if err != nil {
		writeServiceError(w, err)
		return domain.Shift{}, false
	}
	actor := actorFrom(r.Context())
	if actor.Role != domain.RoleAdmin && shift.UserID != actor.UserID {
		writeServiceError(w, apperr.New(apperr.KindNotAuthorized, "shift %s belongs to another user", shiftID))
		return domain.Shift{}, false
	}
	return shift, true
}

func (a *API) handlePauseShift(w http.ResponseWriter, r *http.Request) {
	shift, err := a.service.PauseShift(r.Context(), chi.URLParam(r, "id"), actorFrom(r.Context()).UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, shift)
}

func (a *API) handleResumeShift(w http.ResponseWriter, r *http.Request) {
	shift, err := a.service.ResumeShift(r.Context(), chi.URLParam(r, "id"), actorFrom(r.Context()).UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, shift)
}

func (a *API) handleEndShift(w http.ResponseWriter, r *http.Request) {
	var req domain.ShiftEndRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.service.EndShift(r.Context(), chi.URLParam(r, "id"), actorFrom(r.Context()).UserID, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleShiftReport(w http.ResponseWriter, r *http.Request) {
	shift, ok := a.loadOwnShift(w, r)
	if !ok {
		return
	}
	rep, err := a.service.ShiftReport(r.Context(), shift.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (a *API) handleShiftReportWorkbook(w http.ResponseWriter, r *http.Request) {
	shift, ok := a.loadOwnShift(w, r)
	if !ok {
		return
	}
	shiftID := shift.ID
	rep, err := a.service.ShiftReport(r.Context(), shiftID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	expenses, err := a.service.ListShiftExpenses(r.Context(), shiftID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := report.WriteShiftReport(&buf, rep, expenses); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeWorkbook(w, fmt.Sprintf("shift-%s.xlsx", shiftID), buf.Bytes())
}

func (a *API) handleShiftExpenses(w http.ResponseWriter, r *http.Request) {
	shift, ok := a.loadOwnShift(w, r)
	if !ok {
		return
	}
	expenses, err := a.service.ListShiftExpenses(r.Context(), shift.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"expenses": expenses})
}

func (a *API) handleRecordExpense(w http.ResponseWriter, r *http.Request) {
	var req domain.ExpenseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	expense, err := a.service.RecordExpense(r.Context(), actorFrom(r.Context()).UserID, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, expense)
}

func (a *API) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req domain.OrderCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	order, err := a.service.CreateOrder(r.Context(), actorFrom(r.Context()).UserID, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (a *API) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := a.service.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (a *API) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var req domain.OrderItemInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	order, err := a.service.AddItem(r.Context(), chi.URLParam(r, "id"), actorFrom(r.Context()).UserID, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (a *API) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	var req domain.OrderItemUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	order, err := a.service.UpdateItem(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "itemID"), actorFrom(r.Context()).UserID, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (a *API) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	order, err := a.service.RemoveItem(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "itemID"), actorFrom(r.Context()).UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (a *API) handleApplyDiscount(w http.ResponseWriter, r *http.Request) {
	var req domain.DiscountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	order, err := a.service.ApplyDiscount(r.Context(), chi.URLParam(r, "id"), actorFrom(r.Context()).UserID, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (a *API) handleChangeStatus(w http.ResponseWriter, r *http.Request) {
	var req domain.StatusChangeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	order, err := a.service.ChangeStatus(r.Context(), chi.URLParam(r, "id"), actorFrom(r.Context()).UserID, req.Status)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (a *API) handleRecordPayment(w http.ResponseWriter, r *http.Request) {
	var req domain.PaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.service.RecordPayment(r.Context(), chi.URLParam(r, "id"), actorFrom(r.Context()).UserID, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (a *API) handleListPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := a.service.ListPayments(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"payments": payments})
}

func (a *API) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	payment, err := a.service.GetPayment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payment)
}

func (a *API) handleGetStock(w http.ResponseWriter, r *http.Request) {
	level, err := a.service.GetStock(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, level)
}

func (a *API) handleAdjustStock(w http.ResponseWriter, r *http.Request) {
	var req domain.StockAdjustRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	adj, err := a.service.AdjustStock(r.Context(), chi.URLParam(r, "id"), actorFrom(r.Context()).UserID, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, adj)
}

func (a *API) handleReorderSuggestions(w http.ResponseWriter, r *http.Request) {
	suggestions, err := a.service.ReorderSuggestions(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": suggestions})
}

func (a *API) handleCreatePurchaseOrder(w http.ResponseWriter, r *http.Request) {
	var req domain.PurchaseOrderCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	po, err := a.service.CreatePurchaseOrder(r.Context(), actorFrom(r.Context()).UserID, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, po)
}

func (a *API) handleGetPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	po, err := a.service.GetPurchaseOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, po)
}

func (a *API) handleReceivePurchaseItem(w http.ResponseWriter, r *http.Request) {
	var req domain.ReceiveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.service.ReceivePurchaseItem(r.Context(), chi.URLParam(r, "itemID"), actorFrom(r.Context()).UserID, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	filter, err := parseAuditFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	logs, err := a.service.ListAuditLogs(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

func (a *API) handleAuditLogsWorkbook(w http.ResponseWriter, r *http.Request) {
	filter, err := parseAuditFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	logs, err := a.service.ListAuditLogs(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := report.WriteAuditLogs(&buf, logs); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeWorkbook(w, "audit-logs.xlsx", buf.Bytes())
}

func parseAuditFilter(r *http.Request) (domain.AuditFilter, error) {
	query := r.URL.Query()
	filter := domain.AuditFilter{
		EntityType: strings.TrimSpace(query.Get("entity_type")),
		RecordKey:  strings.TrimSpace(query.Get("record_key")),
		Limit:      parsePositiveLimit(query.Get("limit"), 100, 1000),
	}
	for _, bound := range []struct {
		name string
		dest *time.Time
	}{
		{"from", &filter.From},
		{"to", &filter.To},
	} {
		raw := strings.TrimSpace(query.Get(bound.name))
		if raw == "" {
			continue
		}
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return domain.AuditFilter{}, errors.New(bound.name + " must be an RFC3339 timestamp")
		}
		*bound.dest = parsed.UTC()
	}
	return filter, nil
}

func writeWorkbook(w http.ResponseWriter, filename string, body []byte) {
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
