package report

import (
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"optikpos/backend/internal/domain"
)

const (
	summarySheet  = "Summary"
	expensesSheet = "Expenses"
	auditSheet    = "Audit"
)

// WriteShiftReport renders the reconciliation summary and the shift's expenses as an xlsx workbook.
func WriteShiftReport(w io.Writer, report domain.ShiftReport, expenses []domain.Expense) error {
	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("rename summary sheet: %w", err)
	}

	rows := [][]any{
		{"Shift", report.ShiftID},
		{"User", report.UserID},
		{"Status", report.Status},
		{"Started at", formatTime(report.StartedAt)},
		{"Ended at", formatTimePtr(report.EndedAt)},
		{"Opening float", money(report.OpeningFloat)},
		{"Cash received", money(report.CashReceived)},
		{"Cash expenses", money(report.CashExpenses)},
		{"Non-cash received", money(report.NonCashReceived)},
		{"Payments", report.PaymentCount},
		{"Expenses", report.ExpenseCount},
		{"Expected cash", money(report.ExpectedCash)},
		{"Closing cash counted", moneyPtr(report.ClosingCashCounted)},
		{"Variance", moneyPtr(report.Variance)},
	}
	if err := writeRows(file, summarySheet, rows); err != nil {
		return err
	}

	if _, err := file.NewSheet(expensesSheet); err != nil {
		return fmt.Errorf("create expenses sheet: %w", err)
	}
	expenseRows := make([][]any, 0, len(expenses)+1)
	expenseRows = append(expenseRows, []any{"ID", "Spent at", "Category", "Description", "Amount"})
	for _, expense := range expenses {
		expenseRows = append(expenseRows, []any{
			expense.ID, formatTime(expense.SpentAt), expense.Category, expense.Description, money(expense.Amount),
		})
	}
	if err := writeRows(file, expensesSheet, expenseRows); err != nil {
		return err
	}

	if err := file.Write(w); err != nil {
		return fmt.Errorf("write shift report workbook: %w", err)
	}
	return nil
}

func WriteAuditLogs(w io.Writer, logs []domain.AuditLog) error {
	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", auditSheet); err != nil {
		return fmt.Errorf("rename audit sheet: %w", err)
	}

	rows := make([][]any, 0, len(logs)+1)
	rows = append(rows, []any{"Created at", "Entity", "Record", "Field", "Old value", "New value", "Actor", "Action", "Detail"})
	for _, entry := range logs {
		rows = append(rows, []any{
			formatTime(entry.CreatedAt), entry.EntityType, entry.RecordKey, entry.Field,
			entry.OldValue, entry.NewValue, entry.ActorUserID, entry.Action, entry.Detail,
		})
	}
	if err := writeRows(file, auditSheet, rows); err != nil {
		return err
	}

	if err := file.Write(w); err != nil {
		return fmt.Errorf("write audit workbook: %w", err)
	}
	return nil
}

func writeRows(file *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := file.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

// money keeps two decimals as text so spreadsheet float conversion never alters an amount.
func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func moneyPtr(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return money(*d)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}
