package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"crisisgo/internal/models"
)

const alertLogSheet = "Alert Logs"

var alertLogHeaders = []any{"ID", "Dispatch ID", "Type", "Status", "Location", "Message", "Timestamp"}

// buildAlertLogWorkbook renders rows in the order given, one per line under a header.
func buildAlertLogWorkbook(logs []models.AlertLog) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", alertLogSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(alertLogSheet, "A1", &alertLogHeaders); err != nil {
		f.Close()
		return nil, fmt.Errorf("write header: %w", err)
	}
	for i, l := range logs {
		row := []any{
			l.ID,
			l.DispatchID,
			string(l.AlertType),
			string(l.Status),
			deref(l.Location),
			deref(l.Message),
			l.Timestamp.UTC().Format(time.RFC3339),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			f.Close()
			return nil, err
		}
		if err := f.SetSheetRow(alertLogSheet, cell, &row); err != nil {
			f.Close()
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	return f, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (h *Handler) exportAlertLogs(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	logs, err := h.store.ListAlertLogs(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("list alert logs failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch alert logs"})
		return
	}
	f, err := buildAlertLogWorkbook(logs)
	if err != nil {
		h.logger.Error("build alert log workbook failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export alert logs"})
		return
	}
	defer f.Close()

	buf, err := f.WriteToBuffer()
	if err != nil {
		h.logger.Error("write alert log workbook failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export alert logs"})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="alert-logs.xlsx"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}
