package handler

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"smart-coop/internal/models"
	"smart-coop/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

var exportHeaders = []string{"Date", "User", "Type", "Action", "Description", "Data"}

func exportRow(e *models.History) []string {
	userID := ""
	if e.UserID != nil {
		userID = strconv.FormatUint(uint64(*e.UserID), 10)
	}
	data := ""
	if len(e.Data) > 0 {
		if b, err := json.Marshal(e.Data); err == nil {
			data = string(b)
		}
	}
	return []string{
		e.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		userID,
		e.Type,
		e.Action,
		e.Description,
		data,
	}
}

// Export writes the filtered history as XLSX, or CSV with ?format=csv.
func (h *HistoryHandler) Export(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	f, ok := historyFilter(c, user)
	if !ok {
		return
	}
	f.Limit = maxExportRows

	entries, _, err := h.History.List(c.Request.Context(), f)
	if err != nil {
		serverError(c, h.Logger, "failed to list history", err)
		return
	}

	switch c.DefaultQuery("format", "xlsx") {
	case "xlsx":
		h.writeXLSX(c, entries)
	case "csv":
		h.writeCSV(c, entries)
	default:
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "format must be xlsx or csv")
	}
}

func exportFilename(at time.Time, ext string) string {
	return fmt.Sprintf("attachment; filename=\"history_%s.%s\"", at.Format("20060102"), ext)
}

func (h *HistoryHandler) writeCSV(c *gin.Context, entries []models.History) {
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", exportFilename(h.Clock.Now(), "csv"))

	// UTF-8 BOM so spreadsheet apps detect the encoding
	_, _ = c.Writer.Write([]byte{0xEF, 0xBB, 0xBF})

	writer := csv.NewWriter(c.Writer)
	_ = writer.Write(exportHeaders)
	for i := range entries {
		_ = writer.Write(exportRow(&entries[i]))
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		h.Logger.Error("write csv export", "error", err)
	}
}

func (h *HistoryHandler) writeXLSX(c *gin.Context, entries []models.History) {
	f := excelize.NewFile()
	defer f.Close()

	const sheetName = "History"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		serverError(c, h.Logger, "failed to create worksheet", err)
		return
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	for col, header := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		_ = f.SetCellValue(sheetName, cell, header)
	}
	for i := range entries {
		for col, value := range exportRow(&entries[i]) {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			_ = f.SetCellValue(sheetName, cell, value)
		}
	}

	_ = f.SetColWidth(sheetName, "A", "A", 20)
	_ = f.SetColWidth(sheetName, "B", "B", 8)
	_ = f.SetColWidth(sheetName, "C", "C", 14)
	_ = f.SetColWidth(sheetName, "D", "D", 28)
	_ = f.SetColWidth(sheetName, "E", "E", 40)
	_ = f.SetColWidth(sheetName, "F", "F", 40)

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", exportFilename(h.Clock.Now(), "xlsx"))
	if err := f.Write(c.Writer); err != nil {
		h.Logger.Error("write xlsx export", "error", err)
	}
}
