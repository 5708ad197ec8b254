// Package export renders booking-ledger reports for business owners.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"bookgrid/internal/models"
)

var reportColumns = []string{"Booking ID", "Order", "Date", "Time", "Duration (min)", "Confirmed At"}

// WriteBookingsReport writes an xlsx workbook with one row per confirmed
// booking to w.
func WriteBookingsReport(w io.Writer, businessID int64, bookings []models.Booking) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := sheetName(businessID)
	f.SetSheetName("Sheet1", sheet)

	for i, col := range reportColumns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, col); err != nil {
			return err
		}
	}

	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		startCell, _ := excelize.CoordinatesToCellName(1, 1)
		endCell, _ := excelize.CoordinatesToCellName(len(reportColumns), 1)
		_ = f.SetCellStyle(sheet, startCell, endCell, style)
	}

	for i, b := range bookings {
		row := []interface{}{
			b.ID,
			b.OrderRef,
			b.Date,
			b.Time,
			b.DurationMinutes,
			b.CreatedAt.Format("2006-01-02 15:04"),
		}
		for j, val := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, val); err != nil {
				return err
			}
		}
	}

	return f.Write(w)
}

func sheetName(businessID int64) string {
	name := fmt.Sprintf("Bookings %d", businessID)
	// Excel caps sheet names at 31 chars.
	if len(name) > 31 {
		name = name[:31]
	}
	return name
}
