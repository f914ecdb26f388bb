package api

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"spacebook/internal/models"

	"github.com/xuri/excelize/v2"
)

// handleBookingsReport renders all bookings starting inside a date
// window into an xlsx workbook and serves it back.
func (s *HTTPServer) handleBookingsReport(w http.ResponseWriter, r *http.Request) {
	from, err := time.Parse("2006-01-02", r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "from must be YYYY-MM-DD")
		return
	}
	to, err := time.Parse("2006-01-02", r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "to must be YYYY-MM-DD")
		return
	}
	if !from.Before(to) {
		writeError(w, http.StatusUnprocessableEntity, "to must be after from")
		return
	}

	bookings, err := s.store.GetBookingsByRange(r.Context(), from, to)
	if err != nil {
		s.logger.Error().Err(err).Msg("report query failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	filePath, err := s.writeBookingsWorkbook(bookings, from, to)
	if err != nil {
		s.logger.Error().Err(err).Msg("report generation failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(filePath)))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	http.ServeFile(w, r, filePath)
}

func (s *HTTPServer) writeBookingsWorkbook(bookings []*models.Booking, from, to time.Time) (string, error) {
	if err := os.MkdirAll(s.exportPath, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheetName = "Bookings"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("Bookings %s - %s",
		from.Format("2006-01-02"), to.Format("2006-01-02")))
	_ = f.MergeCell(sheetName, "A1", "I1")

	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A1", "A1", titleStyle)

	headers := []string{
		"ID", "Reference", "Client", "Space", "Start", "End",
		"Total", "Status", "Payment Status",
	}
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(sheetName, cell, header)
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for i, booking := range bookings {
		row := i + 3
		values := []any{
			booking.ID,
			booking.ReferenceCode,
			booking.ClientID,
			booking.SpaceID,
			booking.StartTime.Format("2006-01-02 15:04"),
			booking.EndTime.Format("2006-01-02 15:04"),
			booking.TotalPrice.StringFixed(2),
			booking.Status.String(),
			booking.PaymentStatus,
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(sheetName, cell, value)
		}
	}

	_ = f.SetColWidth(sheetName, "B", "B", 30)
	_ = f.SetColWidth(sheetName, "E", "F", 18)
	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("bookings_%s_to_%s.xlsx",
		from.Format("2006-01-02"), to.Format("2006-01-02"))
	filePath := filepath.Join(s.exportPath, fileName)

	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}

	s.logger.Info().Str("file_path", filePath).Int("bookings", len(bookings)).Msg("bookings report created")
	return filePath, nil
}
