package service

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/costaverde/voucher-service/internal/domain/entity"
)

// exportLimit caps a spreadsheet export; small sales teams stay far
// below it.
const exportLimit = 200

// ReportService builds the spreadsheet listing the sales team downloads.
type ReportService interface {
	ExportVouchers(ctx context.Context, agentID string) ([]byte, error)
}

type reportServiceImpl struct {
	vouchers VoucherService
	logger   Logger
}

// NewReportService creates a new ReportService.
func NewReportService(vouchers VoucherService, logger Logger) ReportService {
	return &reportServiceImpl{vouchers: vouchers, logger: logger}
}

// ExportVouchers renders the agent's non-deleted vouchers as an .xlsx
// workbook. The listing goes through the swept read path, so overdue
// vouchers show up already expired.
func (s *reportServiceImpl) ExportVouchers(ctx context.Context, agentID string) ([]byte, error) {
	if agentID == "" {
		return nil, entity.ErrNotAuthenticated
	}

	vouchers, err := s.vouchers.ListRecent(ctx, agentID, exportLimit)
	if err != nil {
		return nil, fmt.Errorf("load vouchers for export: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	headers := []string{"Code", "Client", "Package", "Embark date", "Embark time", "Partial amount", "Embark amount", "Status", "Created at"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, fmt.Errorf("write export header: %w", err)
		}
	}

	for row, v := range vouchers {
		values := []interface{}{
			v.Code,
			v.ClientName,
			v.PackageName,
			formatDate(v.EmbarkDate),
			v.EmbarkTime,
			v.PartialAmount,
			v.EmbarkAmount,
			v.Status,
			v.CreatedAt.Format("2006-01-02 15:04"),
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return nil, fmt.Errorf("write export row: %w", err)
			}
		}
	}

	_ = f.SetColWidth(sheet, "A", "C", 22)
	_ = f.SetColWidth(sheet, "D", "I", 16)

	buf, err := f.WriteToBuffer()
	if err != nil {
		s.logger.Error("Failed to build voucher export", "error", err, "agent_id", agentID)
		return nil, fmt.Errorf("build export: %w", err)
	}

	s.logger.Info("Voucher export built", "agent_id", agentID, "rows", len(vouchers))
	return buf.Bytes(), nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
