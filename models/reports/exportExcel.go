package reports

import (
	"fmt"

	"github.com/mmdatafocus/attendance_backend/models"
	"github.com/mmdatafocus/attendance_backend/utils"
	"github.com/xuri/excelize/v2"
)

const (
	auditSheetName      = "Denetim Logları"
	attendanceSheetName = "Mesai Raporu"
	excelTimeLayout     = "02.01.2006 15:04:05"
)

// newWorkbook creates a workbook whose only sheet carries the given name
// instead of excelize's default "Sheet1".
func newWorkbook(sheet string) (*excelize.File, error) {
	f := excelize.NewFile()
	idx, err := f.NewSheet(sheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}
	return f, nil
}

func yesNo(b bool) string {
	if b {
		return "Evet"
	}
	return "Hayır"
}

// BuildAuditLogWorkbook renders ledger rows into a spreadsheet, one row per
// entry, in the order given.
func BuildAuditLogWorkbook(logs []models.AuditLog) (*excelize.File, error) {
	f, err := newWorkbook(auditSheetName)
	if err != nil {
		return nil, err
	}

	headers := []string{
		"ID", "Kullanıcı", "Kullanıcı ID", "İşlem", "Varlık Tipi", "Varlık ID",
		"Tarih/Saat", "Başarılı", "IP Adresi", "Hata Mesajı", "Eski Değerler", "Yeni Değerler",
	}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		f.SetCellValue(auditSheetName, cell, h)
	}

	for i, entry := range logs {
		values := []interface{}{
			entry.Id,
			utils.DereferencePtr(entry.UserName, models.AnonymousUserName),
			utils.DereferencePtr(entry.UserId, ""),
			entry.Action,
			utils.DereferencePtr(entry.EntityType, ""),
			utils.DereferencePtr(entry.EntityId, ""),
			entry.Timestamp.Format(excelTimeLayout),
			yesNo(entry.Success),
			utils.DereferencePtr(entry.IpAddress, ""),
			utils.DereferencePtr(entry.ErrorMessage, ""),
			utils.DereferencePtr(entry.OldValues, ""),
			utils.DereferencePtr(entry.NewValues, ""),
		}
		for j, v := range values {
			cell, err := excelize.CoordinatesToCellName(j+1, i+2)
			if err != nil {
				return nil, err
			}
			f.SetCellValue(auditSheetName, cell, v)
		}
	}

	return f, nil
}

// BuildAttendanceReportWorkbook renders attendance report rows. Open
// sessions leave the check-out column empty.
func BuildAttendanceReportWorkbook(rows []*AttendanceReportRow) (*excelize.File, error) {
	f, err := newWorkbook(attendanceSheetName)
	if err != nil {
		return nil, err
	}

	headers := []string{
		"Kullanıcı ID", "Çalışan", "Departman", "E-posta",
		"Giriş Zamanı", "Çıkış Zamanı", "Çalışılan Süre", "Kalan Mesai (9s)",
	}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		f.SetCellValue(attendanceSheetName, cell, h)
	}

	for i, row := range rows {
		checkOut := ""
		if row.CheckOutTime != nil {
			checkOut = row.CheckOutTime.Format(excelTimeLayout)
		}
		values := []interface{}{
			row.EmployeeID,
			row.Name + " " + row.Surname,
			utils.DereferencePtr(row.Department, ""),
			row.Email,
			row.CheckInTime.Format(excelTimeLayout),
			checkOut,
			fmt.Sprintf("%.2f", row.DurationHours()),
			fmt.Sprintf("%.2f", row.RemainingHours()),
		}
		for j, v := range values {
			cell, err := excelize.CoordinatesToCellName(j+1, i+2)
			if err != nil {
				return nil, err
			}
			f.SetCellValue(attendanceSheetName, cell, v)
		}
	}

	return f, nil
}
