package reports

import (
	"testing"
	"time"

	"github.com/mmdatafocus/attendance_backend/models"
)

func TestBuildAuditLogWorkbookSheetAndHeaders(t *testing.T) {
	user := "Ayşe Yılmaz"
	entry := models.AuditLog{
		Id:        1,
		UserName:  &user,
		Action:    "POST /api/account/login",
		Timestamp: time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC),
		Success:   true,
	}

	f, err := BuildAuditLogWorkbook([]models.AuditLog{entry})
	if err != nil {
		t.Fatalf("BuildAuditLogWorkbook() error: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) != 1 || sheets[0] != "Denetim Logları" {
		t.Fatalf("sheet list = %v, expected exactly [Denetim Logları]", sheets)
	}

	got, err := f.GetCellValue("Denetim Logları", "G1")
	if err != nil {
		t.Fatalf("GetCellValue(G1) error: %v", err)
	}
	if got != "Tarih/Saat" {
		t.Fatalf("timestamp header = %q, expected \"Tarih/Saat\"", got)
	}

	got, err = f.GetCellValue("Denetim Logları", "B2")
	if err != nil {
		t.Fatalf("GetCellValue(B2) error: %v", err)
	}
	if got != user {
		t.Fatalf("user cell = %q, expected %q", got, user)
	}
}

func TestBuildAttendanceReportWorkbookSheet(t *testing.T) {
	in := time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC)
	out := in.Add(9 * time.Hour)
	row := &AttendanceReportRow{
		EmployeeID:   "emp-1",
		Name:         "Mehmet",
		Surname:      "Demir",
		Email:        "mehmet@sirket.com",
		CheckInTime:  in,
		CheckOutTime: &out,
	}

	f, err := BuildAttendanceReportWorkbook([]*AttendanceReportRow{row})
	if err != nil {
		t.Fatalf("BuildAttendanceReportWorkbook() error: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) != 1 || sheets[0] != "Mesai Raporu" {
		t.Fatalf("sheet list = %v, expected exactly [Mesai Raporu]", sheets)
	}

	got, err := f.GetCellValue("Mesai Raporu", "H1")
	if err != nil {
		t.Fatalf("GetCellValue(H1) error: %v", err)
	}
	if got != "Kalan Mesai (9s)" {
		t.Fatalf("remaining header = %q, expected \"Kalan Mesai (9s)\"", got)
	}
}
