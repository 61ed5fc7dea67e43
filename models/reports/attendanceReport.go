package reports

import (
	"context"
	"time"

	"github.com/mmdatafocus/attendance_backend/config"
	"github.com/mmdatafocus/attendance_backend/models"
	"github.com/mmdatafocus/attendance_backend/utils"
)

// AttendanceReportRow is one session joined with its employee, as rendered
// in the admin report.
type AttendanceReportRow struct {
	EmployeeID   string     `json:"employee_id"`
	Name         string     `json:"name"`
	Surname      string     `json:"surname"`
	Department   *string    `json:"department"`
	Email        string     `json:"email"`
	CheckInTime  time.Time  `json:"check_in_time"`
	CheckOutTime *time.Time `json:"check_out_time"`
}

// DurationHours is the session length; open sessions count up to
// business-now.
func (r *AttendanceReportRow) DurationHours() float64 {
	if r.CheckOutTime == nil {
		return utils.BusinessNow().Sub(r.CheckInTime).Hours()
	}
	return r.CheckOutTime.Sub(r.CheckInTime).Hours()
}

// RemainingHours is the session's shortfall against the daily target,
// floored at zero.
func (r *AttendanceReportRow) RemainingHours() float64 {
	remaining := models.DailyTargetHours - r.DurationHours()
	if remaining < 0 {
		return 0
	}
	return remaining
}

// GetAttendanceReport returns every session in the window, joined with
// employee info, newest first. Sessions of deleted employees survive with a
// tombstone label so the report never silently loses rows.
func GetAttendanceReport(ctx context.Context, startDate, endDate *time.Time) ([]*AttendanceReportRow, error) {
	sql := `
SELECT
    attendance_logs.employee_id,
    COALESCE(employees.name, 'Kullanıcı sistemden silinmiştir.') AS name,
    COALESCE(employees.surname, '') AS surname,
    employees.department,
    COALESCE(employees.email, '') AS email,
    attendance_logs.check_in_time,
    attendance_logs.check_out_time
FROM
    attendance_logs
    LEFT JOIN employees ON employees.id = attendance_logs.employee_id
`
	var conditions []string
	var args []interface{}
	if startDate != nil {
		conditions = append(conditions, "DATE(attendance_logs.check_in_time) >= DATE(?)")
		args = append(args, *startDate)
	}
	if endDate != nil {
		conditions = append(conditions, "DATE(attendance_logs.check_in_time) <= DATE(?)")
		args = append(args, *endDate)
	}
	for i, cond := range conditions {
		if i == 0 {
			sql += "WHERE " + cond + "\n"
		} else {
			sql += "  AND " + cond + "\n"
		}
	}
	sql += "ORDER BY attendance_logs.check_in_time DESC"

	var rows []*AttendanceReportRow
	db := config.GetDB()
	if err := db.WithContext(ctx).Raw(sql, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
