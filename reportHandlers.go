package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/attendance_backend/config"
	"github.com/mmdatafocus/attendance_backend/models/reports"
)

func reportWindow(c *gin.Context) (*time.Time, *time.Time) {
	var start, end *time.Time
	if v := c.Query("start_date"); v != "" {
		if t, err := time.Parse(queryDateLayout, v); err == nil {
			start = &t
		}
	}
	if v := c.Query("end_date"); v != "" {
		if t, err := time.Parse(queryDateLayout, v); err == nil {
			end = &t
		}
	}
	return start, end
}

func adminAllLogsHandler(c *gin.Context) {
	start, end := reportWindow(c)
	rows, err := reports.GetAttendanceReport(c.Request.Context(), start, end)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func downloadAdminReportHandler(c *gin.Context) {
	start, end := reportWindow(c)
	rows, err := reports.GetAttendanceReport(c.Request.Context(), start, end)
	if err != nil {
		respondError(c, err)
		return
	}

	f, err := reports.BuildAttendanceReportWorkbook(rows)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=attendance-report.xlsx")
	if err := f.Write(c.Writer); err != nil {
		config.LogError(config.GetLogger(), "reportHandlers.go", "downloadAdminReportHandler", "write workbook", nil, err)
	}
}
