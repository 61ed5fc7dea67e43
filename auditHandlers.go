package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/attendance_backend/config"
	"github.com/mmdatafocus/attendance_backend/models"
	"github.com/mmdatafocus/attendance_backend/models/reports"
)

const queryDateLayout = "2006-01-02"

// parseAuditFilter reads the filter query params permissively: values that
// do not parse are treated as absent, never as errors.
func parseAuditFilter(c *gin.Context) models.AuditLogFilter {
	filter := models.AuditLogFilter{
		UserName: c.Query("user"),
		Action:   c.Query("action"),
	}
	if v := c.Query("start_date"); v != "" {
		if t, err := time.Parse(queryDateLayout, v); err == nil {
			filter.StartDate = &t
		}
	}
	if v := c.Query("end_date"); v != "" {
		if t, err := time.Parse(queryDateLayout, v); err == nil {
			filter.EndDate = &t
		}
	}
	return filter
}

func intQuery(c *gin.Context, key string, def int) int {
	v := c.Query(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getLogsHandler(c *gin.Context) {
	page := intQuery(c, "page", 1)
	pageSize := intQuery(c, "page_size", 50)

	result, err := models.GetAuditLogs(c.Request.Context(), config.GetDB(), parseAuditFilter(c), page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func getLogByIdHandler(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		respondError(c, models.ErrAuditLogNotFound)
		return
	}

	entry, err := models.GetAuditLogByID(c.Request.Context(), config.GetDB(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func auditStatsHandler(c *gin.Context) {
	stats, err := models.GetAuditStats(c.Request.Context(), config.GetDB(), intQuery(c, "window_hours", 24))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func entityHistoryHandler(c *gin.Context) {
	logs, err := models.GetEntityHistory(c.Request.Context(), config.GetDB(), c.Param("entityType"), c.Param("entityId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

func exportLogsHandler(c *gin.Context) {
	logs, err := models.ExportAuditLogs(c.Request.Context(), config.GetDB(), parseAuditFilter(c))
	if err != nil {
		respondError(c, err)
		return
	}

	f, err := reports.BuildAuditLogWorkbook(logs)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=audit-logs.xlsx")
	if err := f.Write(c.Writer); err != nil {
		config.LogError(config.GetLogger(), "auditHandlers.go", "exportLogsHandler", "write workbook", nil, err)
	}
}
