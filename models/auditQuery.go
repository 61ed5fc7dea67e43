package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/attendance_backend/utils"
	"gorm.io/gorm"
)

// AuditLogFilter is the permissive read-side filter: every field is
// optional, unset fields are simply not applied.
type AuditLogFilter struct {
	StartDate *time.Time
	EndDate   *time.Time
	UserName  string
	Action    string
}

// AuditLogPage is one page of ledger rows, newest first.
type AuditLogPage struct {
	Data       []AuditLog `json:"data"`
	TotalCount int64      `json:"totalCount"`
	Page       int        `json:"page"`
	PageSize   int        `json:"pageSize"`
	TotalPages int        `json:"totalPages"`
}

// AuditStats is the aggregate view over a trailing window.
type AuditStats struct {
	TotalCount         int64         `json:"totalCount"`
	SuccessCount       int64         `json:"successCount"`
	FailedCount        int64         `json:"failedCount"`
	MostActiveUserId   *string       `json:"mostActiveUserId"`
	MostActiveUserName *string       `json:"mostActiveUserName"`
	ActionDistribution []ActionCount `json:"actionDistribution"`
}

// ActionCount is one bucket of the action distribution, busiest first.
type ActionCount struct {
	Action string `json:"action"`
	Count  int64  `json:"count"`
}

var (
	ErrAuditLogNotFound     = utils.NewNotFoundError("Log bulunamadı")
	ErrEntityHistoryMissing = utils.NewNotFoundError("Log geçmişi bulunamadı")
)

// loginActionMarker is the path fragment shared by every login entry.
// Action-sourced login labels are "<METHOD> <path>" strings, so filtering
// for logins is a substring match rather than an exact one.
const loginActionMarker = "api/account/login"

// actionFilterCondition translates the action filter value into a where
// clause. "Login" is special-cased to the path marker.
func actionFilterCondition(action string) (string, string) {
	if action == "Login" {
		return "action LIKE ?", "%" + loginActionMarker + "%"
	}
	return "action = ?", action
}

func applyAuditLogFilter(q *gorm.DB, filter AuditLogFilter) *gorm.DB {
	if filter.StartDate != nil {
		q = q.Where("DATE(timestamp) >= DATE(?)", *filter.StartDate)
	}
	if filter.EndDate != nil {
		q = q.Where("DATE(timestamp) <= DATE(?)", *filter.EndDate)
	}
	if filter.UserName != "" {
		pattern := "%" + filter.UserName + "%"
		q = q.Where("user_id LIKE ? OR user_name LIKE ?", pattern, pattern)
	}
	if filter.Action != "" {
		cond, arg := actionFilterCondition(filter.Action)
		q = q.Where(cond, arg)
	}
	return q
}

// GetAuditLogs returns one filtered page of the ledger, newest first.
func GetAuditLogs(ctx context.Context, db *gorm.DB, filter AuditLogFilter, page, pageSize int) (*AuditLogPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}

	q := applyAuditLogFilter(db.WithContext(ctx).Model(&AuditLog{}), filter)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, err
	}

	var logs []AuditLog
	err := q.Order("timestamp DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&logs).Error
	if err != nil {
		return nil, err
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return &AuditLogPage{
		Data:       logs,
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}

func GetAuditLogByID(ctx context.Context, db *gorm.DB, id int) (*AuditLog, error) {
	var entry AuditLog
	err := db.WithContext(ctx).Where("id = ?", id).First(&entry).Error
	if err == gorm.ErrRecordNotFound {
		return nil, ErrAuditLogNotFound
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// GetEntityHistory returns every ledger row touching one entity, newest
// first.
func GetEntityHistory(ctx context.Context, db *gorm.DB, entityType, entityId string) ([]AuditLog, error) {
	var logs []AuditLog
	err := db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, entityId).
		Order("timestamp DESC").
		Find(&logs).Error
	if err != nil {
		return nil, err
	}
	if len(logs) == 0 {
		return nil, ErrEntityHistoryMissing
	}
	return logs, nil
}

// GetAuditStats aggregates the trailing window ending at business-now.
func GetAuditStats(ctx context.Context, db *gorm.DB, windowHours int) (*AuditStats, error) {
	if windowHours <= 0 {
		windowHours = 24
	}
	since := utils.BusinessNow().Add(-time.Duration(windowHours) * time.Hour)
	base := db.WithContext(ctx).Model(&AuditLog{}).Where("timestamp >= ?", since)

	stats := &AuditStats{}

	if err := base.Session(&gorm.Session{}).Count(&stats.TotalCount).Error; err != nil {
		return nil, err
	}
	if err := base.Session(&gorm.Session{}).Where("success = ?", false).Count(&stats.FailedCount).Error; err != nil {
		return nil, err
	}
	stats.SuccessCount = stats.TotalCount - stats.FailedCount

	// Ties on activity count resolve to the earliest seen user so the
	// answer is stable across calls.
	var mostActive struct {
		UserId   *string
		UserName *string
	}
	err := base.Session(&gorm.Session{}).
		Select("user_id, user_name, COUNT(*) AS activity_count, MIN(id) AS first_id").
		Where("user_id IS NOT NULL").
		Group("user_id, user_name").
		Order("activity_count DESC, first_id ASC").
		Limit(1).
		Scan(&mostActive).Error
	if err != nil {
		return nil, err
	}
	stats.MostActiveUserId = mostActive.UserId
	stats.MostActiveUserName = mostActive.UserName

	err = base.Session(&gorm.Session{}).
		Select("action, COUNT(*) AS count").
		Group("action").
		Order("count DESC").
		Scan(&stats.ActionDistribution).Error
	if err != nil {
		return nil, err
	}

	return stats, nil
}

// ExportAuditLogs returns the full filtered result set, unpaginated, for
// workbook rendering.
func ExportAuditLogs(ctx context.Context, db *gorm.DB, filter AuditLogFilter) ([]AuditLog, error) {
	var logs []AuditLog
	err := applyAuditLogFilter(db.WithContext(ctx).Model(&AuditLog{}), filter).
		Order("timestamp DESC").
		Find(&logs).Error
	return logs, err
}
