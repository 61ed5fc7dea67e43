package models

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/mmdatafocus/attendance_backend/config"
	"github.com/mmdatafocus/attendance_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AttendanceLog is one work session. Created by check-in, mutated only by
// setting CheckOutTime, never deleted.
type AttendanceLog struct {
	LogID        string     `gorm:"primary_key;size:64" json:"log_id"`
	EmployeeID   string     `gorm:"size:64;not null;index:IX_AttendanceLog_Employee" json:"employee_id"`
	CheckInTime  time.Time  `gorm:"not null" json:"check_in_time"`
	CheckOutTime *time.Time `json:"check_out_time"`
}

// DailyTargetHours is the fixed per-day work target.
const DailyTargetHours = 9.0

var (
	ErrAlreadyOpenToday = utils.NewConflictError("Zaten bugün için açık bir mesai kaydınız bulunuyor.").WithCode("AlreadyOpenToday")
	ErrNoOpenSession    = utils.NewNotFoundError("Açık bir mesai başlangıcınız bulunmuyor.").WithCode("NoOpenSession")
)

// DailySummary is the per-employee view of today's progress against the
// target.
type DailySummary struct {
	CompletedHours      float64 `json:"completedHours"`
	CurrentSessionHours float64 `json:"currentSessionHours"`
	RemainingHours      float64 `json:"remainingHours"`
	RemainingTimeText   string  `json:"remainingTimeText"`
	IsCheckedIn         bool    `json:"isCheckedIn"`
}

// CheckIn opens a new session for the employee. An open session from today
// is a conflict; an open session forgotten on a prior day is first closed at
// the last instant of its own day, in the same transaction.
func CheckIn(ctx context.Context, db *gorm.DB, employeeID string) (*AttendanceLog, error) {
	lock := obtainAttendanceLock(ctx, employeeID)
	defer releaseAttendanceLock(ctx, lock)

	now := utils.BusinessNow()
	newLog := &AttendanceLog{
		LogID:       uuid.New().String(),
		EmployeeID:  employeeID,
		CheckInTime: now,
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockEmployeeRow(tx, employeeID); err != nil {
			return err
		}
		open, err := findOpenSession(tx, employeeID)
		if err != nil {
			return err
		}
		if open != nil {
			if utils.SameBusinessDate(open.CheckInTime, now) {
				return ErrAlreadyOpenToday
			}
			// Forgotten session from a prior day: close it at the end of the
			// day it was opened on, then start today's session.
			endOfDay := utils.EndOfBusinessDay(open.CheckInTime)
			open.CheckOutTime = &endOfDay
			if err := tx.Save(open).Error; err != nil {
				return err
			}
		}
		return tx.Create(newLog).Error
	})
	if err != nil {
		return nil, err
	}
	return newLog, nil
}

// CheckOut closes the employee's open session at business-now.
func CheckOut(ctx context.Context, db *gorm.DB, employeeID string) (*AttendanceLog, error) {
	lock := obtainAttendanceLock(ctx, employeeID)
	defer releaseAttendanceLock(ctx, lock)

	var closed *AttendanceLog
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockEmployeeRow(tx, employeeID); err != nil {
			return err
		}
		open, err := findOpenSession(tx, employeeID)
		if err != nil {
			return err
		}
		if open == nil {
			return ErrNoOpenSession
		}
		now := utils.BusinessNow()
		open.CheckOutTime = &now
		if err := tx.Save(open).Error; err != nil {
			return err
		}
		closed = open
		return nil
	})
	if err != nil {
		return nil, err
	}
	return closed, nil
}

// lockEmployeeRow takes a row lock on the employee record for the duration
// of the transaction. Locking the open session alone is not enough: when no
// open row exists there is nothing to lock, and under READ COMMITTED two
// concurrent check-ins would both observe "none open" and both insert. The
// employee row always exists, so it serves as the per-employee gate.
func lockEmployeeRow(tx *gorm.DB, employeeID string) error {
	var employee Employee
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		Where("id = ?", employeeID).
		First(&employee).Error
	if err == gorm.ErrRecordNotFound {
		return ErrEmployeeNotFound
	}
	return err
}

// findOpenSession loads the employee's open session. Callers hold the
// employee row lock, so the read is already serialized. Returns nil when no
// session is open.
func findOpenSession(tx *gorm.DB, employeeID string) (*AttendanceLog, error) {
	var open AttendanceLog
	err := tx.
		Where("employee_id = ? AND check_out_time IS NULL", employeeID).
		Order("check_in_time DESC").
		First(&open).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &open, nil
}

// GetDailySummary evaluates today's sessions against the fixed target.
func GetDailySummary(ctx context.Context, db *gorm.DB, employeeID string) (*DailySummary, error) {
	now := utils.BusinessNow()
	dayStart := utils.BusinessDate(now)
	dayEnd := dayStart.AddDate(0, 0, 1)

	var logs []AttendanceLog
	err := db.WithContext(ctx).
		Where("employee_id = ? AND check_in_time >= ? AND check_in_time < ?", employeeID, dayStart, dayEnd).
		Order("check_in_time ASC").
		Find(&logs).Error
	if err != nil {
		return nil, err
	}
	summary := summarizeDaily(logs, now)
	return &summary, nil
}

// summarizeDaily is the pure part of the daily summary: closed sessions
// count in full, the open one counts up to now.
func summarizeDaily(logs []AttendanceLog, now time.Time) DailySummary {
	var completed, current float64
	checkedIn := false
	for _, l := range logs {
		if l.CheckOutTime != nil {
			completed += l.CheckOutTime.Sub(l.CheckInTime).Hours()
		} else {
			checkedIn = true
			current += now.Sub(l.CheckInTime).Hours()
		}
	}
	remaining := math.Max(0, DailyTargetHours-(completed+current))
	return DailySummary{
		CompletedHours:      completed,
		CurrentSessionHours: current,
		RemainingHours:      remaining,
		RemainingTimeText:   formatRemaining(remaining),
		IsCheckedIn:         checkedIn,
	}
}

// formatRemaining renders remaining hours as "HH saat MM dk." with
// truncated components.
func formatRemaining(hours float64) string {
	h := int(hours)
	m := int((hours - float64(h)) * 60)
	return fmt.Sprintf("%02d saat %02d dk.", h, m)
}

// obtainAttendanceLock keeps concurrent check-ins for one employee from
// piling up on the database lock. Contended requests wait with backoff; if
// the lock still cannot be obtained, or Redis is down, the operation
// proceeds anyway because the employee row lock inside the transaction is
// the actual serialization guarantee.
func obtainAttendanceLock(ctx context.Context, employeeID string) *redislock.Lock {
	locker := config.GetRedisLock()
	if locker == nil {
		return nil
	}
	opts := &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 50),
	}
	lock, err := locker.Obtain(ctx, fmt.Sprintf("lock:attendance:%s", employeeID), 15*time.Second, opts)
	if err == redislock.ErrNotObtained {
		config.GetLogger().WithFields(logrus.Fields{
			"module":     "attendance.go",
			"employeeId": employeeID,
		}).Warn("could not obtain attendance lock; proceeding with db lock only")
		return nil
	} else if err != nil {
		config.GetLogger().WithFields(logrus.Fields{
			"module":     "attendance.go",
			"employeeId": employeeID,
		}).Warn("error obtaining attendance lock; proceeding with db lock only: " + err.Error())
		return nil
	}
	return lock
}

func releaseAttendanceLock(ctx context.Context, lock *redislock.Lock) {
	if lock == nil {
		return
	}
	if err := lock.Release(ctx); err != nil && err != redislock.ErrLockNotHeld {
		config.LogError(config.GetLogger(), "attendance.go", "releaseAttendanceLock", "release", nil, err)
	}
}
