package models_test

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/attendance_backend/config"
	"github.com/mmdatafocus/attendance_backend/models"
	"github.com/mmdatafocus/attendance_backend/utils"
	"gorm.io/gorm"
)

var integrationSetup sync.Once

// integrationDB connects, installs the audit plugin and migrates exactly
// once per test binary. Tests needing mysql + redis skip unless
// INTEGRATION_TESTS is set.
func integrationDB(t *testing.T) *gorm.DB {
	t.Helper()
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires mysql + redis)")
	}
	integrationSetup.Do(func() {
		config.ConnectDatabaseWithRetry()
		config.ConnectRedisWithRetry()
		if err := config.GetDB().Use(models.NewAuditTrailPlugin()); err != nil {
			t.Fatalf("install audit plugin: %v", err)
		}
		models.MigrateTable()
	})
	return config.GetDB()
}

// registerTestEmployee creates a throwaway employee with a unique email and
// returns it together with a context attributed to that employee.
func registerTestEmployee(t *testing.T, db *gorm.DB) (*models.Employee, context.Context) {
	t.Helper()
	adminCtx := utils.SetUserIdInContext(context.Background(), uuid.New().String())
	adminCtx = utils.SetUserNameInContext(adminCtx, "integration@local")

	email := "audit-" + uuid.New().String()[:8] + "@sirket.test"
	employee, err := models.RegisterEmployee(adminCtx, db, models.RegisterInput{
		Name:     "Deneme",
		Surname:  "Çalışan",
		Email:    email,
		Password: "s3cret-pass",
	})
	if err != nil {
		t.Fatalf("RegisterEmployee: %v", err)
	}

	actorCtx := utils.SetUserIdInContext(context.Background(), employee.Id)
	actorCtx = utils.SetUserNameInContext(actorCtx, email)
	return employee, actorCtx
}

// Exercises the change-capture callbacks against a real database:
// registration, check-in and check-out must each leave a ledger entry on
// the same rows the application wrote.
func TestAuditTrailCapturesAttendanceLifecycle(t *testing.T) {
	db := integrationDB(t)

	adminId := uuid.New().String()
	ctx := utils.SetUserIdInContext(context.Background(), adminId)
	ctx = utils.SetUserNameInContext(ctx, "integration@local")

	email := "audit-" + uuid.New().String()[:8] + "@sirket.test"
	employee, err := models.RegisterEmployee(ctx, db, models.RegisterInput{
		Name:     "Deneme",
		Surname:  "Çalışan",
		Email:    email,
		Password: "s3cret-pass",
	})
	if err != nil {
		t.Fatalf("RegisterEmployee: %v", err)
	}

	history, err := models.GetEntityHistory(ctx, db, "Employee", employee.Id)
	if err != nil {
		t.Fatalf("GetEntityHistory(Employee): %v", err)
	}
	// History is newest first, so the registration insert sits at the end.
	insert := history[len(history)-1]
	if insert.Action != models.AuditActionInsert {
		t.Fatalf("oldest employee entry action = %q", insert.Action)
	}
	if insert.OldValues != nil {
		t.Fatalf("insert entry has old values: %s", *insert.OldValues)
	}
	if insert.NewValues == nil {
		t.Fatal("insert entry has no new values")
	}
	var newValues map[string]any
	if err := json.Unmarshal([]byte(*insert.NewValues), &newValues); err != nil {
		t.Fatalf("unmarshal new values: %v", err)
	}
	for _, denied := range []string{"PasswordHash", "SecurityStamp", "NormalizedEmail"} {
		if _, ok := newValues[denied]; ok {
			t.Fatalf("denylisted field %s present in ledger: %s", denied, *insert.NewValues)
		}
	}
	if newValues["Email"] != email {
		t.Fatalf("insert entry email = %v", newValues["Email"])
	}
	if userId, ok := newValues["Id"]; !ok || userId != employee.Id {
		t.Fatalf("insert entry id = %v", newValues["Id"])
	}
	if insert.UserId == nil || *insert.UserId != adminId {
		t.Fatalf("insert entry actor = %v, expected %s", insert.UserId, adminId)
	}

	// Attendance lifecycle.
	actorCtx := utils.SetUserIdInContext(context.Background(), employee.Id)
	actorCtx = utils.SetUserNameInContext(actorCtx, email)

	session, err := models.CheckIn(actorCtx, db, employee.Id)
	if err != nil {
		t.Fatalf("CheckIn: %v", err)
	}
	if _, err := models.CheckIn(actorCtx, db, employee.Id); err != models.ErrAlreadyOpenToday {
		t.Fatalf("second CheckIn error = %v, expected ErrAlreadyOpenToday", err)
	}
	if _, err := models.CheckOut(actorCtx, db, employee.Id); err != nil {
		t.Fatalf("CheckOut: %v", err)
	}
	if _, err := models.CheckOut(actorCtx, db, employee.Id); err != models.ErrNoOpenSession {
		t.Fatalf("second CheckOut error = %v, expected ErrNoOpenSession", err)
	}

	sessionHistory, err := models.GetEntityHistory(actorCtx, db, "AttendanceLog", session.LogID)
	if err != nil {
		t.Fatalf("GetEntityHistory(AttendanceLog): %v", err)
	}
	if len(sessionHistory) != 2 {
		t.Fatalf("session history length = %d, expected insert + update", len(sessionHistory))
	}
	// Newest first: the check-out update precedes the check-in insert.
	if sessionHistory[0].Action != models.AuditActionUpdate || sessionHistory[1].Action != models.AuditActionInsert {
		t.Fatalf("session history actions = %s, %s", sessionHistory[0].Action, sessionHistory[1].Action)
	}

	// Credential change must leave only the placeholder.
	if err := models.ChangePassword(actorCtx, db, employee.Id, "s3cret-pass", "another-pass"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	history, err = models.GetEntityHistory(actorCtx, db, "Employee", employee.Id)
	if err != nil {
		t.Fatalf("GetEntityHistory after password change: %v", err)
	}
	latest := history[0]
	if latest.Action != models.AuditActionUpdate || latest.NewValues == nil {
		t.Fatalf("password change entry = %+v", latest)
	}
	if !strings.Contains(*latest.NewValues, `"Password":"********"`) {
		t.Fatalf("password change not redacted: %s", *latest.NewValues)
	}
	if strings.Contains(*latest.NewValues, "$2a$") || strings.Contains(utils.DereferencePtr(latest.OldValues), "$2a$") {
		t.Fatalf("bcrypt hash leaked into ledger: new=%s old=%s", *latest.NewValues, utils.DereferencePtr(latest.OldValues))
	}
}

// A session forgotten open on a prior day must be closed at the end of its
// own day when the next check-in arrives, in the same transaction that
// opens the new one.
func TestCheckInRepairsStaleOpenSession(t *testing.T) {
	db := integrationDB(t)
	employee, actorCtx := registerTestEmployee(t, db)

	staleIn := utils.BusinessNow().AddDate(0, 0, -1).Truncate(time.Millisecond)
	stale := &models.AttendanceLog{
		LogID:       uuid.New().String(),
		EmployeeID:  employee.Id,
		CheckInTime: staleIn,
	}
	if err := db.Create(stale).Error; err != nil {
		t.Fatalf("seed stale session: %v", err)
	}

	fresh, err := models.CheckIn(actorCtx, db, employee.Id)
	if err != nil {
		t.Fatalf("CheckIn with stale open session: %v", err)
	}

	var repaired models.AttendanceLog
	if err := db.Where("log_id = ?", stale.LogID).First(&repaired).Error; err != nil {
		t.Fatalf("reload stale session: %v", err)
	}
	if repaired.CheckOutTime == nil {
		t.Fatal("stale session still open after new check-in")
	}
	expected := utils.EndOfBusinessDay(staleIn)
	if !repaired.CheckOutTime.Equal(expected) {
		t.Fatalf("stale session closed at %v, expected %v", repaired.CheckOutTime, expected)
	}
	if !utils.SameBusinessDate(repaired.CheckInTime, *repaired.CheckOutTime) {
		t.Fatalf("auto-close crossed the date: in=%v out=%v", repaired.CheckInTime, repaired.CheckOutTime)
	}

	var open []models.AttendanceLog
	if err := db.Where("employee_id = ? AND check_out_time IS NULL", employee.Id).Find(&open).Error; err != nil {
		t.Fatalf("list open sessions: %v", err)
	}
	if len(open) != 1 || open[0].LogID != fresh.LogID {
		t.Fatalf("open sessions after repair = %+v, expected only the new one", open)
	}
}

// Concurrent check-ins for the same employee must collapse to a single open
// session: the employee row lock serializes them even when the open-session
// read finds nothing to lock.
func TestConcurrentCheckInsCreateSingleOpenSession(t *testing.T) {
	db := integrationDB(t)
	employee, actorCtx := registerTestEmployee(t, db)

	const workers = 8
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = models.CheckIn(actorCtx, db, employee.Id)
		}(i)
	}
	wg.Wait()

	successes := 0
	for i, err := range errs {
		switch err {
		case nil:
			successes++
		case models.ErrAlreadyOpenToday:
		default:
			t.Fatalf("worker %d unexpected error: %v", i, err)
		}
	}
	if successes != 1 {
		t.Fatalf("%d concurrent check-ins succeeded, expected exactly 1", successes)
	}

	var open int64
	err := db.Model(&models.AttendanceLog{}).
		Where("employee_id = ? AND check_out_time IS NULL", employee.Id).
		Count(&open).Error
	if err != nil {
		t.Fatalf("count open sessions: %v", err)
	}
	if open != 1 {
		t.Fatalf("open sessions = %d, expected exactly 1", open)
	}
}
