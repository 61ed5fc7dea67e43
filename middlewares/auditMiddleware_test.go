package middlewares

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/attendance_backend/models"
	"github.com/mmdatafocus/attendance_backend/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type capturedEntries struct {
	entries []*models.AuditLog
}

func (c *capturedEntries) record(_ context.Context, entry *models.AuditLog) error {
	c.entries = append(c.entries, entry)
	return nil
}

func (c *capturedEntries) single(t *testing.T) *models.AuditLog {
	t.Helper()
	if len(c.entries) != 1 {
		t.Fatalf("expected exactly one entry, got %d", len(c.entries))
	}
	return c.entries[0]
}

func TestActionAuditRecordsSuccessfulRequest(t *testing.T) {
	captured := &capturedEntries{}
	r := gin.New()
	r.GET("/api/audit/logs", ActionAuditWithRecorder("GetLogs", captured.record), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"data": []string{}})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/audit/logs", nil)
	r.ServeHTTP(w, req)

	entry := captured.single(t)
	if entry.Action != "GET /api/audit/logs" {
		t.Fatalf("action label = %q", entry.Action)
	}
	if !entry.Success {
		t.Fatalf("expected success entry, got %+v", entry)
	}
	if entry.ErrorMessage != nil {
		t.Fatalf("success entry carries error message %q", *entry.ErrorMessage)
	}
}

func TestActionAuditAnonymousActorSentinel(t *testing.T) {
	captured := &capturedEntries{}
	r := gin.New()
	r.GET("/api/audit/logs", ActionAuditWithRecorder("GetLogs", captured.record), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/audit/logs", nil))

	entry := captured.single(t)
	if entry.UserId != nil {
		t.Fatalf("anonymous request got user id %q", *entry.UserId)
	}
	if entry.UserName == nil || *entry.UserName != models.AnonymousUserName {
		t.Fatalf("expected sentinel user name, got %v", entry.UserName)
	}
}

func TestActionAuditUsesContextIdentity(t *testing.T) {
	captured := &capturedEntries{}
	r := gin.New()
	r.Use(func(c *gin.Context) {
		ctx := utils.SetUserIdInContext(c.Request.Context(), "user-42")
		ctx = utils.SetUserNameInContext(ctx, "kerem@sirket.com")
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})
	r.GET("/api/audit/export", ActionAuditWithRecorder("ExportLogs", captured.record), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/audit/export", nil))

	entry := captured.single(t)
	if entry.UserId == nil || *entry.UserId != "user-42" {
		t.Fatalf("user id = %v", entry.UserId)
	}
	if entry.UserName == nil || *entry.UserName != "kerem@sirket.com" {
		t.Fatalf("user name = %v", entry.UserName)
	}
}

func TestActionAuditRecordsFailureWithStatusAndBody(t *testing.T) {
	captured := &capturedEntries{}
	r := gin.New()
	r.GET("/api/audit/logs", ActionAuditWithRecorder("GetLogs", captured.record), func(c *gin.Context) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "kaput"})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/audit/logs", nil))

	entry := captured.single(t)
	if entry.Success {
		t.Fatalf("failed request recorded as success: %+v", entry)
	}
	if entry.ErrorMessage == nil {
		t.Fatal("failure entry has no error message")
	}
	if !strings.Contains(*entry.ErrorMessage, "HTTP 500") || !strings.Contains(*entry.ErrorMessage, "kaput") {
		t.Fatalf("error message = %q", *entry.ErrorMessage)
	}
}

func TestActionAuditRecordsPanicAndPropagates(t *testing.T) {
	captured := &capturedEntries{}
	r := gin.New()
	// Recovery sits outside so the re-panic still reaches it.
	r.Use(gin.Recovery())
	r.GET("/api/report/admin/all-logs", ActionAuditWithRecorder("GetAdminAllLogs", captured.record), func(c *gin.Context) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/report/admin/all-logs", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, expected 500 from recovery", w.Code)
	}
	entry := captured.single(t)
	if entry.Success {
		t.Fatalf("panicking request recorded as success: %+v", entry)
	}
	if entry.ErrorMessage == nil || !strings.Contains(*entry.ErrorMessage, "boom") {
		t.Fatalf("error message = %v", entry.ErrorMessage)
	}
}

func TestActionAuditSurvivesRequestCancellation(t *testing.T) {
	var recordCtxErr error
	recorded := false
	record := func(ctx context.Context, entry *models.AuditLog) error {
		recordCtxErr = ctx.Err()
		recorded = true
		return nil
	}

	r := gin.New()
	r.GET("/api/audit/logs", ActionAuditWithRecorder("GetLogs", record), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	// A client that disconnects mid-request cancels the request context
	// before the deferred ledger write runs. The write must still go through.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/audit/logs", nil).WithContext(ctx)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if !recorded {
		t.Fatal("entry was not recorded for a cancelled request")
	}
	if recordCtxErr != nil {
		t.Fatalf("recorder context already cancelled: %v", recordCtxErr)
	}
}

func TestActionAuditRejectsUnlistedAction(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for action outside the allow-list")
		}
	}()
	ActionAuditWithRecorder("DeleteEverything", func(context.Context, *models.AuditLog) error { return nil })
}
