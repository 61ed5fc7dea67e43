package middlewares

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/attendance_backend/config"
	"github.com/mmdatafocus/attendance_backend/models"
	"github.com/mmdatafocus/attendance_backend/utils"
)

// auditedActions is the fixed allow-list of sensitive operations that get
// one ledger entry per invocation, success or failure. Everything else is
// covered by the change-capture path or not audited at all.
var auditedActions = map[string]struct{}{
	"Login":               {},
	"GetAdminAllLogs":     {},
	"DownloadAdminReport": {},
	"GetLogs":             {},
	"ExportLogs":          {},
}

// AuditRecorder persists one action entry. Split out so tests can observe
// entries without a database.
type AuditRecorder func(ctx context.Context, entry *models.AuditLog) error

func recordActionAudit(ctx context.Context, entry *models.AuditLog) error {
	return models.AppendAuditLogs(config.GetDB().WithContext(ctx), entry)
}

// ActionAudit wraps a handler chain with unconditional audit recording.
// The entry is written after the wrapped handlers fully resolve, on an
// independent commit: its failure is logged and swallowed, and the wrapped
// outcome, including a panic, propagates unchanged.
func ActionAudit(actionName string) gin.HandlerFunc {
	return ActionAuditWithRecorder(actionName, recordActionAudit)
}

func ActionAuditWithRecorder(actionName string, record AuditRecorder) gin.HandlerFunc {
	if _, ok := auditedActions[actionName]; !ok {
		panic(fmt.Sprintf("action %q is not on the audit allow-list", actionName))
	}

	return func(c *gin.Context) {
		// The action label is the verb plus route path, not the bare name,
		// so the ledger stays unambiguous across route changes.
		label := c.Request.Method + " " + c.Request.URL.Path

		bw := &auditBodyWriter{ResponseWriter: c.Writer}
		c.Writer = bw

		entry := &models.AuditLog{
			Action:    label,
			Timestamp: utils.BusinessNow(),
		}
		resolveActor(c, entry)

		defer func() {
			if r := recover(); r != nil {
				entry.Success = false
				entry.ErrorMessage = utils.NewString(fmt.Sprintf("panic: %v", r))
				writeActionEntry(c, record, entry)
				panic(r)
			}

			entry.Success = len(c.Errors) == 0 && c.Writer.Status() < http.StatusBadRequest
			if !entry.Success {
				if len(c.Errors) > 0 {
					entry.ErrorMessage = utils.NewString(c.Errors.String())
				} else {
					entry.ErrorMessage = utils.NewString(fmt.Sprintf("HTTP %d - %s", c.Writer.Status(), bw.body.String()))
				}
			}
			writeActionEntry(c, record, entry)
		}()

		c.Next()
	}
}

func writeActionEntry(c *gin.Context, record AuditRecorder, entry *models.AuditLog) {
	// The entry must land even when the client has already disconnected, so
	// the write runs detached from the request's cancellation.
	ctx := context.WithoutCancel(c.Request.Context())
	if err := record(ctx, entry); err != nil {
		config.LogError(config.GetLogger(), "auditMiddleware.go", "writeActionEntry", entry.Action, nil, err)
	}
}

// resolveActor attributes the entry. Authenticated requests carry their
// identity in the context. The login action has no identity yet, so the
// actor is resolved from the submitted email, falling back to sentinels
// when the email matches nobody or nothing was readable.
func resolveActor(c *gin.Context, entry *models.AuditLog) {
	ctx := c.Request.Context()
	if ip, ok := utils.GetIpAddressFromContext(ctx); ok && ip != "" {
		entry.IpAddress = &ip
	}
	if ua, ok := utils.GetUserAgentFromContext(ctx); ok && ua != "" {
		entry.UserAgent = &ua
	}

	if userId, ok := utils.GetUserIdFromContext(ctx); ok && userId != "" {
		entry.UserId = &userId
		if userName, ok := utils.GetUserNameFromContext(ctx); ok && userName != "" {
			entry.UserName = &userName
		}
		return
	}

	if strings.Contains(c.Request.URL.Path, "api/account/login") {
		if userId, userName, ok := resolveLoginActor(c); ok {
			entry.UserId = &userId
			entry.UserName = &userName
			return
		}
	}

	entry.UserName = utils.NewString(models.AnonymousUserName)
}

func resolveLoginActor(c *gin.Context) (string, string, bool) {
	if c.Request.Body == nil {
		return "", "", false
	}
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return "", "", false
	}
	// The handler still needs to read the body.
	c.Request.Body = io.NopCloser(bytes.NewBuffer(raw))

	var payload struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil || payload.Email == "" {
		return "", "", false
	}

	userId, err := models.ResolveEmployeeIdByEmail(c.Request.Context(), config.GetDB(), payload.Email)
	if err != nil {
		config.LogError(config.GetLogger(), "auditMiddleware.go", "resolveLoginActor", "lookup", payload.Email, err)
		return "", "", false
	}
	if userId == "" {
		return models.UnknownEmailUserId, payload.Email, true
	}
	return userId, payload.Email, true
}

// auditBodyWriter mirrors the response body so a failed request's payload
// can land in the error message.
type auditBodyWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *auditBodyWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *auditBodyWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
