package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"gorm.io/gorm"
)

// AuditLog is the append-only ledger row shared by both audit producers:
// the change-capture plugin and the action middleware. Rows are only ever
// created and read; no update or delete path exists anywhere in this
// codebase.
type AuditLog struct {
	Id           int        `gorm:"primary_key" json:"id"`
	UserId       *string    `gorm:"size:64;index:IX_AuditLog_UserId" json:"user_id"`
	UserName     *string    `gorm:"size:256" json:"user_name"`
	Action       string     `gorm:"size:255;not null;index:IX_AuditLog_Action" json:"action"`
	EntityType   *string    `gorm:"size:128;index:IX_AuditLog_Entity,priority:1" json:"entity_type"`
	EntityId     *string    `gorm:"size:64;index:IX_AuditLog_Entity,priority:2" json:"entity_id"`
	OldValues    *string    `gorm:"type:text" json:"old_values"`
	NewValues    *string    `gorm:"type:text" json:"new_values"`
	IpAddress    *string    `gorm:"size:64" json:"ip_address"`
	UserAgent    *string    `gorm:"size:512" json:"user_agent"`
	Timestamp    time.Time  `gorm:"not null;index:IX_AuditLog_Timestamp" json:"timestamp"`
	Success      bool       `gorm:"not null" json:"success"`
	ErrorMessage *string    `gorm:"type:text" json:"error_message"`
}

const (
	AuditActionInsert = "Insert"
	AuditActionUpdate = "Update"
	AuditActionDelete = "Delete"
)

const (
	// AnonymousUserName is recorded when no identity is attached to the request.
	AnonymousUserName = "Anonim"
	// UnknownEmailUserId is recorded when a login attempt used an email that
	// resolves to no employee.
	UnknownEmailUserId = "Hatalı E-posta"

	credentialField     = "PasswordHash"
	passwordPlaceholder = "********"
)

// auditIgnoredFields is policy data, not control flow: columns that must
// never appear in old/new value maps. Keyed by struct field name so adding
// a sensitive field is a one-line change.
var auditIgnoredFields = map[string]struct{}{
	"PasswordHash":         {},
	"SecurityStamp":        {},
	"ConcurrencyStamp":     {},
	"NormalizedUserName":   {},
	"NormalizedEmail":      {},
	"AccessFailedCount":    {},
	"LockoutEnabled":       {},
	"LockoutEnd":           {},
	"PhoneNumberConfirmed": {},
	"TwoFactorEnabled":     {},
	"EmailConfirmed":       {},
}

// fieldChange is one persisted field of a pending mutation, as observed by
// the change-capture plugin.
type fieldChange struct {
	Name string
	Old  any
	New  any
}

// buildChangeValues turns the scanned fields of one mutated entity into the
// old/new value maps that end up on the ledger row. The denylist and the
// credential redaction rule are applied here. Both maps empty means the
// save was a no-op and must not produce an entry.
func buildChangeValues(action string, changes []fieldChange) (map[string]any, map[string]any) {
	oldValues := map[string]any{}
	newValues := map[string]any{}

	for _, ch := range changes {
		if ch.Name == credentialField {
			// A changed credential is represented by a fixed placeholder on
			// both sides; the real hash never reaches the ledger.
			if action == AuditActionUpdate && stringifyValue(ch.Old) != stringifyValue(ch.New) {
				oldValues["Password"] = passwordPlaceholder
				newValues["Password"] = passwordPlaceholder
			}
			continue
		}
		if _, ignored := auditIgnoredFields[ch.Name]; ignored {
			continue
		}

		switch action {
		case AuditActionInsert:
			newValues[ch.Name] = normalizeValue(ch.New)
		case AuditActionDelete:
			oldValues[ch.Name] = normalizeValue(ch.Old)
		case AuditActionUpdate:
			if stringifyValue(ch.Old) != stringifyValue(ch.New) {
				oldValues[ch.Name] = normalizeValue(ch.Old)
				newValues[ch.Name] = normalizeValue(ch.New)
			}
		}
	}

	return oldValues, newValues
}

// normalizeValue flattens pointers and raw byte columns so the serialized
// maps stay readable.
func normalizeValue(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if b, ok := rv.Interface().([]byte); ok {
		return string(b)
	}
	return rv.Interface()
}

// stringifyValue renders a field value for comparison. Update entries only
// include fields whose stringified old/new differ.
func stringifyValue(v any) string {
	normalized := normalizeValue(v)
	if normalized == nil {
		return ""
	}
	if t, ok := normalized.(time.Time); ok {
		return t.Format(time.RFC3339Nano)
	}
	return fmt.Sprint(normalized)
}

// marshalValues serializes a value map with HTML escaping disabled so every
// Unicode character survives round-tripping literally.
func marshalValues(values map[string]any) *string {
	if len(values) == 0 {
		return nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(values); err != nil {
		return nil
	}
	s := strings.TrimSuffix(buf.String(), "\n")
	return &s
}

// AppendAuditLogs is the single write path into the ledger. Producers pass
// whatever handle they are bound to: the change plugin hands in the
// triggering transaction, the action middleware hands in the pool.
func AppendAuditLogs(db *gorm.DB, entries ...*AuditLog) error {
	if len(entries) == 0 {
		return nil
	}
	return db.Create(&entries).Error
}
