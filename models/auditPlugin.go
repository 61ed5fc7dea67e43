package models

import (
	"context"
	"reflect"

	"github.com/mmdatafocus/attendance_backend/config"
	"github.com/mmdatafocus/attendance_backend/utils"
	"gorm.io/gorm"
)

// AuditTrailPlugin mirrors every Insert/Update/Delete the application
// issues into the audit ledger, on the same transaction as the triggering
// statement, so entries commit or roll back together with the mutation.
// The one deliberate exception: a failing ledger write is logged and
// swallowed, never allowed to abort the primary operation.
//
// Register with db.Use(models.NewAuditTrailPlugin()) after connecting.
type AuditTrailPlugin struct{}

func NewAuditTrailPlugin() *AuditTrailPlugin { return &AuditTrailPlugin{} }

func (p *AuditTrailPlugin) Name() string { return "audit_trail" }

func (p *AuditTrailPlugin) Initialize(db *gorm.DB) error {
	if err := db.Callback().Create().After("gorm:create").Register("audit_trail:create", auditCreateCallback); err != nil {
		return err
	}
	// Updates and deletes snapshot the row before the statement runs; the
	// after hooks diff against that snapshot.
	if err := db.Callback().Update().Before("gorm:update").Register("audit_trail:before_update", auditSnapshotCallback); err != nil {
		return err
	}
	if err := db.Callback().Update().After("gorm:update").Register("audit_trail:update", auditUpdateCallback); err != nil {
		return err
	}
	if err := db.Callback().Delete().Before("gorm:delete").Register("audit_trail:before_delete", auditSnapshotCallback); err != nil {
		return err
	}
	if err := db.Callback().Delete().After("gorm:delete").Register("audit_trail:delete", auditDeleteCallback); err != nil {
		return err
	}
	return nil
}

const instanceKeyOldRow = "audit_trail:old_row"

var auditLogType = reflect.TypeOf(AuditLog{})

// skipAudit filters statements the ledger must not observe: statements
// without a parsed schema and mutations of the ledger itself (which would
// otherwise recurse).
func skipAudit(db *gorm.DB) bool {
	stmt := db.Statement
	if stmt == nil || stmt.Schema == nil {
		return true
	}
	return stmt.Schema.ModelType == auditLogType
}

func auditCreateCallback(db *gorm.DB) {
	if db.Error != nil || skipAudit(db) {
		return
	}
	stmt := db.Statement

	var entries []*AuditLog
	eachStatementRow(stmt.ReflectValue, func(rv reflect.Value) {
		changes := make([]fieldChange, 0, len(stmt.Schema.Fields))
		for _, f := range stmt.Schema.Fields {
			if f.DBName == "" {
				continue
			}
			v, _ := f.ValueOf(stmt.Context, rv)
			changes = append(changes, fieldChange{Name: f.Name, New: v})
		}

		// Inserted rows are identified by the key they were just given.
		var entityId string
		if pk := stmt.Schema.PrioritizedPrimaryField; pk != nil {
			if v, isZero := pk.ValueOf(stmt.Context, rv); !isZero {
				entityId = stringifyValue(v)
			}
		}

		if entry := newChangeEntry(stmt.Context, AuditActionInsert, stmt.Schema.ModelType.Name(), entityId, changes); entry != nil {
			entries = append(entries, entry)
		}
	})

	appendOnSameTx(db, entries)
}

// auditSnapshotCallback loads the current row before an update or delete
// touches it. All mutations in this codebase go through a previously
// loaded model, so the primary key is always present on the destination.
func auditSnapshotCallback(db *gorm.DB) {
	if db.Error != nil || skipAudit(db) {
		return
	}
	stmt := db.Statement
	pk := stmt.Schema.PrioritizedPrimaryField
	if pk == nil || stmt.ReflectValue.Kind() != reflect.Struct {
		return
	}
	pkValue, isZero := pk.ValueOf(stmt.Context, stmt.ReflectValue)
	if isZero {
		return
	}

	var oldRow map[string]interface{}
	tx := db.Session(&gorm.Session{NewDB: true})
	if err := tx.Table(stmt.Table).Where(pk.DBName+" = ?", pkValue).Take(&oldRow).Error; err != nil {
		if err != gorm.ErrRecordNotFound {
			config.LogError(config.GetLogger(), "auditPlugin.go", "auditSnapshotCallback", stmt.Table, pkValue, err)
		}
		return
	}
	db.InstanceSet(instanceKeyOldRow, oldRow)
}

func auditUpdateCallback(db *gorm.DB) {
	if db.Error != nil || skipAudit(db) || db.RowsAffected == 0 {
		return
	}
	oldRow, ok := snapshotFromInstance(db)
	if !ok {
		return
	}
	stmt := db.Statement
	destMap := destValueMap(stmt)

	changes := make([]fieldChange, 0, len(stmt.Schema.Fields))
	for _, f := range stmt.Schema.Fields {
		if f.DBName == "" {
			continue
		}
		var newValue any
		if destMap != nil {
			// Map-based updates only touch the listed columns; the rest of
			// the row is unchanged by definition.
			v, touched := destMap[f.Name]
			if !touched {
				continue
			}
			newValue = v
		} else {
			newValue, _ = f.ValueOf(stmt.Context, stmt.ReflectValue)
		}
		changes = append(changes, fieldChange{Name: f.Name, Old: oldRow[f.DBName], New: newValue})
	}

	// The entity keeps its pre-update identity.
	entityId := stringifyValue(oldRow[stmt.Schema.PrioritizedPrimaryField.DBName])

	if entry := newChangeEntry(stmt.Context, AuditActionUpdate, stmt.Schema.ModelType.Name(), entityId, changes); entry != nil {
		appendOnSameTx(db, []*AuditLog{entry})
	}
}

func auditDeleteCallback(db *gorm.DB) {
	if db.Error != nil || skipAudit(db) || db.RowsAffected == 0 {
		return
	}
	oldRow, ok := snapshotFromInstance(db)
	if !ok {
		return
	}
	stmt := db.Statement

	changes := make([]fieldChange, 0, len(stmt.Schema.Fields))
	for _, f := range stmt.Schema.Fields {
		if f.DBName == "" {
			continue
		}
		changes = append(changes, fieldChange{Name: f.Name, Old: oldRow[f.DBName]})
	}
	entityId := stringifyValue(oldRow[stmt.Schema.PrioritizedPrimaryField.DBName])

	if entry := newChangeEntry(stmt.Context, AuditActionDelete, stmt.Schema.ModelType.Name(), entityId, changes); entry != nil {
		appendOnSameTx(db, []*AuditLog{entry})
	}
}

func snapshotFromInstance(db *gorm.DB) (map[string]interface{}, bool) {
	raw, ok := db.InstanceGet(instanceKeyOldRow)
	if !ok {
		return nil, false
	}
	oldRow, ok := raw.(map[string]interface{})
	return oldRow, ok
}

// destValueMap resolves a map destination (tx.Model(&m).Updates(map)) to
// struct field names. Returns nil for struct destinations.
func destValueMap(stmt *gorm.Statement) map[string]any {
	dest, ok := stmt.Dest.(map[string]interface{})
	if !ok {
		return nil
	}
	values := make(map[string]any, len(dest))
	for k, v := range dest {
		if f := stmt.Schema.LookUpField(k); f != nil {
			values[f.Name] = v
		}
	}
	return values
}

func eachStatementRow(rv reflect.Value, fn func(reflect.Value)) {
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			row := rv.Index(i)
			for row.Kind() == reflect.Ptr {
				row = row.Elem()
			}
			if row.Kind() == reflect.Struct {
				fn(row)
			}
		}
	case reflect.Struct:
		fn(rv)
	}
}

// newChangeEntry assembles one diff-sourced ledger row. Actor and client
// info come from explicit context values put there by the middleware; the
// plugin never reaches into the HTTP layer. Returns nil when the mutation
// produced no visible change.
func newChangeEntry(ctx context.Context, action, entityType, entityId string, changes []fieldChange) *AuditLog {
	oldValues, newValues := buildChangeValues(action, changes)
	if len(oldValues) == 0 && len(newValues) == 0 {
		return nil
	}

	entry := &AuditLog{
		Action:     action,
		EntityType: &entityType,
		Timestamp:  utils.BusinessNow(),
		Success:    true,
		OldValues:  marshalValues(oldValues),
		NewValues:  marshalValues(newValues),
	}
	if entityId != "" {
		entry.EntityId = &entityId
	}
	if userId, ok := utils.GetUserIdFromContext(ctx); ok && userId != "" {
		entry.UserId = &userId
	}
	if userName, ok := utils.GetUserNameFromContext(ctx); ok && userName != "" {
		entry.UserName = &userName
	}
	if ip, ok := utils.GetIpAddressFromContext(ctx); ok && ip != "" {
		entry.IpAddress = &ip
	}
	if ua, ok := utils.GetUserAgentFromContext(ctx); ok && ua != "" {
		entry.UserAgent = &ua
	}
	return entry
}

// appendOnSameTx writes entries through the statement's connection, so they
// share the triggering mutation's transaction. A failure here must never
// fail the commit: log and move on.
func appendOnSameTx(db *gorm.DB, entries []*AuditLog) {
	if len(entries) == 0 {
		return
	}
	tx := db.Session(&gorm.Session{NewDB: true})
	if err := AppendAuditLogs(tx, entries...); err != nil {
		config.LogError(config.GetLogger(), "auditPlugin.go", "appendOnSameTx", db.Statement.Table, len(entries), err)
	}
}
