package models

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/mmdatafocus/attendance_backend/utils"
)

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx := utils.SetUserIdInContext(context.Background(), "test-user-id")
	ctx = utils.SetUserNameInContext(ctx, "test@local")
	return ctx
}

func TestBuildChangeValuesInsertRecordsNewOnly(t *testing.T) {
	oldValues, newValues := buildChangeValues(AuditActionInsert, []fieldChange{
		{Name: "Name", New: "Ayşe"},
		{Name: "Email", New: "ayse@sirket.com"},
	})

	if len(oldValues) != 0 {
		t.Fatalf("insert produced old values: %v", oldValues)
	}
	if newValues["Name"] != "Ayşe" || newValues["Email"] != "ayse@sirket.com" {
		t.Fatalf("insert new values wrong: %v", newValues)
	}
}

func TestBuildChangeValuesUpdateRecordsChangedFieldsOnly(t *testing.T) {
	oldValues, newValues := buildChangeValues(AuditActionUpdate, []fieldChange{
		{Name: "Name", Old: "Ayşe", New: "Ayşe"},
		{Name: "Department", Old: "Satış", New: "Muhasebe"},
	})

	if _, ok := oldValues["Name"]; ok {
		t.Fatalf("unchanged field recorded: %v", oldValues)
	}
	if oldValues["Department"] != "Satış" || newValues["Department"] != "Muhasebe" {
		t.Fatalf("changed field not recorded: old=%v new=%v", oldValues, newValues)
	}
}

func TestBuildChangeValuesSkipsDenylistedFields(t *testing.T) {
	for field := range auditIgnoredFields {
		if field == "PasswordHash" {
			continue
		}
		oldValues, newValues := buildChangeValues(AuditActionUpdate, []fieldChange{
			{Name: field, Old: "a", New: "b"},
		})
		if len(oldValues) != 0 || len(newValues) != 0 {
			t.Fatalf("denylisted field %s leaked: old=%v new=%v", field, oldValues, newValues)
		}
	}
}

func TestBuildChangeValuesRedactsCredential(t *testing.T) {
	oldValues, newValues := buildChangeValues(AuditActionUpdate, []fieldChange{
		{Name: "PasswordHash", Old: "$2a$10$realOldHash", New: "$2a$10$realNewHash"},
	})

	if oldValues["Password"] != passwordPlaceholder || newValues["Password"] != passwordPlaceholder {
		t.Fatalf("credential not redacted: old=%v new=%v", oldValues, newValues)
	}
	for _, m := range []map[string]any{oldValues, newValues} {
		if _, ok := m["PasswordHash"]; ok {
			t.Fatalf("raw credential key present: %v", m)
		}
		for _, v := range m {
			if s, ok := v.(string); ok && strings.Contains(s, "realOldHash") {
				t.Fatalf("real hash leaked: %v", m)
			}
		}
	}
}

func TestBuildChangeValuesUnchangedCredentialProducesNothing(t *testing.T) {
	oldValues, newValues := buildChangeValues(AuditActionUpdate, []fieldChange{
		{Name: "PasswordHash", Old: "same", New: "same"},
	})
	if len(oldValues) != 0 || len(newValues) != 0 {
		t.Fatalf("unchanged credential produced values: old=%v new=%v", oldValues, newValues)
	}
}

func TestNewChangeEntryDiscardedWhenEmpty(t *testing.T) {
	entry := newChangeEntry(testCtx(t), AuditActionUpdate, "Employee", "abc", []fieldChange{
		{Name: "SecurityStamp", Old: "a", New: "b"},
	})
	if entry != nil {
		t.Fatalf("no-op mutation produced entry: %+v", entry)
	}
}

func TestMarshalValuesPreservesUnicode(t *testing.T) {
	s := marshalValues(map[string]any{"Name": "Şule & Gökçe <Ünal>"})
	if s == nil {
		t.Fatal("marshalValues returned nil for non-empty map")
	}
	if !strings.Contains(*s, "Şule & Gökçe <Ünal>") {
		t.Fatalf("unicode or html characters escaped: %s", *s)
	}
	if strings.Contains(*s, "\\u") {
		t.Fatalf("escaped sequence in output: %s", *s)
	}
	if strings.HasSuffix(*s, "\n") {
		t.Fatalf("trailing newline survived: %q", *s)
	}
}

func TestMarshalValuesNilForEmpty(t *testing.T) {
	if s := marshalValues(map[string]any{}); s != nil {
		t.Fatalf("empty map serialized to %q", *s)
	}
}

func TestStringifyValueHandlesPointersAndTimes(t *testing.T) {
	v := "abc"
	if got := stringifyValue(&v); got != "abc" {
		t.Fatalf("pointer stringified to %q", got)
	}
	var nilPtr *string
	if got := stringifyValue(nilPtr); got != "" {
		t.Fatalf("nil pointer stringified to %q", got)
	}
	ts := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	if got := stringifyValue(ts); got != ts.Format(time.RFC3339Nano) {
		t.Fatalf("time stringified to %q", got)
	}
}
