package instrumentation

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestToolInvocation_NewAndComplete(t *testing.T) {
	ti := NewToolInvocation("resources.get")

	if ti.Tool != "resources.get" {
		t.Errorf("Tool = %q, want %q", ti.Tool, "resources.get")
	}
	if ti.ID == "" {
		t.Error("ID should be set")
	}
	if ti.StartTime.IsZero() {
		t.Error("StartTime should not be zero")
	}

	time.Sleep(time.Millisecond)
	ti.CompleteSuccess()

	if !ti.Success {
		t.Error("Success should be true")
	}
	if ti.Duration == 0 {
		t.Error("Duration should be non-zero")
	}
	if ti.Status() != StatusSuccess {
		t.Errorf("Status() = %q, want %q", ti.Status(), StatusSuccess)
	}
}

func TestToolInvocation_IDsAreUnique(t *testing.T) {
	if NewToolInvocation("a").ID == NewToolInvocation("a").ID {
		t.Error("invocation IDs must differ")
	}
}

func TestToolInvocation_CompleteWithError(t *testing.T) {
	ti := NewToolInvocation("resources.delete")
	ti.CompleteWithError(errors.New("forbidden"))

	if ti.Success {
		t.Error("Success should be false")
	}
	if ti.Error != "forbidden" {
		t.Errorf("Error = %q, want %q", ti.Error, "forbidden")
	}
	if ti.Status() != StatusError {
		t.Errorf("Status() = %q, want %q", ti.Status(), StatusError)
	}
}

func TestToolInvocation_CompleteDenied(t *testing.T) {
	ti := NewToolInvocation("resources.apply")
	ti.CompleteDenied("NS_NOT_ALLOWED", "Namespace kube-system is not in allowlist")

	if ti.Success || !ti.Denied {
		t.Errorf("Success=%v Denied=%v, want false/true", ti.Success, ti.Denied)
	}
	if ti.Status() != StatusDenied {
		t.Errorf("Status() = %q, want %q", ti.Status(), StatusDenied)
	}
	if ti.Code != "NS_NOT_ALLOWED" {
		t.Errorf("Code = %q", ti.Code)
	}
}

func TestToolInvocation_Complete_NilError(t *testing.T) {
	ti := NewToolInvocation("pods.exec")
	ti.Complete(false, nil)

	if ti.Error != "" {
		t.Errorf("Error = %q, want empty", ti.Error)
	}
	if ti.Status() != StatusError {
		t.Errorf("Status() = %q, want %q", ti.Status(), StatusError)
	}
}

func TestToolInvocation_MethodChaining(t *testing.T) {
	ti := NewToolInvocation("resources.apply").
		WithKubeContext("prod-eu-1").
		WithResource("team-a", "Deployment", "web").
		WithDryRun(true).
		WithSpanContext(context.Background())

	if ti.KubeContext != "prod-eu-1" || ti.Namespace != "team-a" || ti.ResourceType != "Deployment" || ti.ResourceName != "web" {
		t.Errorf("unexpected invocation: %+v", ti)
	}
	if ti.DryRun == nil || !*ti.DryRun {
		t.Error("DryRun should be true")
	}
	if ti.TraceID != "" {
		t.Errorf("TraceID = %q, want empty without a span", ti.TraceID)
	}
	if ti.ContextType() != string(ContextTypeProduction) {
		t.Errorf("ContextType() = %q", ti.ContextType())
	}
}

func TestToolInvocation_LogAttrs(t *testing.T) {
	ti := NewToolInvocation("secrets.set").
		WithResource("team-a", "Secret", "db").
		WithDryRun(false)
	ti.CompleteDenied("READ_ONLY_BLOCKED", "secrets.set is blocked in read-only mode")

	keys := map[string]string{}
	for _, a := range ti.LogAttrs() {
		keys[a.Key] = a.Value.String()
	}

	for _, want := range []string{"invocation_id", "tool", "status", "duration", "namespace", "resource_type", "resource_name", "dry_run", "code", "error"} {
		if _, ok := keys[want]; !ok {
			t.Errorf("missing attribute %q", want)
		}
	}
	if keys["status"] != StatusDenied {
		t.Errorf("status = %q", keys["status"])
	}
	if _, ok := keys["trace_id"]; ok {
		t.Error("trace_id should be omitted when empty")
	}
}

func TestAuditLogger_New(t *testing.T) {
	if NewAuditLogger(nil) == nil {
		t.Fatal("NewAuditLogger(nil) returned nil")
	}
}

func TestAuditLogger_LogToolInvocation(t *testing.T) {
	var buf bytes.Buffer
	al := NewAuditLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	ok := NewToolInvocation("resources.get")
	ok.CompleteSuccess()
	al.LogToolInvocation(ok)

	denied := NewToolInvocation("resources.apply")
	denied.CompleteDenied("KIND_NOT_ALLOWED", "Kind Secret is not in allowlist")
	al.LogToolInvocation(denied)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d: %s", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], `"level":"INFO"`) || !strings.Contains(lines[0], `"component":"audit"`) {
		t.Errorf("unexpected success line: %s", lines[0])
	}
	if !strings.Contains(lines[1], `"level":"WARN"`) || !strings.Contains(lines[1], "KIND_NOT_ALLOWED") {
		t.Errorf("unexpected denial line: %s", lines[1])
	}
}

func TestAuditLogger_NilSafe(t *testing.T) {
	var al *AuditLogger
	al.LogToolInvocation(NewToolInvocation("x"))
	NewAuditLogger(nil).LogToolInvocation(nil)
}
