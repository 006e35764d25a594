package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/earnhub/platform/internal/app/domain/user"
)

func TestAuditLogRing(t *testing.T) {
	log := newAuditLog(3, nil)

	for i := 0; i < 5; i++ {
		log.add(auditEntry{Path: fmt.Sprintf("/api/admin/req-%d", i), Status: http.StatusOK})
	}

	entries := log.list()
	if len(entries) != 3 {
		t.Fatalf("expected 3 retained entries, got %d", len(entries))
	}
	if entries[0].Path != "/api/admin/req-2" || entries[2].Path != "/api/admin/req-4" {
		t.Fatalf("oldest entries not evicted: %+v", entries)
	}
}

func TestFileAuditSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	sink, err := newFileAuditSink(path)
	if err != nil {
		t.Fatalf("open sink: %v", err)
	}

	log := newAuditLog(0, sink)
	log.add(auditEntry{
		Time:   time.Now().UTC(),
		User:   "admin-1",
		Role:   "admin",
		Path:   "/api/admin/stats",
		Method: http.MethodGet,
		Status: http.StatusOK,
	})
	log.add(auditEntry{
		User:   "admin-1",
		Path:   "/api/admin/users",
		Method: http.MethodGet,
		Status: http.StatusOK,
	})

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open audit file: %v", err)
	}
	defer f.Close()

	var lines []auditEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e auditEntry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("parse line: %v", err)
		}
		lines = append(lines, e)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 persisted entries, got %d", len(lines))
	}
	if lines[0].Path != "/api/admin/stats" || lines[1].Path != "/api/admin/users" {
		t.Fatalf("entries out of order: %+v", lines)
	}
}

func TestAuditFileSinkWiredThroughRouter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	router, _, store := newTestRouterOpts(t, RouterOptions{AuditLogPath: path})

	admin, err := store.CreateUser(context.Background(), user.User{
		Email: "ops@example.com", Name: "Ops", Role: user.RoleAdmin, ReferralCode: "OP1",
	})
	if err != nil {
		t.Fatalf("create admin: %v", err)
	}

	rec := doJSON(t, router, http.MethodGet, "/api/admin/users", tokenFor(t, admin), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin request: expected 200, got %d", rec.Code)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read audit file: %v", err)
	}
	var entry auditEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("parse audit line: %v", err)
	}
	if entry.Path != "/api/admin/users" || entry.User != admin.ID || entry.Status != http.StatusOK {
		t.Fatalf("unexpected audit entry: %+v", entry)
	}
}

func TestNilFileAuditSink(t *testing.T) {
	sink, err := newFileAuditSink("")
	if err != nil {
		t.Fatalf("empty path should disable the sink: %v", err)
	}
	if sink != nil {
		t.Fatalf("expected nil sink for empty path")
	}
	// Writing through a nil sink is a safe no-op.
	if err := sink.Write(auditEntry{Path: "/api/admin/stats"}); err != nil {
		t.Fatalf("nil sink write: %v", err)
	}
}
