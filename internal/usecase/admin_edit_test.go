package usecase

import (
	"context"
	"errors"
	"testing"

	"picproof/internal/domain"
)

func TestAdminEditWhitelistedField(t *testing.T) {
	captures := &fakeCaptures{auditOut: []domain.AuditEntry{{Field: "provider"}}}
	uc := &AdminEdit{Captures: captures}

	entries, err := uc.Execute(context.Background(), AdminEditRequest{
		CaptureID: "k3x9m2p1q7",
		Changes:   map[string]string{"provider": "network"},
		ChangedBy: "ops@example.com",
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(entries) != 1 || entries[0].Field != "provider" {
		t.Fatalf("unexpected audit entries %+v", entries)
	}
	if captures.updated["provider"] != "network" || captures.lastEditor != "ops@example.com" {
		t.Fatalf("update not delegated: %+v by %q", captures.updated, captures.lastEditor)
	}
}

func TestAdminEditRejectsProtectedFields(t *testing.T) {
	captures := &fakeCaptures{}
	uc := &AdminEdit{Captures: captures}

	for _, field := range []string{"lat", "lon", "hash_sha256", "device_time_utc", "id"} {
		_, err := uc.Execute(context.Background(), AdminEditRequest{
			CaptureID: "k3x9m2p1q7",
			Changes:   map[string]string{field: "tampered"},
		})
		if !errors.Is(err, domain.ErrFieldNotEditable) {
			t.Fatalf("field %q: expected ErrFieldNotEditable, got %v", field, err)
		}
	}
	if captures.updated != nil {
		t.Fatal("protected edit must not reach the repository")
	}
}

func TestAdminEditEmptyChangesIsNoop(t *testing.T) {
	captures := &fakeCaptures{}
	uc := &AdminEdit{Captures: captures}

	entries, err := uc.Execute(context.Background(), AdminEditRequest{CaptureID: "k3x9m2p1q7"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if entries != nil || captures.updated != nil {
		t.Fatal("empty edit must be a no-op")
	}
}
