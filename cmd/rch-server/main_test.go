package main

import (
	"context"
	"io/fs"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rch/portal/internal/config"
	"github.com/rch/portal/internal/domain/identity"
	"github.com/rch/portal/internal/platform/auth"
	"github.com/rch/portal/internal/platform/notification"
)

type fakeUsers struct {
	found []identity.Summary
}

func (f fakeUsers) SearchUsers(context.Context, string, int) ([]identity.Summary, error) {
	return f.found, nil
}

func TestUserSearch_MapsHits(t *testing.T) {
	id := uuid.New()
	s := userSearch{users: fakeUsers{found: []identity.Summary{
		{ID: id, Name: "Ana Torres", Email: "ana@rch.test", Role: auth.RolePatient},
	}}}
	hits, err := s.SearchUsers(context.Background(), "ana", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != id || hits[0].Title != "Ana Torres" || hits[0].Subtitle != "ana@rch.test" {
		t.Errorf("unexpected hits %+v", hits)
	}

	empty, _ := userSearch{users: fakeUsers{}}.SearchUsers(context.Background(), "x", 5)
	if empty == nil || len(empty) != 0 {
		t.Errorf("expected empty non-nil hits, got %v", empty)
	}
}

func TestNewMailSender(t *testing.T) {
	cfg := &config.Config{}
	if _, ok := newMailSender(cfg, zerolog.Nop()).(notification.LogSender); !ok {
		t.Error("expected LogSender without SMTP_HOST")
	}
	cfg.SMTPHost, cfg.SMTPPort, cfg.MailFrom = "smtp.rch.test", 587, "no-reply@rch.test"
	if _, ok := newMailSender(cfg, zerolog.Nop()).(*notification.SMTPSender); !ok {
		t.Error("expected SMTPSender with SMTP_HOST")
	}
}

func TestNewRevocationStore_Memory(t *testing.T) {
	store, deps, closeStore, err := newRevocationStore(context.Background(), &config.Config{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer closeStore()
	if _, ok := store.(*auth.MemoryRevocationStore); !ok {
		t.Errorf("expected memory store, got %T", store)
	}
	if len(deps) != 0 {
		t.Errorf("expected no external deps, got %v", deps)
	}
}

func TestMigrationSource_Embedded(t *testing.T) {
	entries, err := fs.ReadDir(migrationSource(""), ".")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) == 0 || entries[0].Name() != "001_core.sql" {
		t.Errorf("expected embedded migrations starting at 001_core.sql, got %v", entries)
	}
}

func TestCommands(t *testing.T) {
	for _, name := range []string{"up", "status"} {
		found := false
		for _, c := range migrateCmd().Commands() {
			if c.Name() == name {
				found = true
			}
		}
		if !found {
			t.Errorf("migrate %s not registered", name)
		}
	}
	create := adminCmd().Commands()
	if len(create) != 1 || create[0].Name() != "create" {
		t.Errorf("expected admin create, got %v", create)
	}
}
