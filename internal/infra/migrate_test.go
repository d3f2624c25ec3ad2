package infra

import (
	"strings"
	"testing"
	"testing/fstest"
)

func TestEmbeddedMigrationsAreOrdered(t *testing.T) {
	migrations, err := Migrations()
	if err != nil {
		t.Fatalf("migrations: %v", err)
	}
	if len(migrations) < 3 {
		t.Fatalf("expected at least 3 migrations, got %d", len(migrations))
	}
	for i := 1; i < len(migrations); i++ {
		if migrations[i-1].Version >= migrations[i].Version {
			t.Fatalf("migrations out of order: %s before %s", migrations[i-1].Version, migrations[i].Version)
		}
	}
	last := migrations[len(migrations)-1]
	if !strings.Contains(last.SQL, "redemptions") {
		t.Fatalf("expected ledger tables in %s", last.Version)
	}
}

func TestLoadMigrationsSortsByName(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/0002_b.sql": {Data: []byte("SELECT 2;")},
		"migrations/0001_a.sql": {Data: []byte("SELECT 1;")},
		"migrations/readme.md":  {Data: []byte("ignored")},
	}
	got, err := loadMigrations(fsys)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 2 || got[0].Version != "0001_a" || got[1].Version != "0002_b" {
		t.Fatalf("unexpected migrations %+v", got)
	}
}
