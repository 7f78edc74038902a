package migrations

import (
	"strings"
	"testing"
)

func TestMigrationsRegisterBothTables(t *testing.T) {
	sorted := Migrations.Sorted()
	if len(sorted) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(sorted))
	}
	if sorted[0].Name != "2024112201" || sorted[1].Name != "2024112202" {
		t.Fatalf("unexpected migration order: %s, %s", sorted[0].Name, sorted[1].Name)
	}
	for _, m := range sorted {
		if m.Up == nil || m.Down == nil {
			t.Fatalf("migration %s missing up or down step", m.Name)
		}
	}
}

func TestEmbeddedSchema(t *testing.T) {
	attempts, err := sqlFiles.ReadFile("2024112202_create_attempts.sql")
	if err != nil {
		t.Fatalf("read attempts schema: %v", err)
	}
	if !strings.Contains(string(attempts), "REFERENCES quizzes") {
		t.Fatalf("attempts must reference quizzes")
	}
	if _, err := sqlFiles.ReadFile("2024112201_create_quizzes.sql"); err != nil {
		t.Fatalf("read quizzes schema: %v", err)
	}
}
