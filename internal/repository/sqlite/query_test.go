package sqlite

import (
	"testing"

	"github.com/garnizeh/fieldops/internal/models"
)

func TestJobWhere(t *testing.T) {
	overdue := true
	tests := []struct {
		name     string
		f        models.JobFilter
		wantSQL  string
		wantArgs int
	}{
		{"empty", models.JobFilter{}, "", 0},
		{"technician scope", models.JobFilter{AssignedTo: 7}, " WHERE j.assigned_to = ?", 1},
		{"scope and status", models.JobFilter{AssignedTo: 7, Status: models.JobPending}, " WHERE j.assigned_to = ? AND j.status = ?", 2},
		{"overdue and search", models.JobFilter{Overdue: &overdue, Search: "x"}, ` WHERE j.overdue = ? AND (j.title LIKE ? ESCAPE '\' OR j.client_name LIKE ? ESCAPE '\')`, 3},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := jobWhere(tc.f)
			if w.String() != tc.wantSQL {
				t.Fatalf("sql = %q want %q", w.String(), tc.wantSQL)
			}
			if len(w.args) != tc.wantArgs {
				t.Fatalf("args = %v want %d", w.args, tc.wantArgs)
			}
		})
	}
}

func TestLikeArg(t *testing.T) {
	tests := map[string]string{
		"drill":  "%drill%",
		"50%":    `%50\%%`,
		"a_b":    `%a\_b%`,
		`c:\tmp`: `%c:\\tmp%`,
	}
	for in, want := range tests {
		if got := likeArg(in); got != want {
			t.Fatalf("likeArg(%q) = %q want %q", in, got, want)
		}
	}
}

func TestPlaceholders(t *testing.T) {
	if got := placeholders(3); got != "?,?,?" {
		t.Fatalf("placeholders(3) = %q", got)
	}
	if got := placeholders(0); got != "" {
		t.Fatalf("placeholders(0) = %q", got)
	}
}
