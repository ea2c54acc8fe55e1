package sqlite

import (
	"strings"

	"github.com/garnizeh/fieldops/internal/models"
)

// where accumulates AND-ed predicates and their arguments.
type where struct {
	clauses []string
	args    []any
}

func (w *where) add(clause string, args ...any) {
	w.clauses = append(w.clauses, clause)
	w.args = append(w.args, args...)
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func int64Args(ids []int64) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

func likeArg(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

func jobWhere(f models.JobFilter) *where {
	w := &where{}
	if f.AssignedTo > 0 {
		w.add("j.assigned_to = ?", f.AssignedTo)
	}
	if f.Status != "" {
		w.add("j.status = ?", string(f.Status))
	}
	if f.Priority != "" {
		w.add("j.priority = ?", string(f.Priority))
	}
	if f.Overdue != nil {
		w.add("j.overdue = ?", boolInt(*f.Overdue))
	}
	if f.Search != "" {
		s := likeArg(f.Search)
		w.add(`(j.title LIKE ? ESCAPE '\' OR j.client_name LIKE ? ESCAPE '\')`, s, s)
	}
	return w
}

// taskWhere filters tasks joined with their job as t and j. AssignedTo is the
// technician scope.
func taskWhere(f models.TaskFilter) *where {
	w := &where{}
	if f.AssignedTo > 0 {
		w.add("j.assigned_to = ?", f.AssignedTo)
	}
	if f.JobID > 0 {
		w.add("t.job_id = ?", f.JobID)
	}
	if f.Status != "" {
		w.add("t.status = ?", string(f.Status))
	}
	return w
}

func equipmentWhere(f models.EquipmentFilter) *where {
	w := &where{}
	if f.Type != "" {
		w.add("e.type = ?", f.Type)
	}
	if f.IsActive != nil {
		w.add("e.is_active = ?", boolInt(*f.IsActive))
	}
	if f.Search != "" {
		s := likeArg(f.Search)
		w.add(`(e.name LIKE ? ESCAPE '\' OR e.serial_number LIKE ? ESCAPE '\')`, s, s)
	}
	return w
}
