package authz

import "github.com/garnizeh/fieldops/internal/models"

// ScopeJobs restricts f to the jobs u may list. Technicians only see jobs
// assigned to them; any AssignedTo the caller set is overridden.
func ScopeJobs(u *models.User, f models.JobFilter) models.JobFilter {
	if u != nil && u.Role == models.RoleTechnician {
		f.AssignedTo = u.ID
	}
	return f
}

// ScopeTasks restricts f to tasks whose job is assigned to a technician u.
func ScopeTasks(u *models.User, f models.TaskFilter) models.TaskFilter {
	if u != nil && u.Role == models.RoleTechnician {
		f.AssignedTo = u.ID
	}
	return f
}

// ScopeEquipment returns f unchanged: equipment is visible to every role.
func ScopeEquipment(_ *models.User, f models.EquipmentFilter) models.EquipmentFilter {
	return f
}
