package cli

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"time"

	"github.com/spf13/cobra"

	dbfs "github.com/garnizeh/fieldops/db"
	"github.com/garnizeh/fieldops/internal/auth"
	"github.com/garnizeh/fieldops/internal/db"
	"github.com/garnizeh/fieldops/internal/models"
	"github.com/garnizeh/fieldops/internal/repository/sqlite"
)

// demoUsers are created by seed unless they already exist. Passwords follow
// the <username>123 pattern.
var demoUsers = []auth.NewUser{
	{Username: "admin1", Email: "admin1@example.com", Password: "admin123", Role: models.RoleAdmin},
	{Username: "tech1", Email: "tech1@example.com", Password: "tech1123", Role: models.RoleTechnician},
	{Username: "tech2", Email: "tech2@example.com", Password: "tech2123", Role: models.RoleTechnician},
	{Username: "sales1", Email: "sales1@example.com", Password: "sales1123", Role: models.RoleSalesAgent},
	{Username: "sales2", Email: "sales2@example.com", Password: "sales2123", Role: models.RoleSalesAgent},
}

var (
	seedJobStatuses  = []models.JobStatus{models.JobPending, models.JobInProgress, models.JobCompleted}
	seedTaskStatuses = []models.TaskStatus{models.TaskPending, models.TaskUpcoming, models.TaskInProgress, models.TaskCompleted}
	seedPriorities   = []models.Priority{models.PriorityLow, models.PriorityMedium, models.PriorityHigh}
)

func newSeedCmd(o *options) *cobra.Command {
	var (
		jobs int
		seed uint64
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Generate demo users, equipment, jobs and tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if jobs < 0 {
				return fmt.Errorf("--jobs must not be negative")
			}
			ctx := cmd.Context()
			d, repo, err := o.open(ctx)
			if err != nil {
				return err
			}
			defer d.Close()

			if err := db.Migrate(ctx, d, dbfs.Migrations); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}

			if seed == 0 {
				seed = uint64(time.Now().UnixNano())
			}
			g := &generator{
				repo: repo,
				auth: auth.New(repo, o.cfg.JWTSecret, 0, 0, o.logger),
				rng:  rand.New(rand.NewPCG(seed, seed>>1|1)),
				out:  cmd.OutOrStdout(),
				now:  time.Now().UTC(),
				conn: d,
			}
			return g.run(ctx, jobs)
		},
	}

	cmd.Flags().IntVar(&jobs, "jobs", 10, "Number of jobs to create")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Random seed (0 picks one from the clock)")
	return cmd
}

type generator struct {
	repo *sqlite.SQLiteRepo
	auth *auth.Service
	rng  *rand.Rand
	out  io.Writer
	now  time.Time
	conn *db.DB
}

func (g *generator) run(ctx context.Context, jobs int) error {
	users := map[models.Role][]*models.User{}
	for _, nu := range demoUsers {
		u, err := g.user(ctx, nu)
		if err != nil {
			return err
		}
		users[u.Role] = append(users[u.Role], u)
	}

	if _, err := db.Seed(ctx, g.conn, dbfs.SeedFiles); err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}
	catalog, _, err := g.repo.ListEquipment(ctx, models.EquipmentFilter{}, models.Page{Number: 1, Size: 1000})
	if err != nil {
		return fmt.Errorf("list equipment: %w", err)
	}
	if len(catalog) == 0 {
		return fmt.Errorf("equipment catalog is empty")
	}

	techs, sales := users[models.RoleTechnician], users[models.RoleSalesAgent]
	for i := 1; i <= jobs; i++ {
		// past and future dates so the overdue sweep has work
		j := &models.Job{
			Title:         fmt.Sprintf("Job %d", i),
			Description:   fmt.Sprintf("Description for Job %d", i),
			ClientName:    fmt.Sprintf("Client %d", i),
			CreatedBy:     pick(g.rng, sales).ID,
			AssignedTo:    pick(g.rng, techs).ID,
			Status:        pick(g.rng, seedJobStatuses),
			Priority:      pick(g.rng, seedPriorities),
			ScheduledDate: g.now.AddDate(0, 0, g.rng.IntN(21)-10),
		}
		jobID, err := g.repo.CreateJob(ctx, j)
		if err != nil {
			return fmt.Errorf("create job %d: %w", i, err)
		}

		tasks := 2 + g.rng.IntN(4)
		for n := 1; n <= tasks; n++ {
			t := &models.JobTask{
				JobID:       jobID,
				Title:       fmt.Sprintf("Task %d for Job %d", n, i),
				Description: fmt.Sprintf("Description for Task %d", n),
				Status:      pick(g.rng, seedTaskStatuses),
				Order:       n,
			}
			if t.Status == models.TaskCompleted {
				at := g.now
				t.CompletedAt = &at
			}
			if _, err := g.repo.CreateTask(ctx, t, g.equipment(catalog)); err != nil {
				return fmt.Errorf("create task %d of job %d: %w", n, i, err)
			}
		}
		fmt.Fprintf(g.out, "Created job: %s (%d tasks)\n", j.Title, tasks)
	}

	fmt.Fprintf(g.out, "Successfully generated %d jobs with tasks.\n", jobs)
	return nil
}

// user returns the existing account or creates it.
func (g *generator) user(ctx context.Context, nu auth.NewUser) (*models.User, error) {
	u, err := g.repo.GetUserByUsername(ctx, nu.Username)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", nu.Username, err)
	}
	if u != nil {
		return u, nil
	}

	u, err = g.auth.CreateUser(ctx, nu)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", nu.Username, err)
	}
	fmt.Fprintf(g.out, "Created %s: %s\n", u.Role, u.Username)
	return u, nil
}

// equipment picks one to three distinct catalog items.
func (g *generator) equipment(catalog []models.Equipment) []int64 {
	n := min(1+g.rng.IntN(3), len(catalog))
	ids := make([]int64, 0, n)
	for _, i := range g.rng.Perm(len(catalog))[:n] {
		ids = append(ids, catalog[i].ID)
	}
	return ids
}

func pick[T any](rng *rand.Rand, items []T) T {
	return items[rng.IntN(len(items))]
}
