// Package chaos injects faults into the database while actors run.
package chaos

import (
	"context"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// TerminateRandomBackend periodically kills one backend serving the current
// database, other than the one issuing the command. It returns the number of
// terminations once stop is closed or ctx ends.
func TerminateRandomBackend(ctx context.Context, pool *pgxpool.Pool, every time.Duration, stop <-chan struct{}) int {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	killed := 0
	for {
		select {
		case <-ctx.Done():
			return killed
		case <-stop:
			return killed
		case <-ticker.C:
			if rand.Intn(3) != 0 {
				continue
			}
			tag, err := pool.Exec(ctx, `SELECT pg_terminate_backend(pid) FROM pg_stat_activity
                                        WHERE datname = current_database()
                                          AND backend_type = 'client backend'
                                          AND pid <> pg_backend_pid()
                                        ORDER BY random() LIMIT 1`)
			if err == nil && tag.RowsAffected() > 0 {
				killed++
			}
		}
	}
}
