package test

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"jobportal/auth"
	"jobportal/test/actors"
	"jobportal/test/chaos"
	"jobportal/test/infra"
	"jobportal/test/oracles"
)

var (
	flDuration    = flag.Duration("duration", 20*time.Second, "how long to run stress")
	flConcurrency = flag.Int("concurrency", 8, "number of concurrent registrants")
	flDSN         = flag.String("dsn", "", "existing Postgres DSN to reuse (avoids Docker)")
	flChaos       = flag.Bool("chaos", false, "terminate random backends while actors run")
)

func TestIdentityConcurrency(t *testing.T) {
	if testing.Short() {
		t.Skip("stress test skipped in -short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *flDuration+90*time.Second)
	defer cancel()

	pgC, dsn, ok, err := infra.ResolveDSN(ctx, *flDSN)
	if err != nil {
		t.Fatalf("resolve database: %v", err)
	}
	if !ok {
		t.Skip("no database: set -dsn or STRESS_TEST_PG_DSN, or make docker available")
	}
	defer pgC.Terminate(context.Background())

	pool, teardown, err := infra.ApplyMigrations(ctx, dsn, pgC.Shared())
	if err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	defer pool.Close()
	defer func() {
		if err := teardown(context.Background()); err != nil {
			t.Logf("teardown warning: %v", err)
		}
	}()

	tokens, err := auth.NewTokenIssuer("stress-secret", auth.DefaultTokenTTL)
	if err != nil {
		t.Fatalf("token issuer: %v", err)
	}
	svc := auth.NewService(auth.NewRepository(pool), tokens, nil)

	target := mustSeed(t, ctx, svc)

	emails := make([]string, 4)
	for i := range emails {
		emails[i] = fmt.Sprintf("Contended%d@Example.com", i)
	}

	g, ctx2 := errgroup.WithContext(ctx)
	stop := make(chan struct{})

	for i := 0; i < *flConcurrency; i++ {
		g.Go(func() error { return actors.Registrant(ctx2, svc, emails, stop) })
	}

	var bio, skills, name actors.LastWrite
	g.Go(func() error { return actors.ProfileEditor(ctx2, svc, target.ID, actors.FieldBio, &bio, stop) })
	g.Go(func() error { return actors.ProfileEditor(ctx2, svc, target.ID, actors.FieldSkills, &skills, stop) })
	g.Go(func() error { return actors.ProfileEditor(ctx2, svc, target.ID, actors.FieldFullName, &name, stop) })
	g.Go(func() error {
		return actors.LoginProber(ctx2, svc, target.Email, seedPassword, auth.RoleRecruiter, stop)
	})

	chaosDone := make(chan int, 1)
	if *flChaos {
		go func() { chaosDone <- chaos.TerminateRandomBackend(ctx2, pool, 2*time.Second, stop) }()
	}

	deadline := time.Now().Add(*flDuration)
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

loop:
	for time.Now().Before(deadline) {
		select {
		case <-ctx2.Done():
			break loop
		case <-ticker.C:
			checkOracles(t, ctx, pool)
		}
	}

	close(stop)
	if err := g.Wait(); err != nil {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("actors errored: %v", err)
		}
	}

	checkOracles(t, ctx, pool)
	if *flChaos {
		t.Logf("chaos terminated %d backends", <-chaosDone)
	} else {
		// Under chaos a commit can succeed while its reply is lost, so the
		// editors' bookkeeping is only exact without it.
		checkNoLostUpdates(t, ctx, svc, target.ID, &bio, &skills, &name)
	}
	checkOneAccountPerEmail(t, ctx, pool, emails)
}

const seedPassword = "seed-password"

func mustSeed(t *testing.T, ctx context.Context, svc *auth.Service) auth.PublicUser {
	t.Helper()
	u, err := svc.Register(ctx, auth.RegisterRequest{
		FullName:    "Stress Recruiter",
		Email:       fmt.Sprintf("recruiter-%d@example.com", time.Now().UnixNano()),
		PhoneNumber: "9123456780",
		Password:    seedPassword,
		Role:        auth.RoleRecruiter,
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func checkOracles(t *testing.T, ctx context.Context, pool *pgxpool.Pool) {
	t.Helper()
	name, row, err := oracles.Run(ctx, pool)
	if err != nil {
		if actors.Transient(err) {
			t.Logf("oracle skipped: %v", err)
			return
		}
		t.Fatalf("oracle error: %v", err)
	}
	if name != "" {
		dumpUsers(t, ctx, pool)
		t.Fatalf("Oracle %s failed. First row: %s", name, row)
	}
}

// checkNoLostUpdates verifies that every editor's last committed value
// survived the other editors' concurrent partial updates.
func checkNoLostUpdates(t *testing.T, ctx context.Context, svc *auth.Service, userID string, bio, skills, name *actors.LastWrite) {
	t.Helper()
	u, err := svc.GetUser(ctx, userID)
	if err != nil {
		t.Fatalf("load edited user: %v", err)
	}
	if want := bio.Value(); want != "" && (u.Profile.Bio == nil || *u.Profile.Bio != want) {
		t.Fatalf("bio lost: want %q got %v", want, u.Profile.Bio)
	}
	if want := skills.Value(); want != "" && strings.Join(u.Profile.Skills, ",") != want {
		t.Fatalf("skills lost: want %q got %v", want, u.Profile.Skills)
	}
	if want := name.Value(); want != "" && u.FullName != want {
		t.Fatalf("full name lost: want %q got %q", want, u.FullName)
	}
}

func checkOneAccountPerEmail(t *testing.T, ctx context.Context, pool *pgxpool.Pool, emails []string) {
	t.Helper()
	for _, e := range emails {
		var n int
		if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE lower(email) = lower($1)`, e).Scan(&n); err != nil {
			t.Fatalf("count %s: %v", e, err)
		}
		if n > 1 {
			t.Fatalf("email %s registered %d times", e, n)
		}
	}
}

func dumpUsers(t *testing.T, ctx context.Context, pool *pgxpool.Pool) {
	t.Helper()
	rows, err := pool.Query(ctx, `SELECT id, email, role, skills, updated_at FROM users ORDER BY updated_at DESC LIMIT 50`)
	if err != nil {
		t.Logf("dump users error: %v", err)
		return
	}
	defer rows.Close()

	cols := rows.FieldDescriptions()
	t.Logf("-- users --")
	for rows.Next() {
		vals, _ := rows.Values()
		buf := make([]any, 0, len(vals))
		for i := range vals {
			buf = append(buf, fmt.Sprintf("%s=%v", cols[i].Name, vals[i]))
		}
		t.Logf("%s", buf)
	}
}
