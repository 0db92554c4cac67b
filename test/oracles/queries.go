package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

// All returns the invariants checked against the users table. Each query
// returns rows only when its invariant is broken.
func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_unique_email_ci",
			SQL: `SELECT lower(email), COUNT(*) FROM users
                  GROUP BY lower(email) HAVING COUNT(*) > 1`,
		},
		{
			Name: "O2_known_role",
			SQL:  `SELECT id FROM users WHERE role NOT IN ('seeker','recruiter')`,
		},
		{
			Name: "O3_password_hashed",
			SQL:  `SELECT id FROM users WHERE password_hash NOT LIKE '$2_$%'`,
		},
		{
			Name: "O4_skills_present",
			SQL:  `SELECT id FROM users WHERE skills IS NULL`,
		},
		{
			Name: "O5_resume_pair",
			SQL:  `SELECT id FROM users WHERE (resume_url IS NULL) <> (resume_original_name IS NULL)`,
		},
		{
			Name: "O6_email_index_present",
			SQL: `SELECT 'missing_users_email_lower_key' AS detail
                  WHERE NOT EXISTS (SELECT 1 FROM pg_indexes
                                    WHERE indexname = 'users_email_lower_key'
                                      AND schemaname = current_schema())`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample row text) or empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return "", "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		if rows.Next() {
			vals, _ := rows.Values()
			rows.Close()
			return o.Name, fmt.Sprint(vals), nil
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return "", "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
	}
	return "", "", nil
}
