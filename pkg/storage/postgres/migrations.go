package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all schema migrations in order.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create organizations table",
			SQL: `
				CREATE TABLE IF NOT EXISTS organizations (
					id BIGSERIAL PRIMARY KEY,
					external_id VARCHAR(255) NOT NULL,
					name VARCHAR(255) NOT NULL,
					plan_tier VARCHAR(32) NOT NULL DEFAULT 'free',
					billing_status VARCHAR(32) NOT NULL DEFAULT 'inactive',
					trial_ends_at TIMESTAMP,
					created_at TIMESTAMP NOT NULL,
					UNIQUE(external_id)
				);
			`,
		},
		{
			Version:     2,
			Description: "Create memberships table",
			SQL: `
				CREATE TABLE IF NOT EXISTS memberships (
					id BIGSERIAL PRIMARY KEY,
					organization_id BIGINT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					external_user_id VARCHAR(255) NOT NULL,
					role VARCHAR(32) NOT NULL,
					created_at TIMESTAMP NOT NULL,
					UNIQUE(organization_id, external_user_id)
				);

				CREATE INDEX idx_memberships_external_user_id ON memberships(external_user_id);
			`,
		},
		{
			Version:     3,
			Description: "Create jobs table",
			SQL: `
				CREATE TABLE IF NOT EXISTS jobs (
					id VARCHAR(36) PRIMARY KEY,
					organization_id BIGINT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					title VARCHAR(255) NOT NULL,
					location VARCHAR(255) NOT NULL DEFAULT '',
					job_type VARCHAR(32) NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					tags TEXT NOT NULL DEFAULT '[]',
					salary_min INT,
					salary_max INT,
					published BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMP NOT NULL
				);

				CREATE INDEX idx_jobs_organization_id ON jobs(organization_id);
				CREATE INDEX idx_jobs_published_created_at ON jobs(published, created_at DESC);
			`,
		},
		{
			Version:     4,
			Description: "Create applications table",
			SQL: `
				CREATE TABLE IF NOT EXISTS applications (
					id VARCHAR(36) PRIMARY KEY,
					job_id VARCHAR(36) NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
					seeker_user_id VARCHAR(255) NOT NULL,
					resume_url TEXT,
					resume_text TEXT,
					cover_letter TEXT,
					status VARCHAR(32) NOT NULL DEFAULT 'applied',
					created_at TIMESTAMP NOT NULL,
					updated_at TIMESTAMP NOT NULL
				);

				CREATE INDEX idx_applications_job_id ON applications(job_id);
				CREATE INDEX idx_applications_seeker_user_id ON applications(seeker_user_id);
			`,
		},
	}
}

// RunMigrations executes all pending migrations
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	appliedVersions := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		appliedVersions[version] = true
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("failed to read migration versions: %w", err)
	}
	rows.Close()

	for _, migration := range GetMigrations() {
		if appliedVersions[migration.Version] {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}
