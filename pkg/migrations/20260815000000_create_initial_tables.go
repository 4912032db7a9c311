package migrations

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

func init() {
	up := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec(`
			CREATE TABLE libraries (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL,
				name TEXT NOT NULL,
				classification TEXT NOT NULL DEFAULT 'mixed',
				item_id INTEGER,
				deleted_at DATETIME
			)
		`)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = db.Exec(`
			CREATE TABLE library_paths (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL,
				library_id INTEGER NOT NULL REFERENCES libraries(id) ON DELETE CASCADE,
				filepath TEXT NOT NULL
			)
		`)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = db.Exec(`CREATE INDEX idx_library_paths_library_id ON library_paths(library_id)`)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = db.Exec(`
			CREATE TABLE items (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL,
				library_id INTEGER REFERENCES libraries(id) ON DELETE SET NULL,
				parent_id INTEGER REFERENCES items(id) ON DELETE SET NULL,
				path TEXT NOT NULL UNIQUE,
				name TEXT NOT NULL,
				sort_name TEXT NOT NULL DEFAULT '',
				kind TEXT NOT NULL,
				size_bytes INTEGER,
				mime_type TEXT,
				duration_seconds REAL,
				provider_ids TEXT,
				identified_at DATETIME
			)
		`)
		if err != nil {
			return errors.WithStack(err)
		}

		// Path lookups are the hot path of targeted scans; they are always
		// case-insensitive.
		_, err = db.Exec(`CREATE INDEX idx_items_path_nocase ON items(path COLLATE NOCASE)`)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = db.Exec(`CREATE INDEX idx_items_parent_id ON items(parent_id)`)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = db.Exec(`
			CREATE TABLE refresh_jobs (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL,
				item_id INTEGER NOT NULL REFERENCES items(id) ON DELETE CASCADE,
				mode TEXT NOT NULL DEFAULT 'default',
				replace_all BOOLEAN NOT NULL DEFAULT FALSE,
				priority TEXT NOT NULL DEFAULT 'normal',
				status TEXT NOT NULL,
				process_id TEXT,
				error TEXT
			)
		`)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = db.Exec(`CREATE INDEX idx_refresh_jobs_status ON refresh_jobs(status)`)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = db.Exec(`CREATE INDEX idx_refresh_jobs_item_id ON refresh_jobs(item_id)`)
		if err != nil {
			return errors.WithStack(err)
		}

		return nil
	}

	down := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec(`
			DROP TABLE IF EXISTS refresh_jobs;
			DROP TABLE IF EXISTS items;
			DROP TABLE IF EXISTS library_paths;
			DROP TABLE IF EXISTS libraries;
		`)
		return errors.WithStack(err)
	}

	Migrations.MustRegister(up, down)
}
