package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const createRosterTables = `
CREATE TABLE IF NOT EXISTS teachers (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS classes (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	teacher_id TEXT REFERENCES teachers(id)
);
CREATE INDEX IF NOT EXISTS idx_classes_teacher ON classes(teacher_id);

CREATE TABLE IF NOT EXISTS students (
	id TEXT PRIMARY KEY,
	login TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	class_id TEXT NOT NULL REFERENCES classes(id)
);
CREATE INDEX IF NOT EXISTS idx_students_class ON students(class_id);
`

const createLedgerTables = `
CREATE TABLE IF NOT EXISTS points_accounts (
	student_id TEXT PRIMARY KEY REFERENCES students(id),
	balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS emotion_submissions (
	id TEXT PRIMARY KEY,
	student_id TEXT NOT NULL REFERENCES students(id),
	emotion TEXT NOT NULL CHECK (emotion IN ('happy', 'neutral', 'sad', 'angry', 'tired')),
	note TEXT,
	submitted_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_emotion_submissions_student_time ON emotion_submissions(student_id, submitted_at DESC);
`

const createRewardTables = `
CREATE TABLE IF NOT EXISTS rewards (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	cost BIGINT NOT NULL CHECK (cost >= 0),
	description TEXT NOT NULL DEFAULT '',
	image_url TEXT NOT NULL DEFAULT '',
	active BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS reward_redemptions (
	id TEXT PRIMARY KEY,
	student_id TEXT NOT NULL REFERENCES students(id),
	reward_id TEXT NOT NULL REFERENCES rewards(id),
	cost BIGINT NOT NULL CHECK (cost >= 0),
	redeemed_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reward_redemptions_student ON reward_redemptions(student_id, redeemed_at DESC);
`

var migrations = []struct {
	name string
	ddl  string
}{
	{name: "roster", ddl: createRosterTables},
	{name: "ledger", ddl: createLedgerTables},
	{name: "rewards", ddl: createRewardTables},
}

// Migrate creates the schema. Statements are idempotent and safe to rerun.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m.ddl); err != nil {
			return fmt.Errorf("migrate %s: %w", m.name, err)
		}
	}
	return nil
}
