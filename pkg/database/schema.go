package database

import (
	"context"
	"fmt"
)

// migrations run in order on every start; each statement is idempotent.
var migrations = []struct {
	name string
	sql  string
}{
	{"report_jobs table", `
		CREATE TABLE IF NOT EXISTS report_jobs (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			topic TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			config JSONB,
			state JSONB,
			report TEXT,
			error TEXT,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)`},
	{"report_logs table", `
		CREATE TABLE IF NOT EXISTS report_logs (
			id SERIAL PRIMARY KEY,
			job_id UUID NOT NULL REFERENCES report_jobs(id) ON DELETE CASCADE,
			timestamp TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			level TEXT NOT NULL,
			message TEXT NOT NULL,
			metadata JSONB
		)`},
	{"report_logs job index", "CREATE INDEX IF NOT EXISTS idx_report_logs_job_id ON report_logs(job_id)"},
	{"report_jobs created index", "CREATE INDEX IF NOT EXISTS idx_report_jobs_created_at ON report_jobs(created_at DESC)"},
	{"conversations table", `
		CREATE TABLE IF NOT EXISTS conversations (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			title TEXT NOT NULL DEFAULT 'New Conversation',
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)`},
	{"messages table", `
		CREATE TABLE IF NOT EXISTS messages (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			conversation_id UUID NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)`},
	{"messages conversation index", "CREATE INDEX IF NOT EXISTS idx_messages_conversation_id ON messages(conversation_id)"},
	{"conversations updated index", "CREATE INDEX IF NOT EXISTS idx_conversations_updated_at ON conversations(updated_at DESC)"},
}

// InitSchema creates the job, log and chat tables.
func (db *PostgresDB) InitSchema(ctx context.Context) error {
	for _, m := range migrations {
		if _, err := db.Pool.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("failed to create %s: %w", m.name, err)
		}
	}
	return nil
}
