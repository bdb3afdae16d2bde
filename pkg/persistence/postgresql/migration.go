package postgresql

// migrations returns the versioned schema for the control plane. Static
// registrations (webhook_id IS NULL) are unique on (path, method); dynamic
// registrations may repeat a (path, method) pair across routing groups.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS workflows (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				active BOOLEAN NOT NULL DEFAULT FALSE,
				nodes JSONB NOT NULL DEFAULT '[]',
				connections JSONB NOT NULL DEFAULT '[]',
				static_data JSONB,
				settings JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_workflows_active ON workflows(active) WHERE active;
		`,
		2: `
			CREATE TABLE IF NOT EXISTS webhook_registrations (
				id SERIAL PRIMARY KEY,
				workflow_id TEXT NOT NULL,
				path TEXT NOT NULL,
				method TEXT NOT NULL,
				node_name TEXT NOT NULL,
				webhook_id TEXT,
				path_segments INTEGER NOT NULL DEFAULT 0,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE UNIQUE INDEX IF NOT EXISTS idx_webhook_registrations_static
				ON webhook_registrations(path, method)
				WHERE webhook_id IS NULL;

			CREATE INDEX IF NOT EXISTS idx_webhook_registrations_dynamic
				ON webhook_registrations(webhook_id, method, path_segments)
				WHERE webhook_id IS NOT NULL;

			CREATE INDEX IF NOT EXISTS idx_webhook_registrations_workflow
				ON webhook_registrations(workflow_id);
		`,
	}
}
