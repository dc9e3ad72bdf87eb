package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Persistable node types
			DO $$ BEGIN
				CREATE TYPE node_type AS ENUM (
					'INITIAL', 'MANUAL_TRIGGER', 'HTTP_REQUEST', 'ACTION', 'CONDITION', 'LOOP'
				);
			EXCEPTION
				WHEN duplicate_object THEN NULL;
			END $$;

			CREATE TABLE IF NOT EXISTS workflows (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				description TEXT,
				owner_id TEXT NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_workflows_owner_created_at ON workflows(owner_id, created_at DESC);

			CREATE TABLE IF NOT EXISTS nodes (
				id TEXT PRIMARY KEY,
				workflow_id TEXT NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				name TEXT NOT NULL,
				type node_type NOT NULL,
				position JSONB NOT NULL,
				data JSONB NOT NULL DEFAULT '{}'::jsonb,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				UNIQUE (id, workflow_id)
			);

			CREATE INDEX IF NOT EXISTS idx_nodes_workflow_id ON nodes(workflow_id);

			-- Endpoints reference (node, workflow) pairs so an edge can never
			-- join nodes of two different workflows.
			CREATE TABLE IF NOT EXISTS connections (
				id TEXT PRIMARY KEY,
				workflow_id TEXT NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				from_node_id TEXT NOT NULL,
				to_node_id TEXT NOT NULL,
				from_output TEXT NOT NULL DEFAULT '',
				to_input TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				FOREIGN KEY (from_node_id, workflow_id) REFERENCES nodes(id, workflow_id) ON DELETE CASCADE,
				FOREIGN KEY (to_node_id, workflow_id) REFERENCES nodes(id, workflow_id) ON DELETE CASCADE
			);

			CREATE UNIQUE INDEX IF NOT EXISTS connections_unique_connection
				ON connections(from_node_id, to_node_id, from_output, to_input);
			CREATE INDEX IF NOT EXISTS idx_connections_workflow_id ON connections(workflow_id);
			CREATE INDEX IF NOT EXISTS idx_connections_from_node_id ON connections(from_node_id);
			CREATE INDEX IF NOT EXISTS idx_connections_to_node_id ON connections(to_node_id);
		`,
		// Submission order of nodes and connections within one replacement.
		2: `
			ALTER TABLE nodes ADD COLUMN IF NOT EXISTS ordinal INTEGER NOT NULL DEFAULT 0;
			ALTER TABLE connections ADD COLUMN IF NOT EXISTS ordinal INTEGER NOT NULL DEFAULT 0;
		`,
	}
}
