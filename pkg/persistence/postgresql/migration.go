package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE documents (
				collection VARCHAR(64) NOT NULL,
				id VARCHAR(255) NOT NULL,
				data JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				PRIMARY KEY (collection, id)
			);

			CREATE INDEX idx_documents_updated_at ON documents(collection, updated_at);
		`,
		2: `
			-- Lookups by owner for workflow and routine lists
			CREATE INDEX idx_documents_user_id ON documents((data->>'user_id')) WHERE collection IN ('workflows', 'routines');
			CREATE INDEX idx_documents_workflow_id ON documents((data->>'workflow_id')) WHERE collection = 'executions';
		`,
	}
}
