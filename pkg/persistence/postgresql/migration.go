package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE conversations (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				title TEXT,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX idx_conversations_user_created ON conversations(user_id, created_at DESC);

			CREATE TABLE messages (
				id TEXT PRIMARY KEY,
				conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
				role VARCHAR(16) NOT NULL CHECK (role IN ('user', 'assistant', 'system')),
				content TEXT NOT NULL,
				metadata JSONB,
				tokens INTEGER,
				error TEXT,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX idx_messages_conversation_created ON messages(conversation_id, created_at);

			CREATE TABLE workflows (
				id TEXT PRIMARY KEY,
				conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
				status VARCHAR(16) NOT NULL CHECK (status IN ('pending', 'running', 'failed', 'completed')),
				result JSONB,
				error TEXT,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX idx_workflows_conversation_created ON workflows(conversation_id, created_at DESC);
			CREATE INDEX idx_workflows_status ON workflows(status);
		`,
	}
}
