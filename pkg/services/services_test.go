package services

import (
	"io"
	"log/slog"
	"testing"

	"github.com/dukex/autograph/pkg/cache"
	"github.com/dukex/autograph/pkg/lifecycle"
	"github.com/dukex/autograph/pkg/mocks"
	"github.com/dukex/autograph/pkg/persistence/file"
	"github.com/dukex/autograph/pkg/security"
	"github.com/dukex/autograph/pkg/validation"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const validGraph = `{
  "name": "Webhook to Slack",
  "nodes": [
    {"id": "1", "name": "Webhook", "type": "n8n-nodes-base.webhook", "typeVersion": 1, "position": [100, 300], "parameters": {"path": "hook"}},
    {"id": "2", "name": "Slack", "type": "n8n-nodes-base.slack", "typeVersion": 2, "position": [300, 300], "parameters": {"text": "={{$json.body}}"}, "credentials": {"slackApi": {"id": "cred-1", "name": "Slack"}}}
  ],
  "connections": {"Webhook": {"main": [[{"node": "Slack", "type": "main", "index": 0}]]}},
  "active": false
}`

const unsafeGraph = `{
  "name": "Leaky",
  "nodes": [{"id": "1", "name": "Call", "type": "n8n-nodes-base.httpRequest", "typeVersion": 4, "position": [100, 300], "parameters": {"apiKey": "sk-aaaaaaaaaaaaaaaaaaaa"}}],
  "connections": {}
}`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	persistence   *file.Persistence
	cache         *cache.Memory
	conversations *Conversations
	coordinator   *lifecycle.Coordinator
	generator     *mocks.MockGenerator
	publisher     *mocks.MockEventPublisher
	synthesis     *Synthesis
	validator     *validation.Validator
	scanner       *security.Scanner
}

func newFixture(t *testing.T, config Config) *fixture {
	t.Helper()

	p := file.NewPersistence(t.TempDir())
	c := cache.NewMemory(0)
	logger := discardLogger()

	publisher := new(mocks.MockEventPublisher)
	publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	f := &fixture{
		persistence:   p,
		cache:         c,
		conversations: NewConversations(p, c, logger),
		coordinator:   lifecycle.NewCoordinator(p.WorkflowRecordRepository(), logger),
		generator:     new(mocks.MockGenerator),
		publisher:     publisher,
		validator:     validation.Default(),
		scanner:       security.MustNewScanner(security.DefaultPolicy()),
	}

	synthesis, err := NewSynthesis(SynthesisDependencies{
		Conversations: f.conversations,
		Generator:     f.generator,
		Validator:     f.validator,
		Scanner:       f.scanner,
		Coordinator:   f.coordinator,
		Publisher:     publisher,
		Logger:        logger,
	}, config)
	require.NoError(t, err)

	f.synthesis = synthesis

	return f
}
