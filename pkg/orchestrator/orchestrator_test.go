package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/ironclaw/pkg/catalog"
	"github.com/harun/ironclaw/pkg/engine"
	"github.com/harun/ironclaw/pkg/oracle"
)

// scriptedProposer returns a canned proposal and records what it was asked.
type scriptedProposer struct {
	proposal *oracle.Proposal
	err      error

	calls     int
	lastTask  string
	lastTools []oracle.ToolSpec
}

func (p *scriptedProposer) Propose(_ context.Context, task string, tools []oracle.ToolSpec) (*oracle.Proposal, error) {
	p.calls++
	p.lastTask = task
	p.lastTools = tools
	if p.err != nil {
		return nil, p.err
	}
	return p.proposal, nil
}

// scriptedExecutor returns a canned output and records the invocation.
type scriptedExecutor struct {
	output string
	err    error

	calls      int
	lastBinary string
	lastEntry  string
	lastInput  string
	lastBudget int64
}

func (e *scriptedExecutor) Run(_ context.Context, binaryPath, entryPoint, input string, budget int64) (string, error) {
	e.calls++
	e.lastBinary = binaryPath
	e.lastEntry = entryPoint
	e.lastInput = input
	e.lastBudget = budget
	if e.err != nil {
		return "", e.err
	}
	return e.output, nil
}

const testCatalogSource = `[
	{
		"name": "greet",
		"description": "Greets the given subject",
		"binary_path": "/opt/capabilities/greet.wasm",
		"handler": "run",
		"parameters": {
			"type": "object",
			"properties": {"input": {"type": "string"}},
			"required": ["input"]
		}
	},
	{
		"name": "calc",
		"description": "Evaluates an arithmetic expression",
		"binary_path": "/opt/capabilities/calc.wasm",
		"handler": "run",
		"parameters": {
			"type": "object",
			"properties": {"input": {"type": "string"}}
		}
	}
]`

func newTestHandle(t *testing.T) *catalog.Handle {
	t.Helper()

	logger := zerolog.New(os.Stdout).Level(zerolog.Disabled)
	cat, err := catalog.NewLoader(logger).Parse([]byte(testCatalogSource))
	require.NoError(t, err)

	return catalog.NewHandle(cat)
}

func newTestOrchestrator(t *testing.T, proposer *scriptedProposer, executor *scriptedExecutor) *Orchestrator {
	t.Helper()

	orch, err := New(Config{
		Catalog: newTestHandle(t),
		Oracle:  proposer,
		Engine:  executor,
		Logger:  zerolog.New(os.Stdout).Level(zerolog.Disabled),
	})
	require.NoError(t, err)

	return orch
}

func proposalFor(name, rawArgs string) *oracle.Proposal {
	return &oracle.Proposal{Name: name, RawArgs: json.RawMessage(rawArgs)}
}

func TestNew(t *testing.T) {
	logger := zerolog.New(os.Stdout).Level(zerolog.Disabled)

	t.Run("should create orchestrator with valid config", func(t *testing.T) {
		orch, err := New(Config{
			Catalog: newTestHandle(t),
			Oracle:  &scriptedProposer{},
			Engine:  &scriptedExecutor{},
			Logger:  logger,
		})

		require.NoError(t, err)
		assert.NotNil(t, orch)
	})

	t.Run("should fail without catalog", func(t *testing.T) {
		_, err := New(Config{Oracle: &scriptedProposer{}, Engine: &scriptedExecutor{}, Logger: logger})

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "catalog is required")
	})

	t.Run("should fail without oracle", func(t *testing.T) {
		_, err := New(Config{Catalog: newTestHandle(t), Engine: &scriptedExecutor{}, Logger: logger})

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "oracle is required")
	})

	t.Run("should fail without engine", func(t *testing.T) {
		_, err := New(Config{Catalog: newTestHandle(t), Oracle: &scriptedProposer{}, Logger: logger})

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "engine is required")
	})
}

func TestOrchestrator_Run(t *testing.T) {
	t.Run("should execute the proposed capability and return its output", func(t *testing.T) {
		proposer := &scriptedProposer{proposal: proposalFor("greet", `{"input": "world"}`)}
		executor := &scriptedExecutor{output: "Hello, world!"}
		orch := newTestOrchestrator(t, proposer, executor)

		result := orch.Run(context.Background(), Request{TenantID: "tenant-1", Task: "greet the world"})

		assert.Equal(t, OutcomeSuccess, result.Outcome)
		assert.Equal(t, "Hello, world!", result.Status)
		assert.True(t, strings.HasPrefix(result.JobID, OutcomeSuccess+"-"))
		assert.Equal(t, 1, executor.calls)
		assert.Equal(t, "/opt/capabilities/greet.wasm", executor.lastBinary)
		assert.Equal(t, "run", executor.lastEntry)
		assert.Equal(t, "world", executor.lastInput)
	})

	t.Run("should pass the task and the capability menu to the oracle", func(t *testing.T) {
		proposer := &scriptedProposer{}
		orch := newTestOrchestrator(t, proposer, &scriptedExecutor{})

		orch.Run(context.Background(), Request{Task: "what time is it"})

		require.Equal(t, 1, proposer.calls)
		assert.Equal(t, "what time is it", proposer.lastTask)
		require.Len(t, proposer.lastTools, 2)
		assert.Equal(t, "greet", proposer.lastTools[0].Name)
		assert.Equal(t, "Greets the given subject", proposer.lastTools[0].Description)
		assert.Equal(t, "calc", proposer.lastTools[1].Name)
	})

	t.Run("should answer directly when no capability is selected", func(t *testing.T) {
		executor := &scriptedExecutor{}
		orch := newTestOrchestrator(t, &scriptedProposer{}, executor)

		result := orch.Run(context.Background(), Request{Task: "just say hi"})

		assert.Equal(t, OutcomeNoAction, result.Outcome)
		assert.Equal(t, noActionStatus, result.Status)
		assert.True(t, strings.HasPrefix(result.JobID, OutcomeNoAction+"-"))
		assert.Equal(t, 0, executor.calls)
	})

	t.Run("should reject a fabricated capability name", func(t *testing.T) {
		proposer := &scriptedProposer{proposal: proposalFor("launch_missiles", `{}`)}
		executor := &scriptedExecutor{}
		orch := newTestOrchestrator(t, proposer, executor)

		result := orch.Run(context.Background(), Request{Task: "do something"})

		assert.Equal(t, OutcomeHallucination, result.Outcome)
		assert.Contains(t, result.Status, "launch_missiles")
		assert.Contains(t, result.Status, "not found")
		assert.Equal(t, 0, executor.calls)
	})

	t.Run("should reject a capability outside the allow-list", func(t *testing.T) {
		proposer := &scriptedProposer{proposal: proposalFor("greet", `{"input": "world"}`)}
		executor := &scriptedExecutor{}
		orch := newTestOrchestrator(t, proposer, executor)

		result := orch.Run(context.Background(), Request{Task: "greet", Allowed: []string{"calc"}})

		assert.Equal(t, OutcomeHallucination, result.Outcome)
		assert.Equal(t, 0, executor.calls)

		// The menu offered to the oracle is the granted subset only.
		require.Len(t, proposer.lastTools, 1)
		assert.Equal(t, "calc", proposer.lastTools[0].Name)
	})

	t.Run("should grant the full catalog when the allow-list is empty", func(t *testing.T) {
		proposer := &scriptedProposer{}
		orch := newTestOrchestrator(t, proposer, &scriptedExecutor{})

		orch.Run(context.Background(), Request{Task: "anything"})

		assert.Len(t, proposer.lastTools, 2)
	})

	t.Run("should classify oracle failure without touching the engine", func(t *testing.T) {
		proposer := &scriptedProposer{err: fmt.Errorf("%w: connection refused", oracle.ErrTransport)}
		executor := &scriptedExecutor{}
		orch := newTestOrchestrator(t, proposer, executor)

		result := orch.Run(context.Background(), Request{Task: "greet the world"})

		assert.Equal(t, OutcomeOracle, result.Outcome)
		assert.Equal(t, "Internal AI Error", result.Status)
		assert.True(t, strings.HasPrefix(result.JobID, OutcomeOracle+"-"))
		assert.Equal(t, 0, executor.calls)
	})

	t.Run("should reject arguments that violate the parameter schema", func(t *testing.T) {
		proposer := &scriptedProposer{proposal: proposalFor("greet", `{"input": 42}`)}
		executor := &scriptedExecutor{}
		orch := newTestOrchestrator(t, proposer, executor)

		result := orch.Run(context.Background(), Request{Task: "greet"})

		assert.Equal(t, OutcomeArguments, result.Outcome)
		assert.Contains(t, result.Status, "Invalid arguments for tool 'greet'")
		assert.Equal(t, 0, executor.calls)
	})

	t.Run("should reject arguments missing a required field", func(t *testing.T) {
		proposer := &scriptedProposer{proposal: proposalFor("greet", `{}`)}
		executor := &scriptedExecutor{}
		orch := newTestOrchestrator(t, proposer, executor)

		result := orch.Run(context.Background(), Request{Task: "greet"})

		assert.Equal(t, OutcomeArguments, result.Outcome)
		assert.Equal(t, 0, executor.calls)
	})

	t.Run("should treat a missing optional input as empty text", func(t *testing.T) {
		proposer := &scriptedProposer{proposal: proposalFor("calc", `{}`)}
		executor := &scriptedExecutor{output: "0"}
		orch := newTestOrchestrator(t, proposer, executor)

		result := orch.Run(context.Background(), Request{Task: "calc nothing"})

		assert.Equal(t, OutcomeSuccess, result.Outcome)
		assert.Equal(t, 1, executor.calls)
		assert.Equal(t, "", executor.lastInput)
	})

	t.Run("should surface execution failure as a runtime error", func(t *testing.T) {
		proposer := &scriptedProposer{proposal: proposalFor("greet", `{"input": "world"}`)}
		executor := &scriptedExecutor{err: fmt.Errorf("%w: guest exited with code 1", engine.ErrTrap)}
		orch := newTestOrchestrator(t, proposer, executor)

		result := orch.Run(context.Background(), Request{Task: "greet the world"})

		assert.Equal(t, OutcomeExecFailed, result.Outcome)
		assert.True(t, strings.HasPrefix(result.Status, "Runtime Error:"))
		assert.Contains(t, result.Status, "guest exited")
		assert.True(t, strings.HasPrefix(result.JobID, OutcomeExecFailed+"-"))
	})

	t.Run("should pass the configured budget to the engine", func(t *testing.T) {
		proposer := &scriptedProposer{proposal: proposalFor("greet", `{"input": "world"}`)}
		executor := &scriptedExecutor{output: "ok"}

		orch, err := New(Config{
			Catalog: newTestHandle(t),
			Oracle:  proposer,
			Engine:  executor,
			Logger:  zerolog.New(os.Stdout).Level(zerolog.Disabled),
			Budget:  5_000_000,
		})
		require.NoError(t, err)

		orch.Run(context.Background(), Request{Task: "greet"})

		assert.Equal(t, int64(5_000_000), executor.lastBudget)
	})

	t.Run("should produce distinct job ids per request", func(t *testing.T) {
		orch := newTestOrchestrator(t, &scriptedProposer{}, &scriptedExecutor{})

		first := orch.Run(context.Background(), Request{Task: "one"})
		second := orch.Run(context.Background(), Request{Task: "two"})

		assert.NotEqual(t, first.JobID, second.JobID)
	})
}

func TestValidateArguments(t *testing.T) {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"input": map[string]interface{}{"type": "string"},
		},
		"required": []interface{}{"input"},
	}

	tests := []struct {
		name    string
		raw     string
		schema  map[string]interface{}
		wantErr bool
	}{
		{name: "valid arguments", raw: `{"input": "hello"}`, schema: schema, wantErr: false},
		{name: "missing required field", raw: `{}`, schema: schema, wantErr: true},
		{name: "wrong field type", raw: `{"input": 7}`, schema: schema, wantErr: true},
		{name: "empty raw against required schema", raw: "", schema: schema, wantErr: true},
		{name: "no schema accepts anything", raw: `{"whatever": true}`, schema: nil, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateArguments(json.RawMessage(tt.raw), tt.schema)

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestInvocationInput(t *testing.T) {
	t.Run("should extract the input field", func(t *testing.T) {
		input, err := invocationInput(json.RawMessage(`{"input": "some text"}`))

		require.NoError(t, err)
		assert.Equal(t, "some text", input)
	})

	t.Run("should default to empty text when input is absent", func(t *testing.T) {
		input, err := invocationInput(json.RawMessage(`{"other": 1}`))

		require.NoError(t, err)
		assert.Equal(t, "", input)
	})

	t.Run("should default to empty text when arguments are empty", func(t *testing.T) {
		input, err := invocationInput(nil)

		require.NoError(t, err)
		assert.Equal(t, "", input)
	})

	t.Run("should fail when input is not text", func(t *testing.T) {
		_, err := invocationInput(json.RawMessage(`{"input": [1, 2]}`))

		assert.Error(t, err)
	})

	t.Run("should fail when arguments are not an object", func(t *testing.T) {
		_, err := invocationInput(json.RawMessage(`"bare string"`))

		assert.Error(t, err)
	})
}

func TestFindRecord(t *testing.T) {
	records := []catalog.CapabilityRecord{{Name: "alpha"}, {Name: "beta"}}

	record, ok := findRecord(records, "beta")
	require.True(t, ok)
	assert.Equal(t, "beta", record.Name)

	_, ok = findRecord(records, "gamma")
	assert.False(t, ok)

	_, ok = findRecord(records, "Beta")
	assert.False(t, ok, "capability names are case-sensitive")
}
