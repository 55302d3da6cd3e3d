// Package orchestrator drives a request through planning, resolution, and
// execution. Every request produces exactly one result, whatever happens
// along the way.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/harun/ironclaw/internal/observability"
	"github.com/harun/ironclaw/internal/tracing"
	"github.com/harun/ironclaw/pkg/catalog"
	"github.com/harun/ironclaw/pkg/oracle"
)

// Outcome classes stamped on every result. The job ID carries the class as
// its prefix so operators can slice a log stream by failure mode.
const (
	OutcomeSuccess       = "exec-success"
	OutcomeExecFailed    = "exec-failed"
	OutcomeHallucination = "err-hallucination"
	OutcomeArguments     = "err-arguments"
	OutcomeOracle        = "err-oracle"
	OutcomeNoAction      = "chat-only"
)

const noActionStatus = "I understood your request, but I don't need to run any tools to answer it."

// Proposer selects at most one capability for a task.
type Proposer interface {
	Propose(ctx context.Context, task string, tools []oracle.ToolSpec) (*oracle.Proposal, error)
}

// Executor runs a capability artifact and returns its textual output.
type Executor interface {
	Run(ctx context.Context, binaryPath, entryPoint, input string, budget int64) (string, error)
}

// Request is a single inbound task with its tenant attribution and
// capability allow-list.
type Request struct {
	TenantID string
	Task     string
	Allowed  []string
}

// Result is the single reply produced for a request.
type Result struct {
	JobID   string
	Status  string
	Outcome string
}

// Config holds the orchestrator dependencies.
type Config struct {
	Catalog *catalog.Handle
	Oracle  Proposer
	Engine  Executor
	Logger  zerolog.Logger

	// Budget is the execution budget granted to each invocation, in
	// abstract units. Zero means the engine default.
	Budget int64
}

// Orchestrator coordinates the catalog, the planning oracle, and the
// execution engine for one request at a time.
type Orchestrator struct {
	catalog *catalog.Handle
	oracle  Proposer
	engine  Executor
	logger  zerolog.Logger
	budget  int64
}

// New creates an Orchestrator from the given configuration.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	if cfg.Oracle == nil {
		return nil, fmt.Errorf("oracle is required")
	}
	if cfg.Engine == nil {
		return nil, fmt.Errorf("engine is required")
	}

	observability.EnsureRegistered()

	return &Orchestrator{
		catalog: cfg.Catalog,
		oracle:  cfg.Oracle,
		engine:  cfg.Engine,
		logger:  cfg.Logger.With().Str("component", "orchestrator").Logger(),
		budget:  cfg.Budget,
	}, nil
}

// Run takes a request through its full lifecycle and returns the result.
// It never returns an error: every failure is classified into an outcome
// and reported through the result status.
func (o *Orchestrator) Run(ctx context.Context, req Request) Result {
	start := time.Now()

	if tracing.GetTraceID(ctx) == "" {
		ctx = tracing.NewRequestContext(ctx)
	}
	if req.TenantID != "" {
		ctx = tracing.WithTenantID(ctx, req.TenantID)
	}

	ctx, span := tracing.StartSpan(ctx, "ironclaw.orchestrator", "orchestrator.run",
		attribute.String("tenant_id", req.TenantID),
	)
	defer span.End()

	logger := tracing.LoggerFromContext(ctx, o.logger)

	records := o.allowedRecords(req.Allowed)
	logger.Info().
		Str("tenant_id", req.TenantID).
		Int("allowed", len(records)).
		Msg("Request received")

	proposal, err := o.oracle.Propose(ctx, req.Task, toolMenu(records))
	if err != nil {
		logger.Error().Err(err).Msg("Oracle call failed")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return o.finish(logger, start, OutcomeOracle, "Internal AI Error")
	}

	if proposal == nil {
		logger.Info().Msg("No capability needed")
		return o.finish(logger, start, OutcomeNoAction, noActionStatus)
	}

	span.SetAttributes(attribute.String("capability", proposal.Name))

	// Resolution happens against the granted subset, not the full catalog:
	// a proposal outside the caller's allow-list is treated the same as a
	// fabricated name.
	record, ok := findRecord(records, proposal.Name)
	if !ok {
		logger.Warn().Str("capability", proposal.Name).Msg("Proposed capability is not available")
		observability.RecordSecurityAudit(ctx, "capability_rejected", req.TenantID, "failure", map[string]interface{}{
			"capability": proposal.Name,
		})
		return o.finish(logger, start, OutcomeHallucination,
			fmt.Sprintf("Error: Tool '%s' not found", proposal.Name))
	}

	if err := validateArguments(proposal.RawArgs, record.Parameters); err != nil {
		logger.Warn().Err(err).Str("capability", record.Name).Msg("Proposed arguments rejected")
		return o.finish(logger, start, OutcomeArguments,
			fmt.Sprintf("Error: Invalid arguments for tool '%s': %v", record.Name, err))
	}

	input, err := invocationInput(proposal.RawArgs)
	if err != nil {
		logger.Warn().Err(err).Str("capability", record.Name).Msg("Proposed arguments rejected")
		return o.finish(logger, start, OutcomeArguments,
			fmt.Sprintf("Error: Invalid arguments for tool '%s': %v", record.Name, err))
	}

	output, err := o.engine.Run(ctx, record.BinaryPath, record.Handler, input, o.budget)
	if err != nil {
		logger.Error().Err(err).Str("capability", record.Name).Msg("Capability execution failed")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observability.RecordRunAudit(ctx, record.Name, req.TenantID, "failure", map[string]interface{}{
			"error": err.Error(),
		})
		return o.finish(logger, start, OutcomeExecFailed, fmt.Sprintf("Runtime Error: %v", err))
	}

	observability.RecordRunAudit(ctx, record.Name, req.TenantID, "success", nil)
	return o.finish(logger, start, OutcomeSuccess, output)
}

// finish stamps the outcome onto a fresh job ID, records the request
// metric, and logs the terminal line for the request.
func (o *Orchestrator) finish(logger zerolog.Logger, start time.Time, outcome, status string) Result {
	jobID := newJobID(outcome)
	duration := time.Since(start)
	observability.RecordRequest(outcome, duration)

	logger.Info().
		Str("job_id", jobID).
		Str("outcome", outcome).
		Dur("duration", duration).
		Msg("Request complete")

	return Result{JobID: jobID, Status: status, Outcome: outcome}
}

// allowedRecords resolves the request allow-list against the current catalog
// snapshot, preserving catalog order. An empty allow-list grants the full
// catalog; names that match no catalog entry are dropped.
func (o *Orchestrator) allowedRecords(allowed []string) []catalog.CapabilityRecord {
	snapshot := o.catalog.Snapshot()
	if len(allowed) == 0 {
		return snapshot.Records()
	}

	requested := make(map[string]struct{}, len(allowed))
	for _, name := range allowed {
		requested[name] = struct{}{}
	}

	records := make([]catalog.CapabilityRecord, 0, len(requested))
	for _, record := range snapshot.Records() {
		if _, ok := requested[record.Name]; ok {
			records = append(records, record)
		}
	}
	return records
}

func findRecord(records []catalog.CapabilityRecord, name string) (*catalog.CapabilityRecord, bool) {
	for i := range records {
		if records[i].Name == name {
			return &records[i], true
		}
	}
	return nil, false
}

// toolMenu converts capability records into the oracle's tool format.
func toolMenu(records []catalog.CapabilityRecord) []oracle.ToolSpec {
	tools := make([]oracle.ToolSpec, 0, len(records))
	for _, record := range records {
		tools = append(tools, oracle.ToolSpec{
			Name:        record.Name,
			Description: record.Description,
			Parameters:  record.Parameters,
		})
	}
	return tools
}

func newJobID(outcome string) string {
	id, _ := gonanoid.New()
	return outcome + "-" + id
}
