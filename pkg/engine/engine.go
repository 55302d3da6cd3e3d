package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"

	"github.com/harun/ironclaw/internal/observability"
)

// Config holds engine configuration
type Config struct {
	Logger zerolog.Logger

	// DefaultBudget is the compute budget applied when an invocation does
	// not carry its own.
	DefaultBudget int64

	// MemoryPages caps guest memory, in 64KiB pages.
	MemoryPages int
}

// Engine executes capability artifacts in isolated guest instances. The
// compiled-artifact cache is shared; every invocation gets a fresh instance
// so no guest state survives between runs.
type Engine struct {
	runtime       wazero.Runtime
	logger        zerolog.Logger
	defaultBudget int64

	mu       sync.Mutex
	compiled map[string]compiledArtifact
}

// compiledArtifact caches a compiled module keyed by the source file identity
type compiledArtifact struct {
	module  wazero.CompiledModule
	modTime time.Time
	size    int64
}

// New creates a new execution engine
func New(ctx context.Context, cfg Config) (*Engine, error) {
	if cfg.DefaultBudget <= 0 {
		return nil, fmt.Errorf("default budget must be positive")
	}
	if cfg.MemoryPages <= 0 {
		return nil, fmt.Errorf("memory pages must be positive")
	}

	runtimeCfg := wazero.NewRuntimeConfig().
		WithCloseOnContextDone(true).
		WithMemoryLimitPages(uint32(cfg.MemoryPages))

	rt := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)
	wasi_snapshot_preview1.MustInstantiate(ctx, rt)

	e := &Engine{
		runtime:       rt,
		logger:        cfg.Logger.With().Str("component", "engine").Logger(),
		defaultBudget: cfg.DefaultBudget,
		compiled:      make(map[string]compiledArtifact),
	}

	if err := e.registerHostFunctions(ctx); err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("failed to register host functions: %w", err)
	}

	return e, nil
}

// registerHostFunctions exposes the host surface to guests: diagnostic
// logging only.
func (e *Engine) registerHostFunctions(ctx context.Context) error {
	_, err := e.runtime.NewHostModuleBuilder("ironclaw").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(e.hostLogMessage),
			[]api.ValueType{api.ValueTypeI64}, []api.ValueType{}).
		Export("log_message").
		Instantiate(ctx)
	return err
}

// hostLogMessage routes a guest log line into the host logger
func (e *Engine) hostLogMessage(ctx context.Context, m api.Module, stack []uint64) {
	ptr, length := unpackPtrLen(stack[0])
	payload, ok := m.Memory().Read(ptr, length)
	if !ok {
		e.logger.Warn().
			Uint32("ptr", ptr).
			Uint32("len", length).
			Msg("Guest log message out of memory range")
		return
	}

	var logMsg struct {
		Level   string `json:"level"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(payload, &logMsg); err != nil {
		e.logger.Warn().Err(err).Msg("Guest log message is not valid JSON")
		return
	}

	event := e.logger.Info()
	switch logMsg.Level {
	case "debug":
		event = e.logger.Debug()
	case "warn":
		event = e.logger.Warn()
	case "error":
		event = e.logger.Error()
	}
	event.Str("source", "guest").Msg(logMsg.Message)
}

// Run executes one invocation: load the artifact, boot a fresh instance, call
// the entry point with the input text, and return the output text. The budget
// is enforced preemptively; a guest that exceeds it is interrupted.
func (e *Engine) Run(ctx context.Context, binaryPath, entryPoint, input string, budget int64) (string, error) {
	start := time.Now()
	output, err := e.run(ctx, binaryPath, entryPoint, input, budget)
	observability.RecordEngineRun(outcomeKind(err), time.Since(start))

	if err != nil {
		return "", err
	}

	e.logger.Debug().
		Str("binary_path", binaryPath).
		Str("entry_point", entryPoint).
		Int("output_bytes", len(output)).
		Dur("duration", time.Since(start)).
		Msg("Guest execution complete")

	return output, nil
}

func (e *Engine) run(ctx context.Context, binaryPath, entryPoint, input string, budget int64) (string, error) {
	if budget <= 0 {
		budget = e.defaultBudget
	}

	compiled, err := e.compiledModule(ctx, binaryPath)
	if err != nil {
		return "", err
	}

	budgetCtx, cancel := withBudget(ctx, budget)
	defer cancel()

	// Anonymous instance: concurrent invocations of one artifact never collide
	mod, err := e.runtime.InstantiateModule(budgetCtx, compiled, wazero.NewModuleConfig().WithName(""))
	if err != nil {
		if cerr := contextFailure(ctx, budgetCtx, err); cerr != nil {
			return "", cerr
		}
		return "", fmt.Errorf("%w: %v", ErrInstantiationFailed, err)
	}
	defer mod.Close(context.Background())

	entry := mod.ExportedFunction(entryPoint)
	if entry == nil {
		return "", fmt.Errorf("%w: entry point %q not exported", ErrInstantiationFailed, entryPoint)
	}

	def := entry.Definition()
	if len(def.ParamTypes()) != 1 || def.ParamTypes()[0] != api.ValueTypeI64 ||
		len(def.ResultTypes()) != 1 || def.ResultTypes()[0] != api.ValueTypeI64 {
		return "", fmt.Errorf("%w: entry point %q has the wrong signature", ErrInstantiationFailed, entryPoint)
	}

	var inPtr, inLen uint32
	if len(input) > 0 {
		allocate := mod.ExportedFunction("allocate")
		if allocate == nil {
			return "", fmt.Errorf("%w: guest does not export allocate", ErrInstantiationFailed)
		}

		results, err := allocate.Call(budgetCtx, uint64(len(input)))
		if err != nil {
			return "", e.classifyGuestError(ctx, budgetCtx, err)
		}

		inPtr = uint32(results[0])
		inLen = uint32(len(input))
		if !mod.Memory().Write(inPtr, []byte(input)) {
			return "", fmt.Errorf("%w: failed to write input to guest memory", ErrInstantiationFailed)
		}
	}

	results, err := entry.Call(budgetCtx, packPtrLen(inPtr, inLen))
	if err != nil {
		return "", e.classifyGuestError(ctx, budgetCtx, err)
	}

	outPtr, outLen := unpackPtrLen(results[0])
	if outLen == 0 {
		return "", nil
	}

	data, ok := mod.Memory().Read(outPtr, outLen)
	if !ok {
		return "", fmt.Errorf("%w: output pointer out of memory range", ErrInvalidOutput)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: output is not valid UTF-8", ErrInvalidOutput)
	}

	return string(data), nil
}

// compiledModule returns the cached compiled artifact, recompiling when the
// file on disk changed.
func (e *Engine) compiledModule(ctx context.Context, path string) (wazero.CompiledModule, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrArtifactNotFound, path, err)
	}

	e.mu.Lock()
	entry, ok := e.compiled[path]
	e.mu.Unlock()
	if ok && entry.modTime.Equal(info.ModTime()) && entry.size == info.Size() {
		return entry.module, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrArtifactNotFound, path, err)
	}

	module, err := e.runtime.CompileModule(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not a loadable module: %v", ErrArtifactNotFound, path, err)
	}

	e.mu.Lock()
	e.compiled[path] = compiledArtifact{
		module:  module,
		modTime: info.ModTime(),
		size:    info.Size(),
	}
	e.mu.Unlock()

	e.logger.Debug().
		Str("binary_path", path).
		Msg("Artifact compiled")

	return module, nil
}

// classifyGuestError maps a failed guest call to an invocation error kind
func (e *Engine) classifyGuestError(parent, budgetCtx context.Context, err error) error {
	if cerr := contextFailure(parent, budgetCtx, err); cerr != nil {
		return cerr
	}

	var exitErr *sys.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Errorf("%w: guest exited with code %d", ErrTrap, exitErr.ExitCode())
	}

	return fmt.Errorf("%w: %v", ErrTrap, err)
}

// contextFailure distinguishes budget exhaustion from caller cancellation.
// Returns nil when the failure was not context-driven.
func contextFailure(parent, budgetCtx context.Context, err error) error {
	var exitErr *sys.ExitError
	if errors.As(err, &exitErr) {
		switch exitErr.ExitCode() {
		case sys.ExitCodeDeadlineExceeded, sys.ExitCodeContextCanceled:
			if parent.Err() != nil {
				return parent.Err()
			}
			return fmt.Errorf("%w: %v", ErrBudgetExhausted, err)
		}
	}

	if parent.Err() != nil {
		return parent.Err()
	}
	if budgetCtx.Err() != nil {
		return fmt.Errorf("%w: %v", ErrBudgetExhausted, budgetCtx.Err())
	}
	return nil
}

// outcomeKind labels a run result for metrics
func outcomeKind(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrArtifactNotFound):
		return "artifact-not-found"
	case errors.Is(err, ErrInstantiationFailed):
		return "instantiation-failed"
	case errors.Is(err, ErrBudgetExhausted):
		return "budget-exhausted"
	case errors.Is(err, ErrInvalidOutput):
		return "invalid-output"
	case errors.Is(err, ErrTrap):
		return "trap"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}

// Close releases the runtime and all compiled artifacts
func (e *Engine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}
