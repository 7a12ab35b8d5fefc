package dag

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/vk/hermit/internal/ctxlog"
)

// skipSentinel marks errors recorded on nodes that never ran because an
// upstream stage failed. These are symptoms, not causes.
type skipSentinel struct {
	upstream string
}

func (e *skipSentinel) Error() string {
	return fmt.Sprintf("skipped due to upstream failure of '%s'", e.upstream)
}

// Executor runs a finalized Graph on a bounded worker pool.
type Executor struct {
	graph      *Graph
	numWorkers int
	wg         sync.WaitGroup
}

// NewExecutor creates an Executor. Worker counts below one are clamped to one.
func NewExecutor(graph *Graph, workers int) *Executor {
	if workers < 1 {
		workers = 1
	}
	return &Executor{graph: graph, numWorkers: workers}
}

// Run executes the entire graph concurrently and returns an error if any
// stage fails. It respects the cancellation signal from the provided context.
func (e *Executor) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	if !e.graph.final {
		return fmt.Errorf("graph must be finalized before execution")
	}

	readyChan := make(chan *node, len(e.graph.nodes))
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	rootCount := 0
	for _, n := range e.graph.nodes {
		if n.depCount.Load() == 0 {
			readyChan <- n
			rootCount++
		}
	}
	logger.Debug("Executor initialized.", "stages", len(e.graph.nodes), "roots", rootCount)

	e.wg.Add(len(e.graph.nodes))
	for i := 0; i < e.numWorkers; i++ {
		go e.worker(runCtx, readyChan, cancel, i)
	}

	e.wg.Wait()
	close(readyChan)

	var failedStages []string
	var rootCause error
	var rootID string
	for _, n := range e.graph.nodes {
		if n.state.Load() != stateFailed || n.err == nil {
			continue
		}
		var skipped *skipSentinel
		if errors.As(n.err, &skipped) || errors.Is(n.err, context.Canceled) {
			continue
		}
		failedStages = append(failedStages, n.stage.ID)
		// Pick the lexicographically first failed stage as the root cause so
		// the reported error is deterministic across runs.
		if rootCause == nil || n.stage.ID < rootID {
			rootCause = n.err
			rootID = n.stage.ID
		}
	}

	if rootCause != nil {
		sort.Strings(failedStages)
		return fmt.Errorf("evaluation failed for %s: %w", strings.Join(failedStages, ", "), rootCause)
	}
	return nil
}

// worker is the core processing loop for a single concurrent worker.
func (e *Executor) worker(ctx context.Context, readyChan chan *node, cancel context.CancelFunc, workerID int) {
	logger := ctxlog.FromContext(ctx)

	for n := range readyChan {
		stageLogger := logger.With("workerID", workerID, "stage", n.stage.ID)

		if ctx.Err() != nil {
			n.skipOnce.Do(func() {
				n.state.Store(stateFailed)
				n.err = ctx.Err()
				e.wg.Done()
				e.skipDependents(ctx, n)
			})
			continue
		}

		stageLogger.Debug("Stage started.")
		n.state.Store(stateRunning)

		if err := n.stage.Run(); err != nil {
			stageLogger.Error("Stage failed.", "error", err)
			n.state.Store(stateFailed)
			n.err = err
			cancel()
			e.skipDependents(ctx, n)
			e.wg.Done()
			continue
		}

		stageLogger.Debug("Stage completed.")
		n.state.Store(stateDone)

		for _, dependent := range n.dependents {
			if dependent.depCount.Add(-1) == 0 {
				readyChan <- dependent
			}
		}
		e.wg.Done()
	}
}

// skipDependents recursively marks all downstream stages as failed.
func (e *Executor) skipDependents(ctx context.Context, n *node) {
	logger := ctxlog.FromContext(ctx)
	for _, dependent := range n.dependents {
		dependent.skipOnce.Do(func() {
			logger.Warn("Skipping stage due to upstream failure.",
				"stage", dependent.stage.ID, "dependency", n.stage.ID)
			dependent.state.Store(stateFailed)
			dependent.err = &skipSentinel{upstream: n.stage.ID}
			e.wg.Done()
			e.skipDependents(ctx, dependent)
		})
	}
}
