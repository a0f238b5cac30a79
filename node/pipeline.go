// Package node wires the anchored ledger, the indexer and the prover into
// the rollup pipeline and runs it periodically.
package node

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/colorfulnotion/nftrollup/anchor"
	"github.com/colorfulnotion/nftrollup/common"
	"github.com/colorfulnotion/nftrollup/config"
	"github.com/colorfulnotion/nftrollup/indexer"
	"github.com/colorfulnotion/nftrollup/log"
	"github.com/colorfulnotion/nftrollup/prover"
	"github.com/colorfulnotion/nftrollup/rollup"
	"github.com/colorfulnotion/nftrollup/rolluperrors"
	"github.com/colorfulnotion/nftrollup/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("nftrollup/node")

// Report summarises one pipeline run.
type Report struct {
	Actions   int               `json:"actions"`
	Batches   int               `json:"batches"`
	Proven    int               `json:"proven"`
	Outcomes  map[string]int    `json:"outcomes"`
	Source    types.LedgerState `json:"source"`
	Committed types.LedgerState `json:"committed"`
	Proof     *prover.Proof     `json:"proof,omitempty"`
}

type Pipeline struct {
	mu sync.Mutex

	params  rollup.Params
	cfg     config.Config
	ledger  *anchor.Ledger
	indexer *indexer.Indexer
	prover  prover.Prover
	merger  *prover.Merger
	builder *rollup.BatchBuilder

	halted error
}

func NewPipeline(p rollup.Params, cfg config.Config, ledger *anchor.Ledger, ix *indexer.Indexer, pr prover.Prover) *Pipeline {
	return &Pipeline{
		params:  p,
		cfg:     cfg,
		ledger:  ledger,
		indexer: ix,
		prover:  pr,
		merger:  prover.NewMerger(pr),
		builder: rollup.NewBatchBuilder(p),
	}
}

// Halted returns the consistency failure that stopped the pipeline, if any.
func (pl *Pipeline) Halted() error {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	return pl.halted
}

// RunOnce rolls up at most MaxActionsPerCall pending actions: it builds
// batches on witnesses from the indexer, proves them concurrently, merges
// the proofs in order, commits, and checks the indexer against the result.
// A nil report with a nil error means nothing was pending.
func (pl *Pipeline) RunOnce(ctx context.Context) (*Report, error) {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	if pl.halted != nil {
		return nil, fmt.Errorf("%w: %w", rolluperrors.ErrIHalted, pl.halted)
	}
	ctx, span := tracer.Start(ctx, "pipeline.RunOnce")
	defer span.End()

	anchored := pl.ledger.State()
	if _, err := pl.indexer.Sync(ctx, pl.ledger, anchored); err != nil {
		return nil, pl.checkHalt(err)
	}

	actions, err := pl.ledger.GetActions(anchored.ActionsCursor, common.Hash{})
	if err != nil {
		return nil, err
	}
	if len(actions) == 0 {
		return nil, nil
	}
	span.SetAttributes(attribute.Int("actions", len(actions)))

	batches, err := pl.build(ctx, anchored, actions)
	if err != nil {
		return nil, err
	}
	report := &Report{
		Actions:  len(actions),
		Batches:  len(batches),
		Outcomes: make(map[string]int),
		Source:   anchored,
	}
	for _, b := range batches {
		for _, o := range b.Outcomes {
			report.Outcomes[o.String()]++
		}
	}

	proofs, proveErr := pl.proveAll(ctx, batches)
	report.Proven = len(proofs)
	if len(proofs) == 0 {
		return report, proveErr
	}

	mctx, mspan := tracer.Start(ctx, "pipeline.merge")
	merged, err := pl.merger.MergeAll(mctx, pl.cfg.MergeStrategy, proofs)
	mspan.End()
	if err != nil {
		return report, err
	}
	report.Proof = merged

	cctx, cspan := tracer.Start(ctx, "pipeline.commit")
	err = pl.ledger.Commit(cctx, merged)
	cspan.End()
	if err != nil {
		return report, err
	}
	committed := pl.ledger.State()
	report.Committed = committed
	pipelineRuns.Inc()

	if _, err := pl.indexer.Sync(ctx, pl.ledger, committed); err != nil {
		return report, pl.checkHalt(err)
	}
	log.Info(log.NodeMonitoring, "rollup committed", "actions", len(actions), "batches", len(batches),
		"proven", len(proofs), "index", committed.CurrentIndex, "root", common.Str(committed.Commitment))
	return report, proveErr
}

func (pl *Pipeline) build(ctx context.Context, anchored types.LedgerState, actions []types.Action) ([]*rollup.Batch, error) {
	_, span := tracer.Start(ctx, "pipeline.build")
	defer span.End()
	tree, err := rollup.WorkingTree(pl.params, pl.indexer, anchored, actions)
	if err != nil {
		return nil, err
	}
	return pl.builder.BuildBatches(anchored, actions, tree)
}

// proveAll proves every batch concurrently, each under its own timeout. It
// returns the proofs of the longest prefix that proved, since a later batch
// cannot be committed without the ones before it.
func (pl *Pipeline) proveAll(ctx context.Context, batches []*rollup.Batch) ([]*prover.Proof, error) {
	proofs := make([]*prover.Proof, len(batches))
	errs := make([]error, len(batches))

	var g errgroup.Group
	limit := pl.cfg.ProveConcurrency
	if limit < 1 {
		limit = 1
	}
	g.SetLimit(limit)
	for i, b := range batches {
		g.Go(func() error {
			bctx, cancel := context.WithTimeout(ctx, pl.proveTimeout())
			defer cancel()
			bctx, span := tracer.Start(bctx, "pipeline.prove")
			span.SetAttributes(attribute.Int("batch", i), attribute.Int("real", b.Real()))
			defer span.End()

			start := time.Now()
			proof, err := pl.prover.Prove(bctx, b.Transition, b.Actions)
			if err != nil {
				errs[i] = fmt.Errorf("batch %d: %w", i, err)
				batchFailures.Inc()
				log.Warn(log.ProverMonitoring, "batch proof failed", "batch", i, "err", err)
				return nil
			}
			batchProveDuration.Observe(time.Since(start).Seconds())
			proofs[i] = proof
			return nil
		})
	}
	_ = g.Wait()

	for i := range batches {
		if errs[i] != nil {
			return proofs[:i], errors.Join(errs...)
		}
	}
	return proofs, nil
}

func (pl *Pipeline) proveTimeout() time.Duration {
	if pl.cfg.ProveTimeout <= 0 {
		return time.Minute
	}
	return pl.cfg.ProveTimeout
}

// checkHalt latches a divergence so no further batch is submitted.
func (pl *Pipeline) checkHalt(err error) error {
	if errors.Is(err, rolluperrors.ErrIRootDivergence) {
		pl.halted = err
		log.Error(log.NodeMonitoring, "pipeline halted", "err", err)
		return fmt.Errorf("%w: %w", rolluperrors.ErrIHalted, err)
	}
	return err
}
