package prover

import (
	"context"
	"fmt"
	"time"

	"github.com/colorfulnotion/nftrollup/config"
	"github.com/colorfulnotion/nftrollup/log"
	"github.com/colorfulnotion/nftrollup/rolluperrors"
	"github.com/xlab/treeprint"
	"golang.org/x/sync/errgroup"
)

// Merger combines adjacent proofs. Every step refuses to run unless the
// left target equals the right source.
type Merger struct {
	prover Prover
}

func NewMerger(p Prover) *Merger {
	return &Merger{prover: p}
}

// Merge proves {p1.Source -> p2.Target}.
func (m *Merger) Merge(ctx context.Context, p1, p2 *Proof) (*Proof, error) {
	if p1 == nil || p2 == nil {
		return nil, rolluperrors.ErrPNoProofs
	}
	if !p1.Statement.Chains(p2.Statement) {
		mergeFailures.Inc()
		return nil, fmt.Errorf("%w: %s then %s", rolluperrors.ErrPChainMismatch, p1.Statement.Target, p2.Statement.Source)
	}
	start := time.Now()
	merged, err := m.prover.Merge(ctx, p1, p2)
	if err != nil {
		mergeFailures.Inc()
		return nil, err
	}
	mergeDuration.Observe(time.Since(start).Seconds())
	return merged, nil
}

// FoldLeft merges proofs sequentially: ((p0 p1) p2) ...
func (m *Merger) FoldLeft(ctx context.Context, proofs []*Proof) (*Proof, error) {
	if len(proofs) == 0 {
		return nil, rolluperrors.ErrPNoProofs
	}
	acc := proofs[0]
	for i, p := range proofs[1:] {
		merged, err := m.Merge(ctx, acc, p)
		if err != nil {
			return nil, fmt.Errorf("fold step %d: %w", i+1, err)
		}
		acc = merged
	}
	return acc, nil
}

// MergeTree merges proofs pairwise in a balanced tree that keeps their
// order. Both halves of every level are merged concurrently.
func (m *Merger) MergeTree(ctx context.Context, proofs []*Proof) (*Proof, error) {
	switch len(proofs) {
	case 0:
		return nil, rolluperrors.ErrPNoProofs
	case 1:
		return proofs[0], nil
	}
	mid := len(proofs) / 2
	var left, right *Proof
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		left, err = m.MergeTree(gctx, proofs[:mid])
		return err
	})
	g.Go(func() error {
		var err error
		right, err = m.MergeTree(gctx, proofs[mid:])
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return m.Merge(ctx, left, right)
}

// MergeAll merges with the configured strategy.
func (m *Merger) MergeAll(ctx context.Context, strategy string, proofs []*Proof) (*Proof, error) {
	var (
		merged *Proof
		err    error
	)
	switch strategy {
	case config.MergeFold, "":
		merged, err = m.FoldLeft(ctx, proofs)
	case config.MergeTree:
		merged, err = m.MergeTree(ctx, proofs)
	default:
		return nil, fmt.Errorf("%w: %q", rolluperrors.ErrCMergeStrategy, strategy)
	}
	if err != nil {
		return nil, err
	}
	log.Debug(log.ProverMonitoring, "proofs merged", "strategy", strategy, "batches", merged.Batches, "statement", merged.Statement.String())
	return merged, nil
}

// RenderMergeTree draws how p was assembled from batch proofs.
func RenderMergeTree(p *Proof) string {
	tree := treeprint.NewWithRoot(label(p))
	addChildren(tree, p)
	return tree.String()
}

func addChildren(branch treeprint.Tree, p *Proof) {
	left, right := p.Children()
	for _, c := range []*Proof{left, right} {
		if c == nil {
			continue
		}
		if c.IsMerged() {
			addChildren(branch.AddBranch(label(c)), c)
		} else {
			branch.AddNode(label(c))
		}
	}
}

func label(p *Proof) string {
	return fmt.Sprintf("[%d..%d] %s -> %s (%d batches)",
		p.Statement.Source.CurrentIndex, p.Statement.Target.CurrentIndex,
		p.Statement.Source.Commitment.String_short(), p.Statement.Target.Commitment.String_short(), p.Batches)
}
