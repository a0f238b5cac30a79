package main

import (
	"context"
	"fmt"

	"github.com/colorfulnotion/nftrollup/common"
	"github.com/colorfulnotion/nftrollup/config"
	"github.com/colorfulnotion/nftrollup/prover"
	"github.com/colorfulnotion/nftrollup/types"
)

func runDemo(ctx context.Context, cfg config.Config, mints, transfers int) error {
	s, err := openStack(cfg)
	if err != nil {
		return err
	}
	defer s.Close()
	fmt.Printf("Ledger %s (%s): %s\n", s.ledger.Name(), s.ledger.Symbol(), s.params)

	fmt.Printf("\n[1/4] Minting %d assets...\n", mints)
	for i := 0; i < mints; i++ {
		a, err := types.NewAsset(fmt.Sprintf("nft #%d", i), common.GetDevAccount(i))
		if err != nil {
			return err
		}
		if _, err := s.ledger.Mint(a); err != nil {
			return err
		}
	}

	fmt.Printf("\n[2/4] Rolling up...\n")
	if err := s.rollupAll(ctx); err != nil {
		return err
	}

	n := transfers
	if minted := int(s.ledger.State().CurrentIndex); n > minted {
		n = minted
	}
	fmt.Printf("\n[3/4] Transferring %d assets...\n", n)
	var stale types.Asset
	for id := uint64(1); id <= uint64(n); id++ {
		a, err := s.indexer.GetAsset(id)
		if err != nil {
			return err
		}
		if id == 1 {
			stale = a
		}
		if _, err := s.ledger.Transfer(a, a.Owner, otherAccount(a.Owner, int(id))); err != nil {
			return err
		}
	}
	if n > 0 {
		// replays a claim on a record the first transfer replaces
		if _, err := s.ledger.Transfer(stale, stale.Owner, otherAccount(stale.Owner, 3)); err != nil {
			return err
		}
	}

	fmt.Printf("\n[4/4] Rolling up...\n")
	if err := s.rollupAll(ctx); err != nil {
		return err
	}
	for id := uint64(1); id <= uint64(n); id++ {
		a, err := s.indexer.GetAsset(id)
		if err != nil {
			return err
		}
		fmt.Printf("  asset %d %q owned by %s\n", a.ID, a.ContentString(), a.Owner.Hex())
	}
	fmt.Printf("\n✓ Anchored %s\n", s.ledger.State())
	return nil
}

// otherAccount picks a dev account, starting at seed, that is not owner.
func otherAccount(owner common.Address, seed int) common.Address {
	for i := seed; ; i++ {
		if a := common.GetDevAccount(i); a != owner {
			return a
		}
	}
}

// rollupAll runs the pipeline until the log is drained and checks the
// indexer against every commit.
func (s *stack) rollupAll(ctx context.Context) error {
	for {
		report, err := s.pipeline.RunOnce(ctx)
		if err != nil {
			return err
		}
		if report == nil {
			return nil
		}
		fmt.Printf("  %d actions in %d batches %v\n", report.Actions, report.Batches, report.Outcomes)
		fmt.Print(prover.RenderMergeTree(report.Proof))
		if !s.indexer.State().Equal(s.ledger.State()) {
			return fmt.Errorf("indexer at %s, anchor at %s", s.indexer.State(), s.ledger.State())
		}
		fmt.Printf("  ✓ committed %s, indexer agrees\n", report.Committed)
	}
}
