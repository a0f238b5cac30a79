package prover

import (
	"context"
	"fmt"
	"time"

	"github.com/colorfulnotion/nftrollup/common"
	"github.com/colorfulnotion/nftrollup/log"
	"github.com/colorfulnotion/nftrollup/rollup"
	"github.com/colorfulnotion/nftrollup/rolluperrors"
	"github.com/colorfulnotion/nftrollup/types"
)

var (
	batchTag = []byte("nftrollup/batch")
	mergeTag = []byte("nftrollup/merge")
)

// ReplayProver checks a batch by re-executing it exactly as a circuit would,
// from the recorded witnesses alone, and attests with a keyed Blake2b digest
// over the statement. Only a holder of the key can produce a verifying proof.
type ReplayProver struct {
	params rollup.Params
	key    []byte
}

func NewReplayProver(p rollup.Params, key []byte) *ReplayProver {
	return &ReplayProver{params: p, key: append([]byte(nil), key...)}
}

func (r *ReplayProver) Prove(ctx context.Context, transition types.StateTransition, batch types.ActionBatch) (*Proof, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	target, _, err := rollup.Replay(r.params, transition.Source, batch)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", rolluperrors.ErrPProveFailed, err)
	}
	if !target.Equal(transition.Target) {
		return nil, fmt.Errorf("%w: %w: replay reached %s, claimed %s", rolluperrors.ErrPProveFailed, rolluperrors.ErrBTargetMismatch, target, transition.Target)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	proof := &Proof{
		Statement: transition,
		Digest:    r.batchDigest(transition),
		Batches:   1,
	}
	proveDuration.Observe(time.Since(start).Seconds())
	proofsGenerated.WithLabelValues("batch").Inc()
	log.Trace(log.ProverMonitoring, "batch proven", "statement", transition.String(), "digest", proof.Digest.String_short())
	return proof, nil
}

func (r *ReplayProver) Verify(proof *Proof) bool {
	if proof == nil {
		return false
	}
	switch len(proof.Parts) {
	case 0:
		return proof.Digest == r.batchDigest(proof.Statement)
	case 2:
		return proof.Digest == r.mergeDigest(proof.Statement, proof.Parts[0], proof.Parts[1])
	default:
		return false
	}
}

// Merge verifies both inputs and their chaining before attesting the
// combined statement.
func (r *ReplayProver) Merge(ctx context.Context, p1, p2 *Proof) (*Proof, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !r.Verify(p1) {
		return nil, fmt.Errorf("%w: left %s", rolluperrors.ErrPInvalidProof, p1)
	}
	if !r.Verify(p2) {
		return nil, fmt.Errorf("%w: right %s", rolluperrors.ErrPInvalidProof, p2)
	}
	if !p1.Statement.Chains(p2.Statement) {
		return nil, fmt.Errorf("%w: %s then %s", rolluperrors.ErrPChainMismatch, p1.Statement.Target, p2.Statement.Source)
	}
	statement := types.StateTransition{Source: p1.Statement.Source, Target: p2.Statement.Target}
	merged := &Proof{
		Statement: statement,
		Digest:    r.mergeDigest(statement, p1.Digest, p2.Digest),
		Parts:     []common.Hash{p1.Digest, p2.Digest},
		Batches:   p1.Batches + p2.Batches,
		left:      p1,
		right:     p2,
	}
	proofsGenerated.WithLabelValues("merge").Inc()
	return merged, nil
}

func (r *ReplayProver) batchDigest(statement types.StateTransition) common.Hash {
	h := statement.Hash()
	return common.KeyedBlake2Hash(r.key, batchTag, h[:])
}

func (r *ReplayProver) mergeDigest(statement types.StateTransition, left, right common.Hash) common.Hash {
	h := statement.Hash()
	return common.KeyedBlake2Hash(r.key, mergeTag, h[:], left[:], right[:])
}
