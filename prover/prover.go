// Package prover proves batch transitions and merges adjacent proofs.
package prover

import (
	"context"
	"fmt"

	"github.com/colorfulnotion/nftrollup/common"
	"github.com/colorfulnotion/nftrollup/types"
)

// Proof attests that Statement holds. A batch proof covers one ActionBatch,
// a merged proof covers the concatenation of its parts.
type Proof struct {
	Statement types.StateTransition `json:"statement"`
	Digest    common.Hash           `json:"digest"`
	// Parts are the digests of the two merged proofs, empty for a batch proof.
	Parts   []common.Hash `json:"parts,omitempty"`
	Batches int           `json:"batches"`

	left, right *Proof
}

func (p *Proof) IsMerged() bool {
	return len(p.Parts) == 2
}

// Children returns the two proofs merged into p, nil for a batch proof or a
// proof that was deserialized.
func (p *Proof) Children() (*Proof, *Proof) {
	return p.left, p.right
}

func (p *Proof) String() string {
	return fmt.Sprintf("proof{%s batches=%d digest=%s}", p.Statement, p.Batches, p.Digest.String_short())
}

// Prover is the proving engine. Prove and Merge may be slow and must honour
// ctx cancellation.
type Prover interface {
	Prove(ctx context.Context, transition types.StateTransition, batch types.ActionBatch) (*Proof, error)
	Verify(proof *Proof) bool
	Merge(ctx context.Context, p1, p2 *Proof) (*Proof, error)
}
