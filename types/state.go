package types

import (
	"fmt"

	"github.com/colorfulnotion/nftrollup/common"
)

// LedgerState is the anchored summary of the ledger. Values are never mutated
// in place, every transition produces a new one.
type LedgerState struct {
	Commitment    common.Hash `json:"commitment"`
	CurrentIndex  uint64      `json:"currentIndex"`
	ActionsCursor common.Hash `json:"actionsCursor"`
}

func (s LedgerState) Equal(other LedgerState) bool {
	return s.Commitment == other.Commitment &&
		s.CurrentIndex == other.CurrentIndex &&
		s.ActionsCursor == other.ActionsCursor
}

// Hash binds all three fields.
func (s LedgerState) Hash() common.Hash {
	return common.MiMCHash(s.Commitment, common.BytesToHash(common.Uint64ToBytes(s.CurrentIndex)), s.ActionsCursor)
}

func (s LedgerState) String() string {
	return fmt.Sprintf("{root=%s index=%d cursor=%s}", common.Str(s.Commitment), s.CurrentIndex, common.Str(s.ActionsCursor))
}

// StateTransition claims that some sequence of actions moves Source to Target.
type StateTransition struct {
	Source LedgerState `json:"source"`
	Target LedgerState `json:"target"`
}

func (t StateTransition) Hash() common.Hash {
	return common.MiMCHash(t.Source.Hash(), t.Target.Hash())
}

// Chains reports whether next starts where t ends.
func (t StateTransition) Chains(next StateTransition) bool {
	return t.Target.Equal(next.Source)
}

func (t StateTransition) String() string {
	return fmt.Sprintf("%s -> %s", t.Source, t.Target)
}
