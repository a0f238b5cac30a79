package types

// BatchEntry pairs an action with the witness its transition was evaluated against.
type BatchEntry struct {
	Action  Action        `json:"action"`
	Witness MerkleWitness `json:"witness"`
}

// ActionBatch is the private input of one batch proof. It always holds
// exactly the configured batch size of entries, short runs are padded with
// dummy actions.
type ActionBatch struct {
	Entries []BatchEntry `json:"entries"`
}

func (b ActionBatch) Len() int {
	return len(b.Entries)
}

// RealActions counts the non-padding entries.
func (b ActionBatch) RealActions() int {
	n := 0
	for _, e := range b.Entries {
		if !e.Action.IsDummy() {
			n++
		}
	}
	return n
}
