package rolluperrors

import (
	"errors"
	"strings"
)

// Ledger (L) Errors
var (
	ErrLStaleWitness   = errors.New("L1|StaleWitness: Witness does not open to the current root.")
	ErrLWitnessIndex   = errors.New("L2|WitnessIndex: Witness was produced for a different leaf index.")
	ErrLWitnessShape   = errors.New("L3|WitnessShape: Witness path length does not match the tree height.")
	ErrLUntrackedIndex = errors.New("L4|UntrackedIndex: Leaf index was not collected into the partial tree.")
	ErrLCorruptNode    = errors.New("L5|CorruptNode: Stored tree node has an unexpected encoding.")
	ErrLBranchConflict = errors.New("L6|BranchConflict: Two branches disagree on a shared node.")
)

// Action log (A) Errors
var (
	ErrAUnknownCursor      = errors.New("A1|UnknownCursor: Actions cursor is not part of the log.")
	ErrACursorOrder        = errors.New("A2|CursorOrder: End cursor precedes the start cursor.")
	ErrAMintAssigned       = errors.New("A3|MintAssigned: Mint carries an asset that already has an id.")
	ErrATransferUnassigned = errors.New("A4|TransferUnassigned: Transfer carries an asset without an id.")
	ErrATransferSameOwner  = errors.New("A5|TransferSameOwner: Transfer receiver equals the current owner.")
	ErrADummyDispatch      = errors.New("A6|DummyDispatch: Padding actions cannot be dispatched.")
	ErrACorruptEntry       = errors.New("A7|CorruptEntry: Persisted action entry cannot be decoded.")
)

// Batch (B) Errors
var (
	ErrBBatchTooLarge  = errors.New("B1|BatchTooLarge: More actions supplied than the batch size.")
	ErrBBatchShape     = errors.New("B2|BatchShape: Action batch does not hold exactly batch-size entries.")
	ErrBTargetMismatch = errors.New("B3|TargetMismatch: Replaying the batch does not reach the claimed target.")
	ErrBRootMismatch   = errors.New("B4|RootMismatch: Ledger update produced a root different from the transition.")
)

// Proof (P) Errors
var (
	ErrPInvalidProof   = errors.New("P1|InvalidProof: Proof does not verify against its statement.")
	ErrPChainMismatch  = errors.New("P2|ChainMismatch: Left proof target differs from right proof source.")
	ErrPNoProofs       = errors.New("P3|NoProofs: Nothing to merge.")
	ErrPSourceMismatch = errors.New("P4|SourceMismatch: Proof source differs from the anchored state.")
	ErrPProveFailed    = errors.New("P5|ProveFailed: Proving a batch failed.")
)

// Indexer (I) Errors
var (
	ErrIRootDivergence = errors.New("I1|RootDivergence: Indexer root differs from the proof-committed root.")
	ErrIHalted         = errors.New("I2|Halted: Pipeline halted after a consistency failure.")
	ErrIAssetNotFound  = errors.New("I3|AssetNotFound: No asset is stored at this index.")
	ErrICursorMismatch = errors.New("I4|CursorMismatch: Indexer cursor is not an ancestor of the anchored cursor.")
	ErrIClosed         = errors.New("I5|Closed: Indexer has been closed.")
)

// Config (C) Errors
var (
	ErrCTreeHeight    = errors.New("C1|TreeHeight: Tree height must be between 1 and 63.")
	ErrCSupply        = errors.New("C2|Supply: Supply must be positive and below 2^height.")
	ErrCBatchSize     = errors.New("C3|BatchSize: Batch size must be positive.")
	ErrCMaxActions    = errors.New("C4|MaxActions: Max actions per call must be at least the batch size.")
	ErrCHashScheme    = errors.New("C5|HashScheme: Unknown hash scheme.")
	ErrCMergeStrategy = errors.New("C6|MergeStrategy: Unknown merge strategy.")
)

// GetErrorName extracts the error name from the error message.
func GetErrorName(err error) string {
	if err == nil {
		return "No Error"
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "|") || !strings.Contains(errStr, ":") {
		return errStr
	}
	parts := strings.SplitN(errStr, "|", 2)
	if len(parts) < 2 {
		return errStr
	}
	nameDesc := parts[1]
	// Split on ':' to separate the error name from its description.
	nameParts := strings.SplitN(nameDesc, ":", 2)
	if len(nameParts) < 1 {
		return errStr
	}
	return strings.TrimSpace(nameParts[0])
}

// GetErrorCode extracts the error code from the error message.
func GetErrorCode(err error) string {
	if err == nil {
		return ""
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "|") {
		return ""
	}
	parts := strings.SplitN(errStr, "|", 2)
	code := strings.TrimSpace(parts[0])
	// wrapped errors carry a "context: " prefix in front of the code
	if i := strings.LastIndex(code, ": "); i >= 0 {
		code = code[i+2:]
	}
	return code
}

// GetErrorCodeWithName returns the error code and name in the format "Code_ErrorName".
func GetErrorCodeWithName(err error) string {
	code := GetErrorCode(err)
	name := GetErrorName(err)
	if code == "" || name == "" {
		return ""
	}
	return code + "_" + name
}
