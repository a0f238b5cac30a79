package indexer

import (
	"encoding/json"
	"fmt"

	"github.com/colorfulnotion/nftrollup/types"
	"github.com/yudai/gojsondiff"
	"github.com/yudai/gojsondiff/formatter"
)

// DiffStates renders the field-level difference between an expected and an
// actual state, empty when they match.
func DiffStates(expected, actual types.LedgerState) string {
	expJSON, err := json.Marshal(expected)
	if err != nil {
		return fmt.Sprintf("(error encoding expected state: %v)", err)
	}
	actJSON, err := json.Marshal(actual)
	if err != nil {
		return fmt.Sprintf("(error encoding actual state: %v)", err)
	}

	differ := gojsondiff.New()
	delta, err := differ.Compare(expJSON, actJSON)
	if err != nil {
		return fmt.Sprintf("(error diffing JSON: %v)", err)
	}
	if !delta.Modified() {
		return ""
	}

	var leftObj interface{}
	_ = json.Unmarshal(expJSON, &leftObj)
	cfg := formatter.AsciiFormatterConfig{
		ShowArrayIndex: true,
		Coloring:       false,
	}
	asciiDiff, err := formatter.NewAsciiFormatter(leftObj, cfg).Format(delta)
	if err != nil {
		return fmt.Sprintf("(error formatting diff: %v)", err)
	}
	return asciiDiff
}
