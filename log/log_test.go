package log

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]string{
		"trace": "trace", "DEBUG": "debug", "info": "info", "warning": "warn", "error": "error", "crit": "crit",
	} {
		lvl, err := ParseLevel(in)
		require.NoError(t, err, in)
		require.Equal(t, want, LevelString(lvl))
	}
	_, err := ParseLevel("loud")
	require.Error(t, err)
}

func TestModuleFiltering(t *testing.T) {
	var buf bytes.Buffer
	prev := Root()
	SetDefault(NewLogger(NewTerminalHandlerWithLevel(&buf, LevelTrace, false)))
	t.Cleanup(func() { SetDefault(prev) })

	DisableModule(IndexerMonitoring)
	Debug(IndexerMonitoring, "hidden debug")
	require.NotContains(t, buf.String(), "hidden debug")

	Info(IndexerMonitoring, "always shown")
	require.Contains(t, buf.String(), "always shown")
	require.Contains(t, buf.String(), IndexerMonitoring)

	EnableModules(" " + IndexerMonitoring + ", ")
	Debug(IndexerMonitoring, "now visible")
	require.Contains(t, buf.String(), "now visible")

	EnableModules("all")
	Trace(ProverMonitoring, "prover trace")
	require.Contains(t, buf.String(), "prover trace")
	DisableModule(ProverMonitoring)
	DisableModule(IndexerMonitoring)
}
