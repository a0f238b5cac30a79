package main

import (
	"context"
	"testing"

	"github.com/colorfulnotion/nftrollup/config"
	"github.com/stretchr/testify/require"
)

func TestDemo(t *testing.T) {
	for _, strategy := range []string{config.MergeFold, config.MergeTree} {
		t.Run(strategy, func(t *testing.T) {
			c := config.Default()
			c.TreeHeight = 8
			c.Supply = 12
			c.BatchSize = 4
			c.MaxActionsPerCall = 8
			c.MergeStrategy = strategy
			require.NoError(t, runDemo(context.Background(), c, 15, 6))
		})
	}
}

func TestDemoPersistsAcrossRestarts(t *testing.T) {
	c := config.Default()
	c.TreeHeight = 6
	c.Supply = 30
	c.BatchSize = 3
	c.DataPath = t.TempDir()
	require.NoError(t, runDemo(context.Background(), c, 4, 2))

	s, err := openStack(c)
	require.NoError(t, err)
	require.Equal(t, uint64(4), s.ledger.State().CurrentIndex)
	require.Equal(t, s.ledger.State(), s.indexer.State())
	s.Close()

	require.NoError(t, runDemo(context.Background(), c, 3, 3))
	s, err = openStack(c)
	require.NoError(t, err)
	defer s.Close()
	require.Equal(t, uint64(7), s.ledger.State().CurrentIndex)
}
