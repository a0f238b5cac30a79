package config

import (
	"errors"
	"testing"
	"time"

	"github.com/colorfulnotion/nftrollup/rolluperrors"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	require.Equal(t, 20, c.TreeHeight)
	require.Equal(t, 5, c.BatchSize)
	require.Equal(t, MergeFold, c.MergeStrategy)
	require.Equal(t, 2*time.Minute, c.ProveTimeout)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("NFTROLLUP_TREE_HEIGHT", "8")
	t.Setenv("NFTROLLUP_SUPPLY", "3")
	t.Setenv("NFTROLLUP_BATCH_SIZE", "4")
	t.Setenv("NFTROLLUP_HASH_SCHEME", "mimc")
	t.Setenv("NFTROLLUP_SYNC_INTERVAL", "250ms")

	c, err := Load()
	require.NoError(t, err)
	require.Equal(t, 8, c.TreeHeight)
	require.Equal(t, uint64(3), c.Supply)
	require.Equal(t, 4, c.BatchSize)
	require.Equal(t, "mimc", c.HashScheme)
	require.Equal(t, 250*time.Millisecond, c.SyncInterval)
	require.Equal(t, 100, c.MaxActionsPerCall)
}

func TestLoadRejectsBadEnv(t *testing.T) {
	t.Setenv("NFTROLLUP_TREE_HEIGHT", "tall")
	_, err := Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "parse env:")
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"height zero", func(c *Config) { c.TreeHeight = 0 }, rolluperrors.ErrCTreeHeight},
		{"height too large", func(c *Config) { c.TreeHeight = 64 }, rolluperrors.ErrCTreeHeight},
		{"supply zero", func(c *Config) { c.Supply = 0 }, rolluperrors.ErrCSupply},
		{"supply fills sentinel", func(c *Config) { c.TreeHeight = 4; c.Supply = 16 }, rolluperrors.ErrCSupply},
		{"batch size zero", func(c *Config) { c.BatchSize = 0 }, rolluperrors.ErrCBatchSize},
		{"cap below batch", func(c *Config) { c.BatchSize = 10; c.MaxActionsPerCall = 9 }, rolluperrors.ErrCMaxActions},
		{"hash scheme", func(c *Config) { c.HashScheme = "sha256" }, rolluperrors.ErrCHashScheme},
		{"merge strategy", func(c *Config) { c.MergeStrategy = "random" }, rolluperrors.ErrCMergeStrategy},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := Default()
			tc.mutate(&c)
			err := c.Validate()
			require.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}

	c := Default()
	c.TreeHeight = 4
	c.Supply = 15
	require.NoError(t, c.Validate())
}
