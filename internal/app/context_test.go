package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opsconsole/internal/config"
	"opsconsole/internal/domain"
)

func TestOpenWithoutConfigUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	ac, err := Open(ctx, dir, nil)
	require.NoError(t, err)
	defer ac.Close()

	assert.Equal(t, config.Default(), ac.Config)
	_, err = os.Stat(filepath.Join(dir, ".opsconsole", "opsconsole.db"))
	require.NoError(t, err)

	u, err := ac.ResolveUser(ctx, "")
	require.NoError(t, err)
	again, err := ac.ResolveUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.ID, again.ID)

	_, err = ac.ResolveUser(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestOpenReadsWorkspaceConfig(t *testing.T) {
	dir := t.TempDir()
	_, err := config.WriteDefault(dir, false)
	require.NoError(t, err)
	ac, err := Open(context.Background(), dir, nil)
	require.NoError(t, err)
	defer ac.Close()
	assert.Equal(t, "BLOCKED", ac.Config.Notes.BlockedLabel)
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(config.Path(dir), []byte("limits:\n  title: -1\n"), 0o644))
	_, err := Open(context.Background(), dir, nil)
	assert.Error(t, err)
}
