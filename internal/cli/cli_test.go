package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	t.Cleanup(func() { rootCmd.SetOut(nil) })
	err := ExecuteArgs(args)
	return out.String(), err
}

func TestMaintenanceCommands(t *testing.T) {
	t.Setenv("AUTH_SECRET", "cli-secret")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", "file:"+filepath.Join(t.TempDir(), "cli.db")+"?_pragma=foreign_keys(1)")

	_, err := run(t, "migrate")
	require.NoError(t, err)

	out, err := run(t, "bootstrap-admin", "--email", "Root@Example.com", "--password", "pw")
	require.NoError(t, err)
	assert.Contains(t, out, "administrator root@example.com created")

	_, err = run(t, "bootstrap-admin", "--email", "root@example.com", "--password", "pw")
	assert.Error(t, err)

	out, err = run(t, "ban-user", "root@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "banned")

	_, err = run(t, "ban-user", "ghost@example.com")
	assert.ErrorContains(t, err, "not found")

	out, err = run(t, "sweep-sessions")
	require.NoError(t, err)
	assert.Contains(t, out, "0 sessions deleted")
}
