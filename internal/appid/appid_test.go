package appid

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/fulmenhq/gofulmen/appidentity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetIdentity clears gofulmen's cached identity and re-registers the
// embedded copy.
func resetIdentity(t *testing.T) {
	t.Helper()

	appidentity.Reset()
	require.NoError(t, appidentity.RegisterEmbeddedIdentityYAML(embeddedYAML))
	t.Cleanup(func() { appidentity.Reset() })
}

func chdirTemp(t *testing.T) {
	t.Helper()

	oldWD, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Chdir(oldWD) })
	require.NoError(t, os.Chdir(t.TempDir()))
}

func TestEmbeddedIdentityOutsideRepo(t *testing.T) {
	resetIdentity(t)
	t.Setenv(appidentity.EnvIdentityPath, "")
	chdirTemp(t)

	identity, err := Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "photofx", identity.BinaryName)
	assert.Equal(t, "PHOTOFX_", identity.EnvPrefix)
	assert.Equal(t, "photofx", identity.ConfigName)

	assert.Equal(t, "PHOTOFX_", EnvPrefix(context.Background()))
	assert.Equal(t, "photofx", BinaryName(context.Background()))
}

func TestExplicitIdentityPathIsAuthoritative(t *testing.T) {
	resetIdentity(t)
	t.Setenv(appidentity.EnvIdentityPath, filepath.Join(t.TempDir(), "missing-app.yaml"))

	_, err := Get(context.Background())
	require.Error(t, err)

	var notFound *appidentity.NotFoundError
	assert.True(t, errors.As(err, &notFound), "expected NotFoundError, got %T: %v", err, err)

	assert.Equal(t, DefaultEnvPrefix, EnvPrefix(context.Background()))
	assert.Equal(t, DefaultBinaryName, BinaryName(context.Background()))
}
