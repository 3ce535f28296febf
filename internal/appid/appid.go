// Package appid resolves the photofx application identity: binary name, env
// prefix, config name and telemetry namespace.
//
// A .fulmen/app.yaml found from the working directory (or the file named by
// FULMEN_APP_IDENTITY_PATH) takes precedence. The copy embedded here keeps a
// standalone binary working anywhere.
package appid

import (
	"context"
	_ "embed"

	"github.com/fulmenhq/gofulmen/appidentity"
)

// Values used when no identity can be resolved at all.
const (
	DefaultBinaryName = "photofx"
	DefaultEnvPrefix  = "PHOTOFX_"
)

//go:embed app.yaml
var embeddedYAML []byte

func init() {
	_ = appidentity.RegisterEmbeddedIdentityYAML(embeddedYAML)
}

// Get returns the resolved identity.
func Get(ctx context.Context) (*appidentity.Identity, error) {
	return appidentity.Get(ctx)
}

// EnvPrefix returns the identity's env prefix, or DefaultEnvPrefix.
func EnvPrefix(ctx context.Context) string {
	if identity, err := Get(ctx); err == nil && identity != nil && identity.EnvPrefix != "" {
		return identity.EnvPrefix
	}
	return DefaultEnvPrefix
}

// BinaryName returns the identity's binary name, or DefaultBinaryName.
func BinaryName(ctx context.Context) string {
	if identity, err := Get(ctx); err == nil && identity != nil && identity.BinaryName != "" {
		return identity.BinaryName
	}
	return DefaultBinaryName
}
