// Copyright (c) 2025 Justin Cranford

// Package tlsboot manages the gateway's optional self-signed TLS material
// under <stateDir>/gateway/tls/, per spec.md §6.
package tlsboot

import (
	"os"
	"path/filepath"

	"github.com/CohesiumAI/openclaw-sub001/internal/gateway/crypto"
	"github.com/CohesiumAI/openclaw-sub001/internal/shared/gatewayerr"
)

const certValidityDays = 825 // matches common self-signed CA lifetime ceilings

// Paths returns the cert/key file locations under stateDir.
func Paths(stateDir string) (certPath, keyPath string) {
	dir := filepath.Join(stateDir, "gateway", "tls")
	return filepath.Join(dir, "gateway-cert.pem"), filepath.Join(dir, "gateway-key.pem")
}

// Status reports whether TLS material currently exists on disk.
func Status(stateDir string) bool {
	certPath, keyPath := Paths(stateDir)
	_, certErr := os.Stat(certPath)
	_, keyErr := os.Stat(keyPath)
	return certErr == nil && keyErr == nil
}

// Enable generates a fresh self-signed certificate/key pair for cn if none
// exists yet. Calling it when material already exists is a no-op.
func Enable(stateDir, cn string) error {
	if Status(stateDir) {
		return nil
	}
	return Regenerate(stateDir, cn)
}

// Regenerate always (re)generates the certificate/key pair, overwriting any
// existing material. Used by both `tls enable` (first run) and
// `tls regenerate`.
func Regenerate(stateDir, cn string) error {
	cert, err := crypto.GenerateSelfSignedCert(cn, certValidityDays)
	if err != nil {
		return gatewayerr.Wrap(gatewayerr.KindIO, "generate self-signed certificate", err)
	}

	certPath, keyPath := Paths(stateDir)
	if err := os.MkdirAll(filepath.Dir(certPath), 0o700); err != nil {
		return gatewayerr.Wrap(gatewayerr.KindIO, "create tls dir", err)
	}
	if err := os.WriteFile(certPath, cert.CertPEM, 0o600); err != nil {
		return gatewayerr.Wrap(gatewayerr.KindIO, "write tls certificate", err)
	}
	if err := os.WriteFile(keyPath, cert.KeyPEM, 0o600); err != nil {
		return gatewayerr.Wrap(gatewayerr.KindIO, "write tls key", err)
	}
	return nil
}

// Disable removes the TLS material from disk, reverting the gateway to
// plaintext HTTP on next start.
func Disable(stateDir string) error {
	certPath, keyPath := Paths(stateDir)
	if err := os.Remove(certPath); err != nil && !os.IsNotExist(err) {
		return gatewayerr.Wrap(gatewayerr.KindIO, "remove tls certificate", err)
	}
	if err := os.Remove(keyPath); err != nil && !os.IsNotExist(err) {
		return gatewayerr.Wrap(gatewayerr.KindIO, "remove tls key", err)
	}
	return nil
}
