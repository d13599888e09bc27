// Copyright (c) 2025 Justin Cranford

package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"time"

	"github.com/CohesiumAI/openclaw-sub001/internal/shared/gatewayerr"
)

// SelfSignedCert is a freshly minted self-signed leaf certificate and its
// private key, PEM-encoded.
type SelfSignedCert struct {
	CertPEM []byte
	KeyPEM  []byte
}

// GenerateSelfSignedCert mints an RSA-2048 self-signed leaf certificate for
// cn, valid for days, with issuer==subject and SANs
// DNS:localhost, IP:127.0.0.1, IP:::1, per spec.md §4.1.
func GenerateSelfSignedCert(cn string, days int) (*SelfSignedCert, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, gatewayerr.Wrap(gatewayerr.KindFatal, "generate rsa key", err)
	}

	serial := make([]byte, 16)
	if _, err := rand.Read(serial); err != nil {
		return nil, gatewayerr.Wrap(gatewayerr.KindFatal, "generate serial", err)
	}
	serialNumber := new(big.Int).SetBytes(serial)

	now := time.Now().UTC()
	template := &x509.Certificate{
		SerialNumber:          serialNumber,
		Subject:               pkix.Name{CommonName: cn},
		Issuer:                pkix.Name{CommonName: cn},
		NotBefore:             now,
		NotAfter:              now.AddDate(0, 0, days),
		SignatureAlgorithm:    x509.SHA256WithRSA,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
		DNSNames:              []string{"localhost"},
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1"), net.ParseIP("::1")},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, gatewayerr.Wrap(gatewayerr.KindFatal, "create certificate", err)
	}

	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, gatewayerr.Wrap(gatewayerr.KindFatal, "marshal private key", err)
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER})

	return &SelfSignedCert{CertPEM: certPEM, KeyPEM: keyPEM}, nil
}
