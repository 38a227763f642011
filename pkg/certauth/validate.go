package certauth

import (
	"bytes"
	"crypto/x509"
	"errors"
	"fmt"
	"time"
)

var (
	ErrMalformed       = errors.New("certificate missing or malformed")
	ErrExpired         = errors.New("certificate expired")
	ErrNotYetValid     = errors.New("certificate not yet valid")
	ErrUntrustedIssuer = errors.New("certificate not issued by the trusted authority")
	ErrChainInvalid    = errors.New("certificate chain verification failed")
)

// Validate checks cert against the authority at the given instant.
// It never consults a revocation server; callers layer their own deny-list on top.
func (a *Authority) Validate(cert *x509.Certificate, now time.Time) error {
	if cert == nil || len(cert.Raw) == 0 {
		return ErrMalformed
	}
	if now.After(cert.NotAfter) {
		return ErrExpired
	}
	if now.Before(cert.NotBefore) {
		return ErrNotYetValid
	}
	if !bytes.Equal(cert.RawIssuer, a.cert.RawSubject) {
		return ErrUntrustedIssuer
	}

	_, err := cert.Verify(x509.VerifyOptions{
		Roots:       a.roots,
		CurrentTime: now,
		KeyUsages:   []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrChainInvalid, err)
	}
	return nil
}
