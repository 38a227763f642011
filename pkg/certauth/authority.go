package certauth

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// ClockSkew backdates NotBefore so clients with a slow clock accept a fresh certificate
	ClockSkew = 24 * time.Hour

	caValidity = 10 * 365 * 24 * time.Hour
)

// Authority is the single trusted local issuer for device certificates
type Authority struct {
	cert         *x509.Certificate
	key          crypto.Signer
	roots        *x509.CertPool
	organization string
}

// EnrollmentRequest carries the device attributes bound into an issued certificate
type EnrollmentRequest struct {
	DeviceName   string
	DeviceType   string
	ComputerName string
	LocalIP      string
}

// IssuedCertificate is returned once to the enrolling device
type IssuedCertificate struct {
	Certificate *x509.Certificate
	CertPEM     string
	KeyPEM      string
	Thumbprint  string
}

// NewAuthority generates an in-memory authority
func NewAuthority(commonName, organization string) (*Authority, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate CA key: %w", err)
	}

	serial, err := randomSerial()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	tmpl := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName:   commonName,
			Organization: []string{organization},
		},
		NotBefore:             now.Add(-ClockSkew),
		NotAfter:              now.Add(caValidity),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, key.Public(), key)
	if err != nil {
		return nil, fmt.Errorf("create CA certificate: %w", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("parse CA certificate: %w", err)
	}

	return newAuthority(cert, key, organization), nil
}

// LoadOrCreateAuthority loads the CA pair from disk, generating and persisting
// a new one when neither file exists yet
func LoadOrCreateAuthority(certFile, keyFile, commonName, organization string) (*Authority, error) {
	_, certErr := os.Stat(certFile)
	_, keyErr := os.Stat(keyFile)
	if errors.Is(certErr, os.ErrNotExist) && errors.Is(keyErr, os.ErrNotExist) {
		a, err := NewAuthority(commonName, organization)
		if err != nil {
			return nil, err
		}
		if err := a.save(certFile, keyFile); err != nil {
			return nil, err
		}
		return a, nil
	}

	certPEM, err := os.ReadFile(certFile)
	if err != nil {
		return nil, fmt.Errorf("read CA certificate: %w", err)
	}
	keyPEM, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("read CA key: %w", err)
	}

	cert, err := ParsePEM(string(certPEM))
	if err != nil {
		return nil, fmt.Errorf("parse CA certificate: %w", err)
	}
	block, _ := pem.Decode(keyPEM)
	if block == nil {
		return nil, errors.New("CA key file holds no PEM block")
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse CA key: %w", err)
	}
	signer, ok := parsed.(crypto.Signer)
	if !ok {
		return nil, errors.New("CA key cannot sign")
	}

	return newAuthority(cert, signer, organization), nil
}

func newAuthority(cert *x509.Certificate, key crypto.Signer, organization string) *Authority {
	roots := x509.NewCertPool()
	roots.AddCert(cert)
	return &Authority{cert: cert, key: key, roots: roots, organization: organization}
}

// Certificate returns the authority's own certificate
func (a *Authority) Certificate() *x509.Certificate {
	return a.cert
}

// Issue signs a client certificate for the device described by req.
// An unparseable local IP is left out of the SAN rather than failing enrollment.
func (a *Authority) Issue(req EnrollmentRequest, now time.Time) (*IssuedCertificate, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate device key: %w", err)
	}

	serial, err := randomSerial()
	if err != nil {
		return nil, err
	}

	subject := pkix.Name{
		CommonName:   req.DeviceName,
		Organization: []string{a.organization},
	}
	if req.DeviceType != "" {
		subject.OrganizationalUnit = []string{req.DeviceType}
	}

	tmpl := &x509.Certificate{
		SerialNumber: serial,
		Subject:      subject,
		NotBefore:    now.Add(-ClockSkew),
		NotAfter:     now.AddDate(1, 0, 0),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}
	if name := strings.TrimSpace(req.ComputerName); name != "" {
		tmpl.DNSNames = []string{name}
	}
	if ip := net.ParseIP(strings.TrimSpace(req.LocalIP)); ip != nil {
		tmpl.IPAddresses = []net.IP{ip}
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, a.cert, key.Public(), a.key)
	if err != nil {
		return nil, fmt.Errorf("sign device certificate: %w", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("parse device certificate: %w", err)
	}

	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("marshal device key: %w", err)
	}

	return &IssuedCertificate{
		Certificate: cert,
		CertPEM:     string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})),
		KeyPEM:      string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER})),
		Thumbprint:  Thumbprint(cert),
	}, nil
}

func (a *Authority) save(certFile, keyFile string) error {
	keyDER, err := x509.MarshalPKCS8PrivateKey(a.key)
	if err != nil {
		return fmt.Errorf("marshal CA key: %w", err)
	}

	for _, f := range []string{certFile, keyFile} {
		if dir := filepath.Dir(f); dir != "" {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return fmt.Errorf("create CA directory: %w", err)
			}
		}
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: a.cert.Raw})
	if err := os.WriteFile(certFile, certPEM, 0o644); err != nil {
		return fmt.Errorf("write CA certificate: %w", err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER})
	if err := os.WriteFile(keyFile, keyPEM, 0o600); err != nil {
		return fmt.Errorf("write CA key: %w", err)
	}
	return nil
}

func randomSerial() (*big.Int, error) {
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("generate serial: %w", err)
	}
	return serial, nil
}
