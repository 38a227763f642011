package certauth

import (
	"crypto/sha1"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"net/url"
	"strings"
	"time"
)

// Attribute is a certificate field that may be absent
type Attribute struct {
	Value   string
	Present bool
}

func present(v string) Attribute {
	if v == "" {
		return Attribute{}
	}
	return Attribute{Value: v, Present: true}
}

func (a Attribute) String() string {
	return a.Value
}

// DeviceIdentity is what a device certificate says about its holder
type DeviceIdentity struct {
	DeviceID     string
	DeviceName   Attribute
	DeviceType   Attribute
	ComputerName Attribute
	LocalIP      Attribute
	IssuedAt     time.Time
	ExpiresAt    time.Time
}

// ParseIdentity reads device attributes from the subject (CN, OU) and the
// subject alternative names (DNS, IP). Missing fields come back not Present.
func ParseIdentity(cert *x509.Certificate) DeviceIdentity {
	if cert == nil {
		return DeviceIdentity{}
	}

	id := DeviceIdentity{
		DeviceID:   Thumbprint(cert),
		DeviceName: present(cert.Subject.CommonName),
		IssuedAt:   cert.NotBefore,
		ExpiresAt:  cert.NotAfter,
	}
	if len(cert.Subject.OrganizationalUnit) > 0 {
		id.DeviceType = present(cert.Subject.OrganizationalUnit[0])
	}
	if len(cert.DNSNames) > 0 {
		id.ComputerName = present(cert.DNSNames[0])
	}
	if len(cert.IPAddresses) > 0 {
		id.LocalIP = present(cert.IPAddresses[0].String())
	}
	return id
}

// Thumbprint is the uppercase hex SHA-1 of the DER encoding
func Thumbprint(cert *x509.Certificate) string {
	sum := sha1.Sum(cert.Raw)
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// ParsePEM decodes a single PEM certificate. Input that arrives percent-escaped,
// as TLS-terminating proxies forward it, is unescaped first. A literal '+'
// belongs to the base64 body and is kept.
func ParsePEM(s string) (*x509.Certificate, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "%") {
		if unescaped, err := url.PathUnescape(s); err == nil {
			s = unescaped
		}
	}

	block, _ := pem.Decode([]byte(s))
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, errors.New("no PEM certificate found")
	}
	return x509.ParseCertificate(block.Bytes)
}
