package bundleserve

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	cerrors "cloudeng.io/errors"
	"cloudeng.io/webapp"
	"golang.org/x/crypto/pkcs12"
)

// minCertValidity is the remaining lifetime below which a cached
// self-signed certificate is regenerated.
const minCertValidity = 24 * time.Hour

// TLS selects how the server secures its listener. It is a closed set:
// [PlainHTTP], [KeyCertTLS], [PfxTLS] and [SelfSignedTLS].
type TLS interface {
	// Scheme returns "http" or "https".
	Scheme() string

	isTLS()
}

// PlainHTTP serves without TLS. It is the default.
type PlainHTTP struct{}

// KeyCertTLS serves HTTPS with a PEM encoded private key and certificate.
type KeyCertTLS struct {
	KeyFile  string
	CertFile string
}

// PfxTLS serves HTTPS with a PKCS#12 bundle holding key and certificate.
type PfxTLS struct {
	File     string
	Password string
}

// SelfSignedTLS serves HTTPS with a generated certificate for localhost.
//
// The key and certificate are written to Dir and reused on later starts.
// An empty Dir uses "bundleserve/certs" under the user cache directory.
type SelfSignedTLS struct {
	Dir string
}

// NoTLS returns the plain HTTP mode.
func NoTLS() TLS { return PlainHTTP{} }

// KeyCert returns a mode serving HTTPS from PEM key and certificate files.
func KeyCert(keyFile, certFile string) TLS {
	return KeyCertTLS{KeyFile: keyFile, CertFile: certFile}
}

// Pfx returns a mode serving HTTPS from a PKCS#12 bundle.
func Pfx(file, password string) TLS {
	return PfxTLS{File: file, Password: password}
}

// SelfSigned returns a mode serving HTTPS from a generated localhost
// certificate cached in dir.
func SelfSigned(dir string) TLS {
	return SelfSignedTLS{Dir: dir}
}

func (PlainHTTP) Scheme() string     { return "http" }
func (KeyCertTLS) Scheme() string    { return "https" }
func (PfxTLS) Scheme() string        { return "https" }
func (SelfSignedTLS) Scheme() string { return "https" }

func (PlainHTTP) isTLS()     {}
func (KeyCertTLS) isTLS()    {}
func (PfxTLS) isTLS()        {}
func (SelfSignedTLS) isTLS() {}

// validateTLS rejects incomplete variants before any file is touched.
func validateTLS(t TLS) error {
	switch v := t.(type) {
	case PlainHTTP, SelfSignedTLS:
		return nil
	case KeyCertTLS:
		if v.KeyFile == "" || v.CertFile == "" {
			return fmt.Errorf("key-cert tls requires both a key and a certificate file: %w", ErrNoCredentials)
		}
		return nil
	case PfxTLS:
		if v.File == "" {
			return fmt.Errorf("pfx tls requires a bundle file: %w", ErrNoCredentials)
		}
		return nil
	case nil:
		return errors.New("tls mode cannot be nil")
	default:
		return fmt.Errorf("unsupported tls mode %T", t)
	}
}

// loadTLSConfig reads the credentials for t. It returns a nil config for
// [PlainHTTP]. Credential failures are reported as *CredentialLoadError.
func loadTLSConfig(t TLS) (*tls.Config, error) {
	switch v := t.(type) {
	case PlainHTTP:
		return nil, nil
	case KeyCertTLS:
		return loadKeyCert(v)
	case PfxTLS:
		return loadPfx(v)
	case SelfSignedTLS:
		return loadSelfSigned(v)
	default:
		return nil, fmt.Errorf("unsupported tls mode %T", t)
	}
}

func loadKeyCert(v KeyCertTLS) (*tls.Config, error) {
	var errs cerrors.M
	keyPEM, err := os.ReadFile(v.KeyFile)
	if err != nil {
		errs.Append(&CredentialLoadError{Mode: "key-cert", Path: v.KeyFile, Err: err})
	}
	certPEM, err := os.ReadFile(v.CertFile)
	if err != nil {
		errs.Append(&CredentialLoadError{Mode: "key-cert", Path: v.CertFile, Err: err})
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, &CredentialLoadError{Mode: "key-cert", Path: v.CertFile, Err: err}
	}
	return newTLSConfig(cert), nil
}

func loadPfx(v PfxTLS) (*tls.Config, error) {
	data, err := os.ReadFile(v.File)
	if err != nil {
		return nil, &CredentialLoadError{Mode: "pfx", Path: v.File, Err: err}
	}

	blocks, err := pkcs12.ToPEM(data, v.Password)
	if err != nil {
		return nil, &CredentialLoadError{Mode: "pfx", Path: v.File, Err: err}
	}

	var certPEM, keyPEM []byte
	for _, b := range blocks {
		switch b.Type {
		case "CERTIFICATE":
			certPEM = append(certPEM, pem.EncodeToMemory(b)...)
		case "PRIVATE KEY":
			keyPEM = append(keyPEM, pem.EncodeToMemory(b)...)
		}
	}

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, &CredentialLoadError{Mode: "pfx", Path: v.File, Err: err}
	}
	return newTLSConfig(cert), nil
}

func loadSelfSigned(v SelfSignedTLS) (*tls.Config, error) {
	dir := v.Dir
	if dir == "" {
		cache, err := os.UserCacheDir()
		if err != nil {
			return nil, &CredentialLoadError{Mode: "self-signed", Path: "(user cache dir)", Err: err}
		}
		dir = filepath.Join(cache, "bundleserve", "certs")
	}
	certFile := filepath.Join(dir, "localhost.crt")
	keyFile := filepath.Join(dir, "localhost.key")

	if !reusableCert(certFile, keyFile) {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, &CredentialLoadError{Mode: "self-signed", Path: dir, Err: err}
		}
		key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			return nil, &CredentialLoadError{Mode: "self-signed", Path: keyFile, Err: err}
		}
		if err := webapp.NewSelfSignedCert(certFile, keyFile,
			webapp.CertPrivateKey(key),
			webapp.CertDNSHosts("localhost"),
			webapp.CertIPAddresses("127.0.0.1", "::1"),
			webapp.CertOrganizations("bundleserve development"),
		); err != nil {
			return nil, &CredentialLoadError{Mode: "self-signed", Path: certFile, Err: err}
		}
	}

	cfg, err := webapp.TLSConfigUsingCertFiles(certFile, keyFile)
	if err != nil {
		return nil, &CredentialLoadError{Mode: "self-signed", Path: certFile, Err: err}
	}
	cfg.MinVersion = tls.VersionTLS12
	return cfg, nil
}

func newTLSConfig(cert tls.Certificate) *tls.Config {
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}
}

// reusableCert reports whether a previously generated pair exists, loads
// and stays valid for at least another day.
func reusableCert(certFile, keyFile string) bool {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil || len(cert.Certificate) == 0 {
		return false
	}
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return false
	}
	return time.Now().Add(minCertValidity).Before(leaf.NotAfter)
}
