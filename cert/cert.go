// Package cert provides the certificate authority the proxy uses to forge
// server certificates for intercepted TLS connections.
package cert

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang/groupcache/lru"
	"github.com/golang/groupcache/singleflight"
)

// CA issues certificates for intercepted hosts.
type CA interface {
	GetRootCA() *x509.Certificate
	GetCert(commonName string) (*tls.Certificate, error)
}

const (
	caName       = "false2true"
	caKeyFile    = "false2true-ca.pem"      // private key and certificate
	caCertFile   = "false2true-ca-cert.pem" // certificate only, for installing in clients
	leafCacheLen = 100
)

var errCANotFound = errors.New("ca not found")

// SelfSignCA is a CA with a self-signed root certificate.
type SelfSignCA struct {
	rsa.PrivateKey
	RootCert  x509.Certificate
	StorePath string

	cache   *lru.Cache
	cacheMu sync.Mutex
	group   *singleflight.Group
}

// NewSelfSignCA loads the root CA stored in path, creating and storing a new
// one when none exists. An empty path selects ~/.false2true.
func NewSelfSignCA(path string) (CA, error) {
	storePath, err := getStorePath(path)
	if err != nil {
		return nil, err
	}

	ca := newCA(storePath)
	if err := ca.load(); err != nil {
		if !errors.Is(err, errCANotFound) {
			return nil, err
		}
		if err := ca.create(); err != nil {
			return nil, err
		}
		if err := ca.save(); err != nil {
			return nil, err
		}
	}
	return ca, nil
}

// NewSelfSignCAMemory creates a root CA that is never written to disk.
func NewSelfSignCAMemory() (CA, error) {
	ca := newCA("")
	if err := ca.create(); err != nil {
		return nil, err
	}
	return ca, nil
}

func newCA(storePath string) *SelfSignCA {
	return &SelfSignCA{
		StorePath: storePath,
		cache:     lru.New(leafCacheLen),
		group:     new(singleflight.Group),
	}
}

func getStorePath(path string) (string, error) {
	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(homeDir, "."+caName)
	}

	if !filepath.IsAbs(path) {
		abs, err := filepath.Abs(path)
		if err != nil {
			return "", err
		}
		path = abs
	}

	if err := os.MkdirAll(path, 0o700); err != nil {
		return "", fmt.Errorf("create cert store %s: %w", path, err)
	}
	return path, nil
}

func (ca *SelfSignCA) caFile() string {
	return filepath.Join(ca.StorePath, caKeyFile)
}

func (ca *SelfSignCA) caCertFile() string {
	return filepath.Join(ca.StorePath, caCertFile)
}

func (ca *SelfSignCA) load() error {
	data, err := os.ReadFile(ca.caFile())
	if err != nil {
		if os.IsNotExist(err) {
			return errCANotFound
		}
		return err
	}

	var keyDER, certDER []byte
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		switch block.Type {
		case "PRIVATE KEY", "RSA PRIVATE KEY":
			keyDER = block.Bytes
		case "CERTIFICATE":
			certDER = block.Bytes
		}
	}
	if keyDER == nil || certDER == nil {
		return fmt.Errorf("%s: missing private key or certificate", ca.caFile())
	}

	key, err := parsePrivateKey(keyDER)
	if err != nil {
		return fmt.Errorf("%s: %w", ca.caFile(), err)
	}
	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return fmt.Errorf("%s: %w", ca.caFile(), err)
	}

	ca.PrivateKey = *key
	ca.RootCert = *cert
	return nil
}

func parsePrivateKey(der []byte) (*rsa.PrivateKey, error) {
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, err
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("private key is not RSA")
	}
	return rsaKey, nil
}

func (ca *SelfSignCA) create() error {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return err
	}
	serial, err := serialNumber()
	if err != nil {
		return err
	}

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName:   caName,
			Organization: []string{caName},
		},
		NotBefore:             time.Now().Add(-time.Hour * 48),
		NotAfter:              time.Now().Add(time.Hour * 24 * 365 * 3),
		BasicConstraintsValid: true,
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign | x509.KeyUsageDigitalSignature,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return err
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return err
	}

	ca.PrivateKey = *key
	ca.RootCert = *cert
	return nil
}

func serialNumber() (*big.Int, error) {
	return rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
}

func (ca *SelfSignCA) saveTo(out io.Writer) error {
	keyBytes, err := x509.MarshalPKCS8PrivateKey(&ca.PrivateKey)
	if err != nil {
		return err
	}
	if err := pem.Encode(out, &pem.Block{Type: "PRIVATE KEY", Bytes: keyBytes}); err != nil {
		return err
	}
	return ca.saveCertTo(out)
}

func (ca *SelfSignCA) saveCertTo(out io.Writer) error {
	return pem.Encode(out, &pem.Block{Type: "CERTIFICATE", Bytes: ca.RootCert.Raw})
}

func (ca *SelfSignCA) save() error {
	var keyBuf, certBuf bytes.Buffer
	if err := ca.saveTo(&keyBuf); err != nil {
		return err
	}
	if err := ca.saveCertTo(&certBuf); err != nil {
		return err
	}
	if err := os.WriteFile(ca.caFile(), keyBuf.Bytes(), 0o600); err != nil {
		return err
	}
	return os.WriteFile(ca.caCertFile(), certBuf.Bytes(), 0o644)
}

// GetRootCA returns the root certificate clients must trust.
func (ca *SelfSignCA) GetRootCA() *x509.Certificate {
	return &ca.RootCert
}

// GetCert returns a certificate for commonName signed by the root CA.
// Certificates are cached; concurrent requests for one name share a single
// generation.
func (ca *SelfSignCA) GetCert(commonName string) (*tls.Certificate, error) {
	ca.cacheMu.Lock()
	if val, ok := ca.cache.Get(commonName); ok {
		ca.cacheMu.Unlock()
		return val.(*tls.Certificate), nil
	}
	ca.cacheMu.Unlock()

	val, err := ca.group.Do(commonName, func() (any, error) {
		cert, err := ca.dummyCert(commonName)
		if err != nil {
			return nil, err
		}
		ca.cacheMu.Lock()
		ca.cache.Add(commonName, cert)
		ca.cacheMu.Unlock()
		return cert, nil
	})
	if err != nil {
		return nil, err
	}
	return val.(*tls.Certificate), nil
}

func (ca *SelfSignCA) dummyCert(commonName string) (*tls.Certificate, error) {
	serial, err := serialNumber()
	if err != nil {
		return nil, err
	}
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName:   commonName,
			Organization: []string{caName},
		},
		NotBefore:   time.Now().Add(-time.Hour * 48),
		NotAfter:    time.Now().Add(time.Hour * 24 * 365),
		KeyUsage:    x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	if ip := net.ParseIP(commonName); ip != nil {
		template.IPAddresses = []net.IP{ip}
	} else {
		template.DNSNames = []string{commonName}
	}

	der, err := x509.CreateCertificate(rand.Reader, template, &ca.RootCert, &ca.PrivateKey.PublicKey, &ca.PrivateKey)
	if err != nil {
		return nil, err
	}
	return &tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  &ca.PrivateKey,
	}, nil
}
