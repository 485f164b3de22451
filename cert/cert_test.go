package cert

import (
	"bytes"
	"crypto/x509"
	"os"
	"path/filepath"
	"sync"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestGetStorePathCreatesDirectory(t *testing.T) {
	c := qt.New(t)

	dir := filepath.Join(t.TempDir(), "store")
	path, err := getStorePath(dir)

	c.Assert(err, qt.IsNil)
	c.Assert(path, qt.Equals, dir)
	info, err := os.Stat(path)
	c.Assert(err, qt.IsNil)
	c.Assert(info.IsDir(), qt.IsTrue)
}

func TestNewSelfSignCASavesAndReloads(t *testing.T) {
	c := qt.New(t)

	dir := t.TempDir()
	caAPI, err := NewSelfSignCA(dir)
	c.Assert(err, qt.IsNil)
	ca := caAPI.(*SelfSignCA)

	var buf bytes.Buffer
	c.Assert(ca.saveTo(&buf), qt.IsNil)

	fileContent, err := os.ReadFile(ca.caFile())
	c.Assert(err, qt.IsNil)
	c.Assert(fileContent, qt.DeepEquals, buf.Bytes(), qt.Commentf("pem content should equal"))

	_, err = os.Stat(ca.caCertFile())
	c.Assert(err, qt.IsNil)

	reloaded, err := NewSelfSignCA(dir)
	c.Assert(err, qt.IsNil)
	c.Assert(reloaded.GetRootCA().Raw, qt.DeepEquals, ca.GetRootCA().Raw)
}

func TestLoadRejectsBrokenFile(t *testing.T) {
	c := qt.New(t)

	dir := t.TempDir()
	c.Assert(os.WriteFile(filepath.Join(dir, caKeyFile), []byte("garbage"), 0o600), qt.IsNil)

	_, err := NewSelfSignCA(dir)
	c.Assert(err, qt.IsNotNil)
}

func TestGetCertIsSignedByRoot(t *testing.T) {
	c := qt.New(t)

	ca, err := NewSelfSignCAMemory()
	c.Assert(err, qt.IsNil)

	tlsCert, err := ca.GetCert("example.com")
	c.Assert(err, qt.IsNil)

	leaf, err := x509.ParseCertificate(tlsCert.Certificate[0])
	c.Assert(err, qt.IsNil)

	roots := x509.NewCertPool()
	roots.AddCert(ca.GetRootCA())
	_, err = leaf.Verify(x509.VerifyOptions{DNSName: "example.com", Roots: roots})
	c.Assert(err, qt.IsNil)
}

func TestGetCertForIPAddress(t *testing.T) {
	c := qt.New(t)

	ca, err := NewSelfSignCAMemory()
	c.Assert(err, qt.IsNil)

	tlsCert, err := ca.GetCert("127.0.0.1")
	c.Assert(err, qt.IsNil)

	leaf, err := x509.ParseCertificate(tlsCert.Certificate[0])
	c.Assert(err, qt.IsNil)
	c.Assert(leaf.IPAddresses, qt.HasLen, 1)
	c.Assert(leaf.DNSNames, qt.HasLen, 0)
}

func TestGetCertIsCached(t *testing.T) {
	c := qt.New(t)

	ca, err := NewSelfSignCAMemory()
	c.Assert(err, qt.IsNil)

	first, err := ca.GetCert("cached.example.com")
	c.Assert(err, qt.IsNil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			again, err := ca.GetCert("cached.example.com")
			c.Check(err, qt.IsNil)
			c.Check(again == first, qt.IsTrue)
		}()
	}
	wg.Wait()
}
