package proxy

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	errMissingAuth     = errors.New("missing authentication")
	errInvalidAuth     = errors.New("invalid credentials")
	errInvalidAuthUser = errors.New("invalid proxy auth")
)

// BasicAuth checks the Proxy-Authorization header against a set of users.
type BasicAuth struct {
	users map[string]string
}

// NewBasicAuth parses users given as "user:pass", several joined with "|".
func NewBasicAuth(users string) (*BasicAuth, error) {
	auth := &BasicAuth{users: make(map[string]string)}
	for _, e := range strings.Split(users, "|") {
		user, pass, ok := strings.Cut(e, ":")
		if !ok || user == "" {
			return nil, fmt.Errorf("%w: %q", errInvalidAuthUser, e)
		}
		auth.users[user] = pass
	}
	return auth, nil
}

// EntryAuth has the signature expected by Proxy.SetAuthProxy.
func (a *BasicAuth) EntryAuth(_ http.ResponseWriter, req *http.Request) (bool, error) {
	header := req.Header.Get("Proxy-Authorization")
	if header == "" {
		return false, errMissingAuth
	}
	encoded, ok := strings.CutPrefix(header, "Basic ")
	if !ok {
		return false, errInvalidAuth
	}
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return false, fmt.Errorf("%w: %w", errInvalidAuth, err)
	}
	user, pass, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return false, errInvalidAuth
	}
	if want, found := a.users[user]; !found || want != pass {
		return false, errInvalidAuth
	}
	return true, nil
}
