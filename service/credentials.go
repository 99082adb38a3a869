// api/service/credentials.go
package service

import (
	"fmt"
	"sync"

	"github.com/pquerna/otp/totp"

	"github.com/dev-mohitbeniwal/warden/api/util"
)

// CredentialRegistry is the host-side secret store backing the injected
// credential and MFA verifiers. The decision engine itself never touches it;
// controllers build verifier closures from it.
type CredentialRegistry struct {
	mu          sync.RWMutex
	hashes      map[string]string
	totpSecrets map[string]string
}

func NewCredentialRegistry() *CredentialRegistry {
	return &CredentialRegistry{
		hashes:      make(map[string]string),
		totpSecrets: make(map[string]string),
	}
}

// SetPassword stores an argon2id hash for the username.
func (r *CredentialRegistry) SetPassword(username, password string) error {
	if password == "" {
		return fmt.Errorf("password cannot be empty")
	}
	hash, err := util.HashPassword(password)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.hashes[username] = hash
	r.mu.Unlock()
	return nil
}

// VerifyPassword checks a password attempt against the stored hash.
func (r *CredentialRegistry) VerifyPassword(username, password string) bool {
	r.mu.RLock()
	hash, exists := r.hashes[username]
	r.mu.RUnlock()
	if !exists {
		return false
	}
	return util.VerifyPassword(password, hash)
}

// EnrollTOTP generates and stores a TOTP secret for the username, returning
// the secret for provisioning.
func (r *CredentialRegistry) EnrollTOTP(username, issuer string) (string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: username,
	})
	if err != nil {
		return "", err
	}
	r.mu.Lock()
	r.totpSecrets[username] = key.Secret()
	r.mu.Unlock()
	return key.Secret(), nil
}

// VerifyTOTP validates a TOTP code. Users without an enrolled secret always
// fail, so MFA-gated operations stay gated.
func (r *CredentialRegistry) VerifyTOTP(username, code string) bool {
	r.mu.RLock()
	secret, exists := r.totpSecrets[username]
	r.mu.RUnlock()
	if !exists || code == "" {
		return false
	}
	return totp.Validate(code, secret)
}
