package statefile

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

func hashPasskey(p string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(p), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash passkey: %w", err)
	}
	return string(h), nil
}

// Passkey returns the stored passkey hash, empty when no passkey is set.
func (c *Container) Passkey() string {
	return c.meta.Passkey
}

// SetPasskey replaces the passkey and saves the container. An empty passkey
// clears it.
func (c *Container) SetPasskey(p string) error {
	h := ""
	if p != "" {
		var err error
		if h, err = hashPasskey(p); err != nil {
			return err
		}
	}
	c.meta.Passkey = h
	return c.save()
}

// CheckPasskey reports whether p matches the stored passkey. Any p matches
// when no passkey is set.
func (c *Container) CheckPasskey(p string) bool {
	if c.meta.Passkey == "" {
		return true
	}
	return bcrypt.CompareHashAndPassword([]byte(c.meta.Passkey), []byte(p)) == nil
}
