package identity

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"societycore/pkg/domain"
)

const codeDigits = 6

// NewCode returns a random numeric one-time code.
func NewCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", codeDigits, n.Int64()), nil
}

// HashCode is the stored form of a one-time code.
func HashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// Recipient resolves the address a code for method is sent to.
func Recipient(p domain.Profile, method domain.TwoFactorMethod) (string, error) {
	addr := p.Phone
	if method == domain.TwoFactorEmail {
		addr = p.Email
	}
	if addr == "" {
		return "", fmt.Errorf("%w: %s", ErrNoRecipient, method)
	}
	return addr, nil
}

// IssueChallenge consumes any open challenge of the same purpose for the
// profile and stores a fresh one. The plaintext code is returned once.
func IssueChallenge(tx domain.Transaction, profileID string, purpose domain.ChallengePurpose, method domain.TwoFactorMethod, expires time.Time) (domain.TwoFactorChallenge, string, error) {
	for _, c := range tx.Challenges().List() {
		if c.ProfileID != profileID || c.Purpose != purpose || c.Consumed {
			continue
		}
		if _, err := tx.Challenges().Update(c.ID, func(old *domain.TwoFactorChallenge) error {
			old.Consumed = true
			return nil
		}); err != nil {
			return domain.TwoFactorChallenge{}, "", err
		}
	}
	code, err := NewCode()
	if err != nil {
		return domain.TwoFactorChallenge{}, "", err
	}
	ch, err := tx.Challenges().Create(domain.TwoFactorChallenge{
		ProfileID: profileID,
		Purpose:   purpose,
		Method:    method,
		CodeHash:  HashCode(code),
		ExpiresAt: expires,
	})
	return ch, code, err
}

// OpenChallenge returns the newest unconsumed challenge of purpose for the profile.
func OpenChallenge(v domain.TransactionView, profileID string, purpose domain.ChallengePurpose) (domain.TwoFactorChallenge, bool) {
	var found domain.TwoFactorChallenge
	ok := false
	for _, c := range v.Challenges().List() {
		if c.ProfileID == profileID && c.Purpose == purpose && !c.Consumed {
			found, ok = c, true
		}
	}
	return found, ok
}

// CheckChallenge compares code against the challenge and records the attempt.
// The returned error is the verdict; the transaction must still commit so the
// attempt counter and consumption persist. A non-nil fatal error means the
// transaction itself failed.
func CheckChallenge(tx domain.Transaction, id, code string, now time.Time, maxAttempts int) (verdict, fatal error) {
	ch, ok := tx.Challenges().Get(id)
	if !ok || ch.Consumed {
		return ErrNoChallenge, nil
	}
	if !now.Before(ch.ExpiresAt) {
		verdict = ErrCodeExpired
	} else if subtle.ConstantTimeCompare([]byte(HashCode(code)), []byte(ch.CodeHash)) != 1 {
		verdict = ErrInvalidCode
	}
	_, fatal = tx.Challenges().Update(id, func(c *domain.TwoFactorChallenge) error {
		switch verdict {
		case nil, ErrCodeExpired:
			c.Consumed = true
		default:
			c.Attempts++
			if maxAttempts > 0 && c.Attempts >= maxAttempts {
				c.Consumed = true
			}
		}
		return nil
	})
	return verdict, fatal
}
