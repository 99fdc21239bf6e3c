// Package settings implements the signed-in member's credential and
// two-factor preferences. Every call acts on the caller's own profile.
package settings

import (
	"context"
	"fmt"
	"time"

	"societycore/internal/core"
	"societycore/internal/identity"
	"societycore/internal/notify"
	"societycore/pkg/domain"
)

// ErrPasswordMismatch is returned when the confirmation differs from the new password.
var ErrPasswordMismatch = identity.ErrPasswordMismatch

// Credentials updates the stored password of a profile and ends its other sessions.
type Credentials interface {
	UpdatePassword(ctx context.Context, profileID, password string) error
	RevokeOtherSessions(ctx context.Context, profileID, keepToken string) error
}

// Service implements the settings flows.
type Service struct {
	svc         *core.Service
	creds       Credentials
	dispatcher  notify.Dispatcher
	codeTTL     time.Duration
	maxAttempts int
}

// New wires the settings service. codeTTL and maxAttempts come from the auth config.
func New(svc *core.Service, creds Credentials, dispatcher notify.Dispatcher, codeTTL time.Duration, maxAttempts int) *Service {
	if codeTTL <= 0 {
		codeTTL = 10 * time.Minute
	}
	return &Service{svc: svc, creds: creds, dispatcher: dispatcher, codeTTL: codeTTL, maxAttempts: maxAttempts}
}

// ChangePassword sets a new password once the confirmation matches. Every
// session of the caller other than currentToken is signed out.
func (s *Service) ChangePassword(ctx context.Context, caller identity.Principal, currentToken, password, confirm string) error {
	if password != confirm {
		return ErrPasswordMismatch
	}
	if err := s.creds.UpdatePassword(ctx, caller.ProfileID, password); err != nil {
		return err
	}
	return s.creds.RevokeOtherSessions(ctx, caller.ProfileID, currentToken)
}

// SetPreferredMethod stores the channel future codes are sent through.
func (s *Service) SetPreferredMethod(ctx context.Context, caller identity.Principal, method string) (domain.Profile, error) {
	m, err := domain.ParseTwoFactorMethod(method)
	if err != nil {
		problems := domain.ValidationErrors{}
		problems.Add("method", err.Error())
		return domain.Profile{}, problems.Err()
	}
	return s.updateSelf(ctx, "set_two_factor_method", caller, func(p *domain.Profile) error {
		p.TwoFactorMethod = m
		return nil
	})
}

// EnableTwoFactor marks enrollment pending and sends one enrollment code
// through the preferred method. The enabled flag waits for VerifyTwoFactor.
func (s *Service) EnableTwoFactor(ctx context.Context, caller identity.Principal) (domain.Profile, error) {
	return s.sendEnrollment(ctx, "enable_two_factor", caller, true)
}

// ResendTwoFactorCode issues a fresh enrollment code, superseding the previous one.
func (s *Service) ResendTwoFactorCode(ctx context.Context, caller identity.Principal) (domain.Profile, error) {
	return s.sendEnrollment(ctx, "resend_two_factor_code", caller, false)
}

func (s *Service) sendEnrollment(ctx context.Context, op string, caller identity.Principal, markPending bool) (domain.Profile, error) {
	var (
		profile domain.Profile
		ch      domain.TwoFactorChallenge
		code    string
	)
	_, err := s.svc.Run(ctx, op, caller.Scope(), func(tx domain.Transaction) error {
		p, ok := tx.Profiles().Get(caller.ProfileID)
		if !ok {
			return fmt.Errorf("%w: profile %s", domain.ErrNotFound, caller.ProfileID)
		}
		if !markPending && !p.TwoFactorPending {
			return identity.ErrNoChallenge
		}
		if _, err := identity.Recipient(p, p.TwoFactorMethod); err != nil {
			return err
		}
		if markPending {
			var err error
			if p, err = tx.Profiles().Update(p.ID, func(rec *domain.Profile) error {
				rec.TwoFactorPending = true
				return nil
			}); err != nil {
				return err
			}
		}
		profile = p
		var err error
		ch, code, err = identity.IssueChallenge(tx, p.ID, domain.PurposeEnrollment, p.TwoFactorMethod, s.svc.Now().Add(s.codeTTL))
		return err
	})
	if err != nil {
		return domain.Profile{}, err
	}
	to, _ := identity.Recipient(profile, ch.Method)
	err = s.dispatcher.Dispatch(ctx, notify.Message{
		Channel:   ch.Method,
		Recipient: to,
		Purpose:   domain.PurposeEnrollment,
		Code:      code,
		ProfileID: profile.ID,
		ExpiresAt: ch.ExpiresAt,
	})
	if err != nil {
		return domain.Profile{}, fmt.Errorf("dispatch code: %w", err)
	}
	return profile, nil
}

// VerifyTwoFactor checks the enrollment code and only then enables the second factor.
func (s *Service) VerifyTwoFactor(ctx context.Context, caller identity.Principal, code string) (domain.Profile, error) {
	var (
		verdict error
		profile domain.Profile
	)
	now := s.svc.Now()
	_, err := s.svc.Run(ctx, "verify_two_factor", caller.Scope(), func(tx domain.Transaction) error {
		ch, ok := identity.OpenChallenge(tx.Snapshot(), caller.ProfileID, domain.PurposeEnrollment)
		if !ok {
			verdict = identity.ErrNoChallenge
			return nil
		}
		var fatal error
		if verdict, fatal = identity.CheckChallenge(tx, ch.ID, code, now, s.maxAttempts); fatal != nil || verdict != nil {
			return fatal
		}
		var err error
		profile, err = tx.Profiles().Update(caller.ProfileID, func(p *domain.Profile) error {
			p.TwoFactorEnabled = true
			p.TwoFactorPending = false
			p.TwoFactorMethod = ch.Method
			return nil
		})
		return err
	})
	if err != nil {
		return domain.Profile{}, err
	}
	if verdict != nil {
		return domain.Profile{}, verdict
	}
	return profile, nil
}

// DisableTwoFactor turns the second factor off immediately.
func (s *Service) DisableTwoFactor(ctx context.Context, caller identity.Principal) (domain.Profile, error) {
	return s.updateSelf(ctx, "disable_two_factor", caller, func(p *domain.Profile) error {
		p.TwoFactorEnabled = false
		p.TwoFactorPending = false
		return nil
	})
}

func (s *Service) updateSelf(ctx context.Context, op string, caller identity.Principal, mutate func(*domain.Profile) error) (domain.Profile, error) {
	var updated domain.Profile
	_, err := s.svc.Run(ctx, op, caller.Scope(), func(tx domain.Transaction) error {
		var err error
		updated, err = tx.Profiles().Update(caller.ProfileID, mutate)
		return err
	})
	return updated, err
}
