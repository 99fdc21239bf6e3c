// Package identity owns credentials, sessions and one-time code challenges.
// Profiles and accounts live in the domain store; sessions live in memory.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"societycore/internal/config"
	"societycore/internal/core"
	"societycore/internal/notify"
	"societycore/pkg/domain"
	"societycore/pkg/logger"
)

// Principal is the authenticated caller resolved from a bearer token.
type Principal struct {
	ProfileID          string                 `json:"profile_id"`
	OrganizationID     string                 `json:"organization_id"`
	Email              string                 `json:"email"`
	Role               domain.Role            `json:"role"`
	Status             domain.Status          `json:"status"`
	MustChangePassword bool                   `json:"must_change_password"`
	TwoFactorEnabled   bool                   `json:"two_factor_enabled"`
	TwoFactorMethod    domain.TwoFactorMethod `json:"two_factor_method"`
}

// Scope returns the tenant scope service calls run under for this caller.
func (p Principal) Scope() domain.Scope {
	return domain.Scope{OrganizationID: p.OrganizationID, ActorID: p.ProfileID, Role: p.Role}
}

// PrincipalFor builds a principal from a stored profile.
func PrincipalFor(p domain.Profile) Principal {
	return Principal{
		ProfileID:          p.ID,
		OrganizationID:     p.OrganizationID,
		Email:              p.Email,
		Role:               p.Role,
		Status:             p.Status,
		MustChangePassword: p.MustChangePassword,
		TwoFactorEnabled:   p.TwoFactorEnabled,
		TwoFactorMethod:    p.TwoFactorMethod,
	}
}

// SignUpRequest carries the fields of a new credential.
type SignUpRequest struct {
	Email              string
	Password           string
	FullName           string
	Phone              string
	MustChangePassword bool
}

// ChallengeRequired is returned instead of a session when a second factor is needed.
type ChallengeRequired struct {
	ChallengeID string                 `json:"challenge_id"`
	Method      domain.TwoFactorMethod `json:"method"`
	ExpiresAt   time.Time              `json:"expires_at"`
}

// SignInOutcome holds exactly one of Session or Challenge.
type SignInOutcome struct {
	Session   *Session           `json:"session,omitempty"`
	Challenge *ChallengeRequired `json:"challenge,omitempty"`
}

// Directory implements sign-up, sign-in and credential maintenance.
type Directory struct {
	svc        *core.Service
	dispatcher notify.Dispatcher
	hasher     *Hasher
	cfg        config.Auth
	sessions   *sessions
	lggr       logger.Logger
}

// Option customises a Directory.
type Option func(*Directory)

// WithHasher replaces the default argon2id parameters.
func WithHasher(h *Hasher) Option {
	return func(d *Directory) {
		if h != nil {
			d.hasher = h
		}
	}
}

// WithLogger sets the directory logger.
func WithLogger(l logger.Logger) Option {
	return func(d *Directory) {
		if l != nil {
			d.lggr = l
		}
	}
}

// NewDirectory wires a directory over the core service. Zero auth settings
// take the same defaults the config loader applies.
func NewDirectory(svc *core.Service, dispatcher notify.Dispatcher, cfg config.Auth, opts ...Option) *Directory {
	d := &Directory{
		svc:        svc,
		dispatcher: dispatcher,
		hasher:     NewHasher(DefaultParams),
		cfg:        WithAuthDefaults(cfg),
		sessions:   newSessions(),
		lggr:       svc.Logger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.lggr = d.lggr.Named("identity")
	return d
}

// WithAuthDefaults fills unset auth settings.
func WithAuthDefaults(cfg config.Auth) config.Auth {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 12 * time.Hour
	}
	if cfg.CodeTTL <= 0 {
		cfg.CodeTTL = 10 * time.Minute
	}
	if cfg.MaxCodeAttempts <= 0 {
		cfg.MaxCodeAttempts = 5
	}
	if cfg.LockoutThreshold <= 0 {
		cfg.LockoutThreshold = 5
	}
	if cfg.LockoutDuration <= 0 {
		cfg.LockoutDuration = 15 * time.Minute
	}
	if cfg.TempPasswordLength < MinTemporaryPasswordLength {
		cfg.TempPasswordLength = 12
	}
	if cfg.MinPasswordLength <= 0 {
		cfg.MinPasswordLength = 8
	}
	return cfg
}

// Config returns the effective auth settings.
func (d *Directory) Config() config.Auth { return d.cfg }

// CheckPassword applies the minimum length policy.
func (d *Directory) CheckPassword(password string) error {
	if len(password) < d.cfg.MinPasswordLength {
		problems := domain.ValidationErrors{}
		problems.Add("password", fmt.Sprintf("must be at least %d characters", d.cfg.MinPasswordLength))
		return problems.Err()
	}
	return nil
}

func selfScope(p domain.Profile) domain.Scope {
	return domain.Scope{OrganizationID: p.OrganizationID, ActorID: p.ID, Role: p.Role}
}

var anonymous = domain.Scope{ActorID: "anonymous"}

func accountByEmail(v domain.TransactionView, email string) (domain.Account, bool) {
	for _, a := range v.Accounts().List() {
		if a.Email == email {
			return a, true
		}
	}
	return domain.Account{}, false
}

func accountByProfile(v domain.TransactionView, profileID string) (domain.Account, bool) {
	for _, a := range v.Accounts().List() {
		if a.ProfileID == profileID {
			return a, true
		}
	}
	return domain.Account{}, false
}

// SignUp creates an account and a pending, unassigned profile.
func (d *Directory) SignUp(ctx context.Context, req SignUpRequest) (domain.Profile, error) {
	problems := domain.ValidationErrors{}
	email, err := domain.NormalizeEmail(req.Email)
	if err != nil {
		problems.Add("email", "is not a valid address")
	}
	if len(req.Password) < d.cfg.MinPasswordLength {
		problems.Add("password", fmt.Sprintf("must be at least %d characters", d.cfg.MinPasswordLength))
	}
	if err := problems.Err(); err != nil {
		return domain.Profile{}, err
	}
	hash, err := d.hasher.Hash(req.Password)
	if err != nil {
		return domain.Profile{}, err
	}
	var profile domain.Profile
	_, err = d.svc.Run(ctx, "sign_up", anonymous, func(tx domain.Transaction) error {
		if _, taken := accountByEmail(tx.Snapshot(), email); taken {
			return fmt.Errorf("%w: %s", ErrEmailTaken, email)
		}
		var err error
		profile, err = tx.Profiles().Create(domain.Profile{
			Email:              email,
			FullName:           domain.SanitizeText(req.FullName),
			Phone:              domain.SanitizeText(req.Phone),
			Role:               domain.RoleOwner,
			Status:             domain.StatusPending,
			TwoFactorMethod:    domain.TwoFactorEmail,
			MustChangePassword: req.MustChangePassword,
		})
		if err != nil {
			return err
		}
		_, err = tx.Accounts().Create(domain.Account{
			Email:              email,
			PasswordHash:       hash,
			ProfileID:          profile.ID,
			MustChangePassword: req.MustChangePassword,
		})
		return err
	})
	return profile, err
}

// SignIn verifies the password and either opens a session or, for profiles
// with a second factor, dispatches a sign-in code.
func (d *Directory) SignIn(ctx context.Context, email, password string) (SignInOutcome, error) {
	email, err := domain.NormalizeEmail(email)
	if err != nil {
		return SignInOutcome{}, ErrInvalidCredentials
	}
	var (
		acct    domain.Account
		profile domain.Profile
		found   bool
	)
	err = d.svc.View(ctx, "sign_in_lookup", func(v domain.TransactionView) error {
		if acct, found = accountByEmail(v, email); found {
			profile, found = v.Profiles().Get(acct.ProfileID)
		}
		return nil
	})
	if err != nil {
		return SignInOutcome{}, err
	}
	if !found {
		return SignInOutcome{}, ErrInvalidCredentials
	}
	now := d.svc.Now()
	if profile.LockedAt(now) {
		return SignInOutcome{}, ErrAccountLocked
	}
	ok, err := d.hasher.Verify(password, acct.PasswordHash)
	if err != nil {
		return SignInOutcome{}, err
	}
	if !ok {
		if err := d.recordFailure(ctx, profile, now); err != nil {
			return SignInOutcome{}, err
		}
		return SignInOutcome{}, ErrInvalidCredentials
	}
	if err := checkActive(profile, now); err != nil {
		return SignInOutcome{}, err
	}

	if !profile.TwoFactorEnabled {
		if err := d.clearFailures(ctx, profile); err != nil {
			return SignInOutcome{}, err
		}
		sess, err := d.sessions.issue(profile.ID, now, d.cfg.SessionTTL)
		if err != nil {
			return SignInOutcome{}, err
		}
		return SignInOutcome{Session: &sess}, nil
	}

	var (
		ch   domain.TwoFactorChallenge
		code string
	)
	_, err = d.svc.Run(ctx, "issue_sign_in_challenge", selfScope(profile), func(tx domain.Transaction) error {
		if profile.FailedLoginAttempts > 0 {
			if _, err := tx.Profiles().Update(profile.ID, resetLockout); err != nil {
				return err
			}
		}
		var err error
		ch, code, err = IssueChallenge(tx, profile.ID, domain.PurposeSignIn, profile.TwoFactorMethod, now.Add(d.cfg.CodeTTL))
		return err
	})
	if err != nil {
		return SignInOutcome{}, err
	}
	if err := d.send(ctx, profile, ch, code); err != nil {
		return SignInOutcome{}, err
	}
	return SignInOutcome{Challenge: &ChallengeRequired{ChallengeID: ch.ID, Method: ch.Method, ExpiresAt: ch.ExpiresAt}}, nil
}

func checkActive(p domain.Profile, now time.Time) error {
	if p.Status != domain.StatusActive {
		return fmt.Errorf("%w: status %s", ErrInactive, p.Status)
	}
	if !p.ActiveAt(now) {
		return ErrOutsideValidity
	}
	return nil
}

func resetLockout(p *domain.Profile) error {
	p.FailedLoginAttempts = 0
	p.LockedUntil = nil
	return nil
}

func (d *Directory) clearFailures(ctx context.Context, p domain.Profile) error {
	if p.FailedLoginAttempts == 0 && p.LockedUntil == nil {
		return nil
	}
	_, err := d.svc.Run(ctx, "clear_sign_in_failures", selfScope(p), func(tx domain.Transaction) error {
		_, err := tx.Profiles().Update(p.ID, resetLockout)
		return err
	})
	return err
}

func (d *Directory) recordFailure(ctx context.Context, p domain.Profile, now time.Time) error {
	locked := false
	_, err := d.svc.Run(ctx, "record_sign_in_failure", selfScope(p), func(tx domain.Transaction) error {
		_, err := tx.Profiles().Update(p.ID, func(rec *domain.Profile) error {
			rec.FailedLoginAttempts++
			if rec.FailedLoginAttempts >= d.cfg.LockoutThreshold {
				until := now.Add(d.cfg.LockoutDuration)
				rec.LockedUntil = &until
				rec.FailedLoginAttempts = 0
				locked = true
			}
			return nil
		})
		return err
	})
	if locked {
		d.lggr.Warnw("account locked", "profile_id", p.ID, "organization_id", p.OrganizationID, "duration", d.cfg.LockoutDuration)
	}
	return err
}

func (d *Directory) send(ctx context.Context, p domain.Profile, ch domain.TwoFactorChallenge, code string) error {
	to, err := Recipient(p, ch.Method)
	if err != nil {
		return err
	}
	return d.dispatcher.Dispatch(ctx, notify.Message{
		Channel:   ch.Method,
		Recipient: to,
		Purpose:   ch.Purpose,
		Code:      code,
		ProfileID: p.ID,
		ExpiresAt: ch.ExpiresAt,
	})
}

// CompleteSignIn verifies a sign-in code and opens the session.
func (d *Directory) CompleteSignIn(ctx context.Context, challengeID, code string) (Session, error) {
	now := d.svc.Now()
	var (
		verdict error
		profile domain.Profile
	)
	_, err := d.svc.Run(ctx, "complete_sign_in", anonymous, func(tx domain.Transaction) error {
		ch, ok := tx.Challenges().Get(challengeID)
		if !ok || ch.Purpose != domain.PurposeSignIn {
			verdict = ErrNoChallenge
			return nil
		}
		profile, _ = tx.Profiles().Get(ch.ProfileID)
		var fatal error
		verdict, fatal = CheckChallenge(tx, challengeID, code, now, d.cfg.MaxCodeAttempts)
		return fatal
	})
	if err != nil {
		return Session{}, err
	}
	if verdict != nil {
		return Session{}, verdict
	}
	if err := checkActive(profile, now); err != nil {
		return Session{}, err
	}
	return d.sessions.issue(profile.ID, now, d.cfg.SessionTTL)
}

// Authenticate resolves a bearer token. Inactive profiles and profiles outside
// their validity window are rejected even while the session is live.
func (d *Directory) Authenticate(ctx context.Context, token string) (Principal, error) {
	now := d.svc.Now()
	profileID, ok := d.sessions.lookup(token, now)
	if !ok {
		return Principal{}, ErrInvalidSession
	}
	var profile domain.Profile
	err := d.svc.View(ctx, "authenticate", func(v domain.TransactionView) error {
		if profile, ok = v.Profiles().Get(profileID); !ok {
			return ErrInvalidSession
		}
		return nil
	})
	if err != nil {
		return Principal{}, err
	}
	if err := checkActive(profile, now); err != nil {
		return Principal{}, err
	}
	return PrincipalFor(profile), nil
}

// SignOut revokes the token; unknown tokens are ignored.
func (d *Directory) SignOut(_ context.Context, token string) error {
	d.sessions.revoke(token)
	return nil
}

// RevokeOtherSessions signs a profile out everywhere except the session of keepToken.
func (d *Directory) RevokeOtherSessions(_ context.Context, profileID, keepToken string) error {
	if n := d.sessions.revokeProfile(profileID, keepToken); n > 0 {
		d.lggr.Infow("revoked sessions", "profile_id", profileID, "count", n)
	}
	return nil
}

// UpdatePassword replaces the stored hash and clears must_change_password.
func (d *Directory) UpdatePassword(ctx context.Context, profileID, password string) error {
	if err := d.CheckPassword(password); err != nil {
		return err
	}
	hash, err := d.hasher.Hash(password)
	if err != nil {
		return err
	}
	_, err = d.svc.Run(ctx, "update_password", domain.Scope{ActorID: profileID}, func(tx domain.Transaction) error {
		return setPassword(tx, profileID, hash)
	})
	return err
}

func setPassword(tx domain.Transaction, profileID, hash string) error {
	acct, ok := accountByProfile(tx.Snapshot(), profileID)
	if !ok {
		return fmt.Errorf("%w: account for profile %s", domain.ErrNotFound, profileID)
	}
	if _, err := tx.Accounts().Update(acct.ID, func(a *domain.Account) error {
		a.PasswordHash = hash
		a.MustChangePassword = false
		return nil
	}); err != nil {
		return err
	}
	_, err := tx.Profiles().Update(profileID, func(p *domain.Profile) error {
		p.MustChangePassword = false
		return resetLockout(p)
	})
	return err
}

// RequestPasswordReset emails a reset code. Unknown addresses succeed silently.
func (d *Directory) RequestPasswordReset(ctx context.Context, email string) error {
	email, err := domain.NormalizeEmail(email)
	if err != nil {
		problems := domain.ValidationErrors{}
		problems.Add("email", "is not a valid address")
		return problems.Err()
	}
	var (
		profile domain.Profile
		ch      domain.TwoFactorChallenge
		code    string
		found   bool
	)
	now := d.svc.Now()
	_, err = d.svc.Run(ctx, "request_password_reset", anonymous, func(tx domain.Transaction) error {
		acct, ok := accountByEmail(tx.Snapshot(), email)
		if !ok {
			return nil
		}
		if profile, found = tx.Profiles().Get(acct.ProfileID); !found {
			return nil
		}
		var err error
		ch, code, err = IssueChallenge(tx, profile.ID, domain.PurposePasswordReset, domain.TwoFactorEmail, now.Add(d.cfg.CodeTTL))
		return err
	})
	if err != nil {
		return err
	}
	if !found {
		d.lggr.Debugw("password reset for unknown email")
		return nil
	}
	return d.send(ctx, profile, ch, code)
}

// CompletePasswordReset checks the emailed code and sets the new password.
// Every open session of the profile is revoked.
func (d *Directory) CompletePasswordReset(ctx context.Context, email, code, password, confirm string) error {
	if password != confirm {
		return ErrPasswordMismatch
	}
	if err := d.CheckPassword(password); err != nil {
		return err
	}
	email, err := domain.NormalizeEmail(email)
	if err != nil {
		return ErrInvalidCode
	}
	hash, err := d.hasher.Hash(password)
	if err != nil {
		return err
	}
	now := d.svc.Now()
	var (
		verdict   error
		profileID string
	)
	_, err = d.svc.Run(ctx, "complete_password_reset", anonymous, func(tx domain.Transaction) error {
		acct, ok := accountByEmail(tx.Snapshot(), email)
		if !ok {
			verdict = ErrInvalidCode
			return nil
		}
		ch, ok := OpenChallenge(tx.Snapshot(), acct.ProfileID, domain.PurposePasswordReset)
		if !ok {
			verdict = ErrNoChallenge
			return nil
		}
		var fatal error
		if verdict, fatal = CheckChallenge(tx, ch.ID, code, now, d.cfg.MaxCodeAttempts); fatal != nil || verdict != nil {
			return fatal
		}
		profileID = acct.ProfileID
		return setPassword(tx, acct.ProfileID, hash)
	})
	if err != nil {
		return err
	}
	if verdict != nil {
		return verdict
	}
	d.sessions.revokeProfile(profileID, "")
	return nil
}

// TemporaryPassword generates a password of the configured length.
func (d *Directory) TemporaryPassword() (string, error) {
	return GenerateTemporaryPassword(d.cfg.TempPasswordLength)
}

// IsCredentialError reports whether err is a sign-in rejection safe to show verbatim.
func IsCredentialError(err error) bool {
	for _, target := range []error{ErrInvalidCredentials, ErrAccountLocked, ErrInactive, ErrOutsideValidity, ErrInvalidSession} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
