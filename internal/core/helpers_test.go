package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"societycore/internal/events"
	"societycore/pkg/domain"
	"societycore/pkg/logger"
)

type metricsCall struct {
	op      string
	success bool
}

type captureMetrics struct {
	mu    sync.Mutex
	calls []metricsCall
}

func (c *captureMetrics) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, metricsCall{op: op, success: success})
}

func (c *captureMetrics) has(op string, success bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			return true
		}
	}
	return false
}

type fixture struct {
	svc     *Service
	metrics *captureMetrics
	feed    *events.Recorder
	org     domain.Organization
	admin   domain.Scope
	ctx     context.Context
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{metrics: &captureMetrics{}, feed: &events.Recorder{}, ctx: context.Background()}
	opts = append([]Option{
		WithLogger(logger.Test(t)),
		WithMetricsRecorder(f.metrics),
		WithPublisher(f.feed),
	}, opts...)
	f.svc = NewInMemoryService(NewDefaultRulesEngine(), opts...)
	org, _, err := f.svc.CreateOrganization(f.ctx, domain.System(""), domain.Organization{Name: "Palm Grove Residency"})
	require.NoError(t, err)
	f.org = org
	f.admin = domain.Scope{OrganizationID: org.ID, ActorID: "admin-1", Role: domain.RoleAdmin}
	return f
}

func (f *fixture) profile(t *testing.T, email string, role domain.Role) domain.Profile {
	t.Helper()
	var p domain.Profile
	_, err := f.svc.Run(f.ctx, "seed_profile", f.admin, func(tx Transaction) error {
		var err error
		p, err = tx.Profiles().Create(domain.Profile{OrganizationID: f.org.ID, Email: email, Role: role, Status: domain.StatusActive})
		return err
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) unit(t *testing.T, number string) domain.Unit {
	t.Helper()
	u, _, err := f.svc.CreateUnit(f.ctx, f.admin, domain.Unit{Block: "A", Number: number})
	require.NoError(t, err)
	return u
}
