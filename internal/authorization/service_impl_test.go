package authorization

import (
	"context"
	"testing"

	reviewerdomain "github.com/smallbiznis/claimaudit/internal/reviewer/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestCapable(t *testing.T) {
	enforcer, err := NewMemoryEnforcer()
	require.NoError(t, err)
	svc := NewService(Params{Log: zaptest.NewLogger(t), Enforcer: enforcer})
	ctx := context.Background()

	cases := []struct {
		role     reviewerdomain.Role
		action   string
		expected bool
	}{
		{reviewerdomain.RoleStaff, ActionAct, true},
		{reviewerdomain.RoleStaff, ActionTakeover, false},
		{reviewerdomain.RoleSpecialist, ActionAct, true},
		{reviewerdomain.RoleSpecialist, ActionTakeover, true},
		{reviewerdomain.RoleTeamLeader, ActionAct, true},
		{reviewerdomain.RoleTeamLeader, ActionTakeover, true},
		{reviewerdomain.RoleReader, ActionAct, false},
		{reviewerdomain.RoleReader, ActionTakeover, false},
	}
	for _, tc := range cases {
		t.Run(string(tc.role)+"/"+tc.action, func(t *testing.T) {
			ok, err := svc.Capable(ctx, tc.role, ObjectCaseAudit, tc.action)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, ok)
		})
	}

	t.Run("rejects invalid input", func(t *testing.T) {
		_, err := svc.Capable(ctx, reviewerdomain.Role("ADMIN"), ObjectCaseAudit, ActionAct)
		assert.ErrorIs(t, err, ErrInvalidRole)

		_, err = svc.Capable(ctx, reviewerdomain.RoleStaff, "", ActionAct)
		assert.ErrorIs(t, err, ErrInvalidObject)

		_, err = svc.Capable(ctx, reviewerdomain.RoleStaff, ObjectCaseAudit, " ")
		assert.ErrorIs(t, err, ErrInvalidAction)
	})

	t.Run("seeding is idempotent", func(t *testing.T) {
		require.NoError(t, seedPolicies(enforcer))
		policies, err := enforcer.GetPolicy()
		require.NoError(t, err)
		assert.Len(t, policies, 2)
	})
}
