package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestAuditPolicyHolder(t *testing.T) {
	t.Run("defaults when file is absent", func(t *testing.T) {
		cfg := Config{AuditPolicyPath: t.TempDir()}
		t.Chdir(t.TempDir())

		holder, err := NewAuditPolicyHolder(cfg, zaptest.NewLogger(t))
		require.NoError(t, err)

		policy := holder.Get()
		assert.True(t, policy.Limits.Staff.Equal(decimal.NewFromInt(100000)))
		assert.True(t, policy.Limits.Specialist.Equal(decimal.NewFromInt(500000)))
		assert.NotEmpty(t, policy.ClaimsStatuses)
	})

	t.Run("reads file", func(t *testing.T) {
		dir := t.TempDir()
		t.Chdir(t.TempDir())
		content := "staff_limit: \"25000.50\"\nspecialist_limit: \"75000\"\nclaims_statuses:\n  - OPEN\n  - CLOSED\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, "audit_policy.yml"), []byte(content), 0o600))

		holder, err := NewAuditPolicyHolder(Config{AuditPolicyPath: dir}, zaptest.NewLogger(t))
		require.NoError(t, err)

		policy := holder.Get()
		assert.Equal(t, "25000.5", policy.Limits.Staff.String())
		assert.Equal(t, "75000", policy.Limits.Specialist.String())
		assert.Equal(t, []string{"OPEN", "CLOSED"}, policy.ClaimsStatuses)
	})

	t.Run("rejects inverted limits", func(t *testing.T) {
		dir := t.TempDir()
		t.Chdir(t.TempDir())
		content := "staff_limit: \"900000\"\nspecialist_limit: \"1000\"\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, "audit_policy.yml"), []byte(content), 0o600))

		_, err := NewAuditPolicyHolder(Config{AuditPolicyPath: dir}, zaptest.NewLogger(t))
		assert.Error(t, err)
	})

	t.Run("env overrides", func(t *testing.T) {
		t.Chdir(t.TempDir())
		t.Setenv("AUDIT_STAFF_LIMIT", "1234")

		holder, err := NewAuditPolicyHolder(Config{}, zaptest.NewLogger(t))
		require.NoError(t, err)
		assert.Equal(t, "1234", holder.Limits().Staff.String())
	})
}
