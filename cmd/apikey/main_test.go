package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/internal/store"
	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func openTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.OpenSQLite(filepath.Join(t.TempDir(), "headshots.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestParseScopes(t *testing.T) {
	tests := []struct {
		in      string
		want    []string
		wantErr bool
	}{
		{in: "user", want: []string{"user"}},
		{in: "user,admin", want: []string{"user", "admin"}},
		{in: " Admin , user, admin", want: []string{"admin", "user"}},
		{in: "", wantErr: true},
		{in: "user,root", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseScopes(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIssueKey_CreatesUserAndKey(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	user, raw, err := issueKey(ctx, st, " Ops@Example.com ", "Ops", "bootstrap", []string{models.ScopeAdmin})
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", user.Email)

	keys, err := st.GetAPIKeyByPrefix(ctx, raw[:8])
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, user.ID, keys[0].UserID)
	assert.Equal(t, []string{models.ScopeAdmin}, keys[0].Scopes)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(keys[0].KeyHash), []byte(raw)))
}

func TestIssueKey_ReusesExistingUser(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	first, _, err := issueKey(ctx, st, "dev@example.com", "Dev", "a", []string{models.ScopeUser})
	require.NoError(t, err)
	second, _, err := issueKey(ctx, st, "DEV@example.com", "", "b", []string{models.ScopeUser})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestIssueKey_NewUserNeedsName(t *testing.T) {
	_, _, err := issueKey(context.Background(), openTestStore(t), "nobody@example.com", "", "cli", []string{models.ScopeUser})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "-name is required")
}

func TestRun_PrintsKeyOnce(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", filepath.Join(t.TempDir(), "headshots.db"))

	var out bytes.Buffer
	err := run([]string{"-email", "admin@example.com", "-name", "Admin", "-scopes", "user,admin"}, &out)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "scopes: user,admin")
	var key string
	for _, line := range strings.Split(out.String(), "\n") {
		if strings.HasPrefix(line, "key:") {
			key = strings.TrimSpace(strings.TrimPrefix(line, "key:"))
		}
	}
	assert.True(t, strings.HasPrefix(key, "hsk_"), "output: %s", out.String())
}

func TestRun_RequiresEmail(t *testing.T) {
	err := run([]string{"-name", "Admin"}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "-email")
}
