package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/triplelock/constants"
	"github.com/joseph-ayodele/triplelock/internal/auth"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_URL", filepath.Join(dir, "ctl.db"))
	t.Setenv("JWT_SECRET", "ctl-secret")
	t.Setenv("JWT_ISSUER", "triplelock")
	t.Setenv("LOG_LEVEL", "error")
	return dir
}

func TestMigrateHealthProjectsExport(t *testing.T) {
	dir := setupEnv(t)

	out, err := run(t, "migrate")
	require.NoError(t, err)
	require.Contains(t, out, "schema up to date")

	out, err = run(t, "health")
	require.NoError(t, err)
	require.Contains(t, out, "DB health: OK")

	out, err = run(t, "projects", "create", "Water wells", "--ngo", "ngo-3")
	require.NoError(t, err)
	projectID := strings.TrimSpace(out)
	require.Len(t, projectID, 36)

	out, err = run(t, "projects", "list")
	require.NoError(t, err)
	require.Contains(t, out, "Water wells")
	require.Contains(t, out, "ngo-3")

	path := filepath.Join(dir, "ledger.xlsx")
	out, err = run(t, "export", "--project", projectID, "-o", path)
	require.NoError(t, err)
	require.Contains(t, out, "wrote")
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Positive(t, info.Size())

	_, err = run(t, "export", "--project", "nope")
	require.Error(t, err)
}

func TestTokenCommand(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "token", "--subject", "B7", "--role", "beneficiary")
	require.NoError(t, err)

	dir := auth.NewJWTDirectory("ctl-secret", "triplelock", 0)
	actor, err := dir.Resolve(context.Background(), strings.TrimSpace(out))
	require.NoError(t, err)
	require.Equal(t, "B7", actor.ID)
	require.Equal(t, constants.RoleBeneficiary, actor.Role)

	_, err = run(t, "token", "--subject", "B7", "--role", "auditor")
	require.Error(t, err)

	_, err = run(t, "token", "--role", "ngo")
	require.Error(t, err)
}

func TestCategoriesCommand(t *testing.T) {
	out, err := run(t, "categories")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Equal(t, constants.AsStringSlice(), lines)
	require.Contains(t, lines, string(constants.WaterSupply))
}
