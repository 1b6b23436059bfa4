package cli

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relistr/relistr/internal/config"
	"github.com/relistr/relistr/internal/models"
	"github.com/relistr/relistr/internal/store"
)

func TestRootCommand(t *testing.T) {
	// Test that root command is created
	assert.NotNil(t, RootCmd)
	assert.Equal(t, "relistr", RootCmd.Use)
	assert.Contains(t, RootCmd.Long, "Relistr")
}

func TestVersionCommand(t *testing.T) {
	// Test version command
	assert.NotNil(t, versionCmd)
	assert.Equal(t, "version", versionCmd.Use)
}

func TestGetGlobalFlags(t *testing.T) {
	// Initialize CLI first
	InitCLI()

	// Test global flags getter
	flags := GetGlobalFlags()
	assert.Equal(t, "config.yaml", flags.Config)
	assert.False(t, flags.Verbose)
}

func TestGetVersionInfo(t *testing.T) {
	// Test version info
	info := GetVersionInfo()
	assert.NotEmpty(t, info.Version)
	assert.NotEmpty(t, info.GoVersion)
	assert.NotEmpty(t, info.OS)
	assert.NotEmpty(t, info.Arch)
}

func TestDoctorCheck(t *testing.T) {
	// Test DoctorCheck struct
	check := DoctorCheck{
		Category:    "Dependencies",
		Name:        "Browser",
		Status:      "FAIL",
		Message:     "No Chrome or Chromium binary found in PATH",
		Remediation: "Install Google Chrome or Chromium",
	}

	assert.Equal(t, "Dependencies", check.Category)
	assert.Equal(t, "Browser", check.Name)
	assert.Equal(t, "FAIL", check.Status)
}

func TestGenerateRecommendations(t *testing.T) {
	checks := []DoctorCheck{
		{Status: "OK", Remediation: "should not appear"},
		{Status: "WARN", Remediation: "set the master key"},
		{Status: "FAIL", Remediation: "install a browser"},
		{Status: "FAIL"},
	}

	recs := generateRecommendations(checks)
	assert.Equal(t, []string{"set the master key", "install a browser"}, recs)
}

func TestDisconnectedStatuses(t *testing.T) {
	statuses := disconnectedStatuses()
	assert.Len(t, statuses, len(models.AllMarketplaces()))
	for _, s := range statuses {
		assert.False(t, s.IsConnected)
		assert.Nil(t, s.LastVerified)
	}
}

func TestEnsureCLIUserCreatesOnce(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()

	created, err := ensureCLIUser(ctx, st)
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, cliUserExternalID, created.ExternalID)

	again, err := ensureCLIUser(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)
}

func TestLoginDeadlineHasFloor(t *testing.T) {
	cfg := config.Default()
	cfg.Automation.NavigationTimeout = time.Second
	cfg.Automation.SelectorTimeout = time.Second
	cfg.Automation.OutcomeTimeout = time.Second

	assert.GreaterOrEqual(t, loginDeadline(cfg), time.Minute)
}

func TestIsMemoryPath(t *testing.T) {
	assert.True(t, isMemoryPath(""))
	assert.True(t, isMemoryPath(":memory:"))
	assert.False(t, isMemoryPath("./data/relistr.db"))
}
