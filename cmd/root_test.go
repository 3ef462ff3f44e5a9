package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"build", "period", "aggregate", "compare", "alias", "serve"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "chapter-report", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestRootCommand_PersistentFlags(t *testing.T) {
	for _, name := range []string{"chapter", "format", "output"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(name), "missing --%s", name)
	}
	assert.Equal(t, "json", rootCmd.PersistentFlags().Lookup("format").DefValue)
	assert.Equal(t, "o", rootCmd.PersistentFlags().Lookup("output").Shorthand)
}

func TestBuildCommand_Flags(t *testing.T) {
	require.NotNil(t, buildCmd.Flags().Lookup("period"))
	all := buildCmd.Flags().Lookup("all")
	require.NotNil(t, all)
	assert.Equal(t, "false", all.DefValue)
}

func TestAggregateCommand_Flags(t *testing.T) {
	assert.NotNil(t, aggregateCmd.Flags().Lookup("periods"))
	assert.NotNil(t, aggregateCmd.Flags().Lookup("all"))
}

func TestCompareCommand_Flags(t *testing.T) {
	assert.NotNil(t, compareCmd.Flags().Lookup("current"))
	assert.NotNil(t, compareCmd.Flags().Lookup("previous"))
}

func TestAliasCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range aliasCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"add", "list", "remove"} {
		assert.True(t, names[name], "alias should have subcommand %q", name)
	}

	for _, flagName := range []string{"raw", "target", "key", "note"} {
		assert.NotNil(t, aliasAddCmd.Flags().Lookup(flagName), "alias add should have --%s flag", flagName)
	}
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestRootCmd_PersistentPreRunE_WithValidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configContent := `
store:
  driver: postgres
  database_url: postgres://localhost/chapters
log:
  level: info
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.yaml"), []byte(configContent), 0o644))
	t.Chdir(tmpDir)

	oldCfg := cfg
	cfg = nil
	defer func() { cfg = oldCfg }()

	err := rootCmd.PersistentPreRunE(rootCmd, nil)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/chapters", cfg.Store.DatabaseURL)
}

func TestRootCmd_PersistentPreRunE_NoConfigFile(t *testing.T) {
	t.Chdir(t.TempDir())

	oldCfg := cfg
	cfg = nil
	defer func() { cfg = oldCfg }()

	err := rootCmd.PersistentPreRunE(rootCmd, nil)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 5, cfg.Compare.TopN)
}

func TestRootCmd_PersistentPreRunE_BadLogLevel(t *testing.T) {
	tmpDir := t.TempDir()
	configContent := `
log:
  level: NOT_A_LEVEL
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.yaml"), []byte(configContent), 0o644))
	t.Chdir(tmpDir)

	oldCfg := cfg
	cfg = nil
	defer func() { cfg = oldCfg }()

	err := rootCmd.PersistentPreRunE(rootCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "init logger")
}

func TestRequireChapter(t *testing.T) {
	old := chapterID
	defer func() { chapterID = old }()

	chapterID = ""
	assert.Error(t, requireChapter())
	chapterID = "ch-1"
	assert.NoError(t, requireChapter())
}
