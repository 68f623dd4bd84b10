package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"migrate", "refresh", "status", "query", "slate", "serve", "injuries"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "statline", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.True(t, rootCmd.SilenceUsage)
}

func TestRefreshCommand_Flags(t *testing.T) {
	for _, name := range []string{"season", "week", "force", "output"} {
		require.NotNil(t, refreshCmd.Flags().Lookup(name), "refresh command should have --%s flag", name)
	}
	assert.Equal(t, "false", refreshCmd.Flags().Lookup("force").DefValue)
	assert.Equal(t, "table", refreshCmd.Flags().Lookup("output").DefValue)
	assert.Equal(t, "o", refreshCmd.Flags().Lookup("output").Shorthand)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestStatusCommand_Flags(t *testing.T) {
	flag := statusCmd.Flags().Lookup("limit")
	require.NotNil(t, flag)
	assert.Equal(t, "20", flag.DefValue)
}

func TestQueryCommand_Subcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range queryCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"top", "search", "trend", "compare", "summary"} {
		assert.True(t, names[name], "expected query subcommand %q", name)
	}

	assert.NotNil(t, queryCmd.PersistentFlags().Lookup("season"))
	assert.Equal(t, "100", queryCmd.Flags().Lookup("page-size").DefValue)
	assert.Equal(t, "fantasy_points", queryTopCmd.Flags().Lookup("stat").DefValue)
}

func TestSlateCommand_Subcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range slateCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["import"])
	assert.True(t, names["show"])

	flag := slateImportCmd.Flags().Lookup("slate-id")
	require.NotNil(t, flag)
	assert.Equal(t, "main", flag.DefValue)
	require.NotNil(t, slateImportCmd.Flags().Lookup("sheet"))
}

func TestInjuriesCommand(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range injuriesCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["refresh"])
	assert.True(t, names["show"])

	for _, name := range []string{"team", "position", "all", "summary", "output"} {
		require.NotNil(t, injuriesShowCmd.Flags().Lookup(name), "injuries show should have --%s flag", name)
	}
	assert.Equal(t, "false", injuriesShowCmd.Flags().Lookup("all").DefValue)
}

func TestQueryCompareCommand_Args(t *testing.T) {
	assert.Error(t, queryCompareCmd.Args(queryCompareCmd, []string{"solo"}))
	assert.NoError(t, queryCompareCmd.Args(queryCompareCmd, []string{"a", "b"}))
	require.NotNil(t, queryCompareCmd.Flags().Lookup("stat"))
}
