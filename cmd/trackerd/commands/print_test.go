package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"dlstracker-backend/internal/tracker"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func sampleResult() tracker.ScrapeResult {
	date := "2024-05-30"
	recent := tracker.MatchSummary{
		HomeTeam: "Red Lions", AwayTeam: "Blue Sharks",
		HomeScore: 3, AwayScore: 1, Result: tracker.Win, Date: &date,
	}
	return tracker.ScrapeResult{
		Status:    tracker.StatusSuccess,
		TeamName:  "Red Lions",
		TeamStats: &tracker.TeamStats{GamesPlayed: 12, GamesWon: 8, GamesLost: 3, WinPercentage: 66.7},
		Matches:   []tracker.MatchSummary{recent},
		Form:      []tracker.Result{tracker.Win, tracker.Draw, tracker.Loss},
		RecentMatch: &recent,
		RecentMatchStats: &tracker.MatchStatistics{
			HomeTeam: "Red Lions",
			AwayTeam: "Blue Sharks",
			Stats: map[string]tracker.StatPair{
				"possession": {Home: tracker.TextStat("58%"), Away: tracker.TextStat("42%")},
				"shots":      {Home: tracker.IntStat(9), Away: tracker.IntStat(4)},
			},
		},
		RecentMatchGoals: []tracker.GoalEvent{
			{Time: "12'", Scorer: "Kane", Team: "Red Lions", Assist: tracker.NoAssist},
		},
	}
}

func TestPrintResult(t *testing.T) {
	var out bytes.Buffer
	printResult(&out, sampleResult())

	printed := out.String()
	for _, want := range []string{"Red Lions", "Games played", "66.7", "Last match: Red Lions 3 - 1 Blue Sharks", "possession", "58%", "Kane", "No assist"} {
		require.Contains(t, printed, want)
	}
}

func TestPrintFailedResult(t *testing.T) {
	var out bytes.Buffer
	printResult(&out, tracker.Failed(tracker.ErrNotFound))
	require.Equal(t, "error: Invalid tracker ID or page did not load\n", out.String())
}

func TestWriteJsonFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	res := sampleResult()
	require.NoError(t, writeJsonFile(path, res))

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded tracker.ScrapeResult
	require.NoError(t, json.Unmarshal(contents, &decoded))
	if diff := cmp.Diff(res, decoded); diff != "" {
		t.Fatal(diff)
	}
}

func TestDefaultConfigMerge(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json5")
	require.NoError(t, os.WriteFile(path, []byte(`{
		// only override what differs
		http: { port: 9000 },
		cache: { redis_url: "redis://localhost:6379/0" },
	}`), 0644))

	cfg, err := readConfig(path)
	require.NoError(t, err)
	require.Equal(t, 9000, cfg.Http.Port)
	require.Equal(t, []string{"*"}, cfg.Http.CorsOrigins)
	require.Equal(t, "redis://localhost:6379/0", cfg.Cache.RedisURL)
	require.Equal(t, 300, cfg.Cache.FreshnessSeconds)
	require.Equal(t, 4, cfg.Cache.maxConcurrent())
	require.Equal(t, "@every 1h", cfg.Cache.sweepSchedule())
	require.Equal(t, tracker.DefaultOptions().BaseURL, cfg.Tracker.BaseURL)
	require.True(t, cfg.Tracker.chrome().Headless)

	missing, err := readConfig(filepath.Join(dir, "nope.json5"))
	require.NoError(t, err)
	require.Equal(t, defaultConfig(), missing)
}

func TestConfigDisablesCacheLimits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json5")
	require.NoError(t, os.WriteFile(path, []byte(`{
		cache: { max_concurrent: 0, sweep_schedule: "" },
	}`), 0644))

	cfg, err := readConfig(path)
	require.NoError(t, err)
	require.Equal(t, 0, cfg.Cache.maxConcurrent())
	require.NotNil(t, cfg.Cache.SweepSchedule)
	require.Equal(t, "", cfg.Cache.sweepSchedule())
	require.Equal(t, 300, cfg.Cache.FreshnessSeconds)
	require.Equal(t, 24, cfg.Cache.RetentionHours)
}
