package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"quiz-battle/internal/domain"
)

func TestLoadAndController(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
server:
  port: "9090"
realtime:
  driver: nats
corpus:
  version: lessons-v2
battle:
  questions: 10
  countdown: 1s
  wait_ceiling: 2m
  submit_attempts: 5
  time_limits:
    swipe_true_false: 5s
    fill_blank: nonsense
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" || cfg.Realtime.Driver != "nats" {
		t.Fatalf("unexpected config %+v", cfg)
	}

	c := cfg.Controller()
	if c.Questions != 10 || c.PerKindCap != 3 || c.CorpusVersion != "lessons-v2" {
		t.Fatalf("unexpected sharding settings %+v", c)
	}
	if c.Countdown != time.Second || c.WaitCeiling != 2*time.Minute || c.PollInterval != 3*time.Second || c.SubmitAttempts != 5 {
		t.Fatalf("unexpected lifecycle settings %+v", c)
	}
	if got := c.Timing.TimeLimits[domain.KindTrueFalse]; got != 5*time.Second {
		t.Fatalf("true/false limit %s", got)
	}
	if got := c.Timing.TimeLimits[domain.KindFillBlank]; got != 10*time.Second {
		t.Fatalf("invalid limit should fall back, got %s", got)
	}
	if got := c.Timing.TimeLimits[domain.KindOrderSequence]; got != 18*time.Second {
		t.Fatalf("order limit %s", got)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	c := cfg.Controller()
	if c.Questions != 15 || c.Countdown != 3*time.Second || c.Timing.Pause != 800*time.Millisecond {
		t.Fatalf("expected defaults, got %+v", c)
	}
}

func TestControllerRejectsNonPositiveIntervals(t *testing.T) {
	for _, raw := range []string{"0s", "-1s"} {
		cfg := Config{Battle: Battle{
			Countdown:     "-3s",
			PollInterval:  raw,
			WaitCeiling:   raw,
			SubmitBackoff: raw,
			TimeLimits:    map[string]string{string(domain.KindTrueFalse): raw},
		}}
		c := cfg.Controller()
		if c.PollInterval != 3*time.Second || c.WaitCeiling != 5*time.Minute || c.SubmitBackoff != 500*time.Millisecond {
			t.Fatalf("%s: expected default intervals, got poll=%s ceiling=%s backoff=%s", raw, c.PollInterval, c.WaitCeiling, c.SubmitBackoff)
		}
		if c.Countdown != 3*time.Second {
			t.Fatalf("%s: negative countdown should fall back, got %s", raw, c.Countdown)
		}
		if got := c.Timing.TimeLimits[domain.KindTrueFalse]; got != domain.DefaultTimeLimit(domain.KindTrueFalse) {
			t.Fatalf("%s: time limit %s", raw, got)
		}
	}

	c := Config{Battle: Battle{Countdown: "0s", Tick: "0s"}}.Controller()
	if c.Countdown != 0 || c.Timing.Tick != 0 {
		t.Fatalf("zero countdown and tick are valid, got %s and %s", c.Countdown, c.Timing.Tick)
	}
}

func TestTTLDuration(t *testing.T) {
	if got := TTLDuration("", time.Minute); got != time.Minute {
		t.Fatalf("empty: %s", got)
	}
	if got := TTLDuration("bogus", time.Minute); got != time.Minute {
		t.Fatalf("bogus: %s", got)
	}
	if got := TTLDuration("90s", time.Minute); got != 90*time.Second {
		t.Fatalf("90s: %s", got)
	}
}

func TestSetupLoggingJSON(t *testing.T) {
	prev, prevLevel := log.Logger, zerolog.GlobalLevel()
	defer func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
	}()

	var buf bytes.Buffer
	cfg := Config{}
	cfg.Log.Level = "warn"
	cfg.Log.Format = "json"
	SetupLogging(cfg, &buf)

	log.Info().Msg("hidden")
	log.Warn().Str("battle_id", "b1").Msg("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, `"battle_id":"b1"`) {
		t.Fatalf("unexpected log output %q", out)
	}
}
