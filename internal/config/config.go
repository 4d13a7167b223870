package config

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"quiz-battle/internal/app"
	"quiz-battle/internal/domain"
	"quiz-battle/internal/shard"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	NATS struct {
		URL string `yaml:"url"`
	} `yaml:"nats"`
	Realtime struct {
		// Driver is one of memory, redis, nats or websocket.
		Driver   string `yaml:"driver"`
		RelayURL string `yaml:"relay_url"`
	} `yaml:"realtime"`
	Corpus struct {
		TTL     string `yaml:"ttl"`
		Version string `yaml:"version"`
	} `yaml:"corpus"`
	Battle Battle `yaml:"battle"`
}

type Battle struct {
	Questions      int               `yaml:"questions"`
	PerKindCap     int               `yaml:"per_kind_cap"`
	Countdown      string            `yaml:"countdown"`
	AnswerPause    string            `yaml:"answer_pause"`
	Tick           string            `yaml:"tick"`
	PollInterval   string            `yaml:"poll_interval"`
	WaitCeiling    string            `yaml:"wait_ceiling"`
	SubmitAttempts int               `yaml:"submit_attempts"`
	SubmitBackoff  string            `yaml:"submit_backoff"`
	InviteTTL      string            `yaml:"invite_ttl"`
	TimeLimits     map[string]string `yaml:"time_limits"`
}

// Load reads YAML config from path. A missing file yields the defaults so
// the local commands run without any config.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

// positiveDuration is TTLDuration for settings that must be above zero.
func positiveDuration(raw string, fallback time.Duration) time.Duration {
	if d := TTLDuration(raw, fallback); d > 0 {
		return d
	}
	return fallback
}

// nonNegativeDuration is TTLDuration for settings where zero disables a delay.
func nonNegativeDuration(raw string, fallback time.Duration) time.Duration {
	if d := TTLDuration(raw, fallback); d >= 0 {
		return d
	}
	return fallback
}

// Controller maps the battle section onto the lifecycle settings, falling
// back to app.DefaultConfig for anything unset.
func (c Config) Controller() app.Config {
	def := app.DefaultConfig()
	b := c.Battle
	out := app.Config{
		Questions:     shard.DefaultQuestions,
		PerKindCap:    shard.DefaultPerKindCap,
		CorpusVersion: def.CorpusVersion,
		Countdown:     nonNegativeDuration(b.Countdown, def.Countdown),
		Timing: app.RoundTiming{
			TimeLimits: make(map[domain.Kind]time.Duration, len(domain.Kinds)),
			Tick:       nonNegativeDuration(b.Tick, def.Timing.Tick),
			Pause:      nonNegativeDuration(b.AnswerPause, def.Timing.Pause),
		},
		PollInterval:   positiveDuration(b.PollInterval, def.PollInterval),
		WaitCeiling:    positiveDuration(b.WaitCeiling, def.WaitCeiling),
		SubmitAttempts: def.SubmitAttempts,
		SubmitBackoff:  positiveDuration(b.SubmitBackoff, def.SubmitBackoff),
		InviteTTL:      nonNegativeDuration(b.InviteTTL, def.InviteTTL),
	}
	if b.Questions > 0 {
		out.Questions = b.Questions
	}
	if b.PerKindCap > 0 {
		out.PerKindCap = b.PerKindCap
	}
	if b.SubmitAttempts > 0 {
		out.SubmitAttempts = b.SubmitAttempts
	}
	if c.Corpus.Version != "" {
		out.CorpusVersion = c.Corpus.Version
	}
	for _, k := range domain.Kinds {
		out.Timing.TimeLimits[k] = positiveDuration(b.TimeLimits[string(k)], domain.DefaultTimeLimit(k))
	}
	return out
}

// SetupLogging configures the global zerolog logger. Format "json" writes
// structured lines; anything else uses the console writer.
func SetupLogging(c Config, out io.Writer) {
	level, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level))
	if err != nil || c.Log.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if strings.EqualFold(c.Log.Format, "json") {
		log.Logger = zerolog.New(out).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: out})
}
