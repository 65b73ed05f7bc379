// Package config loads the pipeline configuration from YAML with an
// optional .env overlay for deployment secrets (Redis/Postgres URLs,
// API keys). Every knob has a default so all four binaries start with
// an empty file in local development.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Redis    RedisConfig    `yaml:"redis"`
	Streams  StreamsConfig  `yaml:"streams"`
	Commit   CommitConfig   `yaml:"commit"`
	Model    ModelConfig    `yaml:"model"`
	Lexicon  LexiconConfig  `yaml:"lexicon"`
	KB       KBConfig       `yaml:"kb"`
	Outbound OutboundConfig `yaml:"outbound"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
	Env  string `yaml:"env"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// StreamsConfig describes the two partitioned streams. Shards is the
// partition count; a session always hashes to the same shard, which is
// what gives the pipeline its per-session ordering guarantee.
type StreamsConfig struct {
	LandmarksStream  string        `yaml:"landmarks_stream"`
	LettersStream    string        `yaml:"letters_stream"`
	Shards           int           `yaml:"shards"`
	MaxLen           int64         `yaml:"max_len"`
	SubscriptionTTL  time.Duration `yaml:"subscription_ttl"`
	BlockTimeout     time.Duration `yaml:"block_timeout"`
	MaxRetryDelay    time.Duration `yaml:"max_retry_delay"`
	ConsumerRegistry string        `yaml:"consumer_registry"`
}

// CommitConfig carries the sliding-window commit rules.
//
// MaxConsecutiveSame follows the configured value, not the original
// code comment: with the default 1, "AA" is rejected; set 2 to allow
// doubled letters but forbid "AAA".
type CommitConfig struct {
	WindowDurationMS   int     `yaml:"window_duration_ms"`
	StabilityMS        int     `yaml:"stability_duration_ms"`
	PauseDurationMS    int     `yaml:"pause_duration_ms"`
	MinConfidence      float64 `yaml:"min_confidence"`
	CommitConfidence   float64 `yaml:"commit_min_confidence"`
	MaxConsecutiveSame int     `yaml:"max_consecutive_same"`
	SessionTTLSeconds  int     `yaml:"session_ttl_seconds"`
	SweepIntervalMS    int     `yaml:"sweep_interval_ms"`
}

type ModelConfig struct {
	WeightsPath string `yaml:"weights_path"`
	LabelsPath  string `yaml:"labels_path"`
}

type LexiconConfig struct {
	PostgresURL string `yaml:"postgres_url"`
	// DefaultUserID scopes lexicon lookups when no per-session user
	// mapping exists.
	DefaultUserID  string        `yaml:"default_user_id"`
	QueryTimeout   time.Duration `yaml:"query_timeout"`
	FuzzyMaxEdits  int           `yaml:"fuzzy_max_edits"`
	AutoMaxEdits   int           `yaml:"autocomplete_max_edits"`
	CandidateLimit int           `yaml:"candidate_limit"`
	TopResults     int           `yaml:"top_results"`
}

type KBConfig struct {
	ProjectID        string `yaml:"project_id"`
	SpannerInstance  string `yaml:"spanner_instance"`
	SpannerDatabase  string `yaml:"spanner_database"`
	UploadsBucket    string `yaml:"uploads_bucket"`
	RawBucket        string `yaml:"raw_bucket"`
	AliasesBucket    string `yaml:"aliases_bucket"`
	OCRServiceURL    string `yaml:"ocr_service_url"`
	UploadsTopic     string `yaml:"uploads_topic"`
	OCRDoneTopic     string `yaml:"ocr_done_topic"`
	TermsReadyTopic  string `yaml:"terms_ready_topic"`
	LLMModel         string `yaml:"llm_model"`
	LLMBatchSize     int    `yaml:"llm_batch_size"`
	MaxAliasesPerKey int    `yaml:"max_aliases_per_surface"`
}

type OutboundConfig struct {
	PushWorkerURL string `yaml:"push_worker_url"`
	TasksLocation string `yaml:"tasks_location"`
	TasksQueue    string `yaml:"tasks_queue"`
}

// Load reads the YAML config at path, after loading a .env file if one
// exists next to the working directory. A missing config file is not an
// error; defaults apply.
func Load(path string) (*Config, error) {
	// .env is optional; ignore absence.
	_ = godotenv.Load()

	cfg := Default()

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnv()
			return cfg, nil
		}
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.applyEnv()
	return cfg, nil
}

// Default returns the configuration used when no file is present.
// The commit-rule numbers are the tuned production values: a 300ms
// window with a 200ms stability requirement and a 2s pause.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: "8080", Env: "dev"},
		Redis:  RedisConfig{Addr: "localhost:6379"},
		Streams: StreamsConfig{
			LandmarksStream:  "asl-landmarks-stream",
			LettersStream:    "asl-letters-stream",
			Shards:           4,
			MaxLen:           100000,
			SubscriptionTTL:  5 * time.Minute,
			BlockTimeout:     5 * time.Second,
			MaxRetryDelay:    60 * time.Second,
			ConsumerRegistry: "stream:consumers:",
		},
		Commit: CommitConfig{
			WindowDurationMS:   300,
			StabilityMS:        200,
			PauseDurationMS:    2000,
			MinConfidence:      0.3,
			CommitConfidence:   0.4,
			MaxConsecutiveSame: 1,
			SessionTTLSeconds:  300,
			SweepIntervalMS:    1000,
		},
		Model: ModelConfig{
			WeightsPath: "model/keypoint_classifier/keypoint_classifier.json",
			LabelsPath:  "model/keypoint_classifier/keypoint_classifier_label.csv",
		},
		Lexicon: LexiconConfig{
			DefaultUserID:  "default",
			QueryTimeout:   5 * time.Second,
			FuzzyMaxEdits:  2,
			AutoMaxEdits:   1,
			CandidateLimit: 20,
			TopResults:     5,
		},
		KB: KBConfig{
			UploadsBucket:    "glossa-kb-uploads",
			RawBucket:        "glossa-kb-raw",
			AliasesBucket:    "glossa-kb-aliases",
			UploadsTopic:     "kb-uploads",
			OCRDoneTopic:     "kb-ocr-done",
			TermsReadyTopic:  "kb-terms-ready",
			LLMModel:         "gpt-4o-mini",
			LLMBatchSize:     50,
			MaxAliasesPerKey: 50,
		},
		Outbound: OutboundConfig{
			TasksLocation: "us-east1",
			TasksQueue:    "asl-outbound",
		},
	}
}

// applyEnv overrides deployment knobs from the environment. Only the
// values that differ per environment are exposed this way; tuning
// parameters stay in the YAML file.
func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("GLOSSA_ENV"); v != "" {
		c.Server.Env = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("POSTGRES_URL"); v != "" {
		c.Lexicon.PostgresURL = v
	}
	if v := os.Getenv("GCP_PROJECT"); v != "" {
		c.KB.ProjectID = v
	}
	if v := os.Getenv("PUSH_WORKER_URL"); v != "" {
		c.Outbound.PushWorkerURL = v
	}
}

// WindowDuration and friends expose the millisecond knobs as
// time.Duration for callers that do arithmetic with them.

func (c CommitConfig) WindowDuration() time.Duration {
	return time.Duration(c.WindowDurationMS) * time.Millisecond
}

func (c CommitConfig) StabilityDuration() time.Duration {
	return time.Duration(c.StabilityMS) * time.Millisecond
}

func (c CommitConfig) PauseDuration() time.Duration {
	return time.Duration(c.PauseDurationMS) * time.Millisecond
}

func (c CommitConfig) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLSeconds) * time.Second
}

func (c CommitConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalMS) * time.Millisecond
}
