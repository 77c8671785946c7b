package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the PromoReel server.
type Config struct {
	Server    ServerConfig
	Paths     PathsConfig
	Synthesis SynthesisConfig
	Narration NarrationConfig
	Music     MusicConfig
	Nutrition NutritionConfig
	OSS       OSSConfig
	Jobs      JobsConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

// PathsConfig locates the on-disk state: one working directory per job under
// OutputDir, uploaded images under UploadsDir, the registry snapshot under
// DataDir.
type PathsConfig struct {
	OutputDir  string
	UploadsDir string
	DataDir    string
}

type SynthesisConfig struct {
	APIKey          string
	BaseURL         string
	TasksURL        string
	Model           string
	Resolution      string
	PollInterval    time.Duration
	PollMaxAttempts int
}

type NarrationConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

type MusicConfig struct {
	RepoPath          string
	Stage1Model       string
	Stage2Model       string
	RunSegments       int
	Stage2BatchSize   int
	MaxNewTokens      int
	RepetitionPenalty float64
}

type NutritionConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

type OSSConfig struct {
	Region          string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
}

type JobsConfig struct {
	Retention       time.Duration
	PersistInterval time.Duration
}

// Load reads configuration from a .env file (if present) and environment
// variables, and returns a validated Config.
func Load() (*Config, error) {
	// Missing .env is fine; system env still applies.
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("PROMOREEL_PORT", 3000),
			Env:  envString("PROMOREEL_ENV", "development"),
		},
		Paths: PathsConfig{
			OutputDir:  envString("PROMOREEL_OUTPUT_DIR", "./output"),
			UploadsDir: envString("PROMOREEL_UPLOADS_DIR", "./uploads"),
			DataDir:    envString("PROMOREEL_DATA_DIR", "./data"),
		},
		Synthesis: SynthesisConfig{
			APIKey:          os.Getenv("DASHSCOPE_API_KEY"),
			BaseURL:         envString("SYNTHESIS_BASE_URL", "https://dashscope-intl.aliyuncs.com/api/v1/services/aigc/video-generation/video-synthesis"),
			TasksURL:        envString("SYNTHESIS_TASKS_URL", "https://dashscope-intl.aliyuncs.com/api/v1/tasks"),
			Model:           envString("SYNTHESIS_MODEL", "wan2.1-i2v-turbo"),
			Resolution:      envString("SYNTHESIS_RESOLUTION", "720P"),
			PollInterval:    envDuration("SYNTHESIS_POLL_INTERVAL", 30*time.Second),
			PollMaxAttempts: envInt("SYNTHESIS_POLL_MAX_ATTEMPTS", 300),
		},
		Narration: NarrationConfig{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			BaseURL: envString("NARRATION_BASE_URL", "https://api.openai.com/v1"),
			Model:   envString("NARRATION_MODEL", "gpt-4-turbo"),
			Timeout: envDuration("NARRATION_TIMEOUT", 60*time.Second),
		},
		Music: MusicConfig{
			RepoPath:          os.Getenv("YUE_REPO_PATH"),
			Stage1Model:       envString("YUE_STAGE1_MODEL", "m-a-p/YuE-s1-7B-anneal-en-cot"),
			Stage2Model:       envString("YUE_STAGE2_MODEL", "m-a-p/YuE-s2-1B-general"),
			RunSegments:       envInt("YUE_RUN_SEGMENTS", 2),
			Stage2BatchSize:   envInt("YUE_STAGE2_BATCH_SIZE", 4),
			MaxNewTokens:      envInt("YUE_MAX_NEW_TOKENS", 3000),
			RepetitionPenalty: envFloat("YUE_REPETITION_PENALTY", 1.1),
		},
		Nutrition: NutritionConfig{
			APIKey:  os.Getenv("DASHSCOPE_API_KEY"),
			BaseURL: envString("NUTRITION_BASE_URL", "https://dashscope-intl.aliyuncs.com/api/v1/services/aigc/multimodal-generation/generation"),
			Model:   envString("NUTRITION_MODEL", "qvq-max"),
			Timeout: envDuration("NUTRITION_TIMEOUT", 120*time.Second),
		},
		OSS: OSSConfig{
			Region:          envString("OSS_REGION", "oss-ap-southeast-5"),
			AccessKeyID:     os.Getenv("OSS_ACCESS_KEY_ID"),
			AccessKeySecret: os.Getenv("OSS_ACCESS_KEY_SECRET"),
			Bucket:          os.Getenv("OSS_BUCKET"),
		},
		Jobs: JobsConfig{
			Retention:       envDuration("JOB_RETENTION", time.Hour),
			PersistInterval: envDuration("JOB_PERSIST_INTERVAL", 30*time.Second),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("PROMOREEL_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Synthesis.APIKey == "" {
		return fmt.Errorf("DASHSCOPE_API_KEY is required")
	}
	if c.Synthesis.PollMaxAttempts < 1 {
		return fmt.Errorf("SYNTHESIS_POLL_MAX_ATTEMPTS must be at least 1, got %d", c.Synthesis.PollMaxAttempts)
	}
	if c.Synthesis.PollInterval <= 0 {
		return fmt.Errorf("SYNTHESIS_POLL_INTERVAL must be positive, got %s", c.Synthesis.PollInterval)
	}
	return nil
}

// HasOSS reports whether object storage credentials are configured. Image
// uploads are disabled without them; the video pipeline does not need OSS.
func (c *Config) HasOSS() bool {
	return c.OSS.AccessKeyID != "" && c.OSS.AccessKeySecret != "" && c.OSS.Bucket != ""
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
