package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var ErrBotTokenRequired = errors.New("BOT_TOKEN is required")

type Config struct {
	Env      string         `yaml:"env"`
	HTTP     HTTPConfig     `yaml:"http"`
	Log      LogConfig      `yaml:"log"`
	Auth     AuthConfig     `yaml:"auth"`
	CORS     CORSConfig     `yaml:"cors"`
	Storage  StorageConfig  `yaml:"storage"`
	S3       S3Config       `yaml:"s3"`
	Actions  ActionsConfig  `yaml:"actions"`
	Upload   UploadConfig   `yaml:"upload"`
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
	Rate     RateConfig     `yaml:"rate"`
}

type HTTPConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type AuthConfig struct {
	BotToken     string        `yaml:"bot_token"`
	AdminIDs     []int64       `yaml:"admin_ids"`
	MaxAge       time.Duration `yaml:"max_age"`
	JWTSecret    string        `yaml:"jwt_secret"`
	JWTAccessTTL time.Duration `yaml:"jwt_access_ttl"`
}

type CORSConfig struct {
	Origins []string `yaml:"origins"`
}

type StorageConfig struct {
	Backend string `yaml:"backend"`
	MIDIDir string `yaml:"midi_dir"`
}

type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type ActionsConfig struct {
	LogPath  string        `yaml:"log_path"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

type UploadConfig struct {
	Token    string `yaml:"token"`
	MaxBytes int64  `yaml:"max_bytes"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type RateConfig struct {
	AuthPerMinute   int `yaml:"auth_per_minute"`
	UploadPerMinute int `yaml:"upload_per_minute"`
}

const (
	StorageFS = "fs"
	StorageS3 = "s3"
)

func Default() Config {
	return Config{
		Env: "dev",
		HTTP: HTTPConfig{
			Addr:         ":8000",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "json"},
		Auth: AuthConfig{
			MaxAge:       24 * time.Hour,
			JWTAccessTTL: 15 * time.Minute,
		},
		CORS: CORSConfig{
			Origins: []string{
				"http://localhost:3000",
				"http://127.0.0.1:3000",
				"https://*.ngrok-free.app",
				"https://*.ngrok.io",
			},
		},
		Storage: StorageConfig{
			Backend: StorageFS,
			MIDIDir: "./data/midi",
		},
		S3: S3Config{
			Endpoint:  "localhost:9000",
			AccessKey: "minio",
			SecretKey: "minio123",
			Bucket:    "audio2midi",
			Prefix:    "midi/",
			UseSSL:    false,
		},
		Actions: ActionsConfig{
			LogPath:  "./data/current_action_log.txt",
			CacheTTL: 5 * time.Minute,
		},
		Upload: UploadConfig{
			MaxBytes: 10 << 20,
		},
		Redis: RedisConfig{
			Addr: "",
			DB:   0,
		},
		Rate: RateConfig{
			AuthPerMinute:   30,
			UploadPerMinute: 20,
		},
	}
}

// Load applies the YAML file at path (a missing file is ignored) and the
// environment on top of Default. A bot token is mandatory.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFromYAML(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Auth.BotToken) == "" {
		return ErrBotTokenRequired
	}
	switch c.Storage.Backend {
	case StorageFS:
		if strings.TrimSpace(c.Storage.MIDIDir) == "" {
			return fmt.Errorf("storage.midi_dir is required for the fs backend")
		}
	case StorageS3:
		if strings.TrimSpace(c.S3.Bucket) == "" {
			return fmt.Errorf("s3.bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	return nil
}

func loadFromYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("unmarshal config yaml: %w", err)
	}

	return nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.Env = v
	}

	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if err := overrideDuration("HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout); err != nil {
		return err
	}
	if err := overrideDuration("HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout); err != nil {
		return err
	}
	if err := overrideDuration("HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout); err != nil {
		return err
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = strings.ToLower(v)
	}

	if v := os.Getenv("BOT_TOKEN"); v != "" {
		cfg.Auth.BotToken = v
	}
	if err := overrideInt64List("ADMIN_IDS", &cfg.Auth.AdminIDs); err != nil {
		return err
	}
	if err := overrideDuration("AUTH_MAX_AGE", &cfg.Auth.MaxAge); err != nil {
		return err
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if err := overrideDuration("JWT_ACCESS_TTL", &cfg.Auth.JWTAccessTTL); err != nil {
		return err
	}

	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.CORS.Origins = splitList(v)
	}

	if v := os.Getenv("STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("MIDI_DIR"); v != "" {
		cfg.Storage.MIDIDir = v
	}

	if v := os.Getenv("S3_ENDPOINT"); v != "" {
		cfg.S3.Endpoint = v
	}
	if v := os.Getenv("S3_ACCESS_KEY"); v != "" {
		cfg.S3.AccessKey = v
	}
	if v := os.Getenv("S3_SECRET_KEY"); v != "" {
		cfg.S3.SecretKey = v
	}
	if v := os.Getenv("S3_REGION"); v != "" {
		cfg.S3.Region = v
	}
	if v := os.Getenv("S3_BUCKET"); v != "" {
		cfg.S3.Bucket = v
	}
	if v := os.Getenv("S3_PREFIX"); v != "" {
		cfg.S3.Prefix = v
	}
	if err := overrideBool("S3_USE_SSL", &cfg.S3.UseSSL); err != nil {
		return err
	}

	if v := os.Getenv("ACTION_LOG_PATH"); v != "" {
		cfg.Actions.LogPath = v
	}
	if err := overrideDuration("ACTION_CACHE_TTL", &cfg.Actions.CacheTTL); err != nil {
		return err
	}

	if v := os.Getenv("UPLOAD_TOKEN"); v != "" {
		cfg.Upload.Token = v
	}
	if err := overrideInt64("UPLOAD_MAX_BYTES", &cfg.Upload.MaxBytes); err != nil {
		return err
	}

	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Postgres.DSN = v
	}

	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if err := overrideInt("REDIS_DB", &cfg.Redis.DB); err != nil {
		return err
	}

	if err := overrideInt("RATE_AUTH_PER_MINUTE", &cfg.Rate.AuthPerMinute); err != nil {
		return err
	}
	if err := overrideInt("RATE_UPLOAD_PER_MINUTE", &cfg.Rate.UploadPerMinute); err != nil {
		return err
	}

	return nil
}

func overrideDuration(key string, target *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("parse %s duration: %w", key, err)
	}
	*target = d
	return nil
}

func overrideInt(key string, target *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("parse %s int: %w", key, err)
	}
	*target = n
	return nil
}

func overrideInt64(key string, target *int64) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("parse %s int64: %w", key, err)
	}
	*target = n
	return nil
}

func overrideBool(key string, target *bool) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("parse %s bool: %w", key, err)
	}
	*target = b
	return nil
}

// overrideInt64List parses a comma separated list such as "371331803, 42".
func overrideInt64List(key string, target *[]int64) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	ids, err := ParseIDList(v)
	if err != nil {
		return fmt.Errorf("parse %s list: %w", key, err)
	}
	*target = ids
	return nil
}

func ParseIDList(raw string) ([]int64, error) {
	items := splitList(raw)
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		id, err := strconv.ParseInt(item, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q: %w", item, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
