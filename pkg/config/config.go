package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	OCR          OCRConfig
	LLM          LLMConfig
	Matcher      MatcherConfig
	Pipeline     PipelineConfig
	Inventory    InventoryConfig
	Storage      StorageConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Vision       VisionConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SPIZARKA_APP_ENV" required:"true"`
	Port         string `envconfig:"SPIZARKA_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"SPIZARKA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SPIZARKA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"SPIZARKA_DB_DSN"`
	Driver string `envconfig:"SPIZARKA_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"SPIZARKA_DB_HOST"`
	Port     int    `envconfig:"SPIZARKA_DB_PORT" default:"5432"`
	User     string `envconfig:"SPIZARKA_DB_USER"`
	Password string `envconfig:"SPIZARKA_DB_PASSWORD"`
	Name     string `envconfig:"SPIZARKA_DB_NAME"`
	SSLMode  string `envconfig:"SPIZARKA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SPIZARKA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SPIZARKA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SPIZARKA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SPIZARKA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SPIZARKA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SPIZARKA_REDIS_ADDR"`
	Password     string        `envconfig:"SPIZARKA_REDIS_PASSWORD"`
	DB           int           `envconfig:"SPIZARKA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SPIZARKA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SPIZARKA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SPIZARKA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SPIZARKA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SPIZARKA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// OCRConfig drives the adaptive OCR coordinator.
type OCRConfig struct {
	ConfidenceThreshold float64       `envconfig:"SPIZARKA_OCR_CONFIDENCE_THRESHOLD" default:"0.7"`
	LocalTimeout        time.Duration `envconfig:"SPIZARKA_OCR_LOCAL_TIMEOUT" default:"30s"`
	PaidTimeout         time.Duration `envconfig:"SPIZARKA_OCR_PAID_TIMEOUT" default:"60s"`
	PaidAttemptBudget   int           `envconfig:"SPIZARKA_OCR_PAID_ATTEMPT_BUDGET" default:"1"`
	Languages           []string      `envconfig:"SPIZARKA_OCR_LANGUAGES" default:"pol,eng"`
}

type LLMConfig struct {
	BaseURL     string        `envconfig:"SPIZARKA_LLM_BASE_URL" default:"http://localhost:11434"`
	Model       string        `envconfig:"SPIZARKA_LLM_MODEL" default:"llama3.2"`
	Temperature float64       `envconfig:"SPIZARKA_LLM_TEMPERATURE" default:"0.1"`
	MaxTokens   int           `envconfig:"SPIZARKA_LLM_MAX_TOKENS" default:"2000"`
	Timeout     time.Duration `envconfig:"SPIZARKA_LLM_TIMEOUT" default:"60s"`
}

type MatcherConfig struct {
	FuzzyThreshold     float64 `envconfig:"SPIZARKA_MATCHER_FUZZY_THRESHOLD" default:"0.75"`
	AutoCreateProducts bool    `envconfig:"SPIZARKA_MATCHER_AUTO_CREATE" default:"true"`
}

type PipelineConfig struct {
	MaxAttempts      int           `envconfig:"SPIZARKA_PIPELINE_MAX_ATTEMPTS" default:"3"`
	BackoffBase      time.Duration `envconfig:"SPIZARKA_PIPELINE_BACKOFF_BASE" default:"60s"`
	WorkerCount      int           `envconfig:"SPIZARKA_PIPELINE_WORKERS" default:"4"`
	QueuePollTimeout time.Duration `envconfig:"SPIZARKA_PIPELINE_QUEUE_POLL_TIMEOUT" default:"5s"`
}

type InventoryConfig struct {
	LowStockThreshold string `envconfig:"SPIZARKA_INVENTORY_LOW_STOCK_THRESHOLD" default:"5"`
}

type StorageConfig struct {
	UploadDir        string        `envconfig:"SPIZARKA_STORAGE_UPLOAD_DIR" default:"uploads/receipts"`
	ProcessedMaxAge  time.Duration `envconfig:"SPIZARKA_STORAGE_PROCESSED_MAX_AGE" default:"24h"`
	CleanupInterval  time.Duration `envconfig:"SPIZARKA_STORAGE_CLEANUP_INTERVAL" default:"6h"`
	MaxUploadMB      int           `envconfig:"SPIZARKA_STORAGE_MAX_UPLOAD_MB" default:"20"`
	AllowedMimeTypes []string      `envconfig:"SPIZARKA_STORAGE_ALLOWED_MIME" default:"image/jpeg,image/png,application/pdf"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"SPIZARKA_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"SPIZARKA_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"SPIZARKA_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	ProgressTopic string `envconfig:"SPIZARKA_PUBSUB_PROGRESS_TOPIC" default:"receipt-progress-events"`
	AdminTopic    string `envconfig:"SPIZARKA_PUBSUB_ADMIN_TOPIC" default:"admin-alerts"`
}

// VisionConfig configures the paid Cloud Vision OCR backend.
type VisionConfig struct {
	APIKey  string `envconfig:"SPIZARKA_VISION_API_KEY"`
	Enabled bool   `envconfig:"SPIZARKA_VISION_ENABLED" default:"false"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"SPIZARKA_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"SPIZARKA_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range requiredDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
