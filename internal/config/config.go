// backend-go/internal/config/config.go
package config

import (
	"log"
	"os"
	"runtime"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/andresuchdata/autopo-forecast/backend-go/internal/domain"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	App      AppConfig
	Cache    CacheConfig
	Storage  StorageConfig
	Forecast ForecastConfig
	Pipeline PipelineConfig
	Drive    DriveConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
	LogFormat      string
}

type DatabaseConfig struct {
	Enabled  bool
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type AppConfig struct {
	UploadDir string
	DataDir   string
	BoltPath  string
}

type CacheConfig struct {
	Enabled          bool
	RedisURL         string
	RedisHost        string
	RedisPort        string
	RedisPassword    string
	RedisDB          int
	ResultTTLSeconds int
}

// StorageConfig describes the S3-compatible bucket exports are uploaded to.
type StorageConfig struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	Prefix    string
}

// ForecastConfig holds the global planning defaults. Per-SKU overrides are
// merged on top of these at request time.
type ForecastConfig struct {
	Horizon                  int
	ConfidenceLevel          float64
	Frequency                string
	FillMode                 string
	SeasonalLength           int
	ServiceLevel             float64
	LeadTimeDays             int
	SafetyStockPolicy        string
	ReorderPolicy            string
	ReviewPeriodDays         int
	MinOrderQty              float64
	IntermittencyThreshold   float64
	SeasonalitySignificance  float64
	TrendThreshold           float64
	EnableTBATS              bool
	LowCoverageThreshold     float64
	DemandChangeThreshold    float64
	VolatilityRatioThreshold float64
}

// PlanConfig converts the global defaults into a planning config.
func (f ForecastConfig) PlanConfig() domain.PlanConfig {
	return domain.PlanConfig{
		Horizon:         f.Horizon,
		ConfidenceLevel: f.ConfidenceLevel,
		Frequency:       domain.Frequency(f.Frequency),
		FillMode:        domain.FillMode(f.FillMode),
		SeasonalLength:  f.SeasonalLength,
		EnableTBATS:     f.EnableTBATS,
		Policy: domain.ReorderPolicy{
			ServiceLevel:      f.ServiceLevel,
			LeadTimeDays:      f.LeadTimeDays,
			SafetyStockPolicy: domain.SafetyStockPolicy(f.SafetyStockPolicy),
			ReorderPolicy:     domain.ReorderPolicyKind(f.ReorderPolicy),
			ReviewPeriodDays:  f.ReviewPeriodDays,
			MinOrderQty:       f.MinOrderQty,
		},
		IntermittencyThreshold:  f.IntermittencyThreshold,
		SeasonalitySignificance: f.SeasonalitySignificance,
		TrendThreshold:          f.TrendThreshold,
		LowCoverageThreshold:    f.LowCoverageThreshold,
		DemandChangeThreshold:   f.DemandChangeThreshold,
		VolatilityRatio:         f.VolatilityRatioThreshold,
	}
}

type PipelineConfig struct {
	WorkerCount int
}

// DriveConfig holds the service account used to pull history files.
// CredentialsJSON wins over CredentialsFile when both are set.
type DriveConfig struct {
	CredentialsJSON string
	CredentialsFile string
	FolderID        string
}

var (
	once     sync.Once
	instance *Config
)

// Load reads .env and the environment once and returns the shared config.
func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		v := viper.GetViper()
		SetDefaults(v)

		// Read from environment variables
		v.AutomaticEnv()

		instance = FromViper(v)

		ensureDir(instance.App.UploadDir)
		ensureDir(instance.App.DataDir)
	})

	return instance
}

// SetDefaults registers every recognised key with its default value.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_MODE", "debug")
	v.SetDefault("SERVER_READ_TIMEOUT", 30)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 120)
	v.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})
	v.SetDefault("LOG_FORMAT", "console")

	v.SetDefault("DB_ENABLED", false)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "autopo_forecast")
	v.SetDefault("DB_SSLMODE", "disable")

	v.SetDefault("APP_UPLOAD_DIR", "./data/uploads")
	v.SetDefault("APP_DATA_DIR", "./data/output")
	v.SetDefault("APP_BOLT_PATH", "")

	v.SetDefault("CACHE_ENABLED", false)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_HOST", "127.0.0.1")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_RESULT_TTL_SECONDS", 3600)

	v.SetDefault("STORAGE_ENABLED", false)
	v.SetDefault("STORAGE_ENDPOINT", "")
	v.SetDefault("STORAGE_ACCESS_KEY", "")
	v.SetDefault("STORAGE_SECRET_KEY", "")
	v.SetDefault("STORAGE_BUCKET", "")
	v.SetDefault("STORAGE_REGION", "us-east-1")
	v.SetDefault("STORAGE_USE_SSL", true)
	v.SetDefault("STORAGE_PREFIX", "forecast-exports")

	v.SetDefault("FORECAST_HORIZON", 90)
	v.SetDefault("FORECAST_CONFIDENCE_LEVEL", 0.95)
	v.SetDefault("FORECAST_FREQUENCY", "")
	v.SetDefault("FORECAST_FILL_MODE", "zero")
	v.SetDefault("FORECAST_SEASONAL_LENGTH", 0)
	v.SetDefault("FORECAST_SERVICE_LEVEL", 0.95)
	v.SetDefault("FORECAST_LEAD_TIME_DAYS", 7)
	v.SetDefault("FORECAST_SAFETY_STOCK_POLICY", "z_score")
	v.SetDefault("FORECAST_REORDER_POLICY", "continuous_review")
	v.SetDefault("FORECAST_REVIEW_PERIOD_DAYS", 7)
	v.SetDefault("FORECAST_MIN_ORDER_QTY", 0)
	v.SetDefault("FORECAST_INTERMITTENCY_THRESHOLD", 0.30)
	v.SetDefault("FORECAST_SEASONALITY_SIGNIFICANCE", 2.0)
	v.SetDefault("FORECAST_TREND_THRESHOLD", 0.15)
	v.SetDefault("FORECAST_ENABLE_TBATS", false)
	v.SetDefault("FORECAST_LOW_COVERAGE_THRESHOLD", 0.8)
	v.SetDefault("FORECAST_DEMAND_CHANGE_THRESHOLD", 0.10)
	v.SetDefault("FORECAST_VOLATILITY_RATIO", 1.5)

	v.SetDefault("PIPELINE_WORKERS", runtime.NumCPU())

	v.SetDefault("GOOGLE_DRIVE_CREDENTIALS_JSON", "")
	v.SetDefault("GOOGLE_DRIVE_CREDENTIALS_FILE", "")
	v.SetDefault("GOOGLE_DRIVE_FOLDER_ID", "")
}

// FromViper builds a Config from an already-populated viper instance.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			Mode:           v.GetString("SERVER_MODE"),
			ReadTimeout:    v.GetInt("SERVER_READ_TIMEOUT"),
			WriteTimeout:   v.GetInt("SERVER_WRITE_TIMEOUT"),
			AllowedOrigins: v.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
			LogFormat:      v.GetString("LOG_FORMAT"),
		},
		Database: DatabaseConfig{
			Enabled:  v.GetBool("DB_ENABLED"),
			URL:      v.GetString("DATABASE_URL"),
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		App: AppConfig{
			UploadDir: v.GetString("APP_UPLOAD_DIR"),
			DataDir:   v.GetString("APP_DATA_DIR"),
			BoltPath:  v.GetString("APP_BOLT_PATH"),
		},
		Cache: CacheConfig{
			Enabled:          v.GetBool("CACHE_ENABLED"),
			RedisURL:         v.GetString("REDIS_URL"),
			RedisHost:        v.GetString("REDIS_HOST"),
			RedisPort:        v.GetString("REDIS_PORT"),
			RedisPassword:    v.GetString("REDIS_PASSWORD"),
			RedisDB:          v.GetInt("REDIS_DB"),
			ResultTTLSeconds: v.GetInt("CACHE_RESULT_TTL_SECONDS"),
		},
		Storage: StorageConfig{
			Enabled:   v.GetBool("STORAGE_ENABLED"),
			Endpoint:  v.GetString("STORAGE_ENDPOINT"),
			AccessKey: v.GetString("STORAGE_ACCESS_KEY"),
			SecretKey: v.GetString("STORAGE_SECRET_KEY"),
			Bucket:    v.GetString("STORAGE_BUCKET"),
			Region:    v.GetString("STORAGE_REGION"),
			UseSSL:    v.GetBool("STORAGE_USE_SSL"),
			Prefix:    v.GetString("STORAGE_PREFIX"),
		},
		Forecast: ForecastConfig{
			Horizon:                  v.GetInt("FORECAST_HORIZON"),
			ConfidenceLevel:          v.GetFloat64("FORECAST_CONFIDENCE_LEVEL"),
			Frequency:                v.GetString("FORECAST_FREQUENCY"),
			FillMode:                 v.GetString("FORECAST_FILL_MODE"),
			SeasonalLength:           v.GetInt("FORECAST_SEASONAL_LENGTH"),
			ServiceLevel:             v.GetFloat64("FORECAST_SERVICE_LEVEL"),
			LeadTimeDays:             v.GetInt("FORECAST_LEAD_TIME_DAYS"),
			SafetyStockPolicy:        v.GetString("FORECAST_SAFETY_STOCK_POLICY"),
			ReorderPolicy:            v.GetString("FORECAST_REORDER_POLICY"),
			ReviewPeriodDays:         v.GetInt("FORECAST_REVIEW_PERIOD_DAYS"),
			MinOrderQty:              v.GetFloat64("FORECAST_MIN_ORDER_QTY"),
			IntermittencyThreshold:   v.GetFloat64("FORECAST_INTERMITTENCY_THRESHOLD"),
			SeasonalitySignificance:  v.GetFloat64("FORECAST_SEASONALITY_SIGNIFICANCE"),
			TrendThreshold:           v.GetFloat64("FORECAST_TREND_THRESHOLD"),
			EnableTBATS:              v.GetBool("FORECAST_ENABLE_TBATS"),
			LowCoverageThreshold:     v.GetFloat64("FORECAST_LOW_COVERAGE_THRESHOLD"),
			DemandChangeThreshold:    v.GetFloat64("FORECAST_DEMAND_CHANGE_THRESHOLD"),
			VolatilityRatioThreshold: v.GetFloat64("FORECAST_VOLATILITY_RATIO"),
		},
		Pipeline: PipelineConfig{
			WorkerCount: v.GetInt("PIPELINE_WORKERS"),
		},
		Drive: DriveConfig{
			CredentialsJSON: v.GetString("GOOGLE_DRIVE_CREDENTIALS_JSON"),
			CredentialsFile: v.GetString("GOOGLE_DRIVE_CREDENTIALS_FILE"),
			FolderID:        v.GetString("GOOGLE_DRIVE_FOLDER_ID"),
		},
	}
}

func ensureDir(dir string) {
	if dir == "" {
		return
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create directory %s: %v", dir, err)
		}
	}
}
