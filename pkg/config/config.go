package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// 运行环境
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// DevNonceSecret 开发环境默认的nonce密钥，生产环境禁止使用
const DevNonceSecret = "headless-pro-dev-secret"

// 查询复杂度上限
const (
	DebugQueryComplexityLimit      = 1000
	ProductionQueryComplexityLimit = 500
)

// Config 应用配置
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Log           LogConfig           `mapstructure:"log"`
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Site          SiteConfig          `mapstructure:"site"`
	Headless      HeadlessConfig      `mapstructure:"headless"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Mail          MailConfig          `mapstructure:"mail"`
	Telemetry     TelemetryConfig     `mapstructure:"telemetry"`
}

// AppConfig 应用配置
type AppConfig struct {
	Name      string `mapstructure:"name"`
	Version   string `mapstructure:"version"`
	Env       string `mapstructure:"env"`
	MachineID int64  `mapstructure:"machine_id"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	HTTP            HTTPConfig    `mapstructure:"http"`
	GRPC            GRPCConfig    `mapstructure:"grpc"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"` // 停止钩子的总超时
}

// HTTPConfig HTTP服务配置
type HTTPConfig struct {
	Addr    string        `mapstructure:"addr"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// GRPCConfig gRPC服务配置
type GRPCConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	MongoDB    MongoDBConfig    `mapstructure:"mongodb"`
	PostgreSQL PostgreSQLConfig `mapstructure:"postgresql"`
}

// MongoDBConfig MongoDB配置
type MongoDBConfig struct {
	URI    string `mapstructure:"uri"`
	DBName string `mapstructure:"db_name"`
}

// PostgreSQLConfig PostgreSQL配置
type PostgreSQLConfig struct {
	DSN    string `mapstructure:"dsn"`
	DBName string `mapstructure:"db_name"`
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// KafkaConfig Kafka配置
type KafkaConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	Brokers   []string `mapstructure:"brokers"`
	GroupID   string   `mapstructure:"group_id"`
	ViewTopic string   `mapstructure:"view_topic"`
	MailTopic string   `mapstructure:"mail_topic"`
}

// ElasticsearchConfig ElasticSearch配置
type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	Index     string   `mapstructure:"index"`
}

// SiteConfig 站点信息
type SiteConfig struct {
	Name         string `mapstructure:"name"`
	Description  string `mapstructure:"description"`
	URL          string `mapstructure:"url"`
	AdminEmail   string `mapstructure:"admin_email"`
	Language     string `mapstructure:"language"`
	Timezone     string `mapstructure:"timezone"`
	DateFormat   string `mapstructure:"date_format"`
	TimeFormat   string `mapstructure:"time_format"`
	ThemeName    string `mapstructure:"theme_name"`
	ThemeVersion string `mapstructure:"theme_version"`
}

// HeadlessConfig 无头站点配置（跨域、重定向、接口）
type HeadlessConfig struct {
	FrontendURL          string        `mapstructure:"frontend_url"`
	APIRoot              string        `mapstructure:"api_root"`
	AllowedOrigins       []string      `mapstructure:"allowed_origins"`
	ExtraOrigins         string        `mapstructure:"extra_origins"` // 逗号分隔
	QueryComplexityLimit int           `mapstructure:"query_complexity_limit"`
	CacheTTL             time.Duration `mapstructure:"cache_ttl"`
	StoreTimeout         time.Duration `mapstructure:"store_timeout"`
	NonceSecret          string        `mapstructure:"nonce_secret"`
	NonceTTL             time.Duration `mapstructure:"nonce_ttl"`
	ContactRateLimit     int64         `mapstructure:"contact_rate_limit"` // 0 表示不限流
	ContactRateWindow    time.Duration `mapstructure:"contact_rate_window"`
}

// StorageConfig 存储后端选择
type StorageConfig struct {
	Backend        string `mapstructure:"backend"` // postgres | memory
	Search         string `mapstructure:"search"`  // store | elasticsearch
	ContactArchive bool   `mapstructure:"contact_archive"`
}

// CacheConfig 响应缓存配置
type CacheConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// MailConfig 邮件配置
type MailConfig struct {
	Transport string        `mapstructure:"transport"` // smtp | kafka
	SMTPHost  string        `mapstructure:"smtp_host"`
	SMTPPort  int           `mapstructure:"smtp_port"`
	Username  string        `mapstructure:"username"`
	Password  string        `mapstructure:"password"`
	From      string        `mapstructure:"from"`
	Timeout   time.Duration `mapstructure:"timeout"` // 连接与读写超时
}

// TelemetryConfig 链路追踪配置
type TelemetryConfig struct {
	Enabled    bool    `mapstructure:"enabled"`
	Exporter   string  `mapstructure:"exporter"`
	SampleRate float64 `mapstructure:"sample_rate"`
}

// IsDebug 是否为调试环境
func (c *Config) IsDebug() bool {
	return c.App.Env != EnvProduction
}

// QueryComplexityLimit 返回查询复杂度上限，未显式配置时按环境取值
func (c *Config) QueryComplexityLimit() int {
	if c.Headless.QueryComplexityLimit > 0 {
		return c.Headless.QueryComplexityLimit
	}
	if c.IsDebug() {
		return DebugQueryComplexityLimit
	}
	return ProductionQueryComplexityLimit
}

// AllowedOrigins 基础白名单与环境变量追加的来源合并
func (c *Config) AllowedOrigins() []string {
	origins := make([]string, 0, len(c.Headless.AllowedOrigins))
	origins = append(origins, c.Headless.AllowedOrigins...)
	for _, origin := range strings.Split(c.Headless.ExtraOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

// envBindings 配置键与环境变量的对应关系
var envBindings = map[string]string{
	"app.env":                         "APP_ENV",
	"app.version":                     "APP_VERSION",
	"app.machine_id":                  "MACHINE_ID",
	"log.level":                       "LOG_LEVEL",
	"server.http.addr":                "HTTP_ADDR",
	"server.http.timeout":             "HTTP_TIMEOUT",
	"server.grpc.enabled":             "GRPC_ENABLED",
	"server.grpc.addr":                "GRPC_ADDR",
	"server.shutdown_timeout":         "SHUTDOWN_TIMEOUT",
	"database.mongodb.uri":            "MONGODB_URI",
	"database.mongodb.db_name":        "MONGODB_DB",
	"database.postgresql.dsn":         "POSTGRESQL_DSN",
	"database.postgresql.db_name":     "POSTGRESQL_DB",
	"redis.addr":                      "REDIS_ADDR",
	"redis.password":                  "REDIS_PASSWORD",
	"redis.db":                        "REDIS_DB",
	"kafka.enabled":                   "KAFKA_ENABLED",
	"kafka.brokers":                   "KAFKA_BROKERS",
	"kafka.group_id":                  "KAFKA_GROUP_ID",
	"kafka.view_topic":                "KAFKA_VIEW_TOPIC",
	"kafka.mail_topic":                "KAFKA_MAIL_TOPIC",
	"elasticsearch.addresses":         "ELASTICSEARCH_URL",
	"elasticsearch.username":          "ELASTICSEARCH_USERNAME",
	"elasticsearch.password":          "ELASTICSEARCH_PASSWORD",
	"elasticsearch.index":             "ELASTICSEARCH_INDEX",
	"site.name":                       "SITE_NAME",
	"site.description":                "SITE_DESCRIPTION",
	"site.url":                        "SITE_URL",
	"site.admin_email":                "ADMIN_EMAIL",
	"site.language":                   "SITE_LANGUAGE",
	"site.timezone":                   "SITE_TIMEZONE",
	"headless.frontend_url":           "FRONTEND_URL",
	"headless.api_root":               "API_ROOT",
	"headless.allowed_origins":        "CORS_BASE_ORIGINS",
	"headless.extra_origins":          "HEADLESS_ALLOWED_ORIGINS",
	"headless.query_complexity_limit": "QUERY_COMPLEXITY_LIMIT",
	"headless.cache_ttl":              "CACHE_TTL",
	"headless.store_timeout":          "STORE_TIMEOUT",
	"headless.nonce_secret":           "NONCE_SECRET",
	"headless.nonce_ttl":              "NONCE_TTL",
	"headless.contact_rate_limit":     "CONTACT_RATE_LIMIT",
	"headless.contact_rate_window":    "CONTACT_RATE_WINDOW",
	"storage.backend":                 "STORE_BACKEND",
	"storage.search":                  "SEARCH_BACKEND",
	"storage.contact_archive":         "CONTACT_ARCHIVE",
	"cache.enabled":                   "CACHE_ENABLED",
	"mail.transport":                  "MAIL_TRANSPORT",
	"mail.smtp_host":                  "SMTP_HOST",
	"mail.smtp_port":                  "SMTP_PORT",
	"mail.username":                   "SMTP_USERNAME",
	"mail.password":                   "SMTP_PASSWORD",
	"mail.from":                       "MAIL_FROM",
	"mail.timeout":                    "SMTP_TIMEOUT",
	"telemetry.enabled":               "OTEL_ENABLED",
	"telemetry.exporter":              "OTEL_EXPORTER",
	"telemetry.sample_rate":           "OTEL_SAMPLE_RATE",
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper, serviceName string) {
	v.SetDefault("app.name", serviceName)
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.env", EnvDevelopment)
	v.SetDefault("app.machine_id", 1)
	v.SetDefault("log.level", "info")

	v.SetDefault("server.http.addr", ":21020")
	v.SetDefault("server.http.timeout", "30s")
	v.SetDefault("server.grpc.enabled", true)
	v.SetDefault("server.grpc.addr", ":22020")
	v.SetDefault("server.shutdown_timeout", "30s")

	v.SetDefault("database.mongodb.uri", "mongodb://localhost:27017")
	v.SetDefault("database.mongodb.db_name", "headless_content")
	v.SetDefault("database.postgresql.dsn", "host=localhost user=postgres password=postgres dbname=headless_content port=5432 sslmode=disable TimeZone=UTC")
	v.SetDefault("database.postgresql.db_name", "headless_content")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.group_id", serviceName+"-group")
	v.SetDefault("kafka.view_topic", "content_view")
	v.SetDefault("kafka.mail_topic", "contact_mail")

	v.SetDefault("elasticsearch.addresses", []string{"http://localhost:9200"})
	v.SetDefault("elasticsearch.index", "headless_content")

	v.SetDefault("site.name", "Headless Pro")
	v.SetDefault("site.description", "Headless content backend")
	v.SetDefault("site.url", "http://localhost:21020")
	v.SetDefault("site.admin_email", "admin@localhost")
	v.SetDefault("site.language", "en_US")
	v.SetDefault("site.timezone", "UTC")
	v.SetDefault("site.date_format", "F j, Y")
	v.SetDefault("site.time_format", "g:i a")
	v.SetDefault("site.theme_name", "Headless Pro")
	v.SetDefault("site.theme_version", "1.0.0")

	v.SetDefault("headless.frontend_url", "https://edrishusein.com")
	v.SetDefault("headless.api_root", "/wp-json/headless/v1")
	v.SetDefault("headless.allowed_origins", []string{
		"http://localhost:3000",
		"http://localhost:3001",
		"https://edrishusein.com",
		"https://www.edrishusein.com",
	})
	v.SetDefault("headless.extra_origins", "")
	v.SetDefault("headless.query_complexity_limit", 0)
	v.SetDefault("headless.cache_ttl", "5m")
	v.SetDefault("headless.store_timeout", "5s")
	v.SetDefault("headless.nonce_secret", DevNonceSecret)
	v.SetDefault("headless.nonce_ttl", "12h")
	v.SetDefault("headless.contact_rate_limit", 5)
	v.SetDefault("headless.contact_rate_window", "10m")

	v.SetDefault("storage.backend", "postgres")
	v.SetDefault("storage.search", "store")
	v.SetDefault("storage.contact_archive", false)
	v.SetDefault("cache.enabled", true)

	v.SetDefault("mail.transport", "smtp")
	v.SetDefault("mail.smtp_host", "localhost")
	v.SetDefault("mail.smtp_port", 25)
	v.SetDefault("mail.from", "noreply@localhost")
	v.SetDefault("mail.timeout", "10s")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.exporter", "stdout")
	v.SetDefault("telemetry.sample_rate", 1.0)
}

// LoadConfig 加载配置：默认值 -> config.yaml（可选）-> 环境变量
func LoadConfig(serviceName string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("..")

	setDefaults(v, serviceName)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind env %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	// 逗号分隔的列表型环境变量
	cfg.Kafka.Brokers = splitList(cfg.Kafka.Brokers)
	cfg.Elasticsearch.Addresses = splitList(cfg.Elasticsearch.Addresses)
	cfg.Headless.AllowedOrigins = splitList(cfg.Headless.AllowedOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 生产环境必须配置自己的nonce密钥
func (c *Config) Validate() error {
	if c.IsDebug() {
		return nil
	}
	if c.Headless.NonceSecret == "" || c.Headless.NonceSecret == DevNonceSecret {
		return errors.New("headless.nonce_secret (NONCE_SECRET) must be set in production")
	}
	return nil
}

// splitList 兼容环境变量中以逗号分隔的列表
func splitList(values []string) []string {
	result := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				result = append(result, part)
			}
		}
	}
	return result
}
