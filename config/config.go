package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 应用全局配置结构体
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"db"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Mail      MailConfig      `mapstructure:"mail"`
	Log       LogConfig       `mapstructure:"log"`
	Matching  MatchingConfig  `mapstructure:"matching"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port    int        `mapstructure:"port"`
	BaseURL string     `mapstructure:"base_url"`
	CORS    CORSConfig `mapstructure:"cors"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowOrigins []string      `mapstructure:"allow_origins"` // "*" 表示任意来源
	MaxAge       time.Duration `mapstructure:"max_age"`       // 预检结果缓存时长
}

// DatabaseConfig PostgreSQL 数据库配置
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"sslmode"`
	Timezone        string `mapstructure:"timezone"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // 连接最大生命周期（分钟）
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // 空闲连接最大存活时间（分钟）
}

// DSN 生成 PostgreSQL 连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.Timezone,
	)
}

// RedisConfig Redis 配置（范围锁 + 排行榜缓存）
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	// Enabled=false 时使用进程内范围锁，排行榜不走缓存
	Enabled bool `mapstructure:"enabled"`
	// LeaderboardCacheTTL 排行榜有序集合的过期时间
	LeaderboardCacheTTL time.Duration `mapstructure:"leaderboard_cache_ttl"`
}

// AuthConfig JWT 校验配置（Token 由外部认证服务签发）
type AuthConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
	Issuer         string        `mapstructure:"issuer"`
}

// MailConfig SMTP 邮件配置
type MailConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	SMTPHost string `mapstructure:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	// TLSPolicy opportunistic | mandatory | none
	TLSPolicy string        `mapstructure:"tls_policy"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MatchingConfig 匹配与积分规则配置
type MatchingConfig struct {
	// MaxMenteesPerMentor 每位导师可同时带的学员上限（自动匹配与手动建立共用）
	MaxMenteesPerMentor int `mapstructure:"max_mentees_per_mentor"`
	// SuperMentorThreshold 已领取徽章数达到该值即为超级导师
	SuperMentorThreshold int `mapstructure:"super_mentor_threshold"`
	// ScopeLockTTL 范围锁最长持有时间
	ScopeLockTTL time.Duration `mapstructure:"scope_lock_ttl"`
}

// SchedulerConfig 定时任务配置
type SchedulerConfig struct {
	LeaderboardSyncEnabled  bool          `mapstructure:"leaderboard_sync_enabled"`
	LeaderboardSyncInterval time.Duration `mapstructure:"leaderboard_sync_interval"`
}

// MetricsConfig Prometheus 指标配置
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load 从 .env、配置文件与环境变量加载配置
// 优先级：环境变量 > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	// .env 仅用于本地开发，不存在时忽略
	_ = godotenv.Load()

	v := viper.New()

	// ── 默认值 ──
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:5173"})
	v.SetDefault("server.cors.max_age", "12h")

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "mentor_match")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "Asia/Kolkata")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", 60)  // 60分钟
	v.SetDefault("db.conn_max_idle_time", 30) // 30分钟

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.leaderboard_cache_ttl", "10m")

	v.SetDefault("auth.access_token_ttl", "15m")
	v.SetDefault("auth.issuer", "mentor-match")

	v.SetDefault("mail.enabled", false)
	v.SetDefault("mail.smtp_port", 587)
	v.SetDefault("mail.tls_policy", "opportunistic")
	v.SetDefault("mail.timeout", "10s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("matching.max_mentees_per_mentor", 4)
	v.SetDefault("matching.super_mentor_threshold", 5)
	v.SetDefault("matching.scope_lock_ttl", "2m")

	v.SetDefault("scheduler.leaderboard_sync_enabled", false)
	v.SetDefault("scheduler.leaderboard_sync_interval", "1h")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	// ── 配置文件 ──
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// ── 环境变量 ──
	v.SetEnvPrefix("MENTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		// 配置文件不存在时仅依赖默认值和环境变量
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	// ── 关键配置校验 ──
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate 校验关键配置项
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 不能为空")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 长度不能少于 16 字符")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("配置校验失败: server.port 必须在 1-65535 之间")
	}
	if c.Matching.MaxMenteesPerMentor <= 0 {
		return fmt.Errorf("配置校验失败: matching.max_mentees_per_mentor 必须大于 0")
	}
	if c.Matching.SuperMentorThreshold <= 0 {
		return fmt.Errorf("配置校验失败: matching.super_mentor_threshold 必须大于 0")
	}
	if c.Scheduler.LeaderboardSyncEnabled && c.Scheduler.LeaderboardSyncInterval < time.Minute {
		return fmt.Errorf("配置校验失败: scheduler.leaderboard_sync_interval 不能小于 1 分钟")
	}
	return nil
}

// DefaultMatching 返回默认匹配配置（测试与未加载配置时使用）
func DefaultMatching() MatchingConfig {
	return MatchingConfig{
		MaxMenteesPerMentor:  4,
		SuperMentorThreshold: 5,
		ScopeLockTTL:         2 * time.Minute,
	}
}
