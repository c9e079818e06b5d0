package config

import (
	"errors"
	"log/slog"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Env               string           `mapstructure:"env"`
	LogLevel          string           `mapstructure:"log_level"`
	LogType           string           `mapstructure:"log_type"`
	ServiceName       string           `mapstructure:"service_name"`
	Port              string           `mapstructure:"port"`
	Version           string           `mapstructure:"version"`
	Timezone          string           `mapstructure:"timezone"`
	RegistryFile      string           `mapstructure:"registry_file"`
	BrowserSettings   *BrowserConfig   `mapstructure:"browser"`
	DownloadSettings  *DownloadConfig  `mapstructure:"download"`
	CacheSettings     *CacheConfig     `mapstructure:"cache"`
	DbSettings        *DatabaseConfig  `mapstructure:"database"`
	KafkaSettings     *KafkaConfig     `mapstructure:"kafka"`
	S3Settings        *S3Config        `mapstructure:"s3"`
	SchedulerSettings *SchedulerConfig `mapstructure:"scheduler"`
	HttpSettings      *HttpConfig      `mapstructure:"http"`
}

type BrowserConfig struct {
	ExecPath          string        `mapstructure:"exec_path"`
	Headless          bool          `mapstructure:"headless"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout"`
	ExtractTimeout    time.Duration `mapstructure:"extract_timeout"`
	UserAgent         string        `mapstructure:"user_agent"`
}

type DownloadConfig struct {
	Timeout     time.Duration `mapstructure:"timeout"`
	UserAgent   string        `mapstructure:"user_agent"`
	MaxBodySize int           `mapstructure:"max_body_size"`
}

type CacheConfig struct {
	Backend        string        `mapstructure:"backend"`
	DataDir        string        `mapstructure:"data_dir"`
	MemoryTtl      time.Duration `mapstructure:"memory_ttl"`
	TtlForSnapshot time.Duration `mapstructure:"ttl_for_snapshot"`
	Servers        string        `mapstructure:"servers"`
	RedisAddr      string        `mapstructure:"redis_addr"`
	RedisPassword  string        `mapstructure:"redis_password"`
	RedisDB        int           `mapstructure:"redis_db"`
	KeyPrefix      string        `mapstructure:"key_prefix"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
}

type KafkaConfig struct {
	Producer *ProducerConfig `mapstructure:"producer"`
	Consumer *ConsumerConfig `mapstructure:"consumer"`
}

type ProducerConfig struct {
	Addr           string        `mapstructure:"addr"`
	WriteTopicName string        `mapstructure:"write_topic_name"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	BatchSize      int           `mapstructure:"batch_size"`
	BatchTimeout   time.Duration `mapstructure:"batch_timeout"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	RequiredAsks   int           `mapstructure:"required_acks"`
	Async          bool          `mapstructure:"async"`
}

type ConsumerConfig struct {
	ReadTopicName    string        `mapstructure:"read_topic_name"`
	Brokers          string        `mapstructure:"brokers"`
	GroupID          string        `mapstructure:"group_id"`
	MaxWait          time.Duration `mapstructure:"max_wait"`
	ReadBatchTimeout time.Duration `mapstructure:"read_batch_timeout"`
}

type S3Config struct {
	AwsAccessKey    string `mapstructure:"aws_access_key"`
	AwsSecretKey    string `mapstructure:"aws_secret_key"`
	AwsBaseEndpoint string `mapstructure:"aws_base_endpoint"`
	Region          string `mapstructure:"region"`
	BucketName      string `mapstructure:"bucket_name"`
	KeyPrefix       string `mapstructure:"key_prefix"`
}

type SchedulerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Spec    string `mapstructure:"spec"`
}

type HttpConfig struct {
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// MustLoad reads config.yaml (or cfgFile), .env and the environment. The file is optional:
// defaults cover a local run.
func MustLoad(cfgFile string) *Config {
	_ = godotenv.Load()

	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			slog.Error("can't initialize config file.", slog.String("err", err.Error()))
			os.Exit(1)
		}
		slog.Warn("config file not found. Using defaults and environment.")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		slog.Error("error unmarshalling viper config.", slog.String("err", err.Error()))
		os.Exit(1)
	}

	return &cfg
}

// Location is the time zone that decides which calendar day "today" is.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		slog.Warn("unknown timezone. Using UTC.", slog.String("timezone", c.Timezone))
		return time.UTC
	}
	return loc
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "local")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_type", "text")
	v.SetDefault("service_name", "jamaah-scrape-worker")
	v.SetDefault("port", "3000")
	v.SetDefault("version", "dev")
	v.SetDefault("timezone", "Europe/London")

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.navigation_timeout", 25*time.Second)
	v.SetDefault("browser.extract_timeout", 10*time.Second)
	v.SetDefault("browser.user_agent", "Mozilla/5.0 (compatible; KentJamahBot/1.0)")

	v.SetDefault("download.timeout", 30*time.Second)
	v.SetDefault("download.user_agent", "Mozilla/5.0 (compatible; KentJamahBot/1.0)")
	v.SetDefault("download.max_body_size", 20*1024*1024)

	v.SetDefault("cache.backend", "file")
	v.SetDefault("cache.data_dir", "./data")
	v.SetDefault("cache.memory_ttl", 48*time.Hour)
	v.SetDefault("cache.ttl_for_snapshot", 7*24*time.Hour)
	v.SetDefault("cache.key_prefix", "jamaah")

	v.SetDefault("database.port", "3306")
	v.SetDefault("database.conn_max_lifetime", 3*time.Minute)
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.max_idle_conns", 4)

	v.SetDefault("kafka.producer.max_attempts", 3)
	v.SetDefault("kafka.producer.batch_size", 10)
	v.SetDefault("kafka.producer.batch_timeout", time.Second)
	v.SetDefault("kafka.producer.read_timeout", 10*time.Second)
	v.SetDefault("kafka.producer.write_timeout", 10*time.Second)
	v.SetDefault("kafka.producer.required_acks", 1)
	v.SetDefault("kafka.consumer.max_wait", time.Second)
	v.SetDefault("kafka.consumer.read_batch_timeout", 10*time.Second)

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.spec", "0 3 * * *")

	v.SetDefault("http.read_timeout", 5*time.Second)
	v.SetDefault("http.write_timeout", 5*time.Minute)
	v.SetDefault("http.allowed_origins", []string{"*"})
}
