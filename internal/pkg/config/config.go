// internal/pkg/config/config.go
package config

import (
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DefaultPath 是未设置 CONFIG_PATH 时读取的配置文件。
const DefaultPath = "configs/promotion.yaml"

// Config 是 promotion-service 和 promotion-seeder 共用的配置。
// 读取顺序：代码默认值 -> YAML 文件 -> 环境变量。
type Config struct {
	App       AppConfig       `yaml:"app" envPrefix:"APP_"`
	Server    ServerConfig    `yaml:"server" envPrefix:"SERVER_"`
	MySQL     MySQLConfig     `yaml:"mysql" envPrefix:"MYSQL_"`
	Redis     RedisConfig     `yaml:"redis" envPrefix:"REDIS_"`
	Kafka     KafkaConfig     `yaml:"kafka" envPrefix:"KAFKA_"`
	Jaeger    JaegerConfig    `yaml:"jaeger" envPrefix:"JAEGER_"`
	Nacos     NacosConfig     `yaml:"nacos" envPrefix:"NACOS_"`
	Zookeeper ZookeeperConfig `yaml:"zookeeper" envPrefix:"ZOOKEEPER_"`
	Engine    EngineConfig    `yaml:"engine" envPrefix:"ENGINE_"`
}

type AppConfig struct {
	Name       string `yaml:"name" env:"NAME" validate:"required"`
	LogLevel   string `yaml:"logLevel" env:"LOG_LEVEL" validate:"omitempty,oneof=trace debug info warn error"`
	LogConsole bool   `yaml:"logConsole" env:"LOG_CONSOLE"`
}

type ServerConfig struct {
	Port            int           `yaml:"port" env:"PORT" validate:"min=1,max=65535"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" env:"SHUTDOWN_TIMEOUT"`
}

// MySQLConfig 为空 DSN 时服务不连数据库，只能通过 fixtures 加载促销。
type MySQLConfig struct {
	DSN         string `yaml:"dsn" env:"DSN"`
	AutoMigrate bool   `yaml:"autoMigrate" env:"AUTO_MIGRATE"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr" env:"ADDR"`
	Password string        `yaml:"password" env:"PASSWORD"`
	DB       int           `yaml:"db" env:"DB" validate:"min=0"`
	TTL      time.Duration `yaml:"ttl" env:"TTL"`
}

type KafkaConfig struct {
	Brokers          []string `yaml:"brokers" env:"BROKERS" envSeparator:","`
	CartEventsTopic  string   `yaml:"cartEventsTopic" env:"CART_EVENTS_TOPIC"`
	AdjustmentsTopic string   `yaml:"adjustmentsTopic" env:"ADJUSTMENTS_TOPIC"`
	GroupID          string   `yaml:"groupId" env:"GROUP_ID"`
}

// Enabled 判断是否配置了 Kafka。
func (k KafkaConfig) Enabled() bool { return len(k.Brokers) > 0 }

type JaegerConfig struct {
	Endpoint string `yaml:"endpoint" env:"ENDPOINT"`
}

type NacosConfig struct {
	ServerAddrs string `yaml:"serverAddrs" env:"SERVER_ADDRS"`
	Namespace   string `yaml:"namespace" env:"NAMESPACE"`
	Group       string `yaml:"group" env:"GROUP"`
}

type ZookeeperConfig struct {
	Servers        []string      `yaml:"servers" env:"SERVERS" envSeparator:","`
	SessionTimeout time.Duration `yaml:"sessionTimeout" env:"SESSION_TIMEOUT"`
	LockTimeout    time.Duration `yaml:"lockTimeout" env:"LOCK_TIMEOUT"`
}

// EngineConfig 是评估引擎本身的参数。
type EngineConfig struct {
	RequiredFacts     []string      `yaml:"requiredFacts" env:"REQUIRED_FACTS" envSeparator:"," validate:"dive,required"`
	DefaultTrigger    string        `yaml:"defaultTrigger" env:"DEFAULT_TRIGGER" validate:"required"`
	BatchConcurrency  int           `yaml:"batchConcurrency" env:"BATCH_CONCURRENCY" validate:"min=1,max=256"`
	EvaluationTimeout time.Duration `yaml:"evaluationTimeout" env:"EVALUATION_TIMEOUT"`
	ReloadInterval    time.Duration `yaml:"reloadInterval" env:"RELOAD_INTERVAL"`
	FixturesPath      string        `yaml:"fixturesPath" env:"FIXTURES_PATH"`
}

// Default 返回带默认值的配置。
func Default() Config {
	return Config{
		App:    AppConfig{Name: "promotion-service", LogLevel: "info"},
		Server: ServerConfig{Port: 8085, ShutdownTimeout: 10 * time.Second},
		Redis:  RedisConfig{TTL: 5 * time.Minute},
		Kafka: KafkaConfig{
			CartEventsTopic:  "cart-events",
			AdjustmentsTopic: "promotion-adjustments",
			GroupID:          "promotion-service",
		},
		Nacos:     NacosConfig{Group: "DEFAULT_GROUP"},
		Zookeeper: ZookeeperConfig{SessionTimeout: 5 * time.Second, LockTimeout: 30 * time.Second},
		Engine: EngineConfig{
			RequiredFacts:     []string{"cart"},
			DefaultTrigger:    "offers",
			BatchConcurrency:  8,
			EvaluationTimeout: 2 * time.Second,
			ReloadInterval:    time.Minute,
		},
	}
}

// Load 读取 path 指定的 YAML 文件 (文件不存在时只用默认值)，再叠加环境变量并校验。
func Load(path string) (*Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config %s", path)
		}
	case os.IsNotExist(err):
	default:
		return nil, errors.Wrapf(err, "read config %s", path)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, errors.Wrap(err, "parse config from environment")
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromEnv 使用 CONFIG_PATH 指定的文件。
func LoadFromEnv() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = DefaultPath
	}
	return Load(path)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate 按 validate 标签校验配置。
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	return nil
}
