// Package config предоставляет структуры и функции для парсинга и загрузки конфига
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек
type Config struct {
	Env             string `yaml:"env" env:"ENV" env-default:"local"`
	Storage         `yaml:"storage"`
	RedisConnection `yaml:"redis_connection"`
	AMQPRelay       `yaml:"amqp_relay"`
	JWTToken        `yaml:"jwttoken"`
	AuthDelay       time.Duration `yaml:"auth_delay" env:"AUTH_DELAY" env-default:"800ms"`
}

// Storage структура для выбора и настройки бэкенда хранения
type Storage struct {
	Backend          string `yaml:"backend" env:"STORAGE_BACKEND" env-default:"file"`
	DataDir          string `yaml:"data_dir" env:"STORAGE_DATA_DIR" env-default:"./data"`
	ConnectionString string `yaml:"connection_string" env:"STORAGE_CONNECTION_STRING"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	Addr        string        `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password    string        `yaml:"password" env:"REDIS_PASSWORD"`
	User        string        `yaml:"user" env:"REDIS_USER"`
	DB          int           `yaml:"db" env:"REDIS_DB" env-default:"0"`
	MaxRetries  int           `yaml:"max_retries" env:"REDIS_MAX_RETRIES" env-default:"3"`
	DialTimeout time.Duration `yaml:"dial_timeout" env:"REDIS_DIAL_TIMEOUT" env-default:"5s"`
	Timeout     time.Duration `yaml:"timeout" env:"REDIS_TIMEOUT" env-default:"3s"`
}

// AMQPRelay структура для настройки ретрансляции событий изменения в AMQP
type AMQPRelay struct {
	Enabled  bool   `yaml:"enabled" env:"AMQP_RELAY_ENABLED" env-default:"false"`
	URI      string `yaml:"uri" env:"AMQP_RELAY_URI"`
	Exchange string `yaml:"exchange" env:"AMQP_RELAY_EXCHANGE" env-default:"pirat.changes"`
}

// JWTToken структура для работы с jwt-токеном
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key" env:"JWT_SECRET_KEY" env-default:"dev-secret"`
	TokenTTL     time.Duration `yaml:"token_ttl" env:"JWT_TOKEN_TTL" env-default:"24h"`
}

// MustLoad загружает конфиг из файла по пути CONFIG_PATH, при ошибке
// завершает процесс
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("file: %s - does not exist", configPath)
	}
	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return &cfg
}

// Load загружает конфиг из переменных окружения, не требуя файла
func Load() (*Config, error) {
	const op = "config.Load"
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &cfg, nil
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"Storage:\n"+
			"  Backend: %s\n"+
			"  DataDir: %s\n"+
			"  ConnectionString: %s\n"+
			"RedisConnection:\n"+
			"  Addr: %s\n"+
			"  User: %s\n"+
			"  DB: %d\n"+
			"  MaxRetries: %d\n"+
			"  DialTimeout: %s\n"+
			"  Timeout: %s\n"+
			"AMQPRelay:\n"+
			"  Enabled: %t\n"+
			"  Exchange: %s\n"+
			"JWTToken:\n"+
			"  TokenTTL: %s\n"+
			"AuthDelay: %s\n",
		c.Env,
		c.Backend,
		c.DataDir,
		c.ConnectionString,
		c.Addr,
		c.User,
		c.DB,
		c.MaxRetries,
		c.DialTimeout,
		c.Timeout,
		c.AMQPRelay.Enabled,
		c.AMQPRelay.Exchange,
		c.TokenTTL,
		c.AuthDelay,
	)
}
