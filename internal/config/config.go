package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	ListenAddr   string        `env:"LISTEN_ADDR"   envDefault:"127.0.0.1:9999" validate:"required,hostname_port"`
	MsgBufSize   int           `env:"MSG_BUF_SIZE"  envDefault:"1024"           validate:"min=64,max=65536"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`

	HttpEnabled    bool   `env:"HTTP_ENABLED"     envDefault:"true"`
	HttpServerPort uint16 `env:"HTTP_SERVER_PORT" envDefault:"8085" validate:"min=1000,max=65535"`

	RedisEnabled bool   `env:"REDIS_ENABLED" envDefault:"false"`
	RedisHost    string `env:"REDIS_HOST"    envDefault:"localhost"`
	RedisPort    uint16 `env:"REDIS_PORT"    envDefault:"6379"   validate:"min=1000,max=65535"`
	RedisChannel string `env:"REDIS_CHANNEL" envDefault:"chamber:broadcast" validate:"required"`

	PostgresEnabled  bool   `env:"POSTGRES_ENABLED"  envDefault:"false"`
	PostgresHost     string `env:"POSTGRES_HOST"     envDefault:"localhost"`
	PostgresPort     string `env:"POSTGRES_PORT"     envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER"     envDefault:"chamber_user"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"chamber_password"`
	PostgresDb       string `env:"POSTGRES_DB"       envDefault:"chamber_db"`

	LogProduction bool `env:"LOG_PRODUCTION" envDefault:"false"`

	// ClientName is the sender the line client puts on its messages;
	// empty means its local address.
	ClientName string `env:"CLIENT_NAME" validate:"excludes=0x2C"`
}

func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	err := godotenv.Load(".env")
	if err != nil {
		zap.L().Debug(".env file not found", zap.Error(err))
	}

	cfg := &Config{}
	// Parse config from environment variables
	if err = env.Parse(cfg); err != nil {
		zap.L().Error("config_load_failed", zap.Error(err))
		return nil, err
	}

	// Validate the config
	validate := validator.New()
	err = validate.Struct(cfg)
	if err != nil {
		zap.L().Error("config_validation_failed", zap.Error(err))
		return nil, err
	}
	return cfg, nil
}
