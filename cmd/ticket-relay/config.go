package main

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	Host            string        `env:"HOST"`
	Port            int           `env:"PORT,default=3001"`
	CORSOrigin      string        `env:"NEXT_PUBLIC_APP_URL,default=http://localhost:3000"`
	LogLevel        string        `env:"LOG_LEVEL,default=info"`
	LogFormat       string        `env:"LOG_FORMAT,default=console"`
	AuthMode        string        `env:"AUTH_MODE,default=claim"`
	JWTSecret       string        `env:"JWT_SECRET"`
	JWTIssuer       string        `env:"JWT_ISSUER,default=ticket-relay"`
	AuthTimeout     time.Duration `env:"AUTH_TIMEOUT,default=5s"`
	PingInterval    time.Duration `env:"PING_INTERVAL,default=25s"`
	PingTimeout     time.Duration `env:"PING_TIMEOUT,default=20s"`
	MaxPayload      int64         `env:"MAX_PAYLOAD,default=1000000"`
	OutboxSize      int           `env:"OUTBOX_SIZE,default=64"`
	MaxConnsPerUser int           `env:"MAX_CONNS_PER_USER,default=0"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
}

func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c Config) Validate() error {
	if c.AuthMode == "jwt" && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when AUTH_MODE=jwt")
	}
	if c.MaxConnsPerUser < 0 {
		return fmt.Errorf("MAX_CONNS_PER_USER must be >= 0, got %d", c.MaxConnsPerUser)
	}
	return nil
}

func newLogger(level, format string) (*zap.SugaredLogger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	conf := zap.Config{
		Level:            lvl,
		Development:      false,
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
	if format == "json" {
		conf.Encoding = "json"
		conf.EncoderConfig = zap.NewProductionEncoderConfig()
		conf.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	logger, err := conf.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}
