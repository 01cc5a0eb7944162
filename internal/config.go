// Package internal holds process-level plumbing shared by the entrypoints.
package internal

import "time"

type Config struct {
	Host string `env:"HOST,default=localhost"`
	Port int    `env:"PORT,default=8080"`

	LogLevel       string `env:"LOG_LEVEL,required=true"`
	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`

	// Per-session outbound buffer; a full buffer drops for that session.
	BufferSize    int  `env:"BUFFER_SIZE,required=true"`
	PushQueueSize int  `env:"PUSH_QUEUE_SIZE,required=true"`
	LimitMessages *int `env:"LIMIT_MESSAGES"`

	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,required=true"`
	JWTSigningKey     string        `env:"JWT_SIGNING_KEY"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
}
