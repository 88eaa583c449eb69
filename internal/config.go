// Package internal holds process-level configuration.
package internal

import (
	"fmt"
	"time"
)

type Config struct {
	Host string `env:"HOST,default=0.0.0.0"`
	Port int    `env:"PORT,required=true"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath  string `env:"BLUGE_FILEPATH,required=true"`
	LogLevel       string `env:"LOG_LEVEL,default=INFO"`

	JWTSecret   string        `env:"JWT_SECRET,required=true"`
	JWTIssuer   string        `env:"JWT_ISSUER,default=roomcast"`
	JWTAudience string        `env:"JWT_AUDIENCE,default=roomcast-clients"`
	TokenTTL    time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`
	AuthTimeout time.Duration `env:"AUTH_TIMEOUT,default=3s"`

	BufferSize           int           `env:"BUFFER_SIZE,default=1024"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=256"`
	SinkTimeout          time.Duration `env:"SINK_TIMEOUT,default=5s"`
	HeartbeatInterval    time.Duration `env:"HEARTBEAT_INTERVAL,default=30s"`

	MaxContentLength int    `env:"MAX_CONTENT_LENGTH,default=4096"`
	LimitMessages    *int   `env:"LIMIT_MESSAGES"`
	CharReplacement  string `env:"CHARACTER_REPLACEMENT,default=*"`

	// DebugPort enables the store inspector when set. Never in production.
	DebugPort *int `env:"DEBUG_PORT"`
}

func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// CharacterRune validates the censor replacement, which must be exactly
// one character.
func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
