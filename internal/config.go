package internal

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Host              string        `env:"HOST,default=0.0.0.0"`
	Port              int           `env:"PORT,default=8080"`
	GrpcPort          int           `env:"GRPC_PORT,default=9090"`
	DebugPort         int           `env:"DEBUG_PORT,default=8081"`
	BadgerFilepath    string        `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath     string        `env:"BLUGE_FILEPATH,required=true"`
	FilesDir          string        `env:"FILES_DIR,required=true"`
	PublicBaseURL     string        `env:"PUBLIC_BASE_URL,default=http://localhost:8080"`
	LogLevel          string        `env:"LOG_LEVEL,default=INFO"`
	JwtSecret         string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`
	CensoredWords     string        `env:"CENSORED_WORDS"`
	CharReplacement   string        `env:"CHARACTER_REPLACEMENT,default=*"`
	LatestPostsLimit  int           `env:"LATEST_POSTS_LIMIT,default=3"`
	MaxUploadBytes    int64         `env:"MAX_UPLOAD_BYTES,default=5242880"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
}

// Validate reports settings that decode fine but cannot work.
func (c Config) Validate() error {
	if len(c.JwtSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}
	if c.AuthTokenDuration <= 0 {
		return fmt.Errorf("AUTH_TOKEN_DURATION must be positive, got %s", c.AuthTokenDuration)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.MaxUploadBytes)
	}
	if _, err := CharacterRune(c.CharReplacement); err != nil {
		return err
	}
	return nil
}

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

// Words splits a comma separated list, dropping blanks.
func Words(list string) []string {
	var words []string
	for _, w := range strings.Split(list, ",") {
		if w = strings.TrimSpace(w); w != "" {
			words = append(words, w)
		}
	}
	return words
}
