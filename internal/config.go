// Package internal holds the shared configuration shape and the badger
// inspection server used during development.
package internal

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Host      string `env:"HOST,default=localhost"`
	Port      int    `env:"PORT,default=8080"`
	DebugPort int    `env:"DEBUG_PORT,default=8081"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	LogLevel       string `env:"LOG_LEVEL,required=true"`

	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,required=true"`
	DeliveryTimeout      time.Duration `env:"DELIVERY_TIMEOUT,required=true"`
	DedupWindow          time.Duration `env:"DEDUP_WINDOW,required=true"`
	DedupPruneInterval   time.Duration `env:"DEDUP_PRUNE_INTERVAL,required=true"`
	TypingTTL            time.Duration `env:"TYPING_TTL,required=true"`
	IdleTimeout          time.Duration `env:"IDLE_TIMEOUT,required=true"`
	ReaperInterval       time.Duration `env:"REAPER_INTERVAL,required=true"`
	HeartbeatInterval    time.Duration `env:"HEARTBEAT_INTERVAL,required=true"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,required=true"`

	AuthSecret        string        `env:"AUTH_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,required=true"`

	MaxContentLength int    `env:"MAX_CONTENT_LENGTH,required=true"`
	CharReplacement  string `env:"CHARACTER_REPLACEMENT,required=true"`
	CensoredWords    string `env:"CENSORED_WORDS"`
	LimitMessages    *int   `env:"LIMIT_MESSAGES"`
	FollowerPageSize int    `env:"FOLLOWER_PAGE_SIZE,default=200"`
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

// WordList splits the comma-separated CENSORED_WORDS value, trimming
// blanks. An empty value yields an empty moderator, which is valid.
func WordList(raw string) []string {
	var words []string
	for _, w := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(w); trimmed != "" {
			words = append(words, trimmed)
		}
	}
	return words
}
