package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"

	"github.com/park285/cheese-board/internal/rules"
)

type ServerConfig struct {
	Addr string

	StockfishPath    string
	EngineDepth      int
	EngineMoveTimeMs int
	EnginePoolSize   int
	EngineSkillLevel int
	EngineTimeout    time.Duration
	OpeningBookPath  string
	OpeningBookPlies int

	RedisURL    string
	DatabaseURL string
	SessionTTL  time.Duration
}

type ClientConfig struct {
	ArbiterURL     string
	Human          rules.Color
	ReplyDelay     time.Duration
	ArbiterTimeout time.Duration
	GameID         string
	MessagesDir    string
	LogFile        string
	LogLevel       string
}

func LoadServer() (*ServerConfig, error) {
	cfg := &ServerConfig{
		Addr:             ":5000",
		EngineDepth:      3,
		EngineSkillLevel: 20,
		EngineTimeout:    8 * time.Second,
		SessionTTL:       24 * time.Hour,
	}

	if v := env("ARBITER_ADDR"); v != "" {
		cfg.Addr = v
	}
	cfg.StockfishPath = env("STOCKFISH_PATH")
	if n, ok := positiveInt("ENGINE_DEPTH"); ok {
		cfg.EngineDepth = n
	}
	if n, ok := positiveInt("ENGINE_MOVE_TIME_MS"); ok {
		cfg.EngineMoveTimeMs = n
	}
	if n, ok := positiveInt("ENGINE_POOL_SIZE"); ok {
		cfg.EnginePoolSize = n
	}
	if v := env("ENGINE_SKILL_LEVEL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > 20 {
			return nil, errors.New("ENGINE_SKILL_LEVEL must be 0-20")
		}
		cfg.EngineSkillLevel = n
	}
	if n, ok := positiveInt("ENGINE_TIMEOUT_MS"); ok {
		cfg.EngineTimeout = time.Duration(n) * time.Millisecond
	}

	cfg.OpeningBookPath = env("OPENING_BOOK_PATH")
	if n, ok := positiveInt("OPENING_BOOK_PLIES"); ok {
		cfg.OpeningBookPlies = n
	}

	cfg.RedisURL = env("REDIS_URL")
	cfg.DatabaseURL = env("DATABASE_URL")
	if n, ok := positiveInt("SESSION_TTL_SEC"); ok {
		cfg.SessionTTL = time.Duration(n) * time.Second
	}

	if cfg.StockfishPath != "" {
		if _, err := os.Stat(cfg.StockfishPath); err != nil {
			return nil, errors.New("STOCKFISH_PATH does not exist")
		}
	}
	if cfg.OpeningBookPath != "" {
		if _, err := os.Stat(cfg.OpeningBookPath); err != nil {
			return nil, errors.New("OPENING_BOOK_PATH does not exist")
		}
	}
	return cfg, nil
}

func LoadClient() (*ClientConfig, error) {
	cfg := &ClientConfig{
		Human:          rules.White,
		ReplyDelay:     600 * time.Millisecond,
		ArbiterTimeout: 10 * time.Second,
		LogLevel:       "info",
	}

	cfg.ArbiterURL = strings.TrimRight(env("ARBITER_URL"), "/")
	if v := env("PLAYER_COLOR"); v != "" {
		c, err := rules.ParseColor(v)
		if err != nil {
			return nil, errors.New("PLAYER_COLOR must be white or black")
		}
		cfg.Human = c
	}
	// 0 is allowed: the reply is then applied immediately
	if v := env("REPLY_DELAY_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.ReplyDelay = time.Duration(n) * time.Millisecond
		}
	}
	if n, ok := positiveInt("ARBITER_TIMEOUT_MS"); ok {
		cfg.ArbiterTimeout = time.Duration(n) * time.Millisecond
	}
	cfg.GameID = env("GAME_ID")
	cfg.MessagesDir = env("MESSAGES_DIR")
	if v := env("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	cfg.LogFile = env("CLIENT_LOG_FILE")
	if cfg.LogFile == "" {
		if p, err := xdg.StateFile("cheese-board/client.log"); err == nil {
			cfg.LogFile = p
		}
	}

	if cfg.ArbiterURL == "" {
		return nil, errors.New("ARBITER_URL is required")
	}
	return cfg, nil
}

func env(k string) string { return strings.TrimSpace(os.Getenv(k)) }

func positiveInt(k string) (int, bool) {
	v := env(k)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
