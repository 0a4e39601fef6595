package config

import (
	"errors"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type RoomConf struct {
	// RevealTimeout is the deadline after a question broadcast before the
	// answer is revealed even if not every player answered.
	RevealTimeout      time.Duration `env:"REVEAL_TIMEOUT"       envDefault:"31s"`
	BroadcastTimeout   time.Duration `env:"BROADCAST_TIMEOUT"    envDefault:"5s"`
	WebsocketReadLimit int64         `env:"WEBSOCKET_READ_LIMIT" envDefault:"512"`
	PingInterval       time.Duration `env:"PING_INTERVAL"        envDefault:"5s"`
	EventRateWindow    time.Duration `env:"EVENT_RATE_WINDOW"    envDefault:"1s"`
	EventRateLimit     int           `env:"EVENT_RATE_LIMIT"     envDefault:"20"`
}

type DBConf struct {
	Path     string `env:"PATH"      envDefault:"data"`
	InMemory bool   `env:"IN_MEMORY"`
}

type Config struct {
	Addr           string   `env:"ADDR"                 envDefault:":8080"`
	Debug          bool     `env:"DEBUG"`
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:5173"`
	DB             DBConf   `envPrefix:"DB_"`
	Room           RoomConf `envPrefix:"ROOM_"`
}

// LoadConfig reads an optional dotenv file then parses the environment.
// An empty path defaults to ".env", a missing file is not an error.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, err
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, err
	}
	if cfg.Room.EventRateLimit <= 0 {
		return cfg, errors.New("ROOM_EVENT_RATE_LIMIT must be positive")
	}
	if cfg.Room.RevealTimeout <= 0 {
		return cfg, errors.New("ROOM_REVEAL_TIMEOUT must be positive")
	}

	return cfg, nil
}
