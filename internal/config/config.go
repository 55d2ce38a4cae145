package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/zeusync/arena/internal/core/physics"
)

type Config struct {
	Server  ServerConfig  `yaml:"server" toml:"server"`
	Game    GameConfig    `yaml:"game" toml:"game"`
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
}

type ServerConfig struct {
	ListenAddr     string        `yaml:"listen_addr" toml:"listen_addr"`
	Codec          string        `yaml:"codec" toml:"codec"` // "json" or "msgpack"
	SendBuffer     int           `yaml:"send_buffer" toml:"send_buffer"`
	MaxMessageSize int64         `yaml:"max_message_size" toml:"max_message_size"`
	WriteTimeout   time.Duration `yaml:"write_timeout" toml:"write_timeout"`
	PongTimeout    time.Duration `yaml:"pong_timeout" toml:"pong_timeout"`
}

// GameConfig is everything the session controller needs to build a match.
type GameConfig struct {
	TickInterval      time.Duration `yaml:"tick_interval" toml:"tick_interval"`
	SyncInterval      time.Duration `yaml:"sync_interval" toml:"sync_interval"`
	World             physics.Rect  `yaml:"world" toml:"world"`
	InputAcceleration float64       `yaml:"input_acceleration" toml:"input_acceleration"`
	Seed              uint64        `yaml:"seed" toml:"seed"` // 0 seeds from the clock

	Players   PlayerConfig   `yaml:"players" toml:"players"`
	Asteroids AsteroidConfig `yaml:"asteroids" toml:"asteroids"`
}

type PlayerConfig struct {
	Spawn           physics.Rect `yaml:"spawn" toml:"spawn"`
	Radius          float64      `yaml:"radius" toml:"radius"`
	Priority        float64      `yaml:"priority" toml:"priority"`
	MaxAcceleration float64      `yaml:"max_acceleration" toml:"max_acceleration"`
	DragScale       float64      `yaml:"drag_scale" toml:"drag_scale"`
}

type AsteroidConfig struct {
	Count           int          `yaml:"count" toml:"count"`
	Spawn           physics.Rect `yaml:"spawn" toml:"spawn"`
	MinRadius       float64      `yaml:"min_radius" toml:"min_radius"`
	MaxRadius       float64      `yaml:"max_radius" toml:"max_radius"`
	MaxSpeed        float64      `yaml:"max_speed" toml:"max_speed"`
	MaxAcceleration float64      `yaml:"max_acceleration" toml:"max_acceleration"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"` // "json" or "console"
}

func Default() *Config {
	world := physics.Rect{X: 0, Y: 0, W: 1440, H: 1080}
	return &Config{
		Server: ServerConfig{
			ListenAddr:     ":8080",
			Codec:          "json",
			SendBuffer:     256,
			MaxMessageSize: 4096,
			WriteTimeout:   10 * time.Second,
			PongTimeout:    60 * time.Second,
		},
		Game: GameConfig{
			TickInterval:      time.Second / 60,
			SyncInterval:      time.Second / 30,
			World:             world,
			InputAcceleration: 1000,
			Players: PlayerConfig{
				Spawn:           physics.Rect{X: 100, Y: 100, W: 1340, H: 980},
				Radius:          20,
				Priority:        20,
				MaxAcceleration: 1000,
				DragScale:       0.8,
			},
			Asteroids: AsteroidConfig{
				Count:           10,
				Spawn:           world,
				MinRadius:       20,
				MaxRadius:       80,
				MaxSpeed:        10,
				MaxAcceleration: 1000,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load decodes a YAML or TOML file, chosen by extension, over the defaults
// and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err = dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case ".toml":
		md, err := toml.Decode(string(data), cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("parse config %s: unknown key %s", path, undecoded[0])
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err = cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	g := c.Game
	var errs []error
	if g.TickInterval <= 0 {
		errs = append(errs, fmt.Errorf("game.tick_interval must be positive, got %s", g.TickInterval))
	}
	if g.SyncInterval <= 0 {
		errs = append(errs, fmt.Errorf("game.sync_interval must be positive, got %s", g.SyncInterval))
	}
	if g.World.W <= 0 || g.World.H <= 0 {
		errs = append(errs, fmt.Errorf("game.world must have a positive extent, got %vx%v", g.World.W, g.World.H))
	}
	if g.Asteroids.Count < 0 {
		errs = append(errs, fmt.Errorf("game.asteroids.count must not be negative, got %d", g.Asteroids.Count))
	}
	if g.Asteroids.MinRadius <= 0 || g.Asteroids.MaxRadius < g.Asteroids.MinRadius {
		errs = append(errs, fmt.Errorf("game.asteroids radius range [%v, %v) is invalid", g.Asteroids.MinRadius, g.Asteroids.MaxRadius))
	}
	if g.Asteroids.MaxAcceleration < 0 {
		errs = append(errs, fmt.Errorf("game.asteroids.max_acceleration must not be negative, got %v", g.Asteroids.MaxAcceleration))
	}
	if g.Asteroids.MaxSpeed < 0 {
		errs = append(errs, fmt.Errorf("game.asteroids.max_speed must not be negative, got %v", g.Asteroids.MaxSpeed))
	}
	if g.Players.Radius <= 0 {
		errs = append(errs, fmt.Errorf("game.players.radius must be positive, got %v", g.Players.Radius))
	}
	if g.Players.DragScale < 0 || g.Players.DragScale > 1 {
		errs = append(errs, fmt.Errorf("game.players.drag_scale must be in [0, 1], got %v", g.Players.DragScale))
	}
	switch c.Server.Codec {
	case "json", "msgpack":
	default:
		errs = append(errs, fmt.Errorf("server.codec must be json or msgpack, got %q", c.Server.Codec))
	}
	if c.Server.SendBuffer <= 0 {
		errs = append(errs, fmt.Errorf("server.send_buffer must be positive, got %d", c.Server.SendBuffer))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
