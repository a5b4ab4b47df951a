package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/life-stream-dev/life-stream-go-live-broker/internal/utils"
)

const DefaultPath = "config.json"

type DatabaseConfig struct {
	Host               string `json:"host"`
	Port               uint64 `json:"port"`
	Username           string `json:"username"`
	Password           string `json:"password"`
	Database           string `json:"database"`
	UseTLS             bool   `json:"use_tls"`
	ConnectTimeout     string `json:"connect_timeout"`
	SocketTimeout      string `json:"socket_timeout"`
	ConnectIdleTimeout string `json:"connect_idle_timeout"`
	OperationTimeout   string `json:"operation_timeout"`
	Heartbeat          string `json:"heartbeat"`
	MinPoolSize        uint64 `json:"min_pool_size"`
	MaxPoolSize        uint64 `json:"max_pool_size"`
}

type LiveConfig struct {
	ListenAddress string `json:"listen_address"`
	SocketPath    string `json:"socket_path"`
	RefreshPeriod string `json:"refresh_period"`
	WriteTimeout  string `json:"write_timeout"`
	PongTimeout   string `json:"pong_timeout"`
	SendBuffer    int    `json:"send_buffer"`
	ReadLimit     int64  `json:"read_limit"`
}

type CacheConfig struct {
	LatestPositionsSize int    `json:"latest_positions_size"`
	VisibilitySize      int    `json:"visibility_size"`
	VisibilityTTL       string `json:"visibility_ttl"`
}

type AuthConfig struct {
	JWTSecret string `json:"jwt_secret"`
	JWTIssuer string `json:"jwt_issuer"`
}

type LogConfig struct {
	Path          string `json:"path"`
	RetentionDays int    `json:"retention_days"`
}

type Config struct {
	Database  DatabaseConfig `json:"database"`
	Live      LiveConfig     `json:"live"`
	Cache     CacheConfig    `json:"cache"`
	Auth      AuthConfig     `json:"auth"`
	Log       LogConfig      `json:"log"`
	DebugMode bool           `json:"debug_mode"`
	AppName   string         `json:"app_name"`
}

var config = Default()
var initialized = false

// Default returns a configuration with every optional field filled.
func Default() Config {
	c := Config{AppName: "live-broker"}
	c.Database.Port = 27017
	c.Database.Database = "tracker"
	c.Database.ConnectTimeout = "10s"
	c.Database.SocketTimeout = "30s"
	c.Database.ConnectIdleTimeout = "5m"
	c.Database.OperationTimeout = "5s"
	c.Database.Heartbeat = "10s"
	c.Database.MinPoolSize = 2
	c.Database.MaxPoolSize = 50
	c.Live = LiveConfig{
		ListenAddress: ":8082",
		SocketPath:    "/api/socket",
		RefreshPeriod: "10s",
		WriteTimeout:  "10s",
		PongTimeout:   "60s",
		SendBuffer:    256,
		ReadLimit:     4096,
	}
	c.Cache = CacheConfig{
		LatestPositionsSize: 100000,
		VisibilitySize:      10000,
		VisibilityTTL:       "30s",
	}
	c.Log = LogConfig{Path: "logs", RetentionDays: 30}
	return c
}

// Validate fills zero values with defaults and rejects settings the broker cannot run with.
func (c *Config) Validate() error {
	d := Default()
	if c.Live.ListenAddress == "" {
		c.Live.ListenAddress = d.Live.ListenAddress
	}
	if c.Live.SocketPath == "" {
		c.Live.SocketPath = d.Live.SocketPath
	}
	if c.Live.RefreshPeriod == "" {
		c.Live.RefreshPeriod = d.Live.RefreshPeriod
	}
	if c.Live.WriteTimeout == "" {
		c.Live.WriteTimeout = d.Live.WriteTimeout
	}
	if c.Live.PongTimeout == "" {
		c.Live.PongTimeout = d.Live.PongTimeout
	}
	if c.Live.SendBuffer <= 0 {
		c.Live.SendBuffer = d.Live.SendBuffer
	}
	if c.Live.ReadLimit <= 0 {
		c.Live.ReadLimit = d.Live.ReadLimit
	}
	if c.Cache.LatestPositionsSize <= 0 {
		c.Cache.LatestPositionsSize = d.Cache.LatestPositionsSize
	}
	if c.Cache.VisibilitySize <= 0 {
		c.Cache.VisibilitySize = d.Cache.VisibilitySize
	}
	if c.Cache.VisibilityTTL == "" {
		c.Cache.VisibilityTTL = d.Cache.VisibilityTTL
	}
	if c.Log.Path == "" {
		c.Log.Path = d.Log.Path
	}
	if c.Log.RetentionDays <= 0 {
		c.Log.RetentionDays = d.Log.RetentionDays
	}

	for name, value := range map[string]string{
		"live.refresh_period":  c.Live.RefreshPeriod,
		"live.write_timeout":   c.Live.WriteTimeout,
		"live.pong_timeout":    c.Live.PongTimeout,
		"cache.visibility_ttl": c.Cache.VisibilityTTL,
	} {
		if utils.ParseStringTime(value) <= 0 {
			return fmt.Errorf("%s must be a positive duration, got %q", name, value)
		}
	}
	return nil
}

func ReadConfig() (Config, error) {
	return ReadConfigFrom(DefaultPath)
}

func ReadConfigFrom(path string) (Config, error) {
	bytes, err := os.ReadFile(path)

	if err != nil {
		writer, _ := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
		data, _ := json.MarshalIndent(Default(), "", "\t")
		_, _ = writer.Write(data)
		_ = writer.Close()
		return config, errors.New("the configuration file does not exist and has been created. Please try again after editing the configuration file")
	}

	loaded := Default()
	if err = json.Unmarshal(bytes, &loaded); err != nil {
		return config, errors.New("the configuration file does not contain valid JSON")
	}

	if err = loaded.Validate(); err != nil {
		return config, fmt.Errorf("invalid configuration: %w", err)
	}

	config = loaded
	initialized = true
	return config, nil
}

func GetConfig() (Config, error) {
	if initialized {
		return config, nil
	}
	return ReadConfig()
}
