package config

import (
	"strconv"
	"strings"
	"time"
)

const (
	DefaultEndpoint   = "http://localhost:5101"
	DefaultUsername   = "admin"
	DefaultPassword   = "admin"
	DefaultRootPrefix = "/home/admin/"
	DefaultSuffix     = ".strc"
	DefaultPort       = 5101
)

// Connection identifies the HSDS endpoint and the account used against it.
// It is built once at startup and passed by value.
type Connection struct {
	Endpoint   string `mapstructure:"endpoint"`
	Username   string `mapstructure:"username"`
	Password   string `mapstructure:"password"`
	RootPrefix string `mapstructure:"root_prefix"`
}

// Tools holds the external binaries used to list, load and repair files.
type Tools struct {
	List    string        `mapstructure:"hsls"`
	Load    string        `mapstructure:"hsload"`
	Clear   string        `mapstructure:"h5clear"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type Config struct {
	Connection       Connection    `mapstructure:",squash"`
	Tools            Tools         `mapstructure:"tools"`
	WatchDirs        []string      `mapstructure:"watchdog_dirs"`
	Suffix           string        `mapstructure:"suffix"`
	DebounceInterval time.Duration `mapstructure:"debounce_interval"` // quiet time before a live file is promoted
	SettleWindow     time.Duration `mapstructure:"settle_window"`     // startup size/mtime comparison window
	TickInterval     time.Duration `mapstructure:"tick_interval"`
	PingInterval     time.Duration `mapstructure:"ping_interval"` // 0 disables the endpoint heartbeat
	LogDir           string        `mapstructure:"log_dir"`
	LogLevel         string        `mapstructure:"log_level"`
	DBPath           string        `mapstructure:"db_path"`
	Debug            bool          `mapstructure:"debug"`
}

// Default returns the settings the agent runs with when nothing is configured.
func Default() Config {
	return Config{
		Connection: Connection{
			Endpoint:   DefaultEndpoint,
			Username:   DefaultUsername,
			Password:   DefaultPassword,
			RootPrefix: DefaultRootPrefix,
		},
		Tools: Tools{
			List:  "hsls",
			Load:  "hsload",
			Clear: "h5clear",
		},
		Suffix:           DefaultSuffix,
		DebounceInterval: 3 * time.Second,
		SettleWindow:     1 * time.Second,
		TickInterval:     1 * time.Second,
		PingInterval:     1 * time.Minute,
		LogLevel:         "info",
	}
}

// Normalize fills zero values from Default and canonicalizes the endpoint
// and root prefix.
func (c *Config) Normalize() {
	def := Default()

	c.Connection.Endpoint = strings.TrimRight(strings.TrimSpace(c.Connection.Endpoint), "/")
	if c.Connection.Endpoint == "" {
		c.Connection.Endpoint = def.Connection.Endpoint
	}
	if c.Connection.Username == "" {
		c.Connection.Username = def.Connection.Username
	}
	if c.Connection.Password == "" {
		c.Connection.Password = def.Connection.Password
	}
	c.Connection.RootPrefix = NormalizePrefix(c.Connection.RootPrefix)

	if c.Tools.List == "" {
		c.Tools.List = def.Tools.List
	}
	if c.Tools.Load == "" {
		c.Tools.Load = def.Tools.Load
	}
	if c.Tools.Clear == "" {
		c.Tools.Clear = def.Tools.Clear
	}
	if c.Tools.Timeout < 0 {
		c.Tools.Timeout = 0
	}

	if c.Suffix == "" {
		c.Suffix = def.Suffix
	}
	if !strings.HasPrefix(c.Suffix, ".") {
		c.Suffix = "." + c.Suffix
	}
	if c.DebounceInterval <= 0 {
		c.DebounceInterval = def.DebounceInterval
	}
	if c.SettleWindow <= 0 {
		c.SettleWindow = def.SettleWindow
	}
	if c.TickInterval <= 0 {
		c.TickInterval = def.TickInterval
	}
	if c.PingInterval < 0 {
		c.PingInterval = 0
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}

	dirs := make([]string, 0, len(c.WatchDirs))
	for _, d := range c.WatchDirs {
		if d = strings.TrimSpace(d); d != "" {
			dirs = append(dirs, d)
		}
	}
	c.WatchDirs = dirs
}

// NormalizePrefix returns prefix as an absolute remote folder ending in "/".
func NormalizePrefix(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return DefaultRootPrefix
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix
}

// EndpointForHost builds the endpoint URL for an HSDS host on the default port.
func EndpointForHost(host string) string {
	host = strings.TrimSpace(host)
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return strings.TrimRight(host, "/")
	}
	return "http://" + host + ":" + strconv.Itoa(DefaultPort)
}
