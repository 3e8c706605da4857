package config

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
)

// KeyWatchDirs is the configuration key holding the ordered watch set. The
// name is kept compatible with the legacy trace_path.json layout.
const KeyWatchDirs = "watchdog_dirs"

// ErrMalformedWatchDirs is returned when watchdog_dirs is present but is not a
// list of strings.
var ErrMalformedWatchDirs = errors.New("'watchdog_dirs' must be a list of directory paths")

// SetDefaults registers Default() values on v so unset keys resolve sensibly.
func SetDefaults(v *viper.Viper) {
	def := Default()
	v.SetDefault("endpoint", def.Connection.Endpoint)
	v.SetDefault("username", def.Connection.Username)
	v.SetDefault("password", def.Connection.Password)
	v.SetDefault("root_prefix", def.Connection.RootPrefix)
	v.SetDefault("tools.hsls", def.Tools.List)
	v.SetDefault("tools.hsload", def.Tools.Load)
	v.SetDefault("tools.h5clear", def.Tools.Clear)
	v.SetDefault("tools.timeout", def.Tools.Timeout)
	v.SetDefault("suffix", def.Suffix)
	v.SetDefault("debounce_interval", def.DebounceInterval)
	v.SetDefault("settle_window", def.SettleWindow)
	v.SetDefault("tick_interval", def.TickInterval)
	v.SetDefault("ping_interval", def.PingInterval)
	v.SetDefault("log_level", def.LogLevel)
}

// FromViper decodes the agent configuration from v.
//
// A malformed watch list never fails the load: the returned config carries an
// empty watch set together with ErrMalformedWatchDirs so the caller can log it
// and still start idly. Any other decode error is returned as is, along with
// the defaults.
func FromViper(v *viper.Viper) (Config, error) {
	cfg := Default()
	if err := v.Unmarshal(&cfg); err != nil {
		cfg = Default()
		cfg.Normalize()
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	var watchErr error
	dirs, err := watchDirs(v.Get(KeyWatchDirs))
	if err != nil {
		watchErr = err
	}
	cfg.WatchDirs = dirs
	cfg.Normalize()
	return cfg, watchErr
}

func watchDirs(raw any) ([]string, error) {
	switch val := raw.(type) {
	case nil:
		return nil, nil
	case []string:
		return append([]string(nil), val...), nil
	case []any:
		dirs := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, ErrMalformedWatchDirs
			}
			dirs = append(dirs, s)
		}
		return dirs, nil
	default:
		return nil, ErrMalformedWatchDirs
	}
}
