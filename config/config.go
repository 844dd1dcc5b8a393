// Package config loads runtime configuration from environment variables.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	ServerPort string `mapstructure:"SERVER_PORT"`
	DBPath     string `mapstructure:"DB_PATH"`

	// LogPretty switches zerolog to the human-readable console writer.
	LogPretty bool   `mapstructure:"LOG_PRETTY"`
	LogLevel  string `mapstructure:"LOG_LEVEL"`

	// SweepInterval is how often the scheduler runs the day-close and
	// compensation-period sweeps.
	SweepInterval time.Duration `mapstructure:"SWEEP_INTERVAL"`

	// AutoApproveDeltas posts completed-session deltas as approved instead
	// of pending.
	AutoApproveDeltas bool `mapstructure:"AUTO_APPROVE_DELTAS"`

	// Hour bank caps, in minutes.
	MaxPositiveBalance int64 `mapstructure:"MAX_POSITIVE_BALANCE"`
	MaxNegativeBalance int64 `mapstructure:"MAX_NEGATIVE_BALANCE"`

	// HighImpactMinutes is the clock-shift magnitude above which an edit
	// request needs a second approver.
	HighImpactMinutes int64 `mapstructure:"HIGH_IMPACT_MINUTES"`

	// ApproverRoles maps employees to approval roles, as
	// "emp-1:supervisor,emp-2:hr_manager". Single-process stand-in for an
	// external identity provider.
	ApproverRoles string `mapstructure:"APPROVER_ROLES"`
}

// RoleMap parses ApproverRoles into an employee-to-role map.
func (c Config) RoleMap() map[string]string {
	roles := make(map[string]string)
	for _, pair := range strings.Split(c.ApproverRoles, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), ":", 2)
		if len(parts) != 2 || parts[0] == "" {
			continue
		}
		roles[parts[0]] = parts[1]
	}
	return roles
}

// Load reads configuration from environment variables with sane defaults.
func Load() (config Config, err error) {
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("DB_PATH", "./data/attendance.db")
	viper.SetDefault("LOG_PRETTY", false)
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("SWEEP_INTERVAL", "1h")
	viper.SetDefault("AUTO_APPROVE_DELTAS", true)
	viper.SetDefault("MAX_POSITIVE_BALANCE", 2400)
	viper.SetDefault("MAX_NEGATIVE_BALANCE", 1200)
	viper.SetDefault("HIGH_IMPACT_MINUTES", 120)
	viper.SetDefault("APPROVER_ROLES", "")

	viper.AutomaticEnv()

	err = viper.Unmarshal(&config)
	return
}
