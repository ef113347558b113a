package config

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables overriding configuration values.
const EnvPrefix = "ALEPH"

// Load reads the parameters from the given file (any format viper understands) on top of the defaults.
// Environment variables prefixed with ALEPH_ take precedence. An empty path loads only the defaults and the environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	cnf := Default()
	setDefaults(v, cnf)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "reading config file %s", path)
		}
	}
	if err := v.Unmarshal(cnf); err != nil {
		return nil, errors.Wrap(err, "decoding config")
	}
	return cnf, nil
}

func setDefaults(v *viper.Viper, cnf *Config) {
	v.SetDefault("create_delay", cnf.CreateDelay)
	v.SetDefault("crp_fixed_prefix", cnf.CRPFixedPrefix)
	v.SetDefault("order_start_round", cnf.OrderStartRound)
	v.SetDefault("fetch_interval", cnf.FetchInterval)
	v.SetDefault("fetch_retries", cnf.FetchRetries)
	v.SetDefault("tip_above", cnf.TipAbove)
	v.SetDefault("waiting_limit", cnf.WaitingLimit)
	v.SetDefault("timeout", cnf.Timeout)
	v.SetDefault("sync_workers", cnf.SyncWorkers)
	v.SetDefault("batch_buffer", cnf.BatchBuffer)
	v.SetDefault("backup_path", cnf.BackupPath)
	v.SetDefault("justification_interval", cnf.JustificationInterval)
	v.SetDefault("max_justification_attempts", cnf.MaxJustificationAttempts)
	v.SetDefault("catch_up_interval", cnf.CatchUpInterval)
	v.SetDefault("catch_up_batch", cnf.CatchUpBatch)
	v.SetDefault("handoff_timeout", cnf.HandoffTimeout)
	v.SetDefault("metrics_address", cnf.MetricsAddress)
	v.SetDefault("log_file", cnf.LogFile)
	v.SetDefault("log_level", cnf.LogLevel)
	v.SetDefault("log_human", cnf.LogHuman)
	v.SetDefault("log_buffer", cnf.LogBuffer)
	v.SetDefault("log_mem_interval", cnf.LogMemInterval)
}
