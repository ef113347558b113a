// Package config contains the configuration of a consensus node, its defaults and validation,
// and the loaders of committee data.
package config

import (
	"time"

	"github.com/Cardinal-Cryptography/aleph-node/pkg/gomel"
)

// Config represents the configuration of a single committee member.
type Config struct {
	// The process id of this member in the committee.
	Pid uint16 `mapstructure:"-"`

	// The number of processes in the committee.
	NProc uint16 `mapstructure:"-"`

	// The key this member signs units and justifications with.
	PrivateKey gomel.PrivateKey `mapstructure:"-"`

	// Public keys of all committee members, ordered according to process ids.
	PublicKeys []gomel.PublicKey `mapstructure:"-"`

	// Network addresses of all committee members, ordered according to process ids.
	Addresses []string `mapstructure:"-"`

	// Checks performed on every unit before it is inserted into the dag.
	Checks []gomel.UnitChecker `mapstructure:"-"`

	// Minimal delay between two consecutive units created by this member.
	CreateDelay time.Duration `mapstructure:"create_delay"`

	// The number of processes whose units are put in the deterministic prefix of the common random permutation.
	CRPFixedPrefix uint16 `mapstructure:"crp_fixed_prefix"`

	// The round from which heads are chosen.
	OrderStartRound int `mapstructure:"order_start_round"`

	// How long to wait for a missing unit before asking another peer for it.
	FetchInterval time.Duration `mapstructure:"fetch_interval"`

	// The number of retries of a single request sent to a single peer.
	FetchRetries uint64 `mapstructure:"fetch_retries"`

	// The number of missing units above which the whole tip is requested instead of the units themselves.
	TipAbove int `mapstructure:"tip_above"`

	// The number of preunits received from a single peer that may wait for their parents at the same time.
	WaitingLimit int `mapstructure:"waiting_limit"`

	// Network timeout for a single read or write.
	Timeout time.Duration `mapstructure:"timeout"`

	// The number of workers serving incoming requests.
	SyncWorkers int `mapstructure:"sync_workers"`

	// Capacity of the queues between the extender and the finalizer.
	BatchBuffer int `mapstructure:"batch_buffer"`

	// Directory of the durable backup.
	BackupPath string `mapstructure:"backup_path"`

	// How often signature shares are rebroadcast until a justification is gathered.
	JustificationInterval time.Duration `mapstructure:"justification_interval"`

	// How many times a justification is requested before the request is dropped.
	MaxJustificationAttempts int `mapstructure:"max_justification_attempts"`

	// How often the catch-up checks whether this member lags behind.
	CatchUpInterval time.Duration `mapstructure:"catch_up_interval"`

	// Maximal number of justifications sent in a single response.
	CatchUpBatch int `mapstructure:"catch_up_batch"`

	// How long the outgoing session may keep finalizing its tail after it was ended.
	HandoffTimeout time.Duration `mapstructure:"handoff_timeout"`

	// Address the prometheus metrics are served at. Empty disables serving.
	MetricsAddress string `mapstructure:"metrics_address"`

	// Path to the logfile. "stdout" or "stderr" are possible too.
	LogFile string `mapstructure:"log_file"`

	// Log level: 0-debug 1-info 2-warn 3-error 4-fatal 5-panic.
	LogLevel int `mapstructure:"log_level"`

	// Whether to write the log in the human readable form or in JSON.
	LogHuman bool `mapstructure:"log_human"`

	// The size of log diode buffer in bytes. 0 disables the diode. Recommended at least 100k.
	LogBuffer int `mapstructure:"log_buffer"`

	// How often (in seconds) to log the memory usage. 0 to disable.
	LogMemInterval int `mapstructure:"log_mem_interval"`
}

// Session returns the session with the committee of this config.
func (cnf *Config) Session(id gomel.SessionID) *gomel.Session {
	return &gomel.Session{ID: id, Keys: cnf.PublicKeys, Addresses: cnf.Addresses}
}
