package config

import (
	"time"

	"github.com/Cardinal-Cryptography/aleph-node/pkg/dag/check"
)

const (
	// MaxUnitsInChunk is the maximal number of units in a single response.
	MaxUnitsInChunk = 1e5
	// MaxDataBranchLength is the maximal number of blocks a process is ahead of the finalized block when proposing.
	MaxDataBranchLength = 7
)

// Default returns a Config populated with default values and no keys.
func Default() *Config {
	return &Config{
		Checks:                   check.Default(),
		CreateDelay:              200 * time.Millisecond,
		CRPFixedPrefix:           4,
		OrderStartRound:          0,
		FetchInterval:            2 * time.Second,
		FetchRetries:             3,
		TipAbove:                 50,
		WaitingLimit:             2000,
		Timeout:                  2 * time.Second,
		SyncWorkers:              8,
		BatchBuffer:              16,
		BackupPath:               "aleph-backup",
		JustificationInterval:    time.Second,
		MaxJustificationAttempts: 5,
		CatchUpInterval:          5 * time.Second,
		CatchUpBatch:             100,
		HandoffTimeout:           10 * time.Second,
		MetricsAddress:           "",
		LogFile:                  "aleph.log",
		LogLevel:                 1,
		LogHuman:                 false,
		LogBuffer:                100000,
		LogMemInterval:           10,
	}
}

// New returns a Config for the given member of the given committee, with default parameters.
func New(m *Member, c *Committee) *Config {
	cnf := Default()
	AddKeys(cnf, m, c)
	return cnf
}

// AddKeys fills the key and address data of the config.
func AddKeys(cnf *Config, m *Member, c *Committee) {
	cnf.Pid = m.Pid
	cnf.NProc = uint16(len(c.PublicKeys))
	cnf.PrivateKey = m.PrivateKey
	cnf.PublicKeys = c.PublicKeys
	cnf.Addresses = c.Addresses
}
