package config

import (
	"reflect"
	"runtime"
	"strconv"

	"github.com/Cardinal-Cryptography/aleph-node/pkg/dag/check"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/gomel"
)

func funcName(i interface{}) string {
	return runtime.FuncForPC(reflect.ValueOf(i).Pointer()).Name()
}

func checkChecks(given, expected []gomel.UnitChecker) error {
	for _, sc := range expected {
		notFound := true
		fn := funcName(sc)
		for _, c := range given {
			if funcName(c) == fn {
				notFound = false
				break
			}
		}
		if notFound {
			return gomel.NewConfigError("missing check: " + fn)
		}
	}
	return nil
}

func checkKeys(cnf *Config) error {
	if cnf.NProc == 0 {
		return gomel.NewConfigError("nProc set to 0 during keys check")
	}
	if cnf.Pid >= cnf.NProc {
		return gomel.NewConfigError("pid " + strconv.Itoa(int(cnf.Pid)) + " outside of the committee")
	}
	if cnf.PrivateKey == nil {
		return gomel.NewConfigError("private key is missing")
	}
	if len(cnf.PublicKeys) != int(cnf.NProc) {
		return gomel.NewConfigError("wrong number of public keys")
	}
	for _, pk := range cnf.PublicKeys {
		if pk == nil {
			return gomel.NewConfigError("public keys contain nil")
		}
	}
	return nil
}

func checkSyncConf(cnf *Config) error {
	if cnf.Timeout <= 0 {
		return gomel.NewConfigError("timeout has to be positive")
	}
	if cnf.FetchInterval <= 0 {
		return gomel.NewConfigError("fetch interval has to be positive")
	}
	if cnf.TipAbove <= 0 {
		return gomel.NewConfigError("TipAbove has to be positive")
	}
	if cnf.WaitingLimit <= 0 {
		return gomel.NewConfigError("WaitingLimit has to be positive")
	}
	if cnf.SyncWorkers <= 0 {
		return gomel.NewConfigError("there has to be at least one sync worker")
	}
	if cnf.Addresses != nil && len(cnf.Addresses) != int(cnf.NProc) {
		return gomel.NewConfigError("wrong number of addresses")
	}
	return nil
}

func checkFinalityConf(cnf *Config) error {
	if cnf.BatchBuffer <= 0 {
		return gomel.NewConfigError("batch buffer has to be positive")
	}
	if cnf.JustificationInterval <= 0 {
		return gomel.NewConfigError("justification interval has to be positive")
	}
	if cnf.MaxJustificationAttempts <= 0 {
		return gomel.NewConfigError("MaxJustificationAttempts has to be positive")
	}
	if cnf.CatchUpInterval <= 0 {
		return gomel.NewConfigError("catch-up interval has to be positive")
	}
	if cnf.CatchUpBatch <= 0 {
		return gomel.NewConfigError("CatchUpBatch has to be positive")
	}
	return nil
}

// Valid checks if a given config is in a valid state for running consensus.
func Valid(cnf *Config) error {
	if cnf.NProc < 1 {
		return gomel.NewConfigError("nProc is " + strconv.Itoa(int(cnf.NProc)))
	}
	if cnf.CRPFixedPrefix > cnf.NProc {
		return gomel.NewConfigError("CRPFixedPrefix cannot exceed NProc")
	}
	if cnf.CreateDelay < 0 {
		return gomel.NewConfigError("CreateDelay cannot be negative")
	}
	if cnf.OrderStartRound < 0 {
		return gomel.NewConfigError("OrderStartRound cannot be negative")
	}
	if cnf.LogFile == "" {
		return gomel.NewConfigError("missing log filename")
	}
	if err := checkChecks(cnf.Checks, check.Default()); err != nil {
		return err
	}
	if err := checkKeys(cnf); err != nil {
		return err
	}
	if err := checkSyncConf(cnf); err != nil {
		return err
	}
	return checkFinalityConf(cnf)
}
