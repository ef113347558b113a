package main

import (
	"bufio"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/Cardinal-Cryptography/aleph-node/pkg/logging"
)

var logsCmd = &cobra.Command{
	Use:   "logs <logfile.json>",
	Short: "Print a JSON log in the human readable form",
	Args:  cobra.ExactArgs(1),
	RunE:  decodeLogs,
}

func decodeLogs(_ *cobra.Command, args []string) error {
	file, err := os.Open(args[0])
	if err != nil {
		return errors.Wrapf(err, "opening %s", args[0])
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	decoder := logging.NewDecoder(os.Stdout)
	for scanner.Scan() {
		if _, err := decoder.Write(scanner.Bytes()); err != nil {
			return err
		}
	}
	return scanner.Err()
}
