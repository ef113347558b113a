package main

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/Cardinal-Cryptography/aleph-node/pkg/config"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/crypto/signing"
)

var (
	flagKeysDir  string
	flagKeysHost string
	flagKeysPort int
)

var keysCmd = &cobra.Command{
	Use:   "keys <number>",
	Short: "Generate keys of a local committee",
	Long: "Generates a committee file with public keys and addresses of all members,\n" +
		"and a file with the private key and pid of every member.",
	Args: cobra.ExactArgs(1),
	RunE: generateKeys,
}

func init() {
	keysCmd.Flags().StringVar(&flagKeysDir, "dir", ".", "directory to write the files to")
	keysCmd.Flags().StringVar(&flagKeysHost, "host", "127.0.0.1", "host of all the members")
	keysCmd.Flags().IntVar(&flagKeysPort, "port", 21037, "port of the first member, the others get the consecutive ones")
}

func generateKeys(_ *cobra.Command, args []string) error {
	num, err := strconv.Atoi(args[0])
	if err != nil {
		return errors.Wrap(err, "number of members")
	}
	if num < 4 {
		return errors.New("cannot have less than 4 members")
	}
	committee := &config.Committee{}
	members := make([]*config.Member, num)
	for i := range members {
		pub, priv, err := signing.GenerateKeys()
		if err != nil {
			return err
		}
		committee.PublicKeys = append(committee.PublicKeys, pub)
		committee.Addresses = append(committee.Addresses, flagKeysHost+":"+strconv.Itoa(flagKeysPort+i))
		members[i] = &config.Member{Pid: uint16(i), PrivateKey: priv}
	}
	if err := writeFile(filepath.Join(flagKeysDir, "committee.txt"), func(f *os.File) error {
		return config.StoreCommittee(f, committee)
	}); err != nil {
		return err
	}
	for _, m := range members {
		m := m
		if err := writeFile(filepath.Join(flagKeysDir, strconv.Itoa(int(m.Pid))+".member"), func(f *os.File) error {
			return config.StoreMember(f, m)
		}); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating %s", path)
	}
	defer f.Close()
	return errors.Wrapf(write(f), "writing %s", path)
}

func loadMember(path string) (*config.Member, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()
	m, err := config.LoadMember(f)
	return m, errors.Wrapf(err, "loading member from %s", path)
}

func loadCommittee(path string) (*config.Committee, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()
	c, err := config.LoadCommittee(f)
	return c, errors.Wrapf(err, "loading committee from %s", path)
}
