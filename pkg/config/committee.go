package config

import (
	"bufio"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/Cardinal-Cryptography/aleph-node/pkg/crypto/signing"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/gomel"
)

// Member represents the private data about a committee member.
type Member struct {
	// The process id of this member.
	Pid uint16

	// The private key of this committee member.
	PrivateKey gomel.PrivateKey
}

// Committee represents the public data about the committee known before the algorithm starts.
type Committee struct {
	// Public keys of all committee members, ordered according to process ids.
	PublicKeys []gomel.PublicKey

	// Addresses of all committee members, ordered according to process ids.
	Addresses []string
}

const malformedData = "malformed committee data"

// LoadMember loads the data from the given reader and creates a member.
// Assumes one line of the form "private_key pid".
func LoadMember(r io.Reader) (*Member, error) {
	scanner := bufio.NewScanner(r)
	scanner.Split(bufio.ScanWords)

	if !scanner.Scan() {
		return nil, errors.New(malformedData)
	}
	privateKey, err := signing.DecodePrivateKey(scanner.Text())
	if err != nil {
		return nil, err
	}

	if !scanner.Scan() {
		return nil, errors.New(malformedData)
	}
	pid, err := strconv.Atoi(scanner.Text())
	if err != nil {
		return nil, err
	}

	return &Member{
		Pid:        uint16(pid),
		PrivateKey: privateKey,
	}, nil
}

// LoadCommittee loads the data from the given reader and creates a committee.
// Every line describes one member in the form "public_key|address".
func LoadCommittee(r io.Reader) (*Committee, error) {
	scanner := bufio.NewScanner(r)

	c := &Committee{}
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		s := strings.Split(line, "|")
		if len(s) != 2 || len(s[0]) == 0 {
			return nil, errors.New("committee line should be of the form:\npublicKey|address")
		}
		publicKey, err := signing.DecodePublicKey(s[0])
		if err != nil {
			return nil, err
		}
		c.PublicKeys = append(c.PublicKeys, publicKey)
		c.Addresses = append(c.Addresses, s[1])
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(c.PublicKeys) == 0 {
		return nil, errors.New(malformedData)
	}
	return c, nil
}

// StoreMember writes the given member to the writer.
func StoreMember(w io.Writer, m *Member) error {
	_, err := io.WriteString(w, m.PrivateKey.Encode()+" "+strconv.Itoa(int(m.Pid))+"\n")
	return err
}

// StoreCommittee writes the given committee to the writer.
func StoreCommittee(w io.Writer, c *Committee) error {
	for i := range c.PublicKeys {
		addr := ""
		if i < len(c.Addresses) {
			addr = c.Addresses[i]
		}
		if _, err := io.WriteString(w, c.PublicKeys[i].Encode()+"|"+addr+"\n"); err != nil {
			return err
		}
	}
	return nil
}
