package tests

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Cardinal-Cryptography/aleph-node/pkg/dag/unit"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/gomel"
)

// ReadDag reads a dag description in the format produced by WriteDag and builds the dag.
// Units are added directly to the dag, so they have to be listed after their parents.
// The returned map gives access to the units by their C-R-V names.
// A unit listed with the suffix "e" (e.g. "1-3-0e") is empty, any other unit on round r proposes the block number r+1,
// with a hash depending on the version.
func ReadDag(reader io.Reader, c *Committee) (gomel.Dag, map[string]gomel.Unit, error) {
	scanner := bufio.NewScanner(reader)
	if !scanner.Scan() {
		return nil, nil, gomel.NewDataError("empty dag description")
	}
	var n uint16
	if _, err := fmt.Sscanf(scanner.Text(), "%d", &n); err != nil {
		return nil, nil, err
	}
	if n != c.Session.NProc() {
		return nil, nil, gomel.NewDataError("committee size does not match the dag description")
	}

	dag := NewDag(c)
	units := make(map[string]gomel.Unit)

	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		// skip comments and empty lines
		if text == "" || strings.HasPrefix(text, "//") {
			continue
		}
		var puCreator, puRound, puVersion int
		empty := false
		parents := gomel.NoParents(n)
		for i, t := range strings.Split(text, " ") {
			var creator, round, version int
			if i == 0 && strings.HasSuffix(t, "e") {
				empty = true
				t = strings.TrimSuffix(t, "e")
			}
			if _, err := fmt.Sscanf(t, "%d-%d-%d", &creator, &round, &version); err != nil {
				return nil, nil, err
			}
			if i == 0 {
				puCreator, puRound, puVersion = creator, round, version
				continue
			}
			parent, ok := units[t]
			if !ok {
				return nil, nil, gomel.NewDataError("trying to set parent to non-existing unit " + t)
			}
			if creator >= int(n) || parents[creator] != nil {
				return nil, nil, gomel.NewDataError("duplicate parent " + t)
			}
			parents[creator] = parent.Hash()
		}
		if puCreator >= int(n) {
			return nil, nil, gomel.NewDataError("creator outside of the committee")
		}
		var data *gomel.BlockRef
		if !empty {
			b := BlockAt(uint64(puRound) + 1)
			b.Hash[0] ^= byte(puVersion)
			data = &b
		}
		pu := c.Sign(unit.NewPreunit(c.Session.ID, uint16(puCreator), puRound, parents, data, nil))
		u, err := AddUnit(dag, pu)
		if err != nil {
			return nil, nil, err
		}
		units[fmt.Sprintf("%d-%d-%d", puCreator, puRound, puVersion)] = u
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}
	return dag, units, nil
}

// CreateDagFromString builds a dag out of its text description.
func CreateDagFromString(desc string, c *Committee) (gomel.Dag, map[string]gomel.Unit, error) {
	return ReadDag(strings.NewReader(desc), c)
}

// CreateDagFromTestFile reads a dag description from the given file.
func CreateDagFromTestFile(filename string, c *Committee) (gomel.Dag, map[string]gomel.Unit, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()
	return ReadDag(bufio.NewReader(file), c)
}
