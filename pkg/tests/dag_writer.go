package tests

import (
	"fmt"
	"io"
	"sort"

	"github.com/Cardinal-Cryptography/aleph-node/pkg/gomel"
)

// WriteDag writes a description of the given dag in the following format:
//
// The 1st line contains an integer N - the number of processes.
// Then there is one line per unit in the following format:
//
//	C-R-V[e] [Parents]
//
// Where
//
//	(1) C is the creator of a unit,
//	(2) R is the round of a unit,
//	(3) V is the version of a unit (0 for the canonical unit, forks are enumerated with consecutive integers in hash order),
//	(4) e marks an empty unit,
//	(5) Parents is the list of parents separated by a single space, encoded in the same C-R-V format.
func WriteDag(writer io.Writer, dag gomel.Dag) error {
	if _, err := fmt.Fprintf(writer, "%d\n", dag.NProc()); err != nil {
		return err
	}
	name := func(u gomel.Unit) string {
		units := sortedByHash(dag.UnitsOnRound(u.Round()).Get(u.Creator()))
		for i, v := range units {
			if gomel.Equal(u, v) {
				return fmt.Sprintf("%d-%d-%d", u.Creator(), u.Round(), i)
			}
		}
		return ""
	}
	for round := 0; round <= dag.MaxRound(); round++ {
		var err error
		dag.UnitsOnRound(round).Iterate(func(units []gomel.Unit) bool {
			for _, u := range sortedByHash(units) {
				line := name(u)
				if u.Data() == nil {
					line += "e"
				}
				for _, p := range u.Parents() {
					if p != nil {
						line += " " + name(p)
					}
				}
				if _, err = fmt.Fprintln(writer, line); err != nil {
					return false
				}
			}
			return true
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func sortedByHash(units []gomel.Unit) []gomel.Unit {
	result := append([]gomel.Unit(nil), units...)
	sort.Slice(result, func(i, j int) bool { return result[i].Hash().LessThan(result[j].Hash()) })
	return result
}
