package dag

import (
	"sync"

	"github.com/Cardinal-Cryptography/aleph-node/pkg/gomel"
)

type unitBag struct {
	sync.RWMutex
	contents map[gomel.Hash]gomel.Unit
}

func newUnitBag() *unitBag {
	return &unitBag{contents: map[gomel.Hash]gomel.Unit{}}
}

func (units *unitBag) add(u gomel.Unit) {
	units.Lock()
	defer units.Unlock()
	units.contents[*u.Hash()] = u
}

func (units *unitBag) getOne(hash *gomel.Hash) gomel.Unit {
	units.RLock()
	defer units.RUnlock()
	return units.contents[*hash]
}

// get returns units with the given hashes, nil for the unknown ones, and the number of unknown non-nil hashes.
func (units *unitBag) get(hashes []*gomel.Hash) ([]gomel.Unit, int) {
	units.RLock()
	defer units.RUnlock()
	result := make([]gomel.Unit, len(hashes))
	unknown := 0
	for i, h := range hashes {
		if h == nil {
			continue
		}
		if u, ok := units.contents[*h]; ok {
			result[i] = u
		} else {
			unknown++
		}
	}
	return result, unknown
}
