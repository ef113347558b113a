package dag

import (
	"sync"

	"github.com/Cardinal-Cryptography/aleph-node/pkg/gomel"
)

type slottedUnits struct {
	contents [][]gomel.Unit
	mxs      []sync.RWMutex
}

// newSlottedUnits creates slotted units for the given number of processes.
func newSlottedUnits(n uint16) gomel.SlottedUnits {
	return &slottedUnits{
		contents: make([][]gomel.Unit, n),
		mxs:      make([]sync.RWMutex, n),
	}
}

// Get returns the units at the given id.
// MODIFYING THE RETURNED VALUE DIRECTLY RESULTS IN UNDEFINED BEHAVIOUR!
func (su *slottedUnits) Get(id uint16) []gomel.Unit {
	if int(id) >= len(su.contents) {
		return nil
	}
	su.mxs[id].RLock()
	defer su.mxs[id].RUnlock()
	return su.contents[id]
}

// Set replaces the units at the given id with units.
func (su *slottedUnits) Set(id uint16, units []gomel.Unit) {
	if int(id) >= len(su.contents) {
		return
	}
	su.mxs[id].Lock()
	defer su.mxs[id].Unlock()
	su.contents[id] = units
}

// Iterate runs work on its contents consecutively, until it returns false or the contents run out.
func (su *slottedUnits) Iterate(work func(units []gomel.Unit) bool) {
	for id := range su.contents {
		if !work(su.Get(uint16(id))) {
			return
		}
	}
}
