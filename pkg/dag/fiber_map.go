package dag

import (
	"sync"

	"github.com/Cardinal-Cryptography/aleph-node/pkg/gomel"
)

// fiberMap keeps units sliced by round, and within a round by creator.
type fiberMap struct {
	content map[int]gomel.SlottedUnits
	width   uint16
	length  int
	mx      sync.RWMutex
}

func newFiberMap(width uint16, initialLen int) *fiberMap {
	newMap := &fiberMap{
		content: make(map[int]gomel.SlottedUnits),
		width:   width,
		length:  initialLen,
	}
	for i := 0; i < initialLen; i++ {
		newMap.content[i] = newSlottedUnits(width)
	}
	return newMap
}

func (fm *fiberMap) getFiber(value int) (gomel.SlottedUnits, bool) {
	fm.mx.RLock()
	defer fm.mx.RUnlock()
	result, ok := fm.content[value]
	return result, ok
}

func (fm *fiberMap) Len() int {
	fm.mx.RLock()
	defer fm.mx.RUnlock()
	return fm.length
}

func (fm *fiberMap) extendBy(nValues int) {
	fm.mx.Lock()
	defer fm.mx.Unlock()
	for i := fm.length; i < fm.length+nValues; i++ {
		fm.content[i] = newSlottedUnits(fm.width)
	}
	fm.length += nValues
}

// add appends the unit to the fiber of its round, extending the map when needed.
// Returns the units of the same creator that were already present on that round.
func (fm *fiberMap) add(u gomel.Unit) []gomel.Unit {
	for u.Round() >= fm.Len() {
		fm.extendBy(10)
	}
	su, _ := fm.getFiber(u.Round())
	old := su.Get(u.Creator())
	units := make([]gomel.Unit, len(old), len(old)+1)
	copy(units, old)
	units = append(units, u)
	su.Set(u.Creator(), units)
	return old
}
