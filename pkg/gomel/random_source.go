package gomel

// RandomSource is the strategy providing common randomness used for picking heads.
// All honest processes must obtain the same bytes for the same arguments, and the bytes
// for a given round should not be predictable before the dag reaches that round.
type RandomSource interface {
	// RandomBytes returns random bytes for a given process and round. Returns nil when they are not yet available.
	RandomBytes(pid uint16, round int) []byte
}
