package vault

// Position is a single collateralized debt record. Ownership is recorded by
// the external registry, never duplicated here. Amounts are fixed-point at
// fixed.AmountScale.
type Position struct {
	ID         uint64
	Collateral int64
	DebtIssued int64

	// Version increments on every mutation (projection ordering).
	Version int64
}

// IsClosed reports the only valid closed state: both fields zero.
func (p *Position) IsClosed() bool {
	return p.Collateral == 0 && p.DebtIssued == 0
}

// CanonicalBytes returns deterministic serialization for state hashing.
func (p *Position) CanonicalBytes() []byte {
	buf := make([]byte, 0, 32)
	buf = appendUint64LE(buf, p.ID)
	buf = appendInt64LE(buf, p.Collateral)
	buf = appendInt64LE(buf, p.DebtIssued)
	buf = appendInt64LE(buf, p.Version)
	return buf
}

func appendInt64LE(buf []byte, v int64) []byte {
	return appendUint64LE(buf, uint64(v))
}

func appendUint64LE(buf []byte, v uint64) []byte {
	return append(buf,
		byte(v),
		byte(v>>8),
		byte(v>>16),
		byte(v>>24),
		byte(v>>32),
		byte(v>>40),
		byte(v>>48),
		byte(v>>56),
	)
}
