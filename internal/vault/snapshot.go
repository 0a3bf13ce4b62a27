package vault

// LedgerSnapshot is the serializable form of the vault state. Token, bank,
// and registry balances are captured alongside so a restore reproduces the
// exact in-memory picture.
type LedgerSnapshot struct {
	Positions           []Position `json:"positions"`
	NextID              uint64     `json:"next_id"`
	GlobalCollateral    int64      `json:"global_collateral"`
	SysCollateralReward int64      `json:"sys_collateral_reward"`
	SysDebtReward       int64      `json:"sys_debt_reward"`
}

// Snapshot copies the vault state. Positions are emitted in ascending id
// order for determinism.
func (l *Ledger) Snapshot() LedgerSnapshot {
	snap := LedgerSnapshot{
		Positions:           make([]Position, 0, len(l.positions)),
		NextID:              l.nextID,
		GlobalCollateral:    l.globalCollateral,
		SysCollateralReward: l.sysCollateralReward,
		SysDebtReward:       l.sysDebtReward,
	}
	for _, id := range l.PositionIDs() {
		snap.Positions = append(snap.Positions, *l.positions[id])
	}
	return snap
}

// Restore replaces the vault state with a snapshot's contents.
func (l *Ledger) Restore(snap LedgerSnapshot) {
	l.positions = make(map[uint64]*Position, len(snap.Positions))
	for i := range snap.Positions {
		p := snap.Positions[i]
		l.positions[p.ID] = &p
	}
	l.nextID = snap.NextID
	l.globalCollateral = snap.GlobalCollateral
	l.sysCollateralReward = snap.SysCollateralReward
	l.sysDebtReward = snap.SysDebtReward
}

// StateDigest returns the deterministic serialization of the vault state
// used as input to the state hash chain. Positions contribute in ascending
// id order.
func (l *Ledger) StateDigest() []byte {
	buf := make([]byte, 0, 64+48*len(l.positions))
	buf = appendUint64LE(buf, l.nextID)
	buf = appendInt64LE(buf, l.globalCollateral)
	buf = appendInt64LE(buf, l.sysCollateralReward)
	buf = appendInt64LE(buf, l.sysDebtReward)
	for _, id := range l.PositionIDs() {
		buf = append(buf, l.positions[id].CanonicalBytes()...)
	}
	return buf
}
