package oracle

import "fmt"

// PriceOracle supplies the reserve-asset / debt-token exchange rate and its
// scaling precision. The ledger treats it as an external collaborator.
type PriceOracle interface {
	// CurrentPrice returns the rate (debt-token units per reserve unit,
	// scaled by scalingFactor) and the scaling factor itself.
	CurrentPrice() (rate int64, scalingFactor int64, err error)
}

// Static is a fixed-price oracle for tests and bootstrap.
type Static struct {
	Rate  int64
	Scale int64
}

func NewStatic(rate, scale int64) *Static {
	return &Static{Rate: rate, Scale: scale}
}

func (s *Static) CurrentPrice() (int64, int64, error) {
	if s.Rate <= 0 || s.Scale <= 0 {
		return 0, 0, fmt.Errorf("oracle: static price not set")
	}
	return s.Rate, s.Scale, nil
}

// Cache is the price source fed by the external price feed. Updates carry a
// feed sequence; stale updates are ignored so replays are idempotent.
// Not safe for concurrent use — only the single-threaded engine touches it.
type Cache struct {
	rate      int64
	scale     int64
	sequence  int64
	timestamp int64
}

func NewCache(scale int64) *Cache {
	return &Cache{scale: scale}
}

// Update records a new observed price. Returns false when the update is
// stale or a duplicate (feed sequence not strictly increasing).
func (c *Cache) Update(rate, sequence, timestampUs int64) (bool, error) {
	if rate <= 0 {
		return false, fmt.Errorf("oracle: non-positive rate %d", rate)
	}
	if c.sequence != 0 && sequence <= c.sequence {
		return false, nil
	}
	c.rate = rate
	c.sequence = sequence
	c.timestamp = timestampUs
	return true, nil
}

func (c *Cache) CurrentPrice() (int64, int64, error) {
	if c.rate == 0 {
		return 0, 0, fmt.Errorf("oracle: no price observed yet")
	}
	return c.rate, c.scale, nil
}

// Rate returns the last accepted rate (zero before the first update).
func (c *Cache) Rate() int64 {
	return c.rate
}

// Sequence returns the last accepted feed sequence.
func (c *Cache) Sequence() int64 {
	return c.sequence
}

// Timestamp returns the microsecond timestamp of the last accepted update.
func (c *Cache) Timestamp() int64 {
	return c.timestamp
}

// Restore sets the cache state directly (snapshot restore).
func (c *Cache) Restore(rate, sequence, timestampUs int64) {
	c.rate = rate
	c.sequence = sequence
	c.timestamp = timestampUs
}
