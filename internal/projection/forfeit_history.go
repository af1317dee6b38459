package projection

import "sync"

// ForfeitEntry records one collateral seizure.
type ForfeitEntry struct {
	MinerID   uint64
	Amount    int64
	Sequence  int64
	Timestamp int64
}

// ForfeitHistory maintains a queryable in-memory record of forfeiture
// payments. Unlike the table projections it is rebuilt only on restart,
// from the action log.
type ForfeitHistory struct {
	mu      sync.RWMutex
	entries []ForfeitEntry
}

func NewForfeitHistory() *ForfeitHistory {
	return &ForfeitHistory{
		entries: make([]ForfeitEntry, 0),
	}
}

// AddEntry records a forfeiture payment.
func (h *ForfeitHistory) AddEntry(entry ForfeitEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, entry)
}

// QueryByMiner returns the most recent forfeitures against a miner,
// newest first.
func (h *ForfeitHistory) QueryByMiner(minerID uint64, limit int) []ForfeitEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	result := make([]ForfeitEntry, 0)
	for i := len(h.entries) - 1; i >= 0 && len(result) < limit; i-- {
		if h.entries[i].MinerID == minerID {
			result = append(result, h.entries[i])
		}
	}
	return result
}

// Total returns the cumulative amount seized from a miner.
func (h *ForfeitHistory) Total(minerID uint64) int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var total int64
	for _, e := range h.entries {
		if e.MinerID == minerID {
			total += e.Amount
		}
	}
	return total
}
