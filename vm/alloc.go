package vm

import "sync"

// ---------------------------------------------------------------------------
// Two-tier cell allocator
// ---------------------------------------------------------------------------

const (
	// DefaultPoolSlotThreshold is the largest positional block served and
	// recycled by the pooled tier. Requests above it go to the chunk tier.
	DefaultPoolSlotThreshold = 8

	// DefaultPoolMaxBlocks caps how many free blocks of one size, and how
	// many free single cells, the allocator retains for reuse.
	DefaultPoolMaxBlocks = 64
)

// AllocStats is a snapshot of allocator activity. The counters are
// cumulative; callers diff two snapshots to observe a window.
type AllocStats struct {
	PooledBlockAllocs   uint64 // block requests served by the pooled tier
	PooledBlockReuses   uint64 // pooled requests satisfied from a free list
	PooledBlockReleases uint64
	ChunkAllocs         uint64 // block requests above the pool threshold
	ChunkReleases       uint64
	CellAllocs          uint64 // single cells, used by named-argument tables
	CellReuses          uint64
	CellReleases        uint64
}

// CellAllocator hands out Cell storage for signatures. Small positional
// blocks come from a pooled tier that recycles blocks per exact size; blocks
// above the threshold are plain chunk allocations that the garbage collector
// reclaims once released. Named-argument tables draw single cells from a
// shared free list.
type CellAllocator struct {
	mu        sync.Mutex
	threshold int
	maxBlocks int
	blocks    map[int][][]Cell
	cells     []*Cell
	stats     AllocStats
}

// NewCellAllocator returns an allocator with the given pool threshold and
// free-list cap. Non-positive arguments select the defaults.
func NewCellAllocator(threshold, maxBlocks int) *CellAllocator {
	if threshold <= 0 {
		threshold = DefaultPoolSlotThreshold
	}
	if maxBlocks <= 0 {
		maxBlocks = DefaultPoolMaxBlocks
	}
	return &CellAllocator{
		threshold: threshold,
		maxBlocks: maxBlocks,
		blocks:    make(map[int][][]Cell),
	}
}

// Threshold returns the largest block size served by the pooled tier.
func (a *CellAllocator) Threshold() int {
	return a.threshold
}

// AcquireBlock returns a block of exactly n cells. Reused blocks come back
// zeroed; every slot reads as an integer cell holding 0.
func (a *CellAllocator) AcquireBlock(n int) []Cell {
	if n <= 0 {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if n > a.threshold {
		a.stats.ChunkAllocs++
		return make([]Cell, n)
	}
	a.stats.PooledBlockAllocs++
	if list := a.blocks[n]; len(list) > 0 {
		b := list[len(list)-1]
		a.blocks[n] = list[:len(list)-1]
		a.stats.PooledBlockReuses++
		return b
	}
	return make([]Cell, n)
}

// ReleaseBlock returns a block to the allocator. Pooled blocks are cleared
// before they are retained so a parked block cannot pin heap references;
// chunk blocks are simply dropped for the collector.
func (a *CellAllocator) ReleaseBlock(b []Cell) {
	if b == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	n := len(b)
	if n > a.threshold {
		a.stats.ChunkReleases++
		return
	}
	a.stats.PooledBlockReleases++
	if len(a.blocks[n]) >= a.maxBlocks {
		return
	}
	for i := range b {
		b[i] = Cell{}
	}
	a.blocks[n] = append(a.blocks[n], b)
}

// AcquireCell returns a single zeroed cell for a named-argument entry.
func (a *CellAllocator) AcquireCell() *Cell {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stats.CellAllocs++
	if n := len(a.cells); n > 0 {
		c := a.cells[n-1]
		a.cells = a.cells[:n-1]
		a.stats.CellReuses++
		return c
	}
	return new(Cell)
}

// ReleaseCell returns a single cell to the free list, clearing it first.
func (a *CellAllocator) ReleaseCell(c *Cell) {
	if c == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stats.CellReleases++
	if len(a.cells) >= a.maxBlocks {
		return
	}
	*c = Cell{}
	a.cells = append(a.cells, c)
}

// Stats returns a snapshot of the allocator counters.
func (a *CellAllocator) Stats() AllocStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}
