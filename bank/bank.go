/*package bank implements the fission bank: the per-worker buffers that
accumulate source sites during tracking and the synchronization step that
merges them into the canonical source for the next cycle.
*/
package bank

// Site is a single fission source site. The field order and sizes are the
// canonical wire layout (version 1) used for cross-worker exchange and for
// checkpoint files, so the struct must stay fixed-size: no pointers, no
// variable-length fields.
type Site struct {
	Weight float64
	// Position of the site.
	X [3]float64
	// Direction of the emitted particle. Unit norm.
	U [3]float64
	Energy float64
	// Delayed precursor group, or 0 for prompt.
	DelayedGroup int32
	// Parent is the global index of the particle that produced this site
	// within its cycle. It is the sole ordering key during synchronization.
	Parent int64
}

// WireSize is the packed byte size of one Site in the exchange layout.
const WireSize = 8*8 + 4 + 8

// Local is an append-only buffer of the sites produced by one worker during
// one cycle. It is exclusively owned by that worker until the bank
// synchronization, after which it is reset or discarded.
type Local struct {
	sites  []Site
	weight float64
}

// NewLocal creates an empty local bank with room for n sites before the
// first reallocation.
func NewLocal(n int) *Local {
	return &Local{sites: make([]Site, 0, n)}
}

// Append adds a site to the bank.
func (b *Local) Append(s Site) {
	b.sites = append(b.sites, s)
	b.weight += s.Weight
}

// Len returns the number of banked sites.
func (b *Local) Len() int { return len(b.sites) }

// TotalWeight returns the summed weight of all banked sites.
func (b *Local) TotalWeight() float64 { return b.weight }

// Sites returns the banked sites in emission order. The returned slice
// aliases the bank's buffer and is only valid until the next Append or
// Reset.
func (b *Local) Sites() []Site { return b.sites }

// Reset empties the bank without releasing its buffer.
func (b *Local) Reset() {
	b.sites = b.sites[:0]
	b.weight = 0
}
