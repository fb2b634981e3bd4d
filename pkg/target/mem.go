package target

import (
	lru "github.com/hashicorp/golang-lru"

	"github.com/remotedbg/gdbtarget/pkg/arch"
)

// pageSize is the granularity of the read cache. Protocol engines tend to
// issue many small overlapping reads (stack walks, variable loads) between
// stops; caching whole pages collapses them into one target access.
const pageSize = 0x100

// CachedMemory is a page-granular read cache over a Target's memory.
// Reads fill whole pages; writes go through to the target and invalidate
// the pages they touch. The cache holds stopped-target state only: call
// Flush whenever the target runs.
//
// A page that cannot be read as a whole (for example one straddling an
// unmapped boundary) is not cached; the request falls back to a direct
// uncached access so that partially accessible ranges behave exactly as
// they would without the cache.
type CachedMemory[A arch.Addr, R arch.Registers] struct {
	t     Target[A, R]
	pages *lru.Cache // page base address (uint64) -> []byte of pageSize
}

// NewCachedMemory returns a CachedMemory holding at most maxPages pages.
func NewCachedMemory[A arch.Addr, R arch.Registers](t Target[A, R], maxPages int) (*CachedMemory[A, R], error) {
	pages, err := lru.New(maxPages)
	if err != nil {
		return nil, err
	}
	return &CachedMemory[A, R]{t: t, pages: pages}, nil
}

// ReadAddrs reads len(data) bytes starting at start through the cache. It
// has the same contract as Target.ReadAddrs.
func (m *CachedMemory[A, R]) ReadAddrs(start A, data []byte) (bool, error) {
	addr := uint64(start)
	for n := 0; n < len(data); {
		page := addr &^ (pageSize - 1)
		off := int(addr - page)
		chunk := pageSize - off
		if rest := len(data) - n; chunk > rest {
			chunk = rest
		}

		buf, ok := m.page(page)
		if !ok {
			pbuf := make([]byte, pageSize)
			accessible, err := m.t.ReadAddrs(A(page), pbuf)
			if err != nil {
				return false, err
			}
			if !accessible {
				// The whole page is not readable even though parts of the
				// request might be; retry the remainder uncached.
				return m.t.ReadAddrs(A(addr), data[n:])
			}
			m.pages.Add(page, pbuf)
			buf = pbuf
		}

		copy(data[n:n+chunk], buf[off:])
		n += chunk
		addr += uint64(chunk)
	}
	return true, nil
}

// WriteAddrs writes through to the target and invalidates the pages the
// write touches. It has the same contract as Target.WriteAddrs.
func (m *CachedMemory[A, R]) WriteAddrs(start A, data []byte) (bool, error) {
	ok, err := m.t.WriteAddrs(start, data)
	if err != nil || !ok || len(data) == 0 {
		return ok, err
	}
	first := uint64(start) &^ (pageSize - 1)
	last := (uint64(start) + uint64(len(data)) - 1) &^ (pageSize - 1)
	for page := first; ; page += pageSize {
		m.pages.Remove(page)
		if page == last {
			break
		}
	}
	return true, nil
}

// Flush drops every cached page. Must be called before the target resumes.
func (m *CachedMemory[A, R]) Flush() {
	m.pages.Purge()
}

func (m *CachedMemory[A, R]) page(base uint64) ([]byte, bool) {
	v, ok := m.pages.Get(base)
	if !ok {
		return nil, false
	}
	return v.([]byte), true
}
