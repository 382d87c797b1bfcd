package cellview

// Memo skips re-rendering when the props of a call equal those of the
// previous call. Cells are immutable records replaced wholesale on reload,
// so pointer identity is enough to detect a change.
//
// A Memo is not safe for concurrent use.
type Memo struct {
	cell    *CodeCell
	last    Props
	out     Rendered
	valid   bool
	renders int
}

// NewMemo wraps c.
func NewMemo(c *CodeCell) *Memo {
	return &Memo{cell: c}
}

// Render returns the cached result for unchanged props.
func (m *Memo) Render(p Props) Rendered {
	if m.valid && p == m.last {
		return m.out
	}
	m.out = m.cell.Render(p)
	m.last = p
	m.valid = true
	m.renders++
	return m.out
}

// Renders returns how many renders were not served from the cache.
func (m *Memo) Renders() int { return m.renders }

// Cache keeps one Memo per cell id.
type Cache struct {
	cell  *CodeCell
	memos map[string]*Memo
}

// NewCache returns a Cache rendering through c.
func NewCache(c *CodeCell) *Cache {
	return &Cache{cell: c, memos: make(map[string]*Memo)}
}

// Render renders p through the memo for p.ID.
func (c *Cache) Render(p Props) Rendered {
	m, ok := c.memos[p.ID]
	if !ok {
		m = NewMemo(c.cell)
		c.memos[p.ID] = m
	}
	return m.Render(p)
}

// Prune drops memos for ids not in keep.
func (c *Cache) Prune(keep map[string]bool) {
	for id := range c.memos {
		if !keep[id] {
			delete(c.memos, id)
		}
	}
}

// Len returns the number of memoised cells.
func (c *Cache) Len() int { return len(c.memos) }
