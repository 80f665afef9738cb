package importer

// CompletionSet holds the source ids turned into activities during this run.
// It is not persisted; later runs rely on the destination's duplicate checks.
type CompletionSet struct {
	ids map[string]struct{}
}

func NewCompletionSet() *CompletionSet {
	return &CompletionSet{ids: make(map[string]struct{})}
}

func (c *CompletionSet) Has(id string) bool {
	_, ok := c.ids[id]
	return ok
}

func (c *CompletionSet) Add(id string) {
	c.ids[id] = struct{}{}
}

func (c *CompletionSet) Len() int {
	return len(c.ids)
}
