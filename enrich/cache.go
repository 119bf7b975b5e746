package enrich

import (
	"sync"

	"mahatour/models"
)

// Cache remembers the last completed pass so an unchanged batch is not looked
// up again. It is owned by the caller and safe for concurrent use; two callers
// racing on the same new batch may both run a pass.
type Cache struct {
	mu     sync.Mutex
	n      int
	ids    map[string]struct{}
	result *Result
}

func NewCache() *Cache {
	return &Cache{}
}

// Reset forgets the remembered batch.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n, c.ids, c.result = 0, nil, nil
}

func (c *Cache) lookup(places []models.Place) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.result == nil || c.n != len(places) {
		return Result{}, false
	}
	for _, p := range places {
		if _, ok := c.ids[p.ID]; !ok {
			return Result{}, false
		}
	}
	if len(idSet(places)) != len(c.ids) {
		return Result{}, false
	}
	res := c.result.clone()
	res.Cached = true
	return res, true
}

func (c *Cache) store(places []models.Place, res Result) {
	res = res.clone()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n = len(places)
	c.ids = idSet(places)
	c.result = &res
}

func idSet(places []models.Place) map[string]struct{} {
	set := make(map[string]struct{}, len(places))
	for _, p := range places {
		set[p.ID] = struct{}{}
	}
	return set
}
