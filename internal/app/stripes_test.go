package app

import (
	"fmt"
	"sort"
	"testing"

	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/assert"
)

func TestStripedMap(t *testing.T) {
	m := newStripedMap[string, int]()
	m.Store("a", 1)
	m.Update("a", func(v int, ok bool) (int, bool) { return v + 1, ok })
	v, ok := m.Load("a")
	assert.True(t, ok)
	assert.Equal(t, 2, v)

	assert.False(t, m.DeleteIf("a", func(v int) bool { return v == 1 }))
	assert.True(t, m.DeleteIf("a", func(v int) bool { return v == 2 }))
	_, ok = m.Load("a")
	assert.False(t, ok)

	m.Update("b", func(int, bool) (int, bool) { return 7, false })
	assert.Equal(t, 0, m.Len())
}

func TestStripedMapConcurrentUpdates(t *testing.T) {
	m := newStripedMap[string, int]()
	var wg conc.WaitGroup
	for i := 0; i < 50; i++ {
		key := fmt.Sprintf("k%d", i%5)
		wg.Go(func() {
			m.Update(key, func(v int, _ bool) (int, bool) { return v + 1, true })
		})
	}
	wg.Wait()

	vals := m.Values()
	sort.Ints(vals)
	assert.Equal(t, []int{10, 10, 10, 10, 10}, vals)
}
