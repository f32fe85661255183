package metrics

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPeakUsage_Monotonic(t *testing.T) {
	first := CurrentUsage()
	assert.GreaterOrEqual(t, PeakUsage(), first)

	buf := make([]byte, 8*mib)
	buf[len(buf)-1] = 1
	during := CurrentUsage()
	assert.GreaterOrEqual(t, PeakUsage(), during)
	_ = buf[0]

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			CurrentUsage()
		}()
	}
	wg.Wait()
	assert.GreaterOrEqual(t, PeakUsage(), during)
}

func TestDelta(t *testing.T) {
	assert.Equal(t, uint64(5), Delta(10, 15))
	assert.Zero(t, Delta(15, 10))
	assert.Equal(t, 1.0, ToMB(mib))
}
