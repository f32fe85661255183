package assembler

import (
	"sync/atomic"

	log "github.com/sirupsen/logrus"
)

// tracker reports completion in 10% steps. Workers race to publish a decile
// through compare-and-swap, so each decile is reported at most once.
type tracker struct {
	stage string
	total int64

	done   atomic.Int64
	logged atomic.Int64

	onDecile func(decile int)
}

func newTracker(stage string, total int) *tracker {
	return &tracker{stage: stage, total: int64(total)}
}

func (t *tracker) step() {
	if t.total <= 0 {
		return
	}
	n := t.done.Add(1)
	decile := n * 10 / t.total
	for {
		last := t.logged.Load()
		if decile <= last {
			return
		}
		// a single step may cross several deciles when total < 10
		if t.logged.CompareAndSwap(last, decile) {
			for d := last + 1; d <= decile; d++ {
				t.report(int(d))
			}
			return
		}
	}
}

func (t *tracker) report(decile int) {
	log.WithFields(log.Fields{
		"stage":    t.stage,
		"progress": decile * 10,
		"done":     t.done.Load(),
		"total":    t.total,
	}).Info("assembly progress")
	if t.onDecile != nil {
		t.onDecile(decile)
	}
}
