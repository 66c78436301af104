package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	mu         sync.Mutex
	collectors []prometheus.Collector
	registered = map[prometheus.Registerer]bool{}
)

// register is called from init() in each metrics file.
func register(cs ...prometheus.Collector) {
	collectors = append(collectors, cs...)
}

// MustRegister adds every collector of the bot to each registerer, or to the
// default one when none is given. Repeated calls for the same registerer are
// ignored.
func MustRegister(regs ...prometheus.Registerer) {
	if len(regs) == 0 {
		regs = []prometheus.Registerer{prometheus.DefaultRegisterer}
	}
	mu.Lock()
	defer mu.Unlock()
	for _, r := range regs {
		if registered[r] {
			continue
		}
		r.MustRegister(collectors...)
		registered[r] = true
	}
}
