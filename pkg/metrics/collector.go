package metrics

import (
	"fmt"
	"time"

	"github.com/cuemby/cronfleet/pkg/types"
)

// Source is the read surface a Collector polls. *engine.Engine satisfies
// it; the interface lives here rather than importing pkg/engine directly
// since engine itself calls into the package-level counters in this
// package on the dispatch and heartbeat paths.
type Source interface {
	TaskCount() int
	SlotCount() int
	ListAgents() []*types.Agent
}

// Collector polls a Source on an interval and republishes its state as
// gauges, since the engine itself only tracks counters incrementally for
// things that happen as discrete events (dispatches, evictions).
type Collector struct {
	source Source
	stopCh chan struct{}
}

// NewCollector creates a new metrics collector over src.
func NewCollector(src Source) *Collector {
	return &Collector{
		source: src,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics on a 15-second interval.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectTaskMetrics()
	c.collectAgentMetrics()
	c.collectSlotMetrics()
	c.collectEngineHealth()
}

// collectEngineHealth re-derives the "engine" readiness/health component
// from live Source state on every poll, rather than leaving it at
// whatever static RegisterComponent call happened at startup. It always
// reports the component healthy. GetReadiness does not look at when a
// component was last updated, so if polling stops the component keeps
// its last reported state.
func (c *Collector) collectEngineHealth() {
	taskCount := c.source.TaskCount()
	slotCount := c.source.SlotCount()
	UpdateComponent("engine", true, fmt.Sprintf("%d tasks, %d slots", taskCount, slotCount))
}

func (c *Collector) collectTaskMetrics() {
	TasksTotal.Set(float64(c.source.TaskCount()))
}

func (c *Collector) collectSlotMetrics() {
	SlotsTotal.Set(float64(c.source.SlotCount()))
}

func (c *Collector) collectAgentMetrics() {
	agents := c.source.ListAgents()

	counts := map[types.AgentStatus]int{
		types.AgentStatusActive:  0,
		types.AgentStatusPending: 0,
	}
	for _, a := range agents {
		counts[a.Status]++
	}

	for status, count := range counts {
		AgentsTotal.WithLabelValues(string(status)).Set(float64(count))
	}
}
