package telemetry

import (
	"sync"
	"time"
)

// AgentMetrics holds running totals for one agent. Totals are never reset
// except through Collector.Reset.
type AgentMetrics struct {
	AgentName          string        `json:"agent_name"`
	TotalRequests      int64         `json:"total_requests"`
	SuccessfulRequests int64         `json:"successful_requests"`
	FailedRequests     int64         `json:"failed_requests"`
	TotalLatency       time.Duration `json:"total_latency_ms"`
	TotalTokensIn      int64         `json:"total_tokens_in"`
	TotalTokensOut     int64         `json:"total_tokens_out"`
	LastRequestTime    time.Time     `json:"last_request_time"`
}

// SuccessRate returns the percentage of successful requests. An agent with
// no traffic reports 100.
func (m *AgentMetrics) SuccessRate() float64 {
	if m.TotalRequests == 0 {
		return 100.0
	}
	return float64(m.SuccessfulRequests) / float64(m.TotalRequests) * 100
}

// AvgLatency returns the mean latency of successful requests.
func (m *AgentMetrics) AvgLatency() time.Duration {
	if m.SuccessfulRequests == 0 {
		return 0
	}
	return m.TotalLatency / time.Duration(m.SuccessfulRequests)
}

// Summary aggregates across all agents.
type Summary struct {
	TotalAgents        int           `json:"total_agents"`
	TotalRequests      int64         `json:"total_requests"`
	OverallSuccessRate float64       `json:"overall_success_rate"`
	AvgLatency         time.Duration `json:"avg_latency_ms"`
}

// Collector aggregates per-agent request metrics. Safe for concurrent use;
// Record holds the lock only long enough to bump counters, and reads return
// copies so recorders are never blocked on consumers.
type Collector struct {
	mu     sync.Mutex
	agents map[string]*AgentMetrics
}

// NewCollector creates an empty metrics collector.
func NewCollector() *Collector {
	return &Collector{agents: map[string]*AgentMetrics{}}
}

// Record registers one completed agent invocation. Latency counts toward
// the running total only for successful requests, matching SuccessRate and
// AvgLatency semantics.
func (c *Collector) Record(agentName string, success bool, latency time.Duration, tokensIn, tokensOut int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.agents[agentName]
	if !ok {
		m = &AgentMetrics{AgentName: agentName}
		c.agents[agentName] = m
	}
	m.TotalRequests++
	m.LastRequestTime = time.Now()
	if success {
		m.SuccessfulRequests++
		m.TotalLatency += latency
	} else {
		m.FailedRequests++
	}
	m.TotalTokensIn += int64(tokensIn)
	m.TotalTokensOut += int64(tokensOut)
}

// Get returns a copy of one agent's metrics.
func (c *Collector) Get(agentName string) (AgentMetrics, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.agents[agentName]
	if !ok {
		return AgentMetrics{}, false
	}
	return *m, true
}

// All returns a copy of every agent's metrics keyed by name.
func (c *Collector) All() map[string]AgentMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]AgentMetrics, len(c.agents))
	for name, m := range c.agents {
		out[name] = *m
	}
	return out
}

// GetSummary derives the cross-agent summary from the current totals.
func (c *Collector) GetSummary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Summary{TotalAgents: len(c.agents)}
	var totalSuccess int64
	var totalLatency time.Duration
	for _, m := range c.agents {
		s.TotalRequests += m.TotalRequests
		totalSuccess += m.SuccessfulRequests
		totalLatency += m.TotalLatency
	}
	if s.TotalRequests > 0 {
		s.OverallSuccessRate = float64(totalSuccess) / float64(s.TotalRequests) * 100
	} else {
		s.OverallSuccessRate = 100.0
	}
	if totalSuccess > 0 {
		s.AvgLatency = totalLatency / time.Duration(totalSuccess)
	}
	return s
}

// Reset clears all recorded metrics. Operator action only.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.agents = map[string]*AgentMetrics{}
}
