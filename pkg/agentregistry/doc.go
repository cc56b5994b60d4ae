// Package agentregistry tracks registered agents and the two ordered
// queues (active, pending) that govern fair-share task distribution.
//
// Promotion uses integer division: total_available_agents =
// total_tasks / (ratio_tasks / ratio_agents). When ratio_tasks is
// smaller than ratio_agents, the division floors to zero and promotion
// never fires regardless of total_tasks — an accepted stall condition
// rather than a bug, since the ratio is owner-configured and an owner
// who sets ratio_tasks < ratio_agents has asked for an agents-heavy
// pool.
//
// Eviction and voluntary unregistration pay out differently. Unregister
// refunds an agent's entire balance, storage quota included, because
// the agent is leaving on its own terms and its quota deposit is its
// to reclaim. Evict (the heartbeat's forced path) only refunds
// balance-storage_quota: the quota portion is not returned to the
// agent and is not credited back to available balance either, so it is
// effectively retired from circulation once an evicted agent's record
// is deleted. This mirrors the source contract's accounting rather than
// correcting it.
package agentregistry
