// Package engine implements proxy_call's fair-share turn check as:
// the caller must be the active-queue cursor, and may make up to
// ratio_tasks/ratio_agents consecutive dispatches in the same slot
// before the cursor advances. A single proxy_call only ever pops one
// fingerprint, so "share" only matters across repeated calls by the
// same cursor holder within one slot — the source contract's own
// phrasing ("tasks per agent per slot") is preserved by this counter
// rather than by handing out more than one task per call.
package engine
