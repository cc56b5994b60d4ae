/*
Package events provides an in-memory event broker for cronfleet's
pub/sub notifications.

Broker implements a lightweight, topic-agnostic event bus: every
published Event is broadcast to every current subscriber over a
buffered channel, with non-blocking delivery (a full subscriber buffer
drops the event rather than stalling the publisher or other
subscribers).

# Event Types

	task.created        a new task was registered
	task.removed        the owner removed a task
	task.exited         a task left the schedule (exhausted or one-shot
	                    complete)
	task.dispatched     proxy_call dispatched a task, whether or not the
	                    outbound call was delivered
	agent.registered    a new agent joined the queue
	agent.unregistered  an agent left voluntarily
	agent.evicted       the heartbeat forced an agent out for missing
	                    its turn
	agent.promoted      the heartbeat moved an agent from pending to
	                    active
	agent.missed_turn   proxy_call recorded a late-slot dispatch
	                    against the previous cursor holder

# Usage

	bus := events.NewBroker()
	bus.Start()
	defer bus.Stop()

	eng.SetEventBroker(bus)

	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)
	for ev := range sub {
		log.Info().Str("type", string(ev.Type)).Msg(ev.Message)
	}

Engine publishes best-effort: a nil broker (the default, until
SetEventBroker is called) makes every publish a no-op, so the event bus
is optional infrastructure rather than a dependency of the dispatch
path's correctness.
*/
package events
