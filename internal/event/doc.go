/*
Package event provides a type-safe pub/sub event system for the pairing
orchestrator.

The event system decouples the implementation loop, the Driver/Navigator
controllers, and the permission broker from whatever is observing a run —
a terminal renderer, a log sink, a test harness — by letting publishers
emit events without depending on any particular subscriber.

# Architecture

The package is built on top of watermill's gochannel for infrastructure
while preserving direct-call semantics and full Go type information on
each event's Data field.

# Event Types

Run Lifecycle Events:
  - phase.changed: the loop transitioned between planning/execution/review/complete
  - plan.ready: the Architect produced its plan
  - run.completed: the loop reached PhaseComplete
  - run.failed: the loop terminated with a fatal error

Message Events:
  - message.received: a Driver or Navigator session produced a Message

Tool Call and Permission Events:
  - tool_call.attempted: an agent session attempted a tool
  - permission.requested: the broker forwarded a gated tool call for review
  - permission.resolved: a PermissionResult was delivered for a request

Command Events:
  - driver_command.received: the Driver invoked one of its MCP tools
  - navigator_command.received: the Navigator invoked one of its MCP tools

# Basic Usage

Publishing events:

	event.PublishSync(event.Event{
		Type: event.PhaseChanged,
		Data: event.PhaseChangedData{Previous: types.PhasePlanning, Current: types.PhaseExecution},
	})

Subscribing to specific events:

	unsubscribe := event.Subscribe(event.PermissionRequested, func(e event.Event) {
		data := e.Data.(event.PermissionRequestedData)
		log.Info().Str("toolName", data.Request.ToolName).Msg("permission requested")
	})
	defer unsubscribe()

Subscribing to all events:

	unsubscribe := event.SubscribeAll(func(e event.Event) {
		log.Debug().Str("type", string(e.Type)).Msg("event")
	})
	defer unsubscribe()

# Subscriber Safety Guidelines

When using PublishSync, subscribers run synchronously in the publisher's
goroutine. Subscribers must complete quickly, avoid blocking channel
sends, and never call Publish/PublishSync re-entrantly.

# Custom Event Bus

For testing or isolation, create a dedicated bus instance:

	bus := event.NewBus()
	defer bus.Close()

	unsubscribe := bus.Subscribe(event.PhaseChanged, handler)
	bus.PublishSync(event.Event{Type: event.PhaseChanged, Data: data})

# Thread Safety

The event bus is safe for concurrent use. Both publishing and subscribing
are protected by internal synchronization.

# Integration with Watermill

The package uses watermill's gochannel internally, exposing the
underlying pubsub for advanced use:

	pubsub := event.PubSub()

This leaves room to move to a distributed broker later without changing
the package's public API.
*/
package event
