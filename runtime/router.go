package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain/chat"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// dispatchGrace lets sinks that honor their deadline report their own error first.
const dispatchGrace = 50 * time.Millisecond

// Router fans outbound events out to live connections.
// Every target is delivered in its own goroutine under its own deadline:
// a slow connection only ever delays itself and is dropped once it misses the deadline.
type Router struct {
	registry          contract.IRegistry
	deliveryTimeout   time.Duration
	broadcastUnrouted bool
	log               *slog.Logger
}

func NewRouter(registry contract.IRegistry, deliveryTimeout time.Duration, broadcastUnrouted bool, log *slog.Logger) *Router {
	return &Router{
		registry:          registry,
		deliveryTimeout:   deliveryTimeout,
		broadcastUnrouted: broadcastUnrouted,
		log:               log,
	}
}

type delivery struct {
	target contract.Target
	err    error
}

// Publish delivers a message to the connections joined to its room at call time.
// A message without room is rejected unless unrouted broadcast is enabled,
// in which case every live connection receives it.
func (r *Router) Publish(ctx context.Context, evt event.ReceiveMessage) (contract.DeliveryReport, error) {
	roomID := evt.RoomID()
	if roomID == "" {
		if !r.broadcastUnrouted {
			return contract.DeliveryReport{}, fmt.Errorf("%w: message %s has no room", errors.ErrValidation, evt.Message.Message.ID)
		}
		r.log.Warn("Broadcasting unrouted message to every connection", "message_id", evt.Message.Message.ID)
		return r.dispatch(ctx, r.registry.AllTargets(), evt), nil
	}
	return r.dispatch(ctx, r.registry.TargetsForRoom(roomID), evt), nil
}

func (r *Router) PublishToRoom(ctx context.Context, roomID chat.RoomID, evt event.Outbound) contract.DeliveryReport {
	return r.dispatch(ctx, r.registry.TargetsForRoom(roomID), evt)
}

func (r *Router) PublishToIdentities(ctx context.Context, userIDs []chat.UserID, evt event.Outbound) contract.DeliveryReport {
	return r.dispatch(ctx, r.registry.TargetsForIdentities(userIDs), evt)
}

// dispatch waits at most one delivery timeout. Deliveries are detached from ctx
// cancellation: a sender going away does not abort delivery to the others.
func (r *Router) dispatch(ctx context.Context, targets []contract.Target, evt event.Outbound) contract.DeliveryReport {
	report := contract.DeliveryReport{Attempted: len(targets)}
	if len(targets) == 0 {
		return report
	}

	detached := context.WithoutCancel(ctx)
	results := make(chan delivery, len(targets))
	for _, target := range targets {
		go func(target contract.Target) {
			results <- delivery{target: target, err: r.deliver(detached, target, evt)}
		}(target)
	}

	pending := make(map[chat.ConnectionID]contract.Target, len(targets))
	for _, target := range targets {
		pending[target.ConnectionID] = target
	}

	deadline := time.NewTimer(r.deliveryTimeout + dispatchGrace)
	defer deadline.Stop()
	for len(pending) > 0 {
		select {
		case d := <-results:
			delete(pending, d.target.ConnectionID)
			if d.err == nil {
				report.Delivered = append(report.Delivered, d.target.ConnectionID)
				continue
			}
			report.Failures = append(report.Failures, r.fail(d.target, evt, d.err))
		case <-deadline.C:
			// The sink ignored its context, give up on what is left
			for _, target := range pending {
				report.Failures = append(report.Failures, r.fail(target, evt, context.DeadlineExceeded))
			}
			pending = nil
		}
	}
	return report
}

func (r *Router) deliver(ctx context.Context, target contract.Target, evt event.Outbound) (err error) {
	ctx, cancel := context.WithTimeout(ctx, r.deliveryTimeout)
	defer cancel()
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("sink panicked: %v", rec)
		}
	}()
	return target.Sink.Consume(ctx, evt)
}

// fail drops the connection: it missed an event and can no longer be trusted to be in sync.
func (r *Router) fail(target contract.Target, evt event.Outbound, cause error) contract.DeliveryFailure {
	r.log.Warn("Delivery failed, dropping connection",
		"connection_id", target.ConnectionID,
		"user_id", target.Identity.ID,
		"kind", evt.Kind(),
		"error", cause)

	if removed, ok := r.registry.Unregister(target.ConnectionID); ok {
		if closer, ok := removed.Sink.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				r.log.Debug("Unable to close dropped connection", "connection_id", target.ConnectionID, "error", err)
			}
		}
	}
	return contract.DeliveryFailure{
		ConnectionID: target.ConnectionID,
		Err:          fmt.Errorf("%w: %v", errors.ErrDelivery, cause),
	}
}
