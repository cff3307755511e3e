// Package stream decouples "a node wants to tell the client something
// happened" from "the HTTP response is currently flushing bytes".
//
// An Emitter is a thread-safe multi-producer bus of UI-facing Packets.
// Nodes running anywhere in a graph, including concurrent fan-out branches,
// push packets; a single consumer drains them in FIFO emission order.
//
// The Run harness guarantees deterministic termination: whatever happens to
// the producer (normal return, error, panic), exactly one terminal packet
// (KindOverallStop or KindException) reaches the consumer, so a client
// stream never hangs waiting on an empty queue.
//
//	emitter := stream.NewEmitter(0)
//	stream.Run(ctx, emitter, func(ctx context.Context) error {
//		return agent.Execute(ctx, emitter)
//	})
//	err := emitter.Drain(func(p stream.Packet) error {
//		return enc.Encode(p) // forward to the transport
//	})
package stream
