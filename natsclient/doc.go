// Package natsclient provides a robust NATS client with circuit breaker protection,
// automatic reconnection, and JetStream support for distributed edge systems.
//
// The natsclient package wraps the standard NATS Go client with additional reliability
// features including circuit breaker pattern for failure protection, exponential backoff
// for reconnection, and proper context propagation throughout all operations. It serves
// as the transport for the directory-scanner egress notifications the supervisor publishes
// when a scan job picks up a new file.
//
// # Core Features
//
// Circuit Breaker Pattern: Prevents cascading failures by failing fast after a threshold
// of consecutive failures (default: 5). The circuit opens to prevent further attempts,
// then gradually tests the connection with exponential backoff.
//
// Connection Lifecycle Management: Handles connection states automatically through the
// lifecycle: Disconnected → Connecting → Connected → Reconnecting → Connected. The client
// manages all transitions with configurable callbacks for state changes.
//
// JetStream Support: Stream and consumer creation with proper error handling and circuit
// breaker integration, plus optional Prometheus metrics per stream/consumer.
//
// # Basic Usage
//
// Creating and connecting to NATS:
//
//	client, err := natsclient.NewClient("nats://localhost:4222")
//	if err != nil {
//	    return err
//	}
//
//	ctx := context.Background()
//	err = client.Connect(ctx)
//	if err != nil {
//	    return err
//	}
//	defer client.Close(ctx)
//
//	// Publish a message
//	err = client.Publish(ctx, "subject.name", []byte("message data"))
//
//	// Subscribe to messages
//	err = client.Subscribe(ctx, "subject.*", func(msgCtx context.Context, data []byte) {
//	    // Handle message with context (30s timeout per message)
//	    fmt.Printf("Received: %s\n", string(data))
//	})
//
// # Advanced Configuration
//
// Creating client with options:
//
//	client, err := natsclient.NewClient("nats://localhost:4222",
//	    natsclient.WithMaxReconnects(-1),  // Infinite reconnects
//	    natsclient.WithReconnectWait(2*time.Second),
//	    natsclient.WithCircuitBreakerThreshold(10),
//	    natsclient.WithDisconnectCallback(func(err error) {
//	        log.Printf("Disconnected: %v", err)
//	    }),
//	    natsclient.WithReconnectCallback(func() {
//	        log.Println("Reconnected successfully")
//	    }),
//	)
//
// # JetStream Operations
//
// Working with JetStream streams and consumers:
//
//	// Create a stream
//	stream, err := client.CreateStream(ctx, jetstream.StreamConfig{
//	    Name:     "SCANJOBS",
//	    Subjects: []string{"scanjobs.>"},
//	})
//
//	// Publish to stream
//	err = client.PublishToStream(ctx, "scanjobs.discovered", []byte(`{"path": "/data/day.123"}`))
//
//	// Consume from stream
//	err = client.ConsumeStream(ctx, "SCANJOBS", "scanjobs.>", func(data []byte) {
//	    // hand off to a downstream archival consumer
//	})
//
// # Thread Safety
//
// The Client type is thread-safe and can be used concurrently from multiple goroutines:
//   - All public methods are safe for concurrent use.
//   - Connection state is managed with atomic operations and mutexes.
//   - Subscriptions and consumers can be created from any goroutine.
//   - Close() can only be called once (subsequent calls are no-ops).
//
// # Architecture Integration
//
// The natsclient package is used by exactly one caller in this server: the
// registry package's directory-scanner unit, which publishes a discovered-file
// notification to a JetStream subject every time a scan turns up a new file
// under its watched directory. Everything else in the server core — the ring,
// the listener, the client lifecycle — has no dependency on NATS at all; that
// boundary is deliberate: directory-scanning ingest is scoped in for its
// controlling lifecycle, not its transport.
//
// # Design Decisions
//
// Circuit Breaker over Simple Retry: chosen to prevent cascade failures when
// the NATS server is unreachable. After threshold failures, the circuit opens
// to fail fast rather than continuously retry, giving the broker time to
// recover without blocking the scanner thread.
//
// Context-First API: every I/O operation requires context.Context as its
// first parameter for proper cancellation and timeout support.
package natsclient
