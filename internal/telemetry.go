package internal

import (
	"context"
	"sync"
)

// telemetry.go
// Lightweight telemetry hook layer for settings operations. The manager and
// the storage wrappers call the emitter functions below; by default they are
// no-ops, so the library carries no hard dependency on a metrics SDK.
// Service wiring may register an OpenTelemetry-backed emitter (or a test
// stub) via RegisterTelemetryEmitter.

type telemetryEmitter func(ctx context.Context, name string, labels map[string]string, value any)

var (
	teleMu   sync.Mutex
	teleImpl telemetryEmitter = func(ctx context.Context, name string, labels map[string]string, value any) {
		// noop by default
	}
)

// RegisterTelemetryEmitter registers a custom emitter function. A nil
// argument restores the no-op default.
func RegisterTelemetryEmitter(fn telemetryEmitter) {
	teleMu.Lock()
	defer teleMu.Unlock()
	if fn == nil {
		teleImpl = func(ctx context.Context, name string, labels map[string]string, value any) {}
		return
	}
	teleImpl = fn
}

func emit(ctx context.Context, name string, labels map[string]string, value any) {
	teleMu.Lock()
	fn := teleImpl
	teleMu.Unlock()
	fn(ctx, name, labels, value)
}

// EmitOperationLatency records the latency (milliseconds) of one manager
// operation for one settings class.
// name: "settings_operation_latency_ms" with labels {"op", "class"}
func EmitOperationLatency(ctx context.Context, op, class string, ms int64) {
	emit(ctx, "settings_operation_latency_ms", map[string]string{"op": op, "class": class}, ms)
}

// EmitStorageFailure counts a failed load/save against one storage adapter.
// name: "settings_storage_failures" with labels {"adapter", "op"}
func EmitStorageFailure(ctx context.Context, adapter, op string) {
	emit(ctx, "settings_storage_failures", map[string]string{"adapter": adapter, "op": op}, int64(1))
}

// EmitBreakerOpen counts a call rejected by an open storage circuit breaker.
// name: "settings_storage_breaker_open" with label {"adapter"}
func EmitBreakerOpen(ctx context.Context, adapter string) {
	emit(ctx, "settings_storage_breaker_open", map[string]string{"adapter": adapter}, int64(1))
}
