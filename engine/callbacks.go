package engine

import (
	"context"
	"fmt"

	"github.com/hupe1980/confsec/core"
)

// CallbackType defines the specific lifecycle points where callbacks can be
// executed.
//
// Callbacks provide a flexible mechanism for hooking into the engine's
// dispatch pipeline without modifying core logic. Each type represents a
// specific point in a request's life where custom logic can be injected.
//
// Available callback types:
//   - BeforeDispatch: Before a payload is sent to any node
//   - AfterDispatch: After a response resource has been registered
//   - OnStreamEnd: When a stream cursor reaches exhaustion
//   - OnWalletRefresh: After a wallet snapshot is (re)fetched
//
// Only BeforeDispatch callbacks influence execution: returning an error
// there vetoes the dispatch, surfaced to the caller as a request error. The
// other points are observe-only; their errors are logged and dropped.
type CallbackType string

const (
	// CallbackBeforeDispatch is triggered before a payload is dispatched.
	// Use for auditing, budget guards, or request counting. Returning an
	// error vetoes the dispatch.
	CallbackBeforeDispatch CallbackType = "before_dispatch"

	// CallbackAfterDispatch is triggered after a dispatch succeeded and its
	// response resource exists. Use for metrics collection or logging.
	CallbackAfterDispatch CallbackType = "after_dispatch"

	// CallbackOnStreamEnd is triggered when a stream reports exhaustion.
	// Use for accounting chunk counts or closing out traces.
	CallbackOnStreamEnd CallbackType = "on_stream_end"

	// CallbackOnWalletRefresh is triggered whenever the engine fetches a
	// wallet snapshot. Use for balance monitoring or alerting.
	CallbackOnWalletRefresh CallbackType = "on_wallet_refresh"
)

// CallbackContext carries the information available at a callback's
// lifecycle point. Fields not meaningful for a given point are left at
// their zero values.
type CallbackContext struct {
	// Client is the handle of the client driving the operation.
	Client core.ClientHandle

	// Response is the handle of the registered response (after dispatch and
	// stream end).
	Response core.ResponseHandle

	// RequestID is the engine-assigned dispatch identifier.
	RequestID string

	// Node is the identifier of the selected node (after dispatch).
	Node string

	// PayloadSize is the dispatched payload length in bytes (before
	// dispatch).
	PayloadSize int

	// CreditsRemaining is the locally estimated spendable balance (before
	// dispatch).
	CreditsRemaining int64

	// Chunks is the number of chunks delivered (stream end).
	Chunks int

	// Wallet is the freshly fetched snapshot (wallet refresh).
	Wallet WalletInfo

	// Metadata provides extensible storage for custom callback data.
	Metadata map[string]interface{}
}

// Callback defines the interface for dispatch lifecycle hooks.
//
// Implementations should be:
//   - Fast: Callbacks run synchronously on the dispatch path
//   - Safe: Handle errors gracefully and avoid panics
//   - Stateless: Don't rely on mutable state between invocations
type Callback interface {
	// Type returns the callback type this implementation handles.
	Type() CallbackType

	// Execute performs the callback logic with the provided context.
	// At CallbackBeforeDispatch, returning an error vetoes the dispatch.
	Execute(ctx context.Context, callbackCtx *CallbackContext) error
}

// FunctionCallback wraps a function as a callback implementation.
//
// Example:
//
//	audit := NewFunctionCallback(
//	    CallbackBeforeDispatch,
//	    func(ctx context.Context, cc *CallbackContext) error {
//	        log.Printf("dispatching %d bytes", cc.PayloadSize)
//	        return nil
//	    },
//	)
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, callbackCtx *CallbackContext) error
}

// NewFunctionCallback creates a new function-based callback.
func NewFunctionCallback(
	callbackType CallbackType,
	fn func(ctx context.Context, callbackCtx *CallbackContext) error,
) *FunctionCallback {
	return &FunctionCallback{
		callbackType: callbackType,
		fn:           fn,
	}
}

// Type returns the callback type this function handles.
func (c *FunctionCallback) Type() CallbackType {
	return c.callbackType
}

// Execute calls the wrapped function with the provided context.
func (c *FunctionCallback) Execute(ctx context.Context, callbackCtx *CallbackContext) error {
	return c.fn(ctx, callbackCtx)
}

// CallbackManager orchestrates callback execution throughout the dispatch
// lifecycle.
//
// Callbacks are executed in registration order, and any callback returning
// an error stops execution of the remaining ones for that point.
//
// Thread Safety:
// The CallbackManager is not inherently thread-safe for registration. If
// callbacks will be registered from multiple goroutines, external
// synchronization is required. Once registration is complete, callback
// execution is safe for concurrent use.
type CallbackManager struct {
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates a new callback manager instance.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{
		callbacks: make(map[CallbackType][]Callback),
	}
}

// RegisterCallback adds a callback to the manager for its declared type.
// Multiple callbacks can be registered for the same type and will be
// executed in registration order.
func (cm *CallbackManager) RegisterCallback(callback Callback) {
	callbackType := callback.Type()
	cm.callbacks[callbackType] = append(cm.callbacks[callbackType], callback)
}

// ExecuteCallbacks executes all registered callbacks for the specified type.
//
// Callbacks run sequentially in registration order. The first error stops
// execution and is returned; subsequent callbacks will not run.
func (cm *CallbackManager) ExecuteCallbacks(
	ctx context.Context,
	callbackType CallbackType,
	callbackCtx *CallbackContext,
) error {
	callbacks, exists := cm.callbacks[callbackType]
	if !exists {
		return nil // No callbacks registered for this type
	}

	for _, callback := range callbacks {
		if err := callback.Execute(ctx, callbackCtx); err != nil {
			return err
		}
	}

	return nil
}

// LoggingCallback forwards lifecycle events to a logging function.
//
// Example:
//
//	logger := func(message string) {
//	    log.Printf("[CONFSEC] %s", message)
//	}
//	callback := NewLoggingCallback(CallbackAfterDispatch, logger)
type LoggingCallback struct {
	callbackType CallbackType
	logger       func(message string)
}

// NewLoggingCallback creates a new logging callback for one lifecycle point.
func NewLoggingCallback(callbackType CallbackType, logger func(message string)) *LoggingCallback {
	return &LoggingCallback{
		callbackType: callbackType,
		logger:       logger,
	}
}

// Type returns the callback type this logger handles.
func (c *LoggingCallback) Type() CallbackType {
	return c.callbackType
}

// Execute logs the lifecycle event with context information. If no logger
// function is configured, the callback silently succeeds.
func (c *LoggingCallback) Execute(ctx context.Context, callbackCtx *CallbackContext) error {
	if c.logger != nil {
		message := fmt.Sprintf("[%s] client=%s request_id=%s node=%s",
			c.callbackType, callbackCtx.Client, callbackCtx.RequestID, callbackCtx.Node)
		c.logger(message)
	}
	return nil
}

// CreditGuardCallback vetoes dispatches once the locally estimated wallet
// balance falls below a configured floor.
//
// The estimate is the last fetched balance minus locally accounted spend,
// so it can drift from the backend's ledger between wallet refreshes. The
// guard is a brake against runaway spend, not an exact budget.
//
// Example:
//
//	cm := NewCallbackManager()
//	cm.RegisterCallback(NewCreditGuardCallback(1000))
//	eng := New(WithCallbacks(cm))
type CreditGuardCallback struct {
	floor int64
}

// NewCreditGuardCallback creates a guard that rejects dispatches when the
// estimated remaining credits drop below floor.
func NewCreditGuardCallback(floor int64) *CreditGuardCallback {
	return &CreditGuardCallback{floor: floor}
}

// Type returns the callback type (always CallbackBeforeDispatch).
func (c *CreditGuardCallback) Type() CallbackType {
	return CallbackBeforeDispatch
}

// Execute rejects the dispatch when the estimated balance is below the
// configured floor.
func (c *CreditGuardCallback) Execute(ctx context.Context, callbackCtx *CallbackContext) error {
	if callbackCtx.CreditsRemaining < c.floor {
		return fmt.Errorf("estimated remaining credits %d below floor %d", callbackCtx.CreditsRemaining, c.floor)
	}
	return nil
}
