package track

import (
	"context"
	"fmt"
	"time"
)

// Invocation identifies one instrumented business call. Name is the
// qualified label shown in the console, e.g. "User.validate" or "tasks.index".
type Invocation struct {
	Name      string
	Args      []any
	NamedArgs map[string]any
}

// Do runs fn with recording attached: duration is measured around the call
// including the failure paths, the return value is captured on success, and
// a returned error or panic is captured and propagated unchanged. Outside an
// active request context fn simply runs unrecorded.
func Do[T any](ctx context.Context, inv Invocation, fn func(context.Context) (T, error)) (T, error) {
	rc, ok := FromContext(ctx)
	if !ok {
		return fn(ctx)
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			rc.appendCall(inv.Name, inv.Args, inv.NamedArgs, nil, fmt.Sprintf("panic: %v", r), time.Since(start))
			panic(r)
		}
	}()

	result, err := fn(ctx)
	if err != nil {
		rc.appendCall(inv.Name, inv.Args, inv.NamedArgs, nil, err.Error(), time.Since(start))
		return result, err
	}

	rc.appendCall(inv.Name, inv.Args, inv.NamedArgs, result, "", time.Since(start))
	return result, nil
}

// DoVoid is Do for operations without a return value.
func DoVoid(ctx context.Context, inv Invocation, fn func(context.Context) error) error {
	_, err := Do(ctx, inv, func(ctx context.Context) (any, error) {
		return nil, fn(ctx)
	})
	return err
}

// Wrap returns an equivalent operation with recording attached, for call
// sites that install instrumentation once and invoke many times.
func Wrap[T any](name string, fn func(context.Context) (T, error)) func(context.Context) (T, error) {
	return func(ctx context.Context) (T, error) {
		return Do(ctx, Invocation{Name: name}, fn)
	}
}
