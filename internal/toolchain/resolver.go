package toolchain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vk/hermit/internal/config"
	"github.com/vk/hermit/internal/ctxlog"
)

// UnavailableError reports that the requested channel or one of its
// components cannot be located. Fatal: no build is possible without the
// pinned toolchain.
type UnavailableError struct {
	Channel   string
	Component string
	Err       error
}

func (e *UnavailableError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("toolchain %s: component %q unavailable: %v", e.Channel, e.Component, e.Err)
	}
	return fmt.Sprintf("toolchain %s unavailable: %v", e.Channel, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// Locator knows where toolchains live. Acquisition may involve a network
// fetch and is the one place in the orchestrator where a transient failure
// is worth retrying.
type Locator interface {
	// Locate checks that the channel/version exists and returns the set of
	// component names it provides.
	Locate(ctx context.Context, channel, version string) (components []string, err error)
}

// Resolver resolves a configured pin into an immutable Toolchain. Resolution
// is deterministic: the same pin always yields the same identity within one
// invocation, with no implicit "latest" drift once pinned.
type Resolver struct {
	locator  Locator
	attempts int
	backoff  time.Duration
}

// NewResolver creates a Resolver around the given locator. The resolver
// retries transient locate failures up to three times; every other stage of
// the orchestrator treats its inputs as deterministic and never retries.
func NewResolver(locator Locator) *Resolver {
	return &Resolver{locator: locator, attempts: 3, backoff: 500 * time.Millisecond}
}

// Resolve pins the toolchain named by cfg.
func (r *Resolver) Resolve(ctx context.Context, pin config.ToolchainPin) (*Toolchain, error) {
	logger := ctxlog.FromContext(ctx)

	available, err := r.locate(ctx, pin.Channel, pin.Version)
	if err != nil {
		return nil, &UnavailableError{Channel: pin.Channel, Err: err}
	}

	provided := make(map[string]bool, len(available))
	for _, c := range available {
		provided[c] = true
	}
	for _, want := range pin.Components {
		if !provided[want] {
			return nil, &UnavailableError{
				Channel:   pin.Channel,
				Component: want,
				Err:       fmt.Errorf("not provided by channel"),
			}
		}
	}

	tc := newToolchain(pin.Channel, pin.Version, pin.Components)
	logger.Debug("Toolchain resolved.", "toolchain", tc.String(), "identity", tc.Identity()[:12])
	return tc, nil
}

// locate calls the locator with bounded retries for transient failures.
func (r *Resolver) locate(ctx context.Context, channel, version string) ([]string, error) {
	logger := ctxlog.FromContext(ctx)

	var lastErr error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		components, err := r.locator.Locate(ctx, channel, version)
		if err == nil {
			return components, nil
		}
		lastErr = err
		if !IsTransient(err) || attempt == r.attempts {
			break
		}
		logger.Warn("Transient toolchain locate failure, retrying.",
			"channel", channel, "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.backoff):
		}
	}
	return nil, lastErr
}

// TransientError wraps a failure that may resolve on retry, such as an
// interrupted toolchain download.
type TransientError struct{ Err error }

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether the error chain contains a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
