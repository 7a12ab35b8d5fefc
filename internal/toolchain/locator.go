package toolchain

import (
	"context"
	"fmt"
	"os/exec"
)

// StaticLocator serves a fixed catalog of channels. Useful for tests and for
// CI images where the toolchain install is pre-provisioned.
type StaticLocator struct {
	// Channels maps channel name to the component names it provides.
	Channels map[string][]string
}

// Locate implements Locator against the static catalog.
func (l *StaticLocator) Locate(_ context.Context, channel, _ string) ([]string, error) {
	components, ok := l.Channels[channel]
	if !ok {
		return nil, fmt.Errorf("unknown channel %q", channel)
	}
	return components, nil
}

// PathLocator locates a toolchain through binaries on PATH: the channel is
// available when its driver binary resolves, and a component is provided
// when its binary resolves.
type PathLocator struct {
	// Driver is the toolchain driver binary, e.g. "cargo".
	Driver string
	// ComponentBinaries maps component names to the binary that proves their
	// presence, e.g. "clippy" -> "cargo-clippy".
	ComponentBinaries map[string]string
}

// Locate implements Locator by probing PATH.
func (l *PathLocator) Locate(_ context.Context, channel, _ string) ([]string, error) {
	if _, err := exec.LookPath(l.Driver); err != nil {
		return nil, fmt.Errorf("driver %q for channel %q: %w", l.Driver, channel, err)
	}
	var components []string
	for name, binary := range l.ComponentBinaries {
		if _, err := exec.LookPath(binary); err == nil {
			components = append(components, name)
		}
	}
	return components, nil
}
