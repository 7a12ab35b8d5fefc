package config

import (
	"errors"
	"fmt"
	"strings"
)

// Normalize applies defaults and validates the model. It is called once by
// the loader, so downstream stages can rely on a well-formed model.
func (m *Model) Normalize() error {
	if m.Package.Name == "" {
		return errors.New("package name is required")
	}
	if m.Package.Binary == "" {
		m.Package.Binary = m.Package.Name
	}
	if m.Toolchain.Channel == "" {
		return errors.New("toolchain channel is required")
	}
	if m.Toolchain.Driver == "" {
		m.Toolchain.Driver = "cargo"
	}
	// An omitted source block means cargo-style conventions.
	if len(m.Source.Extensions) == 0 && len(m.Source.ManifestGlobs) == 0 && len(m.Source.Patterns) == 0 {
		m.Source.Extensions = []string{".rs"}
		m.Source.ManifestGlobs = []string{"Cargo.toml", "Cargo.lock", "**/Cargo.toml"}
	}
	for i, ext := range m.Source.Extensions {
		if !strings.HasPrefix(ext, ".") {
			m.Source.Extensions[i] = "." + ext
		}
	}
	if m.Platforms == nil {
		m.Platforms = make(map[string]*PlatformExtras)
	}
	for key := range m.Platforms {
		if !strings.Contains(key, "/") {
			return fmt.Errorf("platform key %q must be of the form os/arch", key)
		}
	}
	return nil
}
