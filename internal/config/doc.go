// Package config defines the format-agnostic model of a hermit build
// description and the Loader interface implemented by format-specific
// packages (currently HCL via internal/hclconf). Components downstream of
// loading only ever see this model, never raw configuration syntax.
package config
