package app

import (
	cliflag "k8s.io/component-base/cli/flag"
)

// NamedFlagSetOptions is implemented by the option aggregate of every
// Skycourier command.
type NamedFlagSetOptions interface {
	// Flags returns the command's flags grouped by section.
	Flags() cliflag.NamedFlagSets

	// Complete fills in values derived from other options.
	Complete() error

	// Validate checks the options after flags and config are applied.
	Validate() error
}
