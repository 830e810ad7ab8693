package forge

// NewTestFoundry builds an in-memory Foundry suitable for unit tests of
// operations and middleware: a NullLogger, a RealClock, and an empty
// ServiceProvider unless overridden by opts.
func NewTestFoundry(opts ...FoundryOption) *Foundry {
	return NewFoundry(opts...)
}
