package snapcache

const version = "0.4.0"

// Version reports the module version, for instrumentation scopes and the CLI.
func Version() string { return version }
