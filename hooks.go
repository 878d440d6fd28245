package snapcache

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The cache calls them on hot paths.
type Hooks interface {
	// A value failed to encode or decode. op ∈ {"encode", "decode"}.
	CodecFailure(cache, storageKey, op string, err error)

	// An entry that failed to decode was deleted (Options.DropCorrupt).
	CorruptDropped(cache, storageKey string)

	// Provider returned ok=false on Set (backpressure/eviction).
	ProviderSetRejected(cache, storageKey string)

	// Provider returned an error. op ∈ {"get", "set", "del"}.
	ProviderError(cache, op string, err error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) CodecFailure(string, string, string, error) {}
func (NopHooks) CorruptDropped(string, string)              {}
func (NopHooks) ProviderSetRejected(string, string)         {}
func (NopHooks) ProviderError(string, string, error)        {}
