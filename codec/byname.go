package codec

import (
	"fmt"
	"sort"
	"strings"

	"github.com/unkn0wn-root/snapcache/serial"
)

const (
	NameSerial   = "serial"
	NameFallback = "fallback"
	NameJSON     = "json"
	NameMsgpack  = "msgpack"
	NameCBOR     = "cbor"
)

var serializers = map[string]func() Serializer{
	NameSerial:   func() Serializer { return serial.Default() },
	NameFallback: func() Serializer { return Fallback{} },
	NameJSON:     func() Serializer { return Erase[any](JSONCodec[any]{}) },
	NameMsgpack:  func() Serializer { return Erase[any](Msgpack[any]{}) },
	NameCBOR:     func() Serializer { return Erase[any](MustCBOR[any](true)) },
}

// ByName returns an inner serializer for configuration and the CLI. The
// empty name selects the default serial pool.
func ByName(name string) (Serializer, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = NameSerial
	}
	mk, ok := serializers[name]
	if !ok {
		return nil, fmt.Errorf("codec: unknown serializer %q (known: %s)", name, strings.Join(Names(), ", "))
	}
	return mk(), nil
}

func Names() []string {
	out := make([]string, 0, len(serializers))
	for n := range serializers {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
