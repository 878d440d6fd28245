package codec

import "encoding/json"

type JSONCodec[V any] struct{}

var _ Codec[map[string]any] = JSONCodec[map[string]any]{}

func (JSONCodec[V]) Encode(v V) ([]byte, error) { return json.Marshal(v) }
func (JSONCodec[V]) Decode(b []byte) (V, error) {
	var v V
	err := json.Unmarshal(b, &v)
	return v, err
}
