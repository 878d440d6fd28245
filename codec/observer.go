package codec

import "time"

// Observer receives timings from Compressed. op is "serialize",
// "deserialize", "compress" or "decompress". For the compress ops in and out
// are the payload sizes before and after the step. Implementations must be
// safe for concurrent use and must not block.
type Observer interface {
	ObserveSerialize(op string, d time.Duration, err error)
	ObserveCompress(op string, d time.Duration, in, out int, err error)
}

type NopObserver struct{}

func (NopObserver) ObserveSerialize(string, time.Duration, error) {}
func (NopObserver) ObserveCompress(string, time.Duration, int, int, error) {}
