package cacheotel

// ExponentialBuckets returns count bucket boundaries starting at start, each
// factor times the previous one.
func ExponentialBuckets(start, factor float64, count int) []float64 {
	if count < 1 || start <= 0 || factor <= 1 {
		panic("cacheotel: ExponentialBuckets needs count >= 1, start > 0, factor > 1")
	}
	buckets := make([]float64, count)
	for i := range buckets {
		buckets[i] = start
		start *= factor
	}
	return buckets
}

// LinearBuckets returns count bucket boundaries starting at start, width
// apart.
func LinearBuckets(start, width float64, count int) []float64 {
	if count < 1 || width <= 0 {
		panic("cacheotel: LinearBuckets needs count >= 1, width > 0")
	}
	buckets := make([]float64, count)
	for i := range buckets {
		buckets[i] = start
		start += width
	}
	return buckets
}
