package types

// GrowSlice returns myslice when it already has newLen entries, otherwise a
// copy extended with zero values to newLen.
func GrowSlice[T any](myslice []T, newLen int) []T {
	if len(myslice) >= newLen {
		return myslice
	}
	biggerSlice := make([]T, newLen)
	copy(biggerSlice, myslice)
	return biggerSlice
}

// FillSlice returns a slice of length n with every entry set to val.
func FillSlice[T any](n int, val T) (s []T) {
	s = make([]T, n)
	for i := range s {
		s[i] = val
	}
	return
}
