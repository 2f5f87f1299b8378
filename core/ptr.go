package core

// Ptr returns a pointer to the given value; used for optional config fields whose zero value is
// meaningful, e.g. a settle delay of 0s.
func Ptr[T any](x T) *T {
	return &x
}
