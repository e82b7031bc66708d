package shared

// Listing limits. The timeline can grow without bound, so every query is
// capped even when the caller asks for more.
const (
	DefaultLimit = 100
	MaxLimit     = 500
)

// ClampLimit normalises a caller-provided page size.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// ClampOffset normalises a caller-provided offset.
func ClampOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
