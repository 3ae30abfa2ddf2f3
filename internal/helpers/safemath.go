package helpers

import "math/bits"

// SafeAdd returns a+b. ok is false if the sum overflows 64 bits.
func SafeAdd(a, b uint64) (sum uint64, ok bool) {
	sum, carry := bits.Add64(a, b, 0)
	return sum, carry == 0
}

// SafeAddTo adds v to *acc in place. On overflow *acc is left untouched and
// false is returned.
func SafeAddTo(acc *uint64, v uint64) bool {
	sum, ok := SafeAdd(*acc, v)
	if !ok {
		return false
	}
	*acc = sum
	return true
}

// SafeSum adds all values, failing on the first overflow.
func SafeSum(values ...uint64) (uint64, bool) {
	var total uint64
	for _, v := range values {
		if !SafeAddTo(&total, v) {
			return 0, false
		}
	}
	return total, true
}

// InBounds reports whether [offset, offset+size) lies within [0, limit).
func InBounds(offset, size, limit uint64) bool {
	end, ok := SafeAdd(offset, size)
	return ok && end <= limit
}
