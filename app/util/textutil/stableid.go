package textutil

import (
	"fmt"
	"unicode/utf16"

	"github.com/google/uuid"
)

// StableID derives a deterministic identifier from s.
//
// The hash is the classic 31-multiplier rolling hash over UTF-16 code units
// in 32-bit signed arithmetic. Only 32 bits carry entropy, so distinct inputs
// may collide.
func StableID(s string) string {
	var hash int32
	for _, unit := range utf16.Encode([]rune(s)) {
		hash = hash*31 + int32(unit)
	}

	hex := fmt.Sprintf("%032x", uint32(hash))

	id, err := uuid.Parse(hex)
	if err != nil {
		// 32 hex digits always parse
		panic(fmt.Sprintf("stable id: %v", err))
	}

	return id.String()
}
