package utils

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Blake2bHex returns the hex encoded BLAKE2b-256 digest of data.
func Blake2bHex(data []byte) string {
	h := blake2b.Sum256(data)
	return hex.EncodeToString(h[:])
}
