package lnwallet

import "crypto/sha256"

// chainhashSum returns the single SHA-256 digest of data, used to build the
// witness-script-hash of the funding output.
func chainhashSum(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}
