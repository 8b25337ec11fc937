package hash

import (
	"github.com/spaolacci/murmur3"
	"github.com/zeebo/blake3"

	"github.com/outofforest/replica/types"
)

// Seed is the seed used to hash record keys.
const Seed uint32 = 0xcceaccf9

// Murmur3 computes 32-bit MurmurHash3 (x86 variant) of data.
func Murmur3(data []byte, seed uint32) uint32 {
	return murmur3.Sum32WithSeed(data, seed)
}

// Key computes hash of the record key.
func Key(key []byte) types.KeyHash {
	return types.KeyHash(Murmur3(key, Seed))
}

// Digest computes blake3 digest of data.
func Digest(data []byte) types.Hash {
	return blake3.Sum256(data)
}
