package hash

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"
	blake3luke "lukechampine.com/blake3"
)

func randData(size uint) []byte {
	data := make([]byte, size)
	if _, err := rand.Read(data); err != nil {
		panic(err)
	}
	return data
}

var data4K = func() [4][]byte {
	return [4][]byte{randData(4096), randData(4096), randData(4096), randData(4096)}
}()

func TestDigestMatchesReference(t *testing.T) {
	requireT := require.New(t)

	for _, size := range []uint{0, 1, 63, 64, 65, 1023, 1024, 1025, 4096, 10000} {
		data := randData(size)
		requireT.Equal(blake3luke.Sum256(data), [32]byte(Digest(data)))
	}
}

func BenchmarkDigest4K(b *testing.B) {
	for range b.N {
		for _, d := range data4K {
			Digest(d)
		}
	}
}

func BenchmarkDigest4KReference(b *testing.B) {
	for range b.N {
		for _, d := range data4K {
			blake3luke.Sum256(d)
		}
	}
}
