package sampler

import (
	"encoding/binary"
	"hash/fnv"
	"math/rand/v2"
)

// New returns a generator seeded deterministically from seed.
func New(seed uint64) *rand.Rand {
	return Stream(seed, 0)
}

// Stream returns the index-th independent generator derived from seed. Streams
// with different indexes use different ChaCha8 keys, so workers never share a
// sequence.
func Stream(seed uint64, index int) *rand.Rand {
	return DomainStream(seed, "", index)
}

// DomainStream is Stream keyed additionally by domain, e.g. a step name, so
// simulations of different steps under one seed draw unrelated sequences.
func DomainStream(seed uint64, domain string, index int) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(domain))

	var key [32]byte
	binary.LittleEndian.PutUint64(key[0:8], seed)
	binary.LittleEndian.PutUint64(key[8:16], uint64(index))
	binary.LittleEndian.PutUint64(key[16:24], h.Sum64())
	copy(key[24:], "qlstream")
	return rand.New(rand.NewChaCha8(key))
}

// EntropySeed returns a seed from the runtime's entropy-seeded generator.
// Callers use it once at process start and log it so the run can be replayed.
func EntropySeed() uint64 {
	seed := rand.Uint64()
	if seed == 0 {
		seed = 1
	}
	return seed
}
