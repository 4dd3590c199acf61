package service

import "hash/fnv"

// hashDedupMinLen: shorter non-URL text is never deduplicated; brief notes
// legitimately repeat.
const hashDedupMinLen = 50

// contentHash is the fast non-cryptographic fingerprint used by the dedup
// window check.
func contentHash(text string) int64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(text))
	return int64(h.Sum32())
}
