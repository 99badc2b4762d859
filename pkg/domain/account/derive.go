package account

import (
	"math/big"
	"time"

	"golang.org/x/crypto/sha3"
)

// IntervalBuckets is the size of the interval lookup table.
const IntervalBuckets = 16

const day = 24 * time.Hour

// intervalTable maps a seed bucket to a round interval. Values never decrease
// with the bucket index and the middle of the table repeats the most, so short
// and long intervals are rare.
var intervalTable = [IntervalBuckets]time.Duration{
	1 * day,
	3 * day,
	7 * day, 7 * day,
	14 * day, 14 * day, 14 * day, 14 * day,
	30 * day, 30 * day, 30 * day, 30 * day,
	60 * day, 60 * day,
	90 * day,
	180 * day,
}

var (
	categoryModulus = big.NewInt(CategoryCount)
	bucketModulus   = big.NewInt(IntervalBuckets)
)

// Derivation holds the seed-determined attributes of an account.
type Derivation struct {
	Category       Category
	IntervalLength time.Duration
	Bucket         int
}

// Derive computes the category and interval of an account from its seed.
// The seed is hashed with Keccak-256 and the digest, read as a big-endian
// unsigned integer, is reduced modulo the category count and the bucket count.
// The result is a pure function of seed.
func Derive(seed []byte) Derivation {
	n := seedDigest(seed)
	category := new(big.Int).Mod(n, categoryModulus).Int64()
	bucket := new(big.Int).Mod(n, bucketModulus).Int64()
	return Derivation{
		Category:       Category(category),
		IntervalLength: intervalTable[bucket],
		Bucket:         int(bucket),
	}
}

// IntervalForBucket returns the interval assigned to a bucket.
func IntervalForBucket(bucket int) (time.Duration, bool) {
	if bucket < 0 || bucket >= IntervalBuckets {
		return 0, false
	}
	return intervalTable[bucket], true
}

func seedDigest(seed []byte) *big.Int {
	h := sha3.NewLegacyKeccak256()
	h.Write(seed) //nolint:errcheck
	return new(big.Int).SetBytes(h.Sum(nil))
}
