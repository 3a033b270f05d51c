// Package hash computes digests over archive bytes so that a repository's
// published checksum can be verified before an archive is trusted.
package hash

import (
	"crypto/md5"  //nolint:gosec // digest kind requested by callers, not used for security decisions
	"crypto/sha1" //nolint:gosec // same as above
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/blake2s"
	"golang.org/x/crypto/sha3"
)

// Algorithm names a supported digest function. Values are the ones
// repositories publish alongside a release asset.
type Algorithm string

const (
	MD5        Algorithm = "md5"
	SHA1       Algorithm = "sha1"
	SHA256     Algorithm = "sha256"
	SHA512     Algorithm = "sha512"
	SHA3_256   Algorithm = "sha3-256"
	SHA3_512   Algorithm = "sha3-512"
	BLAKE2b512 Algorithm = "blake2b-512"
	BLAKE2s256 Algorithm = "blake2s-256"
)

// Sum returns the lowercase hex digest of b under the named algorithm. It
// panics on an unknown algorithm since the set is fixed and closed at
// compile time; callers should only ever pass one of the constants above.
func Sum(alg Algorithm, b []byte) string {
	switch alg {
	case MD5:
		return MD5Sum(b)
	case SHA1:
		return SHA1Sum(b)
	case SHA256:
		return SHA256Sum(b)
	case SHA512:
		return SHA512Sum(b)
	case SHA3_256:
		return SHA3_256Sum(b)
	case SHA3_512:
		return SHA3_512Sum(b)
	case BLAKE2b512:
		return BLAKE2b512Sum(b)
	case BLAKE2s256:
		return BLAKE2s256Sum(b)
	default:
		panic(fmt.Sprintf("hash: unknown algorithm %q", alg))
	}
}

// MD5Sum returns the hex-encoded MD5 digest of b.
func MD5Sum(b []byte) string {
	sum := md5.Sum(b) //nolint:gosec
	return hex.EncodeToString(sum[:])
}

// SHA1Sum returns the hex-encoded SHA-1 digest of b.
func SHA1Sum(b []byte) string {
	sum := sha1.Sum(b) //nolint:gosec
	return hex.EncodeToString(sum[:])
}

// SHA256Sum returns the hex-encoded SHA-2/256 digest of b.
func SHA256Sum(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// SHA512Sum returns the hex-encoded SHA-2/512 digest of b.
func SHA512Sum(b []byte) string {
	sum := sha512.Sum512(b)
	return hex.EncodeToString(sum[:])
}

// SHA3_256Sum returns the hex-encoded SHA-3/256 digest of b.
func SHA3_256Sum(b []byte) string {
	sum := sha3.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// SHA3_512Sum returns the hex-encoded SHA-3/512 digest of b.
func SHA3_512Sum(b []byte) string {
	sum := sha3.Sum512(b)
	return hex.EncodeToString(sum[:])
}

// BLAKE2b512Sum returns the hex-encoded BLAKE2b-512 digest of b.
func BLAKE2b512Sum(b []byte) string {
	sum := blake2b.Sum512(b)
	return hex.EncodeToString(sum[:])
}

// BLAKE2s256Sum returns the hex-encoded BLAKE2s-256 digest of b.
func BLAKE2s256Sum(b []byte) string {
	sum := blake2s.Sum256(b)
	return hex.EncodeToString(sum[:])
}
