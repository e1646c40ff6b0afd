package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strings"

	"go.trai.ch/zerr"
)

// HashAlgoSHA256 is the only content hash algorithm currently in use.
const HashAlgoSHA256 = "sha256"

// ContentHash is a cryptographic digest recorded for a package archive,
// written as "<algorithm>:<hex digest>". A bare hex digest is accepted as
// sha256 for compatibility with older repository indices.
type ContentHash struct {
	Algo   string
	Digest string
}

// ParseContentHash parses a content hash string.
func ParseContentHash(text string) (ContentHash, error) {
	algo, digest, tagged := strings.Cut(text, ":")
	if !tagged {
		algo, digest = HashAlgoSHA256, text
	}

	if algo != HashAlgoSHA256 {
		return ContentHash{}, zerr.With(ErrMalformedHash, "algorithm", algo)
	}

	digest = strings.ToLower(digest)
	if len(digest) != sha256.Size*2 {
		return ContentHash{}, zerr.With(ErrMalformedHash, "digest", digest)
	}
	if _, err := hex.DecodeString(digest); err != nil {
		return ContentHash{}, zerr.With(ErrMalformedHash, "digest", digest)
	}

	return ContentHash{Algo: algo, Digest: digest}, nil
}

// String renders the hash in its tagged form.
func (h ContentHash) String() string {
	return h.Algo + ":" + h.Digest
}

// Matches reports whether the content read from r has this digest.
func (h ContentHash) Matches(r io.Reader) (bool, error) {
	sum := sha256.New()
	if _, err := io.Copy(sum, r); err != nil {
		return false, err
	}
	return hex.EncodeToString(sum.Sum(nil)) == h.Digest, nil
}

// SumContent computes the sha256 content hash of everything read from r.
func SumContent(r io.Reader) (ContentHash, error) {
	sum := sha256.New()
	if _, err := io.Copy(sum, r); err != nil {
		return ContentHash{}, err
	}
	return ContentHash{Algo: HashAlgoSHA256, Digest: hex.EncodeToString(sum.Sum(nil))}, nil
}
