package classify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
)

// hashObject computes the SHA-256 digest of the object's full bytes. The
// digest is a pure function of content, reproducible across runs and machines.
func (c *Classifier) hashObject(ctx context.Context, key string) (string, error) {
	rc, err := c.content.Open(ctx, key)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	digest := sha256.New()
	buf := make([]byte, c.hashBuf)
	if _, err := io.CopyBuffer(digest, rc, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(digest.Sum(nil)), nil
}

// HashReader computes the SHA-256 digest of everything readable from r.
func HashReader(r io.Reader) (string, error) {
	digest := sha256.New()
	if _, err := io.Copy(digest, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(digest.Sum(nil)), nil
}
