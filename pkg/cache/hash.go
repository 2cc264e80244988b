package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"io"
	"path/filepath"
)

// renderDigest hashes a render input and its flattened settings. Every part
// is length-prefixed, so moving bytes between the markup and a setting
// value always changes the digest.
func renderDigest(input string, settings []string) string {
	h := sha256.New()
	writePart(h, input)
	for _, kv := range settings {
		writePart(h, kv)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writePart(h hash.Hash, part string) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(part)))
	h.Write(n[:])
	_, _ = io.WriteString(h, part)
}

// shardPath maps key to dir/<2 hex>/<62 hex><ext>. The two-character shard
// keeps any one directory small.
func shardPath(dir, key, ext string) string {
	sum := Hash([]byte(key))
	return filepath.Join(dir, sum[:2], sum[2:]+ext)
}

// Hash returns the hex SHA-256 of data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
