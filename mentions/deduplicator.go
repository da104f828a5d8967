package mentions

import (
	"crypto/sha256"
	"encoding/hex"
)

// ContentDeduplicator tracks content by SHA-256 hash so the same file
// reached through multiple @mentions (or multiple nested mentions pointing
// at the same path) is only included once in a context block, while still
// attributing it to every path that resolved to it. Ported from
// deduplicator.py's ContentDeduplicator.
type ContentDeduplicator struct {
	contentByHash map[string]string
	pathsByHash   map[string][]string
	order         []string
}

// NewContentDeduplicator returns an empty deduplicator.
func NewContentDeduplicator() *ContentDeduplicator {
	return &ContentDeduplicator{
		contentByHash: make(map[string]string),
		pathsByHash:   make(map[string][]string),
	}
}

func hashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// AddFile records content found at path. It returns true the first time a
// given content hash is seen (the caller should include it in the output),
// and false for a repeat (the path is still recorded against the existing
// hash, but the caller should not include the content again).
func (d *ContentDeduplicator) AddFile(path, content string) bool {
	hash := hashContent(content)

	if _, exists := d.contentByHash[hash]; exists {
		for _, p := range d.pathsByHash[hash] {
			if p == path {
				return false
			}
		}
		d.pathsByHash[hash] = append(d.pathsByHash[hash], path)
		return false
	}

	d.contentByHash[hash] = content
	d.pathsByHash[hash] = []string{path}
	d.order = append(d.order, hash)
	return true
}

// IsSeen reports whether content has already been recorded.
func (d *ContentDeduplicator) IsSeen(content string) bool {
	_, ok := d.contentByHash[hashContent(content)]
	return ok
}

// GetKnownHashes returns every content hash recorded so far.
func (d *ContentDeduplicator) GetKnownHashes() []string {
	out := make([]string, len(d.order))
	copy(out, d.order)
	return out
}

// GetUniqueFiles returns one ContextFile per unique content hash, in the
// order each was first added, with every path that resolved to it.
func (d *ContentDeduplicator) GetUniqueFiles() []ContextFile {
	out := make([]ContextFile, 0, len(d.order))
	for _, hash := range d.order {
		out = append(out, ContextFile{
			Content:     d.contentByHash[hash],
			ContentHash: hash,
			Paths:       append([]string(nil), d.pathsByHash[hash]...),
		})
	}
	return out
}
