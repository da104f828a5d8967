// Package mentions implements the @mention Loader (§4.10): extracting
// @mentions from instruction text, resolving them to files or directory
// listings, deduplicating content by hash across multiple resolved paths,
// and formatting the result as XML context blocks prepended to a prompt.
//
// Ported exactly from original_source's amplifier_foundation/mentions/
// (parser.py, models.py, protocol.py, resolver.py, deduplicator.py,
// loader.py, utils.go).
package mentions

// ContextFile is a unique piece of mentioned content, tracking every path
// where it was found so attribution can list all the mentions that
// resolved to it.
type ContextFile struct {
	Content     string
	ContentHash string
	Paths       []string
}

// Result is the outcome of resolving a single @mention.
type Result struct {
	Mention      string
	ResolvedPath string
	Content      string
	IsDirectory  bool
}

// Found reports whether the mention resolved to a file or directory whose
// content/listing was captured.
func (r Result) Found() bool {
	return r.ResolvedPath != "" && (r.Content != "" || r.IsDirectory)
}
