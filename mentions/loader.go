package mentions

import (
	"fmt"
	"os"
	"strings"
)

// defaultMaxDepth caps recursive @mention following inside mentioned file
// content, matching load_mentions's max_depth=3 default.
const defaultMaxDepth = 3

// LoadMentions parses every top-level @mention in text and resolves each
// one via resolver. Resolution is opportunistic: an unresolvable mention or
// an unreadable file produces a Result with empty Content, and a directory
// that cannot be listed produces a listing reading "(permission denied)",
// rather than an error — mentions are a best-effort enrichment, not a
// required input.
//
// A file whose content has already been seen (by content hash, via dedup)
// resolves to its path but with empty Content, since the context block
// built from dedup already carries that content once. A file seen for the
// first time has its own content scanned for nested @mentions up to
// defaultMaxDepth levels deep purely to populate dedup for FormatContextBlock
// — nested mentions themselves are never added to the returned Result list,
// matching load_mentions's behavior exactly.
func LoadMentions(text string, resolver *Resolver, dedup *ContentDeduplicator) []Result {
	if dedup == nil {
		dedup = NewContentDeduplicator()
	}

	var results []Result
	for _, m := range ParseMentions(text) {
		results = append(results, resolveMention(m, resolver, dedup, 0, defaultMaxDepth))
	}
	return results
}

func resolveMention(mention string, resolver *Resolver, dedup *ContentDeduplicator, depth, maxDepth int) Result {
	path, ok := resolver.Resolve(mention)
	if !ok {
		return Result{Mention: mention}
	}

	info, err := os.Stat(path)
	if err != nil {
		return Result{Mention: mention}
	}

	if info.IsDir() {
		return Result{Mention: mention, ResolvedPath: path, Content: FormatDirectoryListing(path), IsDirectory: true}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Result{Mention: mention, ResolvedPath: path}
	}
	content := string(raw)

	isNew := dedup.AddFile(path, content)
	if !isNew {
		return Result{Mention: mention, ResolvedPath: path}
	}

	if depth < maxDepth {
		for _, nested := range ParseMentions(content) {
			resolveMention(nested, resolver, dedup, depth+1, maxDepth)
		}
	}

	return Result{Mention: mention, ResolvedPath: path, Content: content}
}

// FormatContextBlock renders every uniquely-deduplicated file dedup has
// collected as an XML-ish <context_file> block, attributing each one to
// every top-level mention (from results, in resolution order) that led to
// it. Returns "" if dedup is empty.
func FormatContextBlock(dedup *ContentDeduplicator, results []Result) string {
	files := dedup.GetUniqueFiles()
	if len(files) == 0 {
		return ""
	}

	pathToMentions := make(map[string][]string)
	for _, r := range results {
		if r.ResolvedPath == "" {
			continue
		}
		pathToMentions[r.ResolvedPath] = append(pathToMentions[r.ResolvedPath], r.Mention)
	}

	blocks := make([]string, 0, len(files))
	for _, f := range files {
		attrs := make([]string, 0, len(f.Paths))
		for _, p := range f.Paths {
			mentions := pathToMentions[p]
			if len(mentions) == 0 {
				attrs = append(attrs, p)
				continue
			}
			for _, m := range mentions {
				attrs = append(attrs, fmt.Sprintf("%s → %s", m, p))
			}
		}
		blocks = append(blocks, fmt.Sprintf("<context_file paths=%q>\n%s\n</context_file>", strings.Join(attrs, ", "), f.Content))
	}

	return strings.Join(blocks, "\n\n")
}
