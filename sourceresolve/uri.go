// Package sourceresolve implements the URI Parser and Source Resolver
// (§4.1): parsing bundle source URIs into components and fetching them
// through scheme-keyed handlers (file, http(s), git+, zip+).
//
// ParsedURI and ParseURI are ported exactly from original_source's
// amplifier_foundation/paths/resolution.py (parse_uri, _parse_vcs_uri,
// _GIT_PATH_PATTERN, _extract_subdirectory_from_fragment).
package sourceresolve

import (
	"net/url"
	"regexp"
	"strings"
)

// gitPathPattern splits a VCS URI path into "path" and an optional "@ref"
// suffix, mirroring _GIT_PATH_PATTERN's (?P<path>[^@]+)(?:@(?P<ref>.+))?.
var gitPathPattern = regexp.MustCompile(`^([^@]+)(?:@(.+))?$`)

// ParsedURI is the parsed form of a bundle source reference.
type ParsedURI struct {
	Scheme  string // "git+https", "zip+file", "file", "http", "https", or "" for package names
	Host    string
	Path    string
	Ref     string // branch/tag/commit; defaults to "main" for git+ URIs
	Subpath string // from #subdirectory= fragment
}

// IsGit reports whether the URI names a git repository.
func (p ParsedURI) IsGit() bool {
	return p.Scheme == "git" || strings.HasPrefix(p.Scheme, "git+")
}

// IsFile reports whether the URI is a file:// URI or a local path.
func (p ParsedURI) IsFile() bool {
	return p.Scheme == "file" || (p.Scheme == "" && strings.Contains(p.Path, "/"))
}

// IsHTTP reports whether the URI is a plain http(s) URL (not zip+ or git+).
func (p ParsedURI) IsHTTP() bool {
	return p.Scheme == "http" || p.Scheme == "https"
}

// IsZip reports whether the URI names a zip archive.
func (p ParsedURI) IsZip() bool {
	return strings.HasPrefix(p.Scheme, "zip+")
}

// IsPackage reports whether the URI looks like a bare bundle/package name
// with no path separators.
func (p ParsedURI) IsPackage() bool {
	return p.Scheme == "" && !strings.Contains(p.Path, "/")
}

// ParseURI parses a bundle source URI into its components. Supports
// pip/uv-standard VCS/archive syntax with a #subdirectory= fragment:
//
//	git+https://github.com/org/repo@ref#subdirectory=path/inside
//	zip+https://example.com/bundle.zip#subdirectory=path/inside
//	zip+file:///local/archive.zip#subdirectory=path/inside
//	file:///path/to/file
//	/absolute/path
//	./relative/path
//	package-name
//	package/subpath
func ParseURI(uri string) ParsedURI {
	switch {
	case strings.HasPrefix(uri, "git+"):
		return parseVCSURI(uri, "git+")
	case strings.HasPrefix(uri, "zip+"):
		return parseVCSURI(uri, "zip+")
	case strings.HasPrefix(uri, "file://"):
		path, subpath := extractFragmentSubpath(uri[len("file://"):])
		return ParsedURI{Scheme: "file", Path: path, Subpath: subpath}
	case strings.HasPrefix(uri, "/"):
		return ParsedURI{Scheme: "file", Path: uri}
	case strings.HasPrefix(uri, "./") || strings.HasPrefix(uri, "../"):
		return ParsedURI{Scheme: "file", Path: uri}
	case strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://"):
		u, err := url.Parse(uri)
		if err != nil {
			return ParsedURI{Path: uri}
		}
		return ParsedURI{
			Scheme:  u.Scheme,
			Host:    u.Host,
			Path:    u.Path,
			Subpath: extractSubdirectoryFromFragment(u.Fragment),
		}
	}

	if idx := strings.Index(uri, "/"); idx >= 0 {
		return ParsedURI{Path: uri[:idx], Subpath: uri[idx+1:]}
	}
	return ParsedURI{Path: uri}
}

// extractSubdirectoryFromFragment extracts the subdirectory= value from a
// URL fragment, following #subdirectory=path/inside[&other=val].
func extractSubdirectoryFromFragment(fragment string) string {
	if fragment == "" {
		return ""
	}
	for _, part := range strings.Split(fragment, "&") {
		if strings.HasPrefix(part, "subdirectory=") {
			return strings.TrimPrefix(part, "subdirectory=")
		}
	}
	return ""
}

// extractFragmentSubpath splits a URI into a path and a #subdirectory=
// fragment value, if present.
func extractFragmentSubpath(uriWithFragment string) (path, subpath string) {
	if idx := strings.Index(uriWithFragment, "#"); idx >= 0 {
		return uriWithFragment[:idx], extractSubdirectoryFromFragment(uriWithFragment[idx+1:])
	}
	return uriWithFragment, ""
}

// parseVCSURI parses a git+ or zip+ prefixed URI. Only git+ URIs support
// @ref syntax (zip archives have no branches); an unspecified ref defaults
// to "main".
func parseVCSURI(uri, prefix string) ParsedURI {
	withoutPrefix := strings.TrimPrefix(uri, prefix)

	subpath := ""
	if idx := strings.Index(withoutPrefix, "#"); idx >= 0 {
		subpath = extractSubdirectoryFromFragment(withoutPrefix[idx+1:])
		withoutPrefix = withoutPrefix[:idx]
	}

	u, err := url.Parse(withoutPrefix)
	if err != nil {
		return ParsedURI{Scheme: prefix, Subpath: subpath}
	}

	path := u.Path
	ref := ""
	if prefix == "git+" {
		if m := gitPathPattern.FindStringSubmatch(path); m != nil {
			path = m[1]
			ref = m[2]
			if ref == "" {
				ref = "main"
			}
		}
	}

	return ParsedURI{
		Scheme:  prefix + u.Scheme,
		Host:    u.Host,
		Path:    path,
		Ref:     ref,
		Subpath: subpath,
	}
}
