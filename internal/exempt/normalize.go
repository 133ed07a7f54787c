package exempt

import "strings"

// defaultHost is assumed when the repository is given as a bare "org/repo".
const defaultHost = "github.com"

// NormalizeRepoURL collapses the accepted repository URL forms to one
// canonical SSH identity, so exemptions authored against any form match
// all equivalent forms:
//
//	https://github.com/org/repo.git
//	git@github.com:org/repo.git
//	org/repo
//
// all become "git@github.com:org/repo.git". Unrecognizable input is
// returned lowercased and trimmed, so comparison still behaves sanely.
func NormalizeRepoURL(raw string) string {
	s := strings.TrimSpace(strings.ToLower(raw))
	if s == "" {
		return ""
	}

	host := defaultHost
	var path string

	switch {
	case strings.HasPrefix(s, "git@"):
		// git@host:org/repo(.git)
		rest := strings.TrimPrefix(s, "git@")
		if h, p, ok := strings.Cut(rest, ":"); ok {
			host, path = h, p
		} else {
			path = rest
		}
	case strings.HasPrefix(s, "ssh://"):
		s = strings.TrimPrefix(s, "ssh://")
		s = strings.TrimPrefix(s, "git@")
		if h, p, ok := strings.Cut(s, "/"); ok {
			host, path = h, p
		} else {
			path = s
		}
	case strings.HasPrefix(s, "https://"), strings.HasPrefix(s, "http://"):
		s = strings.TrimPrefix(s, "https://")
		s = strings.TrimPrefix(s, "http://")
		if h, p, ok := strings.Cut(s, "/"); ok {
			host, path = h, p
		} else {
			path = s
		}
	default:
		// Bare "org/repo" or "host/org/repo".
		parts := strings.Split(s, "/")
		if len(parts) >= 3 && strings.Contains(parts[0], ".") {
			host = parts[0]
			path = strings.Join(parts[1:], "/")
		} else {
			path = s
		}
	}

	path = strings.TrimSuffix(strings.Trim(path, "/"), ".git")
	if path == "" {
		return ""
	}
	return "git@" + host + ":" + path + ".git"
}

// SameRepo reports whether two repository URLs denote the same repository
// after normalization.
func SameRepo(a, b string) bool {
	na, nb := NormalizeRepoURL(a), NormalizeRepoURL(b)
	return na != "" && na == nb
}
