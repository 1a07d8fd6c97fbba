package rfq

import "strings"

// JoinWorkdirPath joins a working directory root and an item's relative path
// using the root's separator convention throughout, so mixed separators in
// either input are normalized. A root that mixes separators, or has none, is
// treated as Windows style when it has a drive letter or UNC prefix.
func JoinWorkdirPath(root string, rel string) string {
	root = strings.TrimSpace(root)
	rel = strings.TrimSpace(rel)

	sep := rootSeparator(root)
	other := "/"
	if sep == "/" {
		other = "\\"
	}

	prefix := ""
	if sep == "\\" && strings.HasPrefix(root, `\\`) {
		prefix = `\\`
		root = strings.TrimLeft(root, `\/`)
	} else if sep == "/" && strings.HasPrefix(root, "/") {
		prefix = "/"
	}

	parts := make([]string, 0, 16)
	for _, raw := range []string{root, rel} {
		for _, seg := range strings.Split(strings.ReplaceAll(raw, other, sep), sep) {
			if seg == "" || seg == "." {
				continue
			}
			parts = append(parts, seg)
		}
	}

	return prefix + strings.Join(parts, sep)
}

// rootSeparator picks the separator the root itself uses. Only a root that
// mixes both, or has none, falls back to drive letter and UNC detection.
func rootSeparator(root string) string {
	hasSlash := strings.Contains(root, "/")
	hasBackslash := strings.Contains(root, "\\")
	switch {
	case hasSlash && !hasBackslash:
		return "/"
	case hasBackslash && !hasSlash:
		return "\\"
	}
	if strings.HasPrefix(root, `\\`) || (len(root) >= 2 && root[1] == ':') {
		return "\\"
	}
	if hasBackslash && strings.Index(root, "\\") < strings.Index(root, "/") {
		return "\\"
	}
	return "/"
}
