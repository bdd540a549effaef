package blockfs

import "strings"

// Proc is the minimal process-context collaborator from spec.md §1: the
// caller's current working directory. Passed explicitly to path
// resolution instead of kept as package-global state, so multiple
// independent callers (tests, concurrent FUSE requests) can resolve
// paths relative to different working directories against the same
// mounted filesystem.
type Proc struct {
	Cwd *Inode
}

// skipelem strips a leading "/", copies the next "/"-delimited
// component (truncated to DIRSIZ, no NUL appended if it fills the
// field exactly) and skips any trailing "/"s, returning the remaining
// suffix. Returns ok=false when there is no more name (path was empty or
// all slashes).
//
// Examples (spec.md §4.6): "a/bb/c" -> ("bb/c", "a"); "///a//bb" ->
// ("bb", "a"); "a" -> ("", "a"); "" -> not ok; "////" -> not ok.
func skipelem(path string) (rest, name string, ok bool) {
	for len(path) > 0 && path[0] == '/' {
		path = path[1:]
	}
	if len(path) == 0 {
		return "", "", false
	}

	i := strings.IndexByte(path, '/')
	var elem string
	if i < 0 {
		elem = path
		path = ""
	} else {
		elem = path[:i]
		path = path[i:]
	}

	for len(path) > 0 && path[0] == '/' {
		path = path[1:]
	}

	if len(elem) > DIRSIZ {
		elem = elem[:DIRSIZ]
	}
	return path, elem, true
}

// namex resolves path to an inode, starting from the root if path begins
// with "/" or from pr.Cwd otherwise. If wantParent is true, resolution
// stops one component short: the returned inode is the parent directory
// of the final component, and *lastName receives that component's text.
// The caller must be inside a log transaction, because intermediate
// Iput calls may free inodes.
//
// Only one inode is held locked at a time during traversal — the next
// inode is fetched (referenced, not locked) via Dirlookup before the
// current one is unlocked-and-put — which is what prevents deadlock
// between two concurrent resolutions walking overlapping paths in
// different orders (spec.md §4.6's lock-order rationale).
func (ic *ICache) namex(pr *Proc, path string, wantParent bool, lastName *string) (*Inode, error) {
	var ip *Inode
	if strings.HasPrefix(path, "/") {
		ip = ic.Iget(ROOTDEV, ROOTINO)
	} else {
		ip = ic.Idup(pr.Cwd)
	}

	rest := path
	for {
		var name string
		var ok bool
		rest, name, ok = skipelem(rest)
		if !ok {
			break
		}

		ic.Ilock(ip)
		if ip.Type != TypeDir {
			ic.Iunlock(ip)
			ic.Iput(ip)
			return nil, ErrNotDirectory
		}

		if wantParent && rest == "" {
			// stop one component short: ip is the parent, name is the
			// final component.
			ic.Iunlock(ip)
			*lastName = name
			return ip, nil
		}

		next, _, err := ic.Dirlookup(ip, name)
		ic.Iunlock(ip)
		ic.Iput(ip)
		if err != nil {
			return nil, err
		}
		ip = next
	}

	if wantParent {
		// path resolved with nothing left over: there was no final
		// component to split off.
		ic.Iput(ip)
		return nil, ErrNotFound
	}
	return ip, nil
}

// Namei resolves path to its final inode (referenced, unlocked).
func (ic *ICache) Namei(pr *Proc, path string) (*Inode, error) {
	var discard string
	return ic.namex(pr, path, false, &discard)
}

// NameiParent resolves path to the parent of its final component
// (referenced, unlocked), writing that component's name to *name.
func (ic *ICache) NameiParent(pr *Proc, path string, name *string) (*Inode, error) {
	return ic.namex(pr, path, true, name)
}
