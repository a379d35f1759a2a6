// Package bpath canonicalizes file system paths.
package bpath

import "github.com/cxz888/Neuclear/ustr"

// Canonicalize resolves '.', '..', and repeated slashes in an absolute
// path. ".." at the root stays at the root. The result never ends in '/'
// except for the root itself.
func Canonicalize(p ustr.Ustr) ustr.Ustr {
	if !p.IsAbsolute() {
		panic("must be absolute")
	}
	comps := p.Split()
	kept := make([]ustr.Ustr, 0, len(comps))
	for _, c := range comps {
		if c.Isdot() {
			continue
		}
		if c.Isdotdot() {
			if len(kept) != 0 {
				kept = kept[:len(kept)-1]
			}
			continue
		}
		kept = append(kept, c)
	}
	ret := ustr.MkUstr()
	if len(kept) == 0 {
		return ustr.MkUstrRoot()
	}
	for _, c := range kept {
		ret = append(ret, '/')
		ret = append(ret, c...)
	}
	return ret
}

// Dirbase splits a path into its directory prefix and final component.
func Dirbase(p ustr.Ustr) (ustr.Ustr, ustr.Ustr) {
	comps := p.Split()
	if len(comps) == 0 {
		return ustr.MkUstrRoot(), ustr.MkUstr()
	}
	base := comps[len(comps)-1]
	dir := ustr.MkUstr()
	for _, c := range comps[:len(comps)-1] {
		dir = append(dir, '/')
		dir = append(dir, c...)
	}
	if len(dir) == 0 && p.IsAbsolute() {
		dir = ustr.MkUstrRoot()
	}
	return dir, base
}
