package fat32

import (
	"encoding/binary"
	"fmt"
	"strings"
	"unicode/utf16"
)

// Directory entry attributes.
const (
	attrReadonly = 0x01
	attrHidden   = 0x02
	attrSystem   = 0x04
	attrVolumeID = 0x08
	attrDir      = 0x10
	attrArchive  = 0x20
	attrLFN      = 0x0f

	slotFree = 0xe5
	slotEnd  = 0x00
)

// rawent is one 32-byte directory slot plus where it lives on the device.
type rawent struct {
	off int64
	b   [direntSz]uint8
}

func (r *rawent) attr() uint8 {
	return r.b[11]
}

func (r *rawent) firstclus() uint32 {
	hi := uint32(binary.LittleEndian.Uint16(r.b[20:]))
	lo := uint32(binary.LittleEndian.Uint16(r.b[26:]))
	return hi<<16 | lo
}

func (r *rawent) size() uint32 {
	return binary.LittleEndian.Uint32(r.b[28:])
}

// shortname renders the 8.3 name field as a printable name.
func (r *rawent) shortname() string {
	base := strings.TrimRight(string(r.b[0:8]), " ")
	ext := strings.TrimRight(string(r.b[8:11]), " ")
	if ext == "" {
		return base
	}
	return base + "." + ext
}

// dirwalk visits every slot of a directory, in order, until fn returns
// false or the terminator slot is reached.
func (f *Fs_t) dirwalk(first uint32, fn func(r *rawent) (bool, error)) error {
	cb := f.clusBytes()
	buf := make([]uint8, cb)
	for c := first; c >= minClus && c < eocMin; {
		pos := f.clusPos(c)
		if err := f.readat(pos, buf); err != nil {
			return err
		}
		for i := 0; i+direntSz <= cb; i += direntSz {
			r := &rawent{off: pos + int64(i)}
			copy(r.b[:], buf[i:i+direntSz])
			if r.b[0] == slotEnd {
				return nil
			}
			cont, err := fn(r)
			if err != nil || !cont {
				return err
			}
		}
		next, err := f.readfat(c)
		if err != nil {
			return err
		}
		c = next
	}
	return nil
}

// lfnchars extracts the 13 UCS-2 characters of one LFN slot.
func lfnchars(b *[direntSz]uint8) []uint16 {
	var out []uint16
	idx := [...]int{1, 3, 5, 7, 9, 14, 16, 18, 20, 22, 24, 28, 30}
	for _, i := range idx {
		out = append(out, binary.LittleEndian.Uint16(b[i:]))
	}
	return out
}

func shortchksum(name11 []uint8) uint8 {
	var sum uint8
	for _, c := range name11 {
		sum = (sum >> 1) | (sum << 7)
		sum += c
	}
	return sum
}

// foundent is a fully decoded directory member.
type foundent struct {
	name    string
	short   *rawent
	lfnOffs []int64
}

// members decodes the real entries of a directory: long-name slots are
// stitched onto the short entry that follows them, volume labels are
// skipped.
func (f *Fs_t) members(first uint32) ([]foundent, error) {
	var out []foundent
	var pending []uint16
	var pendingOffs []int64
	err := f.dirwalk(first, func(r *rawent) (bool, error) {
		if r.b[0] == slotFree {
			pending, pendingOffs = nil, nil
			return true, nil
		}
		if r.attr() == attrLFN {
			// slots are stored last-part first
			pending = append(lfnchars(&r.b), pending...)
			pendingOffs = append(pendingOffs, r.off)
			return true, nil
		}
		if r.attr()&attrVolumeID != 0 {
			pending, pendingOffs = nil, nil
			return true, nil
		}
		name := ""
		if len(pending) != 0 {
			// trim the NUL terminator and 0xffff padding
			chars := pending
			for i, c := range chars {
				if c == 0 {
					chars = chars[:i]
					break
				}
			}
			name = string(utf16.Decode(chars))
		}
		if name == "" {
			name = r.shortname()
		}
		out = append(out, foundent{name: name, short: r, lfnOffs: pendingOffs})
		pending, pendingOffs = nil, nil
		return true, nil
	})
	return out, err
}

// lookup finds a member by name, case-insensitively, the way FAT matches.
func (f *Fs_t) lookup(dir *Entry_t, name string) (*foundent, error) {
	ms, err := f.members(dir.firstClus)
	if err != nil {
		return nil, err
	}
	for i := range ms {
		if strings.EqualFold(ms[i].name, name) {
			return &ms[i], nil
		}
	}
	return nil, nil
}

// mkshort derives an 8.3 name field for a long name, made unique among
// used with a ~N tail when needed.
func mkshort(name string, used map[string]bool) [11]uint8 {
	var out [11]uint8
	for i := range out {
		out[i] = ' '
	}
	sanitize := func(s string, n int) string {
		var b strings.Builder
		for _, r := range strings.ToUpper(s) {
			if b.Len() >= n {
				break
			}
			if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
				b.WriteRune(r)
			}
		}
		return b.String()
	}
	base, ext := name, ""
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		base, ext = name[:i], name[i+1:]
	}
	sbase := sanitize(base, 8)
	if sbase == "" {
		sbase = "X"
	}
	sext := sanitize(ext, 3)
	try := func(b string) [11]uint8 {
		var o [11]uint8
		for i := range o {
			o[i] = ' '
		}
		copy(o[0:8], b)
		copy(o[8:11], sext)
		return o
	}
	cand := try(sbase)
	for n := 1; used[string(cand[:])]; n++ {
		tail := fmt.Sprintf("~%d", n)
		keep := 8 - len(tail)
		if keep > len(sbase) {
			keep = len(sbase)
		}
		cand = try(sbase[:keep] + tail)
	}
	out = cand
	return out
}

// freerun finds n consecutive free slots in the directory, extending the
// chain with a fresh cluster when the existing slots run out. It returns
// the device offsets of the slots.
func (f *Fs_t) freerun(dir *Entry_t, n int) ([]int64, error) {
	cb := f.clusBytes()
	perclus := cb / direntSz
	var run []int64
	c := dir.firstClus
	buf := make([]uint8, cb)
	for {
		pos := f.clusPos(c)
		if err := f.readat(pos, buf); err != nil {
			return nil, err
		}
		for i := 0; i < perclus; i++ {
			b0 := buf[i*direntSz]
			if b0 == slotFree || b0 == slotEnd {
				run = append(run, pos+int64(i*direntSz))
				if len(run) == n {
					return run, nil
				}
			} else {
				run = run[:0]
			}
		}
		next, err := f.readfat(c)
		if err != nil {
			return nil, err
		}
		if next >= eocMin {
			nc, err := f.allocclus()
			if err != nil {
				return nil, err
			}
			if err := f.writefat(c, nc); err != nil {
				return nil, err
			}
			next = nc
		}
		c = next
	}
}

// addent writes the LFN slots plus the short entry for a new member and
// returns the short slot's offset.
func (f *Fs_t) addent(dir *Entry_t, name string, attr uint8, firstClus uint32) (int64, error) {
	ms, err := f.members(dir.firstClus)
	if err != nil {
		return 0, err
	}
	used := make(map[string]bool)
	for _, m := range ms {
		used[string(m.short.b[0:11])] = true
	}
	short := mkshort(name, used)
	chk := shortchksum(short[:])

	chars := utf16.Encode([]rune(name))
	chars = append(chars, 0)
	for len(chars)%13 != 0 {
		chars = append(chars, 0xffff)
	}
	nlfn := len(chars) / 13

	slots, err := f.freerun(dir, nlfn+1)
	if err != nil {
		return 0, err
	}
	// LFN slots first, last part leading with the terminal flag
	idx := [...]int{1, 3, 5, 7, 9, 14, 16, 18, 20, 22, 24, 28, 30}
	for s := 0; s < nlfn; s++ {
		part := nlfn - s // stored highest part first
		var b [direntSz]uint8
		b[0] = uint8(part)
		if s == 0 {
			b[0] |= 0x40
		}
		b[11] = attrLFN
		b[13] = chk
		seg := chars[(part-1)*13 : part*13]
		for i, c := range seg {
			binary.LittleEndian.PutUint16(b[idx[i]:], c)
		}
		if err := f.writeat(slots[s], b[:]); err != nil {
			return 0, err
		}
	}
	var b [direntSz]uint8
	copy(b[0:11], short[:])
	b[11] = attr
	binary.LittleEndian.PutUint16(b[20:], uint16(firstClus>>16))
	binary.LittleEndian.PutUint16(b[26:], uint16(firstClus))
	binary.LittleEndian.PutUint32(b[28:], 0)
	off := slots[nlfn]
	if err := f.writeat(off, b[:]); err != nil {
		return 0, err
	}
	return off, nil
}

// dotents writes the "." and ".." members of a fresh directory cluster.
func (f *Fs_t) dotents(c uint32, parent uint32) error {
	mk := func(name string, clus uint32) [direntSz]uint8 {
		var b [direntSz]uint8
		for i := 0; i < 11; i++ {
			b[i] = ' '
		}
		copy(b[0:], name)
		b[11] = attrDir
		binary.LittleEndian.PutUint16(b[20:], uint16(clus>>16))
		binary.LittleEndian.PutUint16(b[26:], uint16(clus))
		return b
	}
	pos := f.clusPos(c)
	dot := mk(".", c)
	if parent == f.rootClus {
		// the root is named by cluster 0 in dotdot entries
		parent = 0
	}
	dotdot := mk("..", parent)
	if err := f.writeat(pos, dot[:]); err != nil {
		return err
	}
	return f.writeat(pos+direntSz, dotdot[:])
}
