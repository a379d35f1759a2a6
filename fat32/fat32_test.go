package fat32

import (
	"bytes"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

// memdev is a growable in-memory ReadWriteSeeker standing in for the
// disk stream.
type memdev struct {
	buf []uint8
	pos int64
}

func (m *memdev) Read(p []uint8) (int, error) {
	if m.pos >= int64(len(m.buf)) {
		return 0, io.EOF
	}
	n := copy(p, m.buf[m.pos:])
	m.pos += int64(n)
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (m *memdev) Write(p []uint8) (int, error) {
	need := m.pos + int64(len(p))
	for int64(len(m.buf)) < need {
		m.buf = append(m.buf, 0)
	}
	n := copy(m.buf[m.pos:], p)
	m.pos += int64(n)
	return n, nil
}

func (m *memdev) Seek(off int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		m.pos = off
	case io.SeekCurrent:
		m.pos += off
	case io.SeekEnd:
		m.pos = int64(len(m.buf)) + off
	}
	return m.pos, nil
}

func mkvol(t *testing.T) (*Fs_t, *memdev) {
	dev := &memdev{}
	require.NoError(t, Format(dev, 4096))
	f, err := Mount(dev)
	require.NoError(t, err)
	return f, dev
}

func TestFormatMount(t *testing.T) {
	f, _ := mkvol(t)
	root := f.Root()
	require.True(t, root.Isdir())
	names, err := root.Ls()
	require.NoError(t, err)
	require.Empty(t, names)
}

func TestCreateWriteRead(t *testing.T) {
	f, dev := mkvol(t)
	root := f.Root()
	ent, err := root.Createfile("hello.txt")
	require.NoError(t, err)
	msg := []uint8("hello, fat32")
	n, err := ent.Write(msg)
	require.NoError(t, err)
	require.Equal(t, len(msg), n)
	require.EqualValues(t, len(msg), ent.Size())

	// a fresh handle reads it back
	ent2, err := root.Find("hello.txt")
	require.NoError(t, err)
	require.NotNil(t, ent2)
	require.True(t, ent2.Isfile())
	got, err := ent2.Readall()
	require.NoError(t, err)
	require.Equal(t, msg, got)

	// and so does a fresh mount of the same device
	f2, err := Mount(dev)
	require.NoError(t, err)
	ent3, err := f2.Root().Find("HELLO.TXT")
	require.NoError(t, err)
	require.NotNil(t, ent3)
	got, err = ent3.Readall()
	require.NoError(t, err)
	require.Equal(t, msg, got)
}

func TestLongNames(t *testing.T) {
	f, _ := mkvol(t)
	root := f.Root()
	name := "a rather long file name with spaces.bin"
	_, err := root.Createfile(name)
	require.NoError(t, err)
	names, err := root.Ls()
	require.NoError(t, err)
	require.Equal(t, []string{name}, names)
	ent, err := root.Find(name)
	require.NoError(t, err)
	require.NotNil(t, ent)
}

func TestMultiClusterFile(t *testing.T) {
	f, _ := mkvol(t)
	root := f.Root()
	ent, err := root.Createfile("big")
	require.NoError(t, err)
	big := bytes.Repeat([]uint8{0xab}, 3*512+37)
	for i := range big {
		big[i] = uint8(i * 7)
	}
	_, err = ent.Write(big)
	require.NoError(t, err)

	ent2, err := root.Find("big")
	require.NoError(t, err)
	got, err := ent2.Readall()
	require.NoError(t, err)
	require.Equal(t, big, got)

	// partial reads advance the cursor
	ent3, err := root.Find("big")
	require.NoError(t, err)
	part := make([]uint8, 600)
	n, err := ent3.Read(part)
	require.NoError(t, err)
	require.Equal(t, 600, n)
	require.Equal(t, big[:600], part)
	n, err = ent3.Read(part)
	require.NoError(t, err)
	require.Equal(t, 600, n)
	require.Equal(t, big[600:1200], part)
}

func TestSubdirs(t *testing.T) {
	f, _ := mkvol(t)
	root := f.Root()
	sub, err := root.Createdir("sub")
	require.NoError(t, err)
	require.True(t, sub.Isdir())
	_, err = sub.Createfile("inner")
	require.NoError(t, err)

	got, err := root.Find("sub")
	require.NoError(t, err)
	inner, err := got.Find("inner")
	require.NoError(t, err)
	require.NotNil(t, inner)

	// dot entries stay hidden from listings
	names, err := got.Ls()
	require.NoError(t, err)
	require.Equal(t, []string{"inner"}, names)
}

func TestRemove(t *testing.T) {
	f, _ := mkvol(t)
	root := f.Root()
	ent, err := root.Createfile("doomed")
	require.NoError(t, err)
	_, err = ent.Write(bytes.Repeat([]uint8{1}, 2000))
	require.NoError(t, err)
	require.NoError(t, root.Remove("doomed"))
	got, err := root.Find("doomed")
	require.NoError(t, err)
	require.Nil(t, got)

	// non-empty directories refuse removal
	sub, err := root.Createdir("d")
	require.NoError(t, err)
	_, err = sub.Createfile("x")
	require.NoError(t, err)
	require.Error(t, root.Remove("d"))
	require.NoError(t, sub.Remove("x"))
	require.NoError(t, root.Remove("d"))
}

func TestTruncate(t *testing.T) {
	f, _ := mkvol(t)
	root := f.Root()
	ent, err := root.Createfile("t")
	require.NoError(t, err)
	_, err = ent.Write(bytes.Repeat([]uint8{9}, 1500))
	require.NoError(t, err)
	require.NoError(t, ent.Clear())
	require.EqualValues(t, 0, ent.Size())
	got, err := ent.Readall()
	require.NoError(t, err)
	require.Empty(t, got)

	// the clusters were returned: many create/clear cycles fit
	for i := 0; i < 20; i++ {
		_, err = ent.Write(bytes.Repeat([]uint8{uint8(i)}, 1024))
		require.NoError(t, err)
		require.NoError(t, ent.Clear())
	}
}

func TestCreateExistingOpens(t *testing.T) {
	f, _ := mkvol(t)
	root := f.Root()
	a, err := root.Createfile("same")
	require.NoError(t, err)
	_, err = a.Write([]uint8("data"))
	require.NoError(t, err)
	b, err := root.Createfile("same")
	require.NoError(t, err)
	require.EqualValues(t, 4, b.Size())
	names, err := root.Ls()
	require.NoError(t, err)
	require.Len(t, names, 1)
}

func TestManyFiles(t *testing.T) {
	f, _ := mkvol(t)
	root := f.Root()
	// enough entries to spill the root directory past one cluster
	for i := 0; i < 40; i++ {
		_, err := root.Createfile(fmt.Sprintf("file-number-%02d.dat", i))
		require.NoError(t, err)
	}
	names, err := root.Ls()
	require.NoError(t, err)
	require.Len(t, names, 40)
	ent, err := root.Find("file-number-33.dat")
	require.NoError(t, err)
	require.NotNil(t, ent)
}
