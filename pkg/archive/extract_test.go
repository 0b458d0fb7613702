package archive

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
)

type member struct {
	name     string
	content  string
	mode     int64
	dir      bool
	linkname string
	hardTo   string
}

func buildTar(t *testing.T, members []member) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, m := range members {
		hdr := &tar.Header{Name: m.name, Mode: m.mode}
		switch {
		case m.dir:
			hdr.Typeflag = tar.TypeDir
		case m.linkname != "":
			hdr.Typeflag = tar.TypeSymlink
			hdr.Linkname = m.linkname
		case m.hardTo != "":
			hdr.Typeflag = tar.TypeLink
			hdr.Linkname = m.hardTo
		default:
			hdr.Typeflag = tar.TypeReg
			hdr.Size = int64(len(m.content))
		}
		require.NoError(t, tw.WriteHeader(hdr))
		if hdr.Typeflag == tar.TypeReg {
			_, err := io.WriteString(tw, m.content)
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())
	return buf.Bytes()
}

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	_, err := gw.Write(data)
	require.NoError(t, err)
	require.NoError(t, gw.Close())
	return buf.Bytes()
}

func xzBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	xw, err := xz.NewWriter(&buf)
	require.NoError(t, err)
	_, err = xw.Write(data)
	require.NoError(t, err)
	require.NoError(t, xw.Close())
	return buf.Bytes()
}

func zstdBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	_, err = zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

var sampleMembers = []member{
	{name: "usr", dir: true, mode: 0o755},
	{name: "usr/bin", dir: true, mode: 0o755},
	{name: "usr/bin/app", content: "binary", mode: 0o755},
	{name: "etc/app.conf", content: "k=v\n", mode: 0o644},
	{name: "usr/bin/app-link", linkname: "app", mode: 0o777},
}

func assertSampleTree(t *testing.T, dest string) {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dest, "usr/bin/app"))
	require.NoError(t, err)
	assert.Equal(t, "binary", string(data))

	fi, err := os.Stat(filepath.Join(dest, "usr/bin/app"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), fi.Mode().Perm())

	data, err = os.ReadFile(filepath.Join(dest, "etc/app.conf"))
	require.NoError(t, err)
	assert.Equal(t, "k=v\n", string(data))

	link, err := os.Readlink(
		filepath.Join(dest, "usr/bin/app-link"),
	)
	require.NoError(t, err)
	assert.Equal(t, "app", link)
}

func TestExtractGzip(t *testing.T) {
	raw := gzipBytes(t, buildTar(t, sampleMembers))
	dest := t.TempDir()

	n, err := Extract(
		context.Background(),
		bytes.NewReader(raw), "install.tar.gz", dest,
	)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assertSampleTree(t, dest)
}

func TestExtractXz(t *testing.T) {
	raw := xzBytes(t, buildTar(t, sampleMembers))
	dest := t.TempDir()

	n, err := Extract(
		context.Background(),
		bytes.NewReader(raw), "install.tar.xz", dest,
	)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assertSampleTree(t, dest)
}

func TestExtractZstd(t *testing.T) {
	raw := zstdBytes(t, buildTar(t, sampleMembers))
	dest := t.TempDir()

	n, err := Extract(
		context.Background(),
		bytes.NewReader(raw), "install.tar.zst", dest,
	)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assertSampleTree(t, dest)
}

func TestExtractPlainTar(t *testing.T) {
	raw := buildTar(t, sampleMembers)
	dest := t.TempDir()

	n, err := Extract(
		context.Background(),
		bytes.NewReader(raw), "install.tar", dest,
	)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestExtractRejectsTraversal(t *testing.T) {
	base := t.TempDir()
	dest := filepath.Join(base, "staging")
	require.NoError(t, os.Mkdir(dest, 0o755))

	raw := gzipBytes(t, buildTar(t, []member{
		{name: "ok.txt", content: "fine", mode: 0o644},
		{name: "../../etc/passwd", content: "evil", mode: 0o644},
	}))

	_, err := Extract(
		context.Background(),
		bytes.NewReader(raw), "install.tar.gz", dest,
	)
	var aerr *Error
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "../../etc/passwd", aerr.Member)

	// nothing escaped the staging root
	_, err = os.Stat(filepath.Join(base, "etc"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(base, "etc/passwd"))
	assert.True(t, os.IsNotExist(err))
}

func TestExtractRejectsAbsoluteMember(t *testing.T) {
	raw := gzipBytes(t, buildTar(t, []member{
		{name: "/etc/passwd", content: "evil", mode: 0o644},
	}))
	_, err := Extract(
		context.Background(),
		bytes.NewReader(raw), "install.tar.gz", t.TempDir(),
	)
	var aerr *Error
	assert.ErrorAs(t, err, &aerr)
}

func TestExtractCorruptStream(t *testing.T) {
	raw := gzipBytes(t, buildTar(t, sampleMembers))
	truncated := raw[:len(raw)/2]

	_, err := Extract(
		context.Background(),
		bytes.NewReader(truncated), "install.tar.gz",
		t.TempDir(),
	)
	var aerr *Error
	assert.ErrorAs(t, err, &aerr)
}

func TestExtractGarbageStream(t *testing.T) {
	_, err := Extract(
		context.Background(),
		bytes.NewReader([]byte("not a gzip stream")),
		"install.tar.gz", t.TempDir(),
	)
	var aerr *Error
	assert.ErrorAs(t, err, &aerr)
}

func TestExtractUnknownFormat(t *testing.T) {
	_, err := Extract(
		context.Background(),
		bytes.NewReader(nil), "install.tar.lz4", t.TempDir(),
	)
	var aerr *Error
	require.ErrorAs(t, err, &aerr)
	assert.Contains(t, aerr.Error(), "unrecognized")
}

func TestExtractRejectsWriteThroughSymlink(t *testing.T) {
	outside := t.TempDir()
	dest := t.TempDir()

	// a link to somewhere outside the staging root, then a
	// regular member routed through it
	raw := gzipBytes(t, buildTar(t, []member{
		{name: "evil", linkname: outside, mode: 0o777},
		{name: "evil/pwned.txt", content: "pwned", mode: 0o644},
	}))

	_, err := Extract(
		context.Background(),
		bytes.NewReader(raw), "install.tar.gz", dest,
	)
	var aerr *Error
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "evil/pwned.txt", aerr.Member)

	_, serr := os.Stat(filepath.Join(outside, "pwned.txt"))
	assert.True(t, os.IsNotExist(serr))
}

func TestExtractRejectsDeepWriteThroughSymlink(t *testing.T) {
	outside := t.TempDir()
	dest := t.TempDir()

	raw := gzipBytes(t, buildTar(t, []member{
		{name: "usr", dir: true, mode: 0o755},
		{name: "usr/lib", linkname: outside, mode: 0o777},
		{name: "usr/lib/deep/pwned.so", content: "pwned", mode: 0o644},
	}))

	_, err := Extract(
		context.Background(),
		bytes.NewReader(raw), "install.tar.gz", dest,
	)
	var aerr *Error
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "usr/lib/deep/pwned.so", aerr.Member)

	entries, rerr := os.ReadDir(outside)
	require.NoError(t, rerr)
	assert.Empty(t, entries)
}

func TestExtractRejectsFileOverSymlink(t *testing.T) {
	outside := t.TempDir()
	victim := filepath.Join(outside, "victim.conf")
	require.NoError(t, os.WriteFile(
		victim, []byte("original"), 0o644,
	))

	// same member name twice: first a link to the victim file,
	// then regular content that would truncate it
	raw := gzipBytes(t, buildTar(t, []member{
		{name: "cfg", linkname: victim, mode: 0o777},
		{name: "cfg", content: "clobbered", mode: 0o644},
	}))

	_, err := Extract(
		context.Background(),
		bytes.NewReader(raw), "install.tar.gz", t.TempDir(),
	)
	var aerr *Error
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "cfg", aerr.Member)

	data, rerr := os.ReadFile(victim)
	require.NoError(t, rerr)
	assert.Equal(t, "original", string(data))
}

func TestExtractHardlink(t *testing.T) {
	dest := t.TempDir()
	raw := gzipBytes(t, buildTar(t, []member{
		{name: "usr/bin/app", content: "binary", mode: 0o755},
		{name: "usr/bin/app-alias", hardTo: "usr/bin/app"},
	}))

	n, err := Extract(
		context.Background(),
		bytes.NewReader(raw), "install.tar.gz", dest,
	)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	data, err := os.ReadFile(
		filepath.Join(dest, "usr/bin/app-alias"),
	)
	require.NoError(t, err)
	assert.Equal(t, "binary", string(data))
}

func TestExtractRejectsEscapingHardlink(t *testing.T) {
	raw := gzipBytes(t, buildTar(t, []member{
		{name: "passwd-copy", hardTo: "../../etc/passwd"},
	}))
	_, err := Extract(
		context.Background(),
		bytes.NewReader(raw), "install.tar.gz", t.TempDir(),
	)
	var aerr *Error
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "passwd-copy", aerr.Member)
}

func TestExtractRejectsHardlinkThroughSymlink(t *testing.T) {
	outside := t.TempDir()
	raw := gzipBytes(t, buildTar(t, []member{
		{name: "out", linkname: outside, mode: 0o777},
		{name: "stolen", hardTo: "out/secret"},
	}))
	_, err := Extract(
		context.Background(),
		bytes.NewReader(raw), "install.tar.gz", t.TempDir(),
	)
	var aerr *Error
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "stolen", aerr.Member)
}

func TestExtractCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	raw := gzipBytes(t, buildTar(t, sampleMembers))
	dest := t.TempDir()
	_, err := Extract(
		ctx, bytes.NewReader(raw), "install.tar.gz", dest,
	)
	assert.ErrorIs(t, err, context.Canceled)

	entries, rerr := os.ReadDir(dest)
	require.NoError(t, rerr)
	assert.Empty(t, entries)
}
