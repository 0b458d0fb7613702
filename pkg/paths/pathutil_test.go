package paths

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateRelPath(t *testing.T) {
	assert.NoError(t, ValidateRelPath("usr/bin/app"))
	assert.NoError(t, ValidateRelPath("a.txt"))
	assert.NoError(t, ValidateRelPath("deep/nested/path/file.so"))
	assert.NoError(t, ValidateRelPath("file with spaces.conf"))
	assert.NoError(t, ValidateRelPath("日本語.txt"))

	assert.Error(t, ValidateRelPath(""))
	assert.Error(t, ValidateRelPath("/etc/passwd"))
	assert.Error(t, ValidateRelPath("../escape"))
	assert.Error(t, ValidateRelPath("usr/../../etc/passwd"))
	assert.Error(t, ValidateRelPath("usr\x00bin"))
	assert.Error(t, ValidateRelPath("."))
	assert.Error(t, ValidateRelPath("./"))
}

func TestValidateRelPathTraversalVariants(t *testing.T) {
	cases := []string{
		"../",
		"usr/../../../etc/shadow",
		"a/b/c/../../../../tmp/x",
		"..",
	}
	for _, c := range cases {
		assert.Error(t, ValidateRelPath(c), "should reject: %q", c)
	}
}

func TestCleanRelPath(t *testing.T) {
	assert.Equal(t, "usr/bin", CleanRelPath("./usr/bin"))
	assert.Equal(t, "usr/bin", CleanRelPath("usr//bin"))
	assert.Equal(t, "usr/bin", CleanRelPath("usr/./bin"))
	assert.Equal(t, "usr", CleanRelPath("usr/bin/.."))
}

func TestIsWithinDir(t *testing.T) {
	assert.True(t, IsWithinDir("/srv/root", "/srv/root/usr"))
	assert.True(t, IsWithinDir("/srv/root/", "/srv/root/usr"))
	assert.True(t, IsWithinDir("/srv/root", "/srv/root"))

	assert.False(t, IsWithinDir("/srv/root", "/srv/other"))
	assert.False(t, IsWithinDir("/srv/root", "/etc/passwd"))
	assert.False(t, IsWithinDir("/srv/root", "/srv/rootX/usr"))
	assert.False(t, IsWithinDir("/tmp/a", "/tmp/ab/c"))
}

func TestPrefixes(t *testing.T) {
	assert.Nil(t, Prefixes("app"))
	assert.Equal(t, []string{"usr"}, Prefixes("usr/app"))
	assert.Equal(t,
		[]string{"usr", "usr/lib", "usr/lib/pkg"},
		Prefixes("usr/lib/pkg/app.so"),
	)
}
