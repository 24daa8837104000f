package host

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const nobleRelease = `PRETTY_NAME="Ubuntu 24.04.1 LTS"
NAME="Ubuntu"
VERSION_ID="24.04"
VERSION="24.04.1 LTS (Noble Numbat)"
VERSION_CODENAME=noble
ID=ubuntu
ID_LIKE=debian
HOME_URL="https://www.ubuntu.com/"
UBUNTU_CODENAME=noble
`

func TestParseOSRelease(t *testing.T) {
	rel, err := ParseOSRelease(strings.NewReader(nobleRelease))
	require.NoError(t, err)

	assert.Equal(t, "ubuntu", rel.ID)
	assert.Equal(t, "Ubuntu", rel.Name)
	assert.Equal(t, "24.04", rel.VersionID)
	assert.Equal(t, "Ubuntu 24.04.1 LTS", rel.Pretty)
}

func TestReadOSRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "os-release")
	require.NoError(t, os.WriteFile(path, []byte("NAME=\"Debian GNU/Linux\"\nID=debian\nVERSION_ID=\"12\"\n"), 0644))

	rel, err := ReadOSRelease(path)
	require.NoError(t, err)
	assert.Equal(t, "debian", rel.ID)
	assert.Equal(t, "12", rel.VersionID)

	_, err = ReadOSRelease(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
