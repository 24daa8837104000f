package host

import (
	"fmt"
	"io"
	"os"

	"github.com/subosito/gotenv"
)

// OSReleasePath is the standard location of the host identity file.
const OSReleasePath = "/etc/os-release"

// OSRelease is the subset of os-release(5) the checks care about.
type OSRelease struct {
	ID        string
	Name      string
	VersionID string
	Pretty    string
}

// ParseOSRelease parses os-release(5) content, which uses shell variable
// assignment syntax.
func ParseOSRelease(r io.Reader) (OSRelease, error) {
	env, err := gotenv.StrictParse(r)
	if err != nil {
		return OSRelease{}, fmt.Errorf("failed to parse os-release: %w", err)
	}
	return OSRelease{
		ID:        env["ID"],
		Name:      env["NAME"],
		VersionID: env["VERSION_ID"],
		Pretty:    env["PRETTY_NAME"],
	}, nil
}

// ReadOSRelease parses the os-release file at path.
func ReadOSRelease(path string) (OSRelease, error) {
	f, err := os.Open(path)
	if err != nil {
		return OSRelease{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return ParseOSRelease(f)
}
