package version

import "fmt"

var (
	// Set via -ldflags at build time.
	version   = "dev"
	gitCommit = "unknown"
)

type Version struct {
	Version   string `json:"version,omitempty"`
	GitCommit string `json:"gitCommit,omitempty"`
}

func Get() Version {
	return Version{
		Version:   version,
		GitCommit: gitCommit,
	}
}

func (v Version) String() string {
	return fmt.Sprintf("%s (%s)", v.Version, v.GitCommit)
}
