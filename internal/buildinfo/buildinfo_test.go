package buildinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRelease(t *testing.T) {
	origVersion, origCommit := Version, Commit
	t.Cleanup(func() { Version, Commit = origVersion, origCommit })

	tests := []struct {
		name    string
		version string
		commit  string
		want    string
	}{
		{"untagged", "", "abcdef0123", ""},
		{"version only", "v1.2.0", "", "airquality-linebot-go@v1.2.0"},
		{"version and commit", "v1.2.0", "abcdef0123", "airquality-linebot-go@v1.2.0+abcdef0"},
		{"short commit", "v1.2.0", "abc", "airquality-linebot-go@v1.2.0+abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Version, Commit = tt.version, tt.commit
			assert.Equal(t, tt.want, Release())
		})
	}
}
