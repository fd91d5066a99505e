package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	oldV, oldSHA, oldT := Version, GitSHA, BuildTime
	t.Cleanup(func() { Version, GitSHA, BuildTime = oldV, oldSHA, oldT })

	assert.Equal(t, "aotrack dev (unknown, built unknown)", String())

	Version, GitSHA, BuildTime = "v0.3.0", "abc1234", "2024-05-01T00:00:00Z"
	assert.Equal(t, "aotrack v0.3.0 (abc1234, built 2024-05-01T00:00:00Z)", String())
}
