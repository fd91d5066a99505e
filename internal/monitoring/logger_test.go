package monitoring

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func capture(t *testing.T) *[]string {
	t.Helper()
	original := Logf
	t.Cleanup(func() { Logf = original })

	var lines []string
	SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})
	return &lines
}

func TestSetLogger(t *testing.T) {
	lines := capture(t)
	Logf("evicted %d", 2)
	assert.Equal(t, []string{"evicted 2"}, *lines)

	SetLogger(nil)
	assert.NotPanics(t, func() { Logf("dropped %s", "line") })
	assert.Len(t, *lines, 1)
}

func TestScoped(t *testing.T) {
	log := Scoped("session sweeper")
	lines := capture(t)

	log("evicted %d idle session(s)", 3)
	assert.Equal(t, []string{"session sweeper: evicted 3 idle session(s)"}, *lines)

	SetLogger(nil)
	log("muted")
	assert.Len(t, *lines, 1)
}
