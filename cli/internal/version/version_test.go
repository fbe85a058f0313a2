package version

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	info := Get()
	assert.Equal(t, Version, info.Version)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.True(t, strings.HasPrefix(info.String(), "restomatic "+Version))

	fields := info.Fields()
	assert.Len(t, fields, 5)
	assert.Equal(t, [2]string{"Version", Version}, fields[0])
}
