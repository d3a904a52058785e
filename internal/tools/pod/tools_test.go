package pod

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistrations(t *testing.T) {
	var names []string
	for _, r := range Registrations() {
		names = append(names, r.Tool.Name)
		assert.NotNil(t, r.Handler)
		assert.NotEmpty(t, r.Tool.Description)
	}
	assert.Equal(t, []string{ToolList, ToolGet, ToolLogs, ToolExec}, names)
}
