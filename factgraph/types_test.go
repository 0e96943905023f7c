package factgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeverityAtLeast(t *testing.T) {
	assert.True(t, SeverityCritical.AtLeast(SeverityHigh))
	assert.True(t, SeverityCritical.AtLeast(SeverityCritical))
	assert.False(t, SeverityLow.AtLeast(SeverityHigh))
	assert.True(t, SeverityHigh.AtLeast(SeverityLow))
}

func TestSeverityAtLeastUnknown(t *testing.T) {
	assert.False(t, Severity("bogus").AtLeast(SeverityHigh))
}
