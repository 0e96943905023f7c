package auditerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIngestErrorUnwrapsToSentinel(t *testing.T) {
	cause := errors.New("permission denied")
	err := NewIngestError("/repos/vault", "unreadable file", cause)
	assert.True(t, errors.Is(err, ErrIngest))
	assert.Contains(t, err.Error(), "/repos/vault")
	assert.Contains(t, err.Error(), "permission denied")
}

func TestParseWarningFormatsWithAndWithoutLine(t *testing.T) {
	withLine := NewParseWarning("lib.rs", 12, "unexpected token", nil)
	assert.Contains(t, withLine.Error(), "lib.rs:12")

	noLine := NewParseWarning("lib.rs", 0, "unexpected token", nil)
	assert.NotContains(t, noLine.Error(), ":0")
	assert.True(t, errors.Is(noLine, ErrParseWarning))
}

func TestGraphInvariantViolationUnwraps(t *testing.T) {
	err := NewGraphInvariantViolation("dangling_sink", "vault::withdraw::sink0", "references unknown instruction")
	assert.True(t, errors.Is(err, ErrGraphInvariant))
	assert.Contains(t, err.Error(), "dangling_sink")
}

func TestDetectorErrorUnwraps(t *testing.T) {
	cause := errors.New("regex panic")
	err := NewDetectorError("oracle_validation", cause)
	assert.True(t, errors.Is(err, ErrDetector))
	assert.Contains(t, err.Error(), "oracle_validation")
}

func TestScorerConfigErrorUnwraps(t *testing.T) {
	err := NewScorerConfigError("fix-missing-signer", "expected findings file not found")
	assert.True(t, errors.Is(err, ErrScorerConfig))
	assert.Contains(t, err.Error(), "fix-missing-signer")
}
