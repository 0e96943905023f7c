package auditlog

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShouldShowBanner(t *testing.T) {
	assert.False(t, ShouldShowBanner(true, true))
	assert.False(t, ShouldShowBanner(false, false))
	assert.True(t, ShouldShowBanner(true, false))
}

func TestPrintBannerCompactFormWithVersion(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf, "0.1.0", BannerOptions{ShowBanner: false, ShowVersion: true})
	assert.Contains(t, buf.String(), "sentry v0.1.0")
}

func TestPrintBannerFullFormIncludesVersionLine(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf, "0.1.0", DefaultBannerOptions())
	assert.Contains(t, buf.String(), "sentry v0.1.0 - Solana/Anchor static vulnerability audit engine")
}

func TestPrintBannerNilWriterNoPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		PrintBanner(nil, "0.1.0", DefaultBannerOptions())
	})
}
