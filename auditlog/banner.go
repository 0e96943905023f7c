package auditlog

import (
	"fmt"
	"io"

	"github.com/common-nighthawk/go-figure"
)

// BannerOptions configures the startup banner.
type BannerOptions struct {
	ShowBanner  bool
	ShowVersion bool
}

// DefaultBannerOptions returns the default banner configuration.
func DefaultBannerOptions() BannerOptions {
	return BannerOptions{ShowBanner: true, ShowVersion: true}
}

// PrintBanner writes the tool's startup banner to w.
func PrintBanner(w io.Writer, version string, opts BannerOptions) {
	if w == nil {
		return
	}

	if !opts.ShowBanner {
		if opts.ShowVersion {
			fmt.Fprintf(w, "sentry v%s\n", version)
		}
		fmt.Fprintln(w)
		return
	}

	fig := figure.NewFigure("sentry", "standard", true)
	fmt.Fprintln(w, fig.String())
	if opts.ShowVersion {
		fmt.Fprintf(w, "sentry v%s - Solana/Anchor static vulnerability audit engine\n", version)
	}
	fmt.Fprintln(w)
}

// ShouldShowBanner reports whether the full banner should render: never
// when --no-banner is set, only when stdout/stderr is a TTY otherwise.
func ShouldShowBanner(isTTY bool, noBannerFlag bool) bool {
	if noBannerFlag {
		return false
	}
	return isTTY
}
