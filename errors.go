package mdsci

import (
	"errors"

	"github.com/scivant/go-mdsci/internal/bib"
	"github.com/scivant/go-mdsci/internal/render"
)

// Sentinel errors for library operations.
var (
	ErrNoBibliography = errors.New("citations present but no bibliography configured")

	// Pipeline sentinels re-exported so callers can match them with
	// errors.Is without reaching into internal packages.
	ErrToolchainMissing = render.ErrToolchainMissing
	ErrUnsupportedMode  = render.ErrUnsupportedMode
	ErrRenderFailed     = render.ErrRenderFailed
	ErrConversionFailed = render.ErrConversion
	ErrRenderTimeout    = render.ErrTimeout
	ErrDuplicateBibKey  = bib.ErrDuplicateKey
	ErrBibParse         = bib.ErrParse
)
