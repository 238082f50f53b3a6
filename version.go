package arbor

import _ "embed"

// Version is the release version of arbor.
//
//go:embed VERSION
var Version string
