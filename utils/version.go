package utils

// Set at build time with -ldflags "-X github.com/ephysio/kwikstore/utils.Tag=...".
var (
	Tag        = "dev"
	GitHash    = "unknown"
	BuildStamp = "unknown"
)
