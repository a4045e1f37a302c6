package importer

import (
	logx "github.com/ije/gox/log"
)

var log = &logx.Logger{}

// SetLogger sets the logger used for non-fatal warnings, in particular
// dependency transformations that fall back to their resolved URL.
func SetLogger(logger *logx.Logger) {
	log = logger
}
