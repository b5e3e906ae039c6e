package site

import "errors"

// ErrOutsideOutput signals a request path that resolves outside the output directory.
var ErrOutsideOutput = errors.New("path escapes output directory")
