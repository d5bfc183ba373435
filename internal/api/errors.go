// Package api holds what the bibliographic lookup clients share.
package api

import "errors"

// ErrNoResults is returned by a lookup client when the service has no match for a title
var ErrNoResults = errors.New("no results")
