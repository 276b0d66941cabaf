package remote

import "errors"

// ErrNotFound indicates the requested document does not exist in the
// remote store.
var ErrNotFound = errors.New("remote: document not found")
