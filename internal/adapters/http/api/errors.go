package api

import "errors"

// ErrBadRequest marks malformed input detected by the HTTP layer before the
// request reaches the engine.
var ErrBadRequest = errors.New("bad request")
