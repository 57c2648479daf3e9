package market

import "errors"

// ErrDataUnavailable means the upstream payload was empty, malformed or
// carried an explicit error. It is the only condition that aborts a pipeline
// run; everything else degrades to a best-effort result.
var ErrDataUnavailable = errors.New("market data unavailable")
