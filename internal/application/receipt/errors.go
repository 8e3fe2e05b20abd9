package receipt

import "errors"

// ErrPDFDisabled is returned by PDF and Archive when no renderer or
// storage was configured
var ErrPDFDisabled = errors.New("receipt PDF output is disabled")
