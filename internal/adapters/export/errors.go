package export

import "errors"

// ErrNoData is returned when there is nothing to draw.
var ErrNoData = errors.New("no data to export")
