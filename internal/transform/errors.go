package transform

import (
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/statline/internal/model"
)

// Sentinel causes carried by TransformError.
var (
	ErrUnknownFormat = eris.New("unknown raw format")
	ErrMissingColumn = eris.New("missing required column")
	ErrBadNumber     = eris.New("unparsable number")
)

// TransformError reports a batch that cannot be normalized. Row is the
// 1-based data row, or 0 when the problem is not tied to a row.
type TransformError struct {
	Season int
	Week   int
	Column string
	Row    int
	Err    error
}

func (e *TransformError) Error() string {
	unit := model.NewUnit(e.Season, e.Week)
	switch {
	case e.Column == "":
		return fmt.Sprintf("transform %s: %v", unit, e.Err)
	case e.Row == 0:
		return fmt.Sprintf("transform %s: column %q: %v", unit, e.Column, e.Err)
	default:
		return fmt.Sprintf("transform %s: column %q row %d: %v", unit, e.Column, e.Row, e.Err)
	}
}

func (e *TransformError) Unwrap() error {
	return e.Err
}
