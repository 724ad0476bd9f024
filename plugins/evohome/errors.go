package evohome

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoLocation is returned when status is requested before an installation
// was selected.
var ErrNoLocation = errors.New("evohome location not selected")

// NetworkError wraps a transport failure talking to the vendor.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("evohome %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

type HTTPStatusError struct {
	Status int
	Body   string
}

func (e HTTPStatusError) Error() string {
	return fmt.Sprintf("evohome api error %d: %s", e.Status, strings.TrimSpace(e.Body))
}

// DataShapeError reports a vendor response that does not have the expected
// structure.
type DataShapeError struct {
	What   string
	Reason string
	Err    error
}

func (e *DataShapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("evohome %s: %s: %v", e.What, e.Reason, e.Err)
	}
	return fmt.Sprintf("evohome %s: %s", e.What, e.Reason)
}

func (e *DataShapeError) Unwrap() error {
	return e.Err
}
