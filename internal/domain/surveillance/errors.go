package surveillance

import "errors"

var (
	ErrColumnNotFound     = errors.New("column not found")
	ErrRecordNotFound     = errors.New("record not found")
	ErrInvalidRequestBody = errors.New("invalid request body")
	ErrExhaustedIndexSet  = errors.New("provided indexes list is longer than the table")
	ErrDateNotFound       = errors.New("no blood test on or after the given date")
	ErrReferenceNotFound  = errors.New("referenced record not found")
)
