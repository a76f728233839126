package bios

import (
	"errors"

	"github.com/ezrec/prosur/translate"
)

var f = translate.From

var (
	// Firmware load errors
	ErrSize  = errors.New(f("firmware size invalid"))
	ErrShort = errors.New(f("firmware read short"))
)

// ErrLoad records the firmware file that failed to load.
type ErrLoad struct {
	Path string
	Err  error
}

func (err *ErrLoad) Error() string {
	return f("%v: %v", err.Path, err.Err)
}

func (err *ErrLoad) Unwrap() error {
	return err.Err
}
