package fse

import "errors"

var (
	ErrEmptyInput       = errors.New("fse: empty symbol stream")
	ErrTooManySymbols   = errors.New("fse: alphabet size exceeds maximum")
	ErrCentroidMismatch = errors.New("fse: centroid count does not match alphabet size")
	ErrSymbolRange      = errors.New("fse: symbol outside alphabet range")
	ErrZeroTotal        = errors.New("fse: total symbol count is zero")
	ErrTableCorrupt     = errors.New("fse: inconsistent coding table")
	ErrCapacity         = errors.New("fse: output exceeds destination capacity")
)
