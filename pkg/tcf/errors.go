package tcf

import "errors"

var (
	ErrInvalidMagic     = errors.New("tcf: invalid TCF magic")
	ErrUnsupportedMajor = errors.New("tcf: unsupported TCF major version")
	ErrUnsupportedMinor = errors.New("tcf: unsupported section version")
	ErrCorruptFile      = errors.New("tcf: corrupt TCF file")
)
