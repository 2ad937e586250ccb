//go:build !linux

package gpio

import "github.com/pkg/errors"

// RealChip is not available on non-Linux platforms.
type RealChip struct{}

// NewRealChip returns an error on non-Linux platforms.
func NewRealChip(name string) (*RealChip, error) {
	return nil, errors.Errorf("gpio: chip %s not supported on this platform (requires Linux)", name)
}

// Watch is not implemented on non-Linux platforms.
func (r *RealChip) Watch(line int, handler Handler) error {
	return errors.New("gpio: not supported")
}

// Read is not implemented on non-Linux platforms.
func (r *RealChip) Read(line int) (Value, error) {
	return Unknown, errors.New("gpio: not supported")
}

// Output is not implemented on non-Linux platforms.
func (r *RealChip) Output(line int) (Output, error) {
	return nil, errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (r *RealChip) Close() error {
	return nil
}
