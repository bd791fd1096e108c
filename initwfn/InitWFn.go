// Package initwfn implements functionality to wrap Gorgonia InitWFn
// so that they can be named in configuration files.
package initwfn

import (
	"fmt"

	G "gorgonia.org/gorgonia"
)

// Type describes different types of InitWFn that are available
type Type string

// Available InitWFn types
const (
	GlorotU  Type = "GlorotU"
	GlorotN  Type = "GlorotN"
	Zeroes   Type = "Zeroes"
	Ones     Type = "Ones"
	Constant Type = "Constant"
)

// InitWFn wraps a Gorgonia InitWFn together with the name and gain it
// was constructed from, so that weight initialization schemes can be
// selected from configuration values.
type InitWFn struct {
	Type
	Gain    float64
	initWFn G.InitWFn
}

// New returns a new InitWFn of the named type. The gain parameter is
// the Glorot gain for the Glorot initializers and the constant value
// for the Constant initializer; it is ignored otherwise.
func New(t Type, gain float64) (*InitWFn, error) {
	w := &InitWFn{Type: t, Gain: gain}
	switch t {
	case GlorotU:
		w.initWFn = G.GlorotU(gain)
	case GlorotN:
		w.initWFn = G.GlorotN(gain)
	case Zeroes:
		w.initWFn = G.Zeroes()
	case Ones:
		w.initWFn = G.Ones()
	case Constant:
		w.initWFn = G.ValuesOf(gain)
	default:
		return nil, fmt.Errorf("new: illegal InitWFn type %q", t)
	}
	return w, nil
}

// NewGlorotU returns a new Glorot Uniform weight initializer
func NewGlorotU(gain float64) (*InitWFn, error) {
	return New(GlorotU, gain)
}

// NewGlorotN returns a new Glorot Normal weight initializer
func NewGlorotN(gain float64) (*InitWFn, error) {
	return New(GlorotN, gain)
}

// NewZeroes returns a new zeroes weight initializer
func NewZeroes() (*InitWFn, error) {
	return New(Zeroes, 0)
}

// NewConstant returns a weight initializer that sets all weights to a
// constant value
func NewConstant(value float64) (*InitWFn, error) {
	return New(Constant, value)
}

// InitWFn returns the wrapped Gorgonia InitWFn
func (w *InitWFn) InitWFn() G.InitWFn {
	return w.initWFn
}

// String implements the fmt.Stringer interface
func (w *InitWFn) String() string {
	return fmt.Sprintf("{%v InitWFn: %v}", w.Type, w.Gain)
}
