//go:build netlib

package cpu

import "gonum.org/v1/netlib/blas/netlib"

// The cgo netlib binding links against the system CBLAS (OpenBLAS, MKL, ...).
func init() {
	registerBLAS("netlib", 10, netlib.Implementation{})
}
