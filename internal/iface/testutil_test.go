package iface

import (
	"bytes"

	"github.com/oonf-go/godlep/internal/dlep"
)

// newTestWriter builds a dlep.Writer over a fresh, empty buffer, without
// the discovery prefix Interface primes its own outbound buffer with, for
// tests that only need the signal bytes without a full Interface.
func newTestWriter() (*dlep.Writer, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return dlep.NewWriter(buf, 0), buf
}
