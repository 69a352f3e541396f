// Command ldo-simd is the host-side simulator harness: it stands in for
// the host process, the network fabric and the peer NICs so pkg/ldo's
// collective-worker state machine can be driven and observed without real
// DPA hardware.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := NewLDOSimd().Main(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
