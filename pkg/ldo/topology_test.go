package ldo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHostCmdBufAddrFor(t *testing.T) {
	topo := &Topology{HostCmdBufAddr: 0x1000}
	assert.Equal(t, uint64(0x1000), topo.HostCmdBufAddrFor(0))
	assert.Equal(t, uint64(0x1040), topo.HostCmdBufAddrFor(0x40))
}
