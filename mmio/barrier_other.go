//go:build !tamago

package mmio

// dataSyncBarrier is a no-op off the bare-metal target: host test builds
// run single-threaded against the fake Bus in testboard, which needs no
// hardware memory ordering.
func dataSyncBarrier() {}
