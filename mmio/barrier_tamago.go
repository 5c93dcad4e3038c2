//go:build tamago

package mmio

// dataSyncBarrier is implemented in barrier_tamago_arm.s, it issues a DSB
// (Data Synchronization Barrier) instruction ensuring that all explicit
// memory accesses occurring in program order before the barrier complete
// before any access after it is observed by another bus master.
func dataSyncBarrier()
