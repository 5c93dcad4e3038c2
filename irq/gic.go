package irq

import "github.com/bcm2835go/bcm2835go/mmio"

// GIC register offsets and fields, adapted from arm/gic.go (Cortex-A7
// MPCore Generic Interrupt Controller support in the teacher repository).
const (
	gicdOffset = 0x1000
	giccOffset = 0x2000

	gicdCtlr            = 0x000
	gicdCtlrEnableGrp1   = 1
	gicdCtlrEnableGrp0   = 0
	gicdTyper            = 0x004
	gicdTyperITLinesMask = 0x1f
	gicdIGroupR          = 0x080
	gicdICEnableR        = 0x180
	gicdICPendR          = 0x280

	giccCtlr        = 0x000
	giccCtlrFIQEn   = 3
	giccCtlrGrp1    = 1
	giccCtlrGrp0    = 0
	giccPMR         = 0x004
	giccPMRDefault  = 0x80
)

// InitGIC brings up the distributor and CPU interface at base: masks and
// clears every external interrupt line, assigns all lines to the
// Non-Secure group, opens the priority mask to the Non-Secure half of the
// range, and enables both interrupt groups plus FIQ bypass.
func InitGIC(bus mmio.Bus, base uint32) {
	gicd := base + gicdOffset
	gicc := base + giccOffset

	itLines := (bus.Read32(gicd+gicdTyper) & gicdTyperITLinesMask) + 1

	for i := uint32(0); i < itLines; i++ {
		bus.Write32(gicd+gicdICEnableR+4*i, 0xffffffff)
		bus.Write32(gicd+gicdICPendR+4*i, 0xffffffff)
		bus.Write32(gicd+gicdIGroupR+4*i, 0xffffffff)
	}

	bus.Write32(gicc+giccPMR, giccPMRDefault)
	bus.Write32(gicc+giccCtlr, 1<<giccCtlrGrp1|1<<giccCtlrGrp0|1<<giccCtlrFIQEn)
	bus.Write32(gicd+gicdCtlr, bus.Read32(gicd+gicdCtlr)|1<<gicdCtlrEnableGrp1)
	bus.Write32(gicd+gicdCtlr, bus.Read32(gicd+gicdCtlr)|1<<gicdCtlrEnableGrp0)
}
