// Package irq implements the interrupt attach protocol shared by the DMA
// engine, sound back ends and USB host controllers: register/unregister a
// handler per IRQ line, promote one line to FIQ, and acknowledge delivery.
//
// Grounded on arm/gic.go (GIC distributor/CPU-interface register layout)
// generalized from a one-shot initializer into a handler registry, in the
// style of Circle's CInterruptSystem::ConnectIRQ/DisconnectIRQ which the
// DMA and sound components (original_source/lib/dmachannel.cpp,
// lib/sound/pwmsoundbasedevice.cpp) call directly.
package irq

import (
	"fmt"
	"sync"
)

// Handler is invoked when its registered IRQ line fires. It runs at IRQ
// (or FIQ) level: no allocation, no blocking.
type Handler func()

// Controller owns the per-line handler table and tracks which line, if
// any, has been promoted to FIQ.
type Controller struct {
	mu       sync.Mutex
	handlers map[int]Handler
	fiqLine  int
	hasFIQ   bool

	// Ack is called by the hardware-facing layer's dispatch loop; it
	// acknowledges the line-specific status bit. Drivers never call it
	// directly -- Dispatch does, immediately before invoking the
	// handler, matching the GIC EOI-after-handler-lookup sequence.
	Ack func(line int)
}

// NewController returns an interrupt controller with no lines registered.
func NewController() *Controller {
	return &Controller{handlers: make(map[int]Handler)}
}

// Register attaches fn to irq, returning an error if the line already has
// a handler -- lines are a one-owner resource for the lifetime of the
// device that claims them (e.g. one DMA channel's completion IRQ).
func (c *Controller) Register(line int, fn Handler) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.handlers[line]; ok {
		return fmt.Errorf("irq: line %d already has a handler", line)
	}

	c.handlers[line] = fn
	return nil
}

// Unregister detaches the handler for irq, a no-op if none is attached.
func (c *Controller) Unregister(line int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.handlers, line)

	if c.hasFIQ && c.fiqLine == line {
		c.hasFIQ = false
	}
}

// PromoteFIQ elevates a single line to FIQ priority, preempting ordinary
// IRQ delivery. Only one line may be promoted at a time.
func (c *Controller) PromoteFIQ(line int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.hasFIQ && c.fiqLine != line {
		return fmt.Errorf("irq: FIQ already assigned to line %d", c.fiqLine)
	}

	c.fiqLine = line
	c.hasFIQ = true
	return nil
}

// Dispatch looks up and runs the handler for line, acknowledging the
// interrupt first if Ack is set. It is the entry point the exception
// vector table (an external collaborator per spec.md §1) calls on IRQ/FIQ
// entry.
func (c *Controller) Dispatch(line int) {
	c.mu.Lock()
	fn := c.handlers[line]
	ack := c.Ack
	c.mu.Unlock()

	if ack != nil {
		ack(line)
	}

	if fn != nil {
		fn()
	}
}

// IsFIQ reports whether line is the currently promoted FIQ line.
func (c *Controller) IsFIQ(line int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasFIQ && c.fiqLine == line
}
