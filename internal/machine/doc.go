/*
Package machine implements the tightly coupled core of the simulator: physical
memory, the system bus, an MMU with a TLB, an inclusive write-back cache
hierarchy, a CPU front-end, and the interrupt-capable devices (PLIC, CLINT,
UART, timer, DMA, ROM).

As with the machines that came before it, the design favors a direct mapping
from the hardware's own vocabulary over abstraction for its own sake: a
[Bus] routes addresses the way a real system bus does, a [CacheController]
evicts lines the way a real cache does, and a [CPU] looks an awful lot like
the data path diagram it was drawn from.

# Address spaces

Two address spaces exist: physical addresses ([PA]), the space the [Bus]
understands, and virtual addresses ([VA]), the space the [CPU] and guest code
use. The [MMU] translates one to the other.

# Memory types

Pages carry a memory type: normal (cacheable, routed through the cache
hierarchy), device (strictly ordered, bypasses the cache, implicitly
barriers the write-combining buffer), and write-combining (coalesced into a
buffer and flushed as a burst). See [CPU.Store] for the routing rules.

# Interrupts

[PLIC] aggregates external device lines by priority and per-context
enable/threshold; [CLINT] provides per-hart software and timer interrupts.
Both feed the CPU's machine-mode CSR block ([CSR]), which the CPU samples
and may act on between memory operations.
*/
package machine
