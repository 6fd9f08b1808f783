// Package firmware implements the thin boundary services a boot loader or
// runtime environment gets for free on top of the core simulator: a
// boot-time page allocator carving frames out of a bus region, a
// UEFI-variable-flavored persistent key/value store, and a wall-clock
// service derived from the CLINT's mtime. None of this is part of the core
// memory/interrupt subsystem; it exists to give guest firmware somewhere to
// stand.
package firmware
