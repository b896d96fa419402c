// Package mmap provides writable shared file mappings.
//
// The mmap block device keeps the whole flash image mapped and mutates it in
// place, so every AND-write and erase lands in the page cache of the backing
// file without an explicit read-modify-write syscall round trip.
//
// # Usage
//
//	m, err := mmap.OpenRW("flash.bin")
//	if err != nil { ... }
//	defer m.Close()
//
//	data := m.Bytes() // mutate in place
//	_ = m.Sync()      // flush to the file
//
// # Platform Support
//
// Unix platforms use mmap(2)/msync(2) via golang.org/x/sys/unix. Other
// platforms return ErrUnsupported from OpenRW.
//
// # Thread Safety
//
// Close is idempotent and protected by an atomic flag. Callers must not touch
// the slice returned by Bytes after Close returns.
package mmap
