// Package blockdev emulates NOR flash.
//
// A flash device holds a fixed number of bytes split into erase units. The
// three primitives reproduce the physical behaviour of NOR flash:
//
//   - Erase sets every byte of whole erase units to 0xFF.
//   - Write can only clear bits: the stored byte becomes stored AND new.
//   - Read returns a copy of the stored bytes.
//
// Every operation validates its range before touching the medium, so a
// rejected request never leaves the device partially modified.
//
// # Backends
//
//   - [Memory]: a byte slice (the default test substrate)
//   - [File]: any io.ReaderAt/io.WriterAt, typically an *os.File
//   - [Mmap]: a shared writable mapping of an image file
//   - [Faulty]: wraps another device and injects errors or panics
//
// [Verify] runs the destructive self-test every backend must pass.
package blockdev
