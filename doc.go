// Package flashfs mounts a log-structured flash filesystem on an emulated NOR
// flash device and exposes it through descriptors and byte streams.
//
// # Devices
//
// Storage is any blockdev.Device: an in-memory buffer, a backing file, a
// memory-mapped image or a fault-injecting wrapper. Writes follow NOR rules
// (stored = stored AND new) and erase resets whole erase blocks to 0xFF.
//
// # Mounting
//
//	dev, _ := blockdev.NewMemory(4<<20, 65536)
//	fs, err := flashfs.Mount(flashfs.DefaultGeometry(4<<20), dev)
//	if err != nil {
//	    return err
//	}
//	defer fs.Unmount()
//
// # Files
//
// The descriptor API mirrors the engine (OpenFile, Read, Write, Seek, Tell,
// Close). File wraps a descriptor as an io.ReadWriteSeeker:
//
//	err = fs.WithFile("hello", flashfs.ModeWrite, func(f *flashfs.File) error {
//	    _, err := f.WriteString("Hello World")
//	    return err
//	})
//
// # Errors
//
// Engine failures surface as *EngineError and match the exported sentinels
// with errors.Is:
//
//	if _, err := fs.Open("missing", flashfs.ModeRead); errors.Is(err, flashfs.ErrNotFound) {
//	    ...
//	}
//
// A failing device callback never reaches the engine as a Go error or panic;
// it becomes hal.StatusCallbackFailed and the *CallbackFailure is attached to
// the returned error.
package flashfs
