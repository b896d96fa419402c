// Package fusefs exposes a mounted flashfs filesystem through FUSE.
//
// The filesystem is flat: the root directory lists every stored file. Files
// can be created, read, written, renamed and unlinked. All calls into the
// flashfs mount are serialised by one mutex.
//
//	fsys, _ := flashfs.Mount(geo, dev)
//	server, err := fusefs.Serve("/mnt/flash", fsys, fusefs.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	server.Wait()
package fusefs
