// Package engine is a small log-structured flash filesystem in the style of
// SPIFFS. It reaches the flash exclusively through hal.Callbacks and reports
// every result as an int32 or hal.Status, the way a native engine would.
//
// Layout: the area is split into logical blocks, each into pages. Every page
// starts with an 8-byte header:
//
//	[0]   flags  (active low: bit0 used, bit1 final, bit7 deleted)
//	[1]   type   (1 object header, 2 data)
//	[2:4] object id
//	[4:6] span index
//	[6:8] payload length
//
// An object is one header page carrying its name plus one data page per span.
// Pages are never rewritten in place: an update writes a new page and clears
// the deleted bit of the old one. Garbage collection relocates the live pages
// of the block with the most deleted pages and erases it. One block is always
// kept free for that purpose.
package engine
