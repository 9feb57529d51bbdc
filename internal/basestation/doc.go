package basestation

// Package basestation watches a GNSS RTK base station through its RTCM3
// correction stream and keeps a live position snapshot.
//
// One goroutine polls the source (TCP or serial) once a second, accumulates
// whatever bytes arrived, and drains complete frames out of the buffer,
// resynchronizing a byte at a time across corruption. Station position
// messages (1005) update the snapshot; every other type is counted and
// dropped. Connection failures tear the source down and the next tick
// redials, forever.
