/*
Package stub implements a local stand-in for the external scheduler.

It serves the same two endpoints taskgate calls (POST /task, POST /cancel)
and always accepts well-formed requests, which makes it enough to exercise
the full task lifecycle on a laptop without the real scheduler. Accepted
submissions are persisted in a small BoltDB file so they survive restarts,
and GET /tasks exposes them for inspection.
*/
package stub
