/*
Package app wires the taskgate components together.

App is the single composition root: it constructs the store provider,
repository, scheduler client, event queue, processor, expiration
listener, task service, and HTTP server in dependency order, and tears
them down in reverse. There are no package-level service handles; the
serve command builds one App, runs it until a signal arrives, and exits.

Construction is partial-failure safe: if any component fails to build,
everything already built is closed before the error is returned. An
unreachable store at startup is fatal, the process refuses to serve.
*/
package app
