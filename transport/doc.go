/*
Package transport provides websocket, rawsocket, and in-process connections
to a WAMP router.  Each transport implements the Conn interface, which moves
encoded messages as whole frames.  Encoding and decoding the frames is left to
the serialize package.

*/
package transport
