/*
Package stdlog provides a minimal logging interface for the transports, so
that they can log through nearly any logging implementation.  A zap logger is
adapted to it with zap.NewStdLog.

*/
package stdlog

// StdLog is a minimal interface implemented by nearly every logging package,
// including the standard library log.Logger.
type StdLog interface {
	// Print logs a message.  Arguments are handled in the manner of fmt.Print.
	Print(v ...interface{})

	// Println logs a message.  Arguments are handled in the manner of
	// fmt.Println.
	Println(v ...interface{})

	// Printf logs a message.  Arguments are handled in the manner of
	// fmt.Printf.
	Printf(format string, v ...interface{})
}
