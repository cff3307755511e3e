// Package log provides the leveled logging interface used by the
// orchestration engine and its collaborators.
//
// Two implementations are included: DefaultLogger on the standard library
// log package, and GologLogger wrapping github.com/kataras/golog for
// applications that already use golog. A package-level default logger is
// available through Debug/Info/Warn/Error for code that has no logger
// threaded through.
//
//	logger := log.NewGologLogger(golog.New())
//	logger.SetLevel(log.LogLevelDebug)
//	logger.Info("run %s started", runID)
package log
