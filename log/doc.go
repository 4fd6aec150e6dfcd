// Package log provides a simple, leveled logging interface for sheetflow.
//
// It ships two implementations: DefaultLogger on top of Go's standard log
// package, and GologLogger wrapping github.com/kataras/golog for users who
// want golog's formatting. A package-level default logger lets agents and
// pipelines log without threading logger objects through every call:
//
//	log.SetLogLevel(log.LogLevelDebug)
//	log.Info("processing %s", path)
//
// All implementations are safe for concurrent use.
package log
