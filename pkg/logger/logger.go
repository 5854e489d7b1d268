// Package logger provides the structured logger used throughout barrelkeep.
// New returns a *zap.SugaredLogger named after the component passed in;
// barrelkeep.Open builds one named "barrelkeep" and the engine hands that
// same logger to storage, recovery and compaction.
package logger

import "go.uber.org/zap"

// New builds a production zap logger named after component. It panics if
// zap's production config fails to build, which only happens if the
// process's stderr/stdout cannot be opened for writing — an environment
// problem, not a recoverable one.
func New(component string) *zap.SugaredLogger {
	base, err := zap.NewProduction()
	if err != nil {
		panic("logger: failed to build zap logger: " + err.Error())
	}
	return base.Named(component).Sugar()
}
