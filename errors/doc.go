// Package errors provides structured error types for the stagekit engine.
//
// Every error carries a Phase (where in processing it occurred) and a Kind
// (what went wrong), so callers can match errors with errors.Is without
// parsing messages:
//
//	if errors.Is(err, &errors.Error{Phase: errors.PhaseExec, Kind: errors.KindUndeclaredVar}) {
//	    // a waitedReturned capture targeted an undeclared variable
//	}
//
// Use the convenience constructors for common cases and the Builder for
// anything richer.
package errors
