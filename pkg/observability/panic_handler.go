package observability

import (
	"fmt"
	"runtime/debug"

	"github.com/sirupsen/logrus"
)

// RecoverPanic recovers from a panic and logs it with its stack. The panic
// is not re-raised.
//
//	go func() {
//	    defer observability.RecoverPanic(log, "watch loop")
//	    // ...
//	}()
func RecoverPanic(log logrus.FieldLogger, context string) {
	if r := recover(); r != nil {
		logPanic(log, context, r)
	}
}

// RecoverPanicAsError recovers from a panic and stores it in *errp, so a
// deferred call turns a panicking operation into an error return.
func RecoverPanicAsError(log logrus.FieldLogger, context string, errp *error) {
	if r := recover(); r != nil {
		logPanic(log, context, r)
		if errp != nil {
			*errp = fmt.Errorf("panic in %s: %v", context, r)
		}
	}
}

func logPanic(log logrus.FieldLogger, context string, r interface{}) {
	log.WithFields(logrus.Fields{
		"panic":   r,
		"stack":   string(debug.Stack()),
		"context": context,
	}).Error("PANIC recovered")
}
