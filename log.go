package connpool

import "github.com/sirupsen/logrus"

// log is the package-level logger for pool events and leak diagnostics.
var log = logrus.New()

// SetLogger replaces the logger used by this package.
// Passing nil leaves the current logger in place.
func SetLogger(l *logrus.Logger) {
	if l != nil {
		log = l
	}
}
