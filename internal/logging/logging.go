// Package logging provides the structured logger shared by the responder,
// querier and cmd/mdnsd, wrapping logrus the way the library sets a single
// package-level logger for its callers to configure.
package logging

import "github.com/sirupsen/logrus"

// Log is the shared logger. cmd/mdnsd sets its level from a command-line
// flag; library code below it only ever writes through Log, never
// constructs its own logger.
var Log = logrus.New()

func init() {
	Log.SetLevel(logrus.InfoLevel)
}
