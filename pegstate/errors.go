package pegstate

import (
	"errors"
	"fmt"

	logger "github.com/sirupsen/logrus"
)

var (
	ErrUnknownKind = errors.New("unknown peg state kind")
)

// InvariantViolation means the ledger diverged from what the events allow.
// It is raised with panic and never returned: carrying on could mint twice or
// lose track of funds.
type InvariantViolation struct {
	Reason string
}

func (v *InvariantViolation) Error() string {
	return "peg state invariant violated: " + v.Reason
}

func violate(format string, args ...interface{}) {
	reason := fmt.Sprintf(format, args...)
	logger.WithField("reason", reason).Error("invariant violation")
	panic(&InvariantViolation{Reason: reason})
}
