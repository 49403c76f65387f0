package signal

import "github.com/AccelByte/extend-marketing-automation/pkg/service"

// isPermanent reports whether redelivering the event cannot help.
func isPermanent(err error) bool {
	return service.IsValidationError(err) || service.IsNotFound(err)
}
