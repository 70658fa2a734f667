package steps

import (
	"github.com/aws/smithy-go"
	"github.com/pkg/errors"
)

// isNotFound reports whether an AWS call failed because its target
// does not exist, which compensations treat as already undone.
func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "NoSuchEntity", "NoSuchKey", "NotFound":
		return true
	}
	return false
}

func isAlreadyExists(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "EntityAlreadyExists"
}
