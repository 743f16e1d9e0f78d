package handler

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/campus-attendance-api/pkg/errors"
	"github.com/noah-isme/campus-attendance-api/pkg/response"
)

// indexBuildingMessage replaces store errors that report a missing composite index.
const indexBuildingMessage = "Database index is being created. Please wait a few minutes and try again."

// respondError renders err, rewording failures whose root cause is a missing index.
func respondError(c *gin.Context, err error) {
	if requiresIndex(err) {
		response.Error(c, appErrors.Clone(appErrors.FromError(err), indexBuildingMessage))
		return
	}
	response.Error(c, err)
}

func requiresIndex(err error) bool {
	root := err
	for root != nil {
		next := errors.Unwrap(root)
		if next == nil {
			break
		}
		root = next
	}
	return root != nil && strings.Contains(root.Error(), "requires an index")
}

func badPayload(c *gin.Context, err error) {
	response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload"))
}
