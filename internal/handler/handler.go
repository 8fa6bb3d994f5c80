package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"attention-engine/internal/model"
)

// accountParam is set by the account-validation middleware after the
// :account path segment has been checked against configuration.
const accountParam = "account_id"

// Account returns the validated account from the request context.
func Account(c *gin.Context) model.AccountID {
	return model.AccountID(c.GetString(accountParam))
}

// SetAccount is called by the middleware once validation passed.
func SetAccount(c *gin.Context, account model.AccountID) {
	c.Set(accountParam, account.String())
}

// writeServiceError maps service errors onto HTTP statuses. Anything
// unclassified is a 500 with a generic message; details stay in logs.
func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, model.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, model.ErrUnknownAccount):
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown account"})
	case errors.Is(err, model.ErrRunInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": "analysis already running"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
