package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"

	"dispatch/internal/domain"
)

// NewRelicErrors reports errors attached by handlers to the New Relic
// transaction started by nrgin. It must be registered after nrgin.Middleware.
func NewRelicErrors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		txn := nrgin.Transaction(c)
		if txn == nil {
			return
		}
		for _, err := range c.Errors {
			txn.NoticeError(err.Err)
		}
		if code, ok := c.Get(errorCodeKey); ok {
			txn.AddAttribute("dispatch.errorCode", code)
		}
	}
}

// errorCodeKey holds the symbolic error code of a failed request.
const errorCodeKey = "dispatch.errorCode"

// SetErrorCode records err's symbolic code on the request for logging and APM.
func SetErrorCode(c *gin.Context, err error) {
	c.Set(errorCodeKey, domain.Code(err))
}
