package public

import (
	handlershared "github.com/shkeeper-next/internal/http/handlers/shared"
	"github.com/shkeeper-next/internal/models"

	"github.com/gin-gonic/gin"
)

func merchantFromContext(c *gin.Context) (*models.Merchant, bool) {
	return handlershared.MerchantFromContext(c)
}
