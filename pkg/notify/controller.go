package notify

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/telekom/leadform/pkg/apiresponses"
	"github.com/telekom/leadform/pkg/system"
)

// Response is returned by POST /api/notify.
type Response struct {
	Status       string `json:"status"`
	Personalized bool   `json:"personalized"`
}

// Controller exposes the notification service as POST /api/notify.
type Controller struct {
	service        *Service
	allowedOrigins []string
	log            *zap.SugaredLogger
}

func NewController(service *Service, allowedOrigins []string, log *zap.SugaredLogger) *Controller {
	return &Controller{service: service, allowedOrigins: allowedOrigins, log: log.Named("notify-controller")}
}

func (c *Controller) BasePath() string { return "notify" }

// Handlers restricts callers to the configured origins. With an empty allow-list no
// CORS headers are emitted and browsers on other origins are refused.
func (c *Controller) Handlers() []gin.HandlerFunc {
	if len(c.allowedOrigins) == 0 {
		return nil
	}
	return []gin.HandlerFunc{cors.New(CORSConfig(c.allowedOrigins))}
}

func (c *Controller) Register(rg *gin.RouterGroup) error {
	rg.POST("", c.handleNotify)
	// preflight is answered by the CORS middleware
	rg.OPTIONS("", func(ctx *gin.Context) { ctx.Status(http.StatusNoContent) })
	return nil
}

// CORSConfig builds a CORS policy for an explicit origin list.
func CORSConfig(origins []string) cors.Config {
	return cors.Config{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization", "X-Session-ID"},
		MaxAge:       12 * time.Hour,
	}
}

func (c *Controller) handleNotify(ctx *gin.Context) {
	log := system.GetReqLogger(ctx, c.log)

	var req Request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		log.Debugw("Rejected notification request", "error", err)
		apiresponses.RespondBadRequest(ctx, "name, email and industry are required")
		return
	}

	delivery, err := c.service.Notify(ctx.Request.Context(), req)
	if err != nil {
		log.Warnw("Notification failed", "error", err)
		apiresponses.RespondBadGateway(ctx, "confirmation email could not be sent")
		return
	}
	ctx.JSON(http.StatusOK, Response{Status: "sent", Personalized: delivery.Personalized})
}
