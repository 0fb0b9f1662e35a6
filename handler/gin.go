package handler

import (
	"io"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/gin-gonic/gin"
)

// NewRouter serves every /api route through Handle so local runs behave like
// the Lambda deployment.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.Any("/api/*path", h.Gin)
	return r
}

// Gin converts the gin request into an API Gateway proxy event and writes the
// proxy response back.
func (h *Handler) Gin(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "INVALID_INPUT", Message: "Unreadable request body."})
		return
	}

	event := events.APIGatewayProxyRequest{
		HTTPMethod:            c.Request.Method,
		Path:                  c.Request.URL.Path,
		Headers:               make(map[string]string, len(c.Request.Header)),
		QueryStringParameters: make(map[string]string),
		Body:                  string(body),
	}
	for k, v := range c.Request.Header {
		if len(v) > 0 {
			event.Headers[k] = v[0]
		}
	}
	for k, v := range c.Request.URL.Query() {
		if len(v) > 0 {
			event.QueryStringParameters[k] = v[0]
		}
	}

	resp, err := h.Handle(c.Request.Context(), event)
	if err != nil {
		h.logger.Error("handler returned error", "err", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "INTERNAL_ERROR"})
		return
	}
	for k, v := range resp.Headers {
		c.Header(k, v)
	}
	c.Data(resp.StatusCode, resp.Headers["Content-Type"], []byte(resp.Body))
}
