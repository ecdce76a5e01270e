package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// readHeaderTimeout bounds slow-header clients.
const readHeaderTimeout = 10 * time.Second

// NewServer wraps the router in an http.Server with sane timeouts.
func NewServer(addr string, router *gin.Engine) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}
