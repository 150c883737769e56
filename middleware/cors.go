package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORS applies the cross-origin policy for origins. Requests from an origin
// outside the list are still served, just without any Access-Control-* headers;
// the browser enforces the policy.
func CORS(origins, methods, headers []string) gin.HandlerFunc {
	policy := cors.New(cors.Config{
		AllowOrigins:              origins,
		AllowMethods:              methods,
		AllowHeaders:              headers,
		OptionsResponseStatusCode: http.StatusOK,
		MaxAge:                    12 * time.Hour,
	})

	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		if o == "*" {
			return policy
		}
		allowed[strings.ToLower(o)] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			c.Next()
			return
		}
		if _, ok := allowed[origin]; !ok {
			// gin-contrib/cors would abort these with 403
			c.Next()
			return
		}
		policy(c)
	}
}
