package server

import (
	"context"
	stderrors "errors"

	"github.com/gin-gonic/gin"

	"github.com/balojey/tradewizard/errors"
	"github.com/balojey/tradewizard/observability"
	"github.com/balojey/tradewizard/resilience"
)

// Provider is the slice of a provider client the server needs for
// introspection and admin actions.
type Provider interface {
	Status() resilience.ClientStatus
	CheckHealth(ctx context.Context) observability.Health
	ResetCircuit()
	ClearCache()
}

// Deps collects everything the route handlers touch.
type Deps struct {
	// Registry is the shared rate limiter registry.
	Registry *resilience.Registry
	// Providers maps provider name to client, e.g. "marketdata".
	Providers map[string]Provider
	// Tokens validates admin bearer tokens.
	Tokens *TokenService
	// ServiceName and Version feed the health endpoint.
	ServiceName string
	Version     string
}

// RegisterRoutes wires the introspection and admin API onto the server.
func RegisterRoutes(s *Server, deps Deps) {
	engine := s.GinEngine()

	engine.GET("/healthz", handleHealth(deps))

	v1 := engine.Group("/v1")
	v1.GET("/buckets", handleBuckets(deps))
	v1.GET("/buckets/:name", handleBucket(deps))
	v1.GET("/circuit", handleCircuits(deps))
	v1.GET("/status", handleStatus(deps))

	admin := v1.Group("/admin", AdminAuth(deps.Tokens))
	admin.POST("/buckets/:name/reset", handleBucketReset(deps))
	admin.POST("/buckets/:name/reset-daily", handleDailyReset(deps))
	admin.POST("/circuit/:provider/reset", handleCircuitReset(deps))
	admin.POST("/cache/:provider/clear", handleCacheClear(deps))
}

func handleHealth(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		health := observability.NewServiceHealth(deps.ServiceName, deps.Version)
		for _, p := range deps.Providers {
			health.AddComponent(p.CheckHealth(c.Request.Context()))
		}
		status := 200
		if health.Status == observability.HealthStatusDown {
			status = 503
		}
		c.JSON(status, health)
	}
}

func handleBuckets(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		RespondOK(c, deps.Registry.AllBucketStatus())
	}
}

func handleBucket(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")
		status, err := deps.Registry.BucketStatus(name)
		if err != nil {
			respondBucketError(c, name, err)
			return
		}
		RespondOK(c, status)
	}
}

func handleCircuits(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		circuits := make(map[string]resilience.CircuitStats, len(deps.Providers))
		for name, p := range deps.Providers {
			circuits[name] = p.Status().Circuit
		}
		RespondOK(c, circuits)
	}
}

func handleStatus(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		statuses := make(map[string]resilience.ClientStatus, len(deps.Providers))
		for name, p := range deps.Providers {
			statuses[name] = p.Status()
		}
		RespondOK(c, statuses)
	}
}

func handleBucketReset(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")
		if err := deps.Registry.ResetBucket(name); err != nil {
			respondBucketError(c, name, err)
			return
		}
		RespondNoContent(c)
	}
}

func handleDailyReset(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")
		if err := deps.Registry.ResetDailyUsage(name); err != nil {
			respondBucketError(c, name, err)
			return
		}
		RespondNoContent(c)
	}
}

func handleCircuitReset(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := deps.Providers[c.Param("provider")]
		if !ok {
			RespondWithError(c, errors.Validation("unknown provider: "+c.Param("provider")))
			return
		}
		p.ResetCircuit()
		RespondNoContent(c)
	}
}

func handleCacheClear(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := deps.Providers[c.Param("provider")]
		if !ok {
			RespondWithError(c, errors.Validation("unknown provider: "+c.Param("provider")))
			return
		}
		p.ClearCache()
		RespondNoContent(c)
	}
}

func respondBucketError(c *gin.Context, name string, err error) {
	if stderrors.Is(err, resilience.ErrUnknownBucket) {
		RespondWithError(c, errors.UnknownBucket(name))
		return
	}
	RespondWithError(c, err)
}
