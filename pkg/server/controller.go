package server

import (
	"net/http"

	"github.com/animalet/sargantana-discovery/pkg/bootstrap"
	"github.com/animalet/sargantana-discovery/pkg/discovery"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type statusController struct {
	bootstrap *bootstrap.Context
}

func newStatusController(bc *bootstrap.Context) *statusController {
	return &statusController{bootstrap: bc}
}

func (s *statusController) bind(engine *gin.Engine) {
	engine.GET("/health", s.health)
	engine.GET("/discovery/services", s.services)
	engine.GET("/discovery/services/:id/instances", s.instances)
	engine.GET("/vault/endpoint", s.vaultEndpoint)
}

func (s *statusController) discoveryClient() discovery.Client {
	if s.bootstrap == nil {
		return nil
	}
	return s.bootstrap.Discovery()
}

func (s *statusController) health(c *gin.Context) {
	body := gin.H{"status": "UP"}
	if client := s.discoveryClient(); client != nil {
		body["discovery"] = client.Description()
	}
	c.JSON(http.StatusOK, body)
}

func (s *statusController) services(c *gin.Context) {
	client := s.discoveryClient()
	if client == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no discovery client configured"})
		return
	}
	services, err := client.GetServices(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list services")
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"services": services})
}

func (s *statusController) instances(c *gin.Context) {
	client := s.discoveryClient()
	if client == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no discovery client configured"})
		return
	}
	serviceID := c.Param("id")
	instances, err := client.GetInstances(c.Request.Context(), serviceID)
	if err != nil {
		log.Error().Err(err).Str("service_id", serviceID).Msg("Failed to list instances")
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	if len(instances) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no instances of " + serviceID})
		return
	}
	c.JSON(http.StatusOK, gin.H{"service_id": serviceID, "instances": instances})
}

func (s *statusController) vaultEndpoint(c *gin.Context) {
	if s.bootstrap == nil || s.bootstrap.EndpointProvider() == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "vault is not configured"})
		return
	}
	endpoint, err := s.bootstrap.EndpointProvider().VaultEndpoint(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to resolve Vault endpoint")
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"endpoint": endpoint.String()})
}
