package consul

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	consulapi "github.com/hashicorp/consul/api"

	conf "github.com/webitel/rocrate-exporter/config"
	"github.com/webitel/rocrate-exporter/internal/errors"
	"github.com/webitel/rocrate-exporter/internal/model"
	"github.com/webitel/rocrate-exporter/registry"
)

// agent is the part of the Consul agent API the registry uses.
type agent interface {
	ServiceRegister(service *consulapi.AgentServiceRegistration) error
	ServiceDeregister(serviceID string) error
	UpdateTTL(checkID, output, status string) error
}

type ConsulRegistry struct {
	registration *consulapi.AgentServiceRegistration
	agent        agent
	checkID      string
	interval     time.Duration

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewConsulRegistry creates a new Consul registry instance.
func NewConsulRegistry(config *conf.ConsulConfig) (*ConsulRegistry, error) {
	consulConfig := consulapi.DefaultConfig()
	consulConfig.Address = config.Address
	client, err := consulapi.NewClient(consulConfig)
	if err != nil {
		return nil, errors.Internal(
			err.Error(),
			errors.WithID("consul.registry.new_consul_registry.consulapi_creation.error"),
		)
	}
	return newRegistry(config, client.Agent())
}

func newRegistry(config *conf.ConsulConfig, a agent) (*ConsulRegistry, error) {
	if config.Id == "" {
		return nil, errors.Internal(
			"service id is empty! (set it by '-id' flag)",
			errors.WithID("consul.registry.new_consul.check_args.service_id"),
		)
	}
	ip, port, err := net.SplitHostPort(config.PublicAddress)
	if err != nil {
		return nil, errors.Internal(
			"unable to parse address",
			errors.WithID("consul.registry.new_consul.parse_address.error"),
			errors.WithCause(err),
		)
	}
	parsedPort, err := strconv.Atoi(port)
	if err != nil {
		return nil, errors.Internal(
			"unable to parse port",
			errors.WithID("consul.registry.new_consul.parse_port.error"),
			errors.WithCause(err),
		)
	}

	checkID := "service:" + config.Id
	return &ConsulRegistry{
		registration: &consulapi.AgentServiceRegistration{
			ID:      config.Id,
			Name:    registry.ServiceName,
			Port:    parsedPort,
			Address: ip,
			Tags:    []string{"http"},
			Meta:    map[string]string{"version": model.CurrentVersion},
			Check: &consulapi.AgentServiceCheck{
				CheckID:                        checkID,
				DeregisterCriticalServiceAfter: registry.DeregisterCriticalServiceAfter.String(),
				TTL:                            registry.CheckInterval.String(),
			},
		},
		agent:    a,
		checkID:  checkID,
		interval: registry.CheckInterval / 2,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Register registers the service with Consul and starts TTL check-ins.
func (c *ConsulRegistry) Register() error {
	if err := c.agent.ServiceRegister(c.registration); err != nil {
		return errors.Internal(
			err.Error(),
			errors.WithID("consul.registry.consul.register.error"),
		)
	}
	go c.runServiceCheck()
	return nil
}

func (c *ConsulRegistry) Deregister() error {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
	err := c.agent.ServiceDeregister(c.registration.ID)
	if err != nil {
		return errors.Internal(
			err.Error(),
			errors.WithID("consul.registry.consul.deregister.error"),
		)
	}
	slog.Info(fmtConsulLog("service was deregistered"))
	return nil
}

func (c *ConsulRegistry) doUpdateTTL() error {
	err := c.agent.UpdateTTL(c.checkID, "success", consulapi.HealthPassing)
	if err != nil {
		slog.Error("consul: failed to complete regular check-in", "error", fmtConsulLog(err.Error()))
		return err
	}
	return nil // [OK]
}

func (c *ConsulRegistry) runServiceCheck() {
	defer close(c.done)
	// register: now !
	if err := c.doUpdateTTL(); err == nil {
		slog.Info(fmtConsulLog("service was registered"))
	}
	defer slog.Info(fmtConsulLog("stopped service checker"))
	slog.Info(fmtConsulLog("started service checker"))
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			_ = c.doUpdateTTL() // regular: check-in
		}
	}
}

func fmtConsulLog(s string) string {
	return fmt.Sprintf("consul: %s", s)
}
