package registry

import (
	"time"

	"github.com/webitel/rocrate-exporter/internal/model"
)

const (
	DeregisterCriticalServiceAfter = 30 * time.Second
	ServiceName                    = model.AppServiceName
	CheckInterval                  = 1 * time.Minute
)

// ServiceRegistrator interface for managing service registration.
type ServiceRegistrator interface {
	Register() error
	Deregister() error
}
