package systemd

import (
	"context"
	"fmt"
	"strings"

	"github.com/coreos/go-systemd/v22/dbus"
)

// Reader looks up unit state over the systemd D-Bus API
type Reader struct{}

// NewReader creates a new systemd reader
func NewReader() *Reader {
	return &Reader{}
}

// UnitStatus returns the status of a single unit. A bare name gets the
// .service suffix.
func (r *Reader) UnitStatus(ctx context.Context, name string) (*UnitStatus, error) {
	unit := UnitName(name)

	conn, err := dbus.NewWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to systemd: %w", err)
	}
	defer conn.Close()

	props, err := conn.GetUnitPropertiesContext(ctx, unit)
	if err != nil {
		return nil, fmt.Errorf("failed to get unit properties for %s: %w", unit, err)
	}

	return statusFromProperties(unit, props), nil
}

// UnitName normalizes a service name to a systemd unit name
func UnitName(name string) string {
	if strings.Contains(name, ".") {
		return name
	}
	return name + ".service"
}

func statusFromProperties(unit string, props map[string]interface{}) *UnitStatus {
	status := &UnitStatus{Name: strings.TrimSuffix(unit, ".service")}

	if v, ok := props["Description"].(string); ok {
		status.Description = v
	}
	if v, ok := props["LoadState"].(string); ok {
		status.LoadState = v
	}
	if v, ok := props["ActiveState"].(string); ok {
		status.ActiveState = v
	}
	if v, ok := props["SubState"].(string); ok {
		status.SubState = v
	}
	if v, ok := props["MainPID"].(uint32); ok {
		status.MainPID = v
	}
	if v, ok := props["MemoryCurrent"].(uint64); ok && v != ^uint64(0) {
		status.Memory = v
	}

	return status
}
