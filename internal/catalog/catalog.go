package catalog

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

// AllowedCommands is the fixed set of nodetool subcommands that may ever be
// registered. It is checked independently of what the catalog contains.
var AllowedCommands = map[string]bool{
	// Monitoring
	"status":   true,
	"ring":     true,
	"info":     true,
	"netstats": true,
	// Maintenance
	"repair":   true,
	"snapshot": true,
	"cleanup":  true,
	"compact":  true,
	// Extended
	"getsstables":             true,
	"getcompactionthroughput": true,
	"getconcurrentcompactors": true,
	// Read-only diagnostics that are not registered by default
	"version":         true,
	"describecluster": true,
	"tpstats":         true,
	"gossipinfo":      true,
}

// Catalog is a read-only table of dispatchable commands. It is safe for
// concurrent use because nothing mutates it after Build.
type Catalog struct {
	commands map[string]Command
	order    []string
}

// Builder collects commands before the catalog is frozen
type Builder struct {
	commands map[string]Command
	order    []string
}

// NewBuilder creates an empty builder
func NewBuilder() *Builder {
	return &Builder{
		commands: make(map[string]Command),
	}
}

// Register adds or replaces a command. Names outside AllowedCommands are rejected.
func (b *Builder) Register(cmd Command) error {
	if cmd.Name == "" {
		return fmt.Errorf("command name is required")
	}
	if !AllowedCommands[cmd.Name] {
		log.Warn().Str("component", "catalog").Str("command", cmd.Name).Msg("rejected registration of command outside allow-list")
		return fmt.Errorf("command '%s' is not in the safe commands list", cmd.Name)
	}

	if _, exists := b.commands[cmd.Name]; !exists {
		b.order = append(b.order, cmd.Name)
	}
	b.commands[cmd.Name] = cmd.clone()
	return nil
}

// Build freezes the registered commands into a Catalog. The builder can keep
// being used without affecting catalogs already built.
func (b *Builder) Build() *Catalog {
	c := &Catalog{
		commands: make(map[string]Command, len(b.commands)),
		order:    append([]string(nil), b.order...),
	}
	for name, cmd := range b.commands {
		c.commands[name] = cmd.clone()
	}
	return c
}

// Default returns the standard catalog of nodetool commands
func Default() *Catalog {
	b := NewBuilder()
	for _, cmd := range defaultCommands() {
		if err := b.Register(cmd); err != nil {
			// defaultCommands only lists allowed names
			panic(err)
		}
	}
	return b.Build()
}

func defaultCommands() []Command {
	return []Command{
		{Name: "status", Description: "Get cluster status and node information", Category: CategoryMonitoring, Safe: true},
		{Name: "ring", Description: "Get token ring information", Category: CategoryMonitoring, Safe: true},
		{Name: "info", Description: "Get node information", Category: CategoryMonitoring, Safe: true},
		{Name: "netstats", Description: "Get network statistics", Category: CategoryMonitoring, Safe: true},

		{Name: "repair", Description: "Repair one or more tables", Category: CategoryMaintenance, Safe: true,
			OptionalArgs: []string{"keyspace", "table"}},
		{Name: "snapshot", Description: "Take a snapshot of specified keyspaces", Category: CategoryMaintenance, Safe: true,
			OptionalArgs: []string{"tag", "keyspace"}},
		{Name: "cleanup", Description: "Cleanup keys no longer belonging to a node", Category: CategoryMaintenance, Safe: true,
			OptionalArgs: []string{"keyspace", "table"}},
		{Name: "compact", Description: "Force a major compaction", Category: CategoryMaintenance, Safe: true,
			OptionalArgs: []string{"keyspace", "table"}},

		{Name: "getsstables", Description: "Get SSTables for a given key", Category: CategoryExtended, Safe: true,
			RequiresArgs: true, RequiredArgs: []string{"keyspace", "table", "key"}},
		{Name: "getcompactionthroughput", Description: "Get compaction throughput in MB/s", Category: CategoryExtended, Safe: true},
		{Name: "getconcurrentcompactors", Description: "Get number of concurrent compactors", Category: CategoryExtended, Safe: true},
	}
}

// Lookup returns a command by name
func (c *Catalog) Lookup(name string) (Command, bool) {
	cmd, ok := c.commands[name]
	if !ok {
		return Command{}, false
	}
	return cmd.clone(), true
}

// Names returns command names in registration order
func (c *Catalog) Names() []string {
	return append([]string(nil), c.order...)
}

// List returns all commands in registration order
func (c *Catalog) List() []Command {
	cmds := make([]Command, 0, len(c.order))
	for _, name := range c.order {
		cmds = append(cmds, c.commands[name].clone())
	}
	return cmds
}

// IsSafe reports whether a command exists and is marked safe.
// Unknown commands are never safe.
func (c *Catalog) IsSafe(name string) bool {
	cmd, ok := c.commands[name]
	return ok && cmd.Safe
}

// Len returns the number of commands
func (c *Catalog) Len() int {
	return len(c.order)
}
