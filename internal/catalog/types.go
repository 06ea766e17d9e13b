package catalog

// Category groups commands by operational impact
type Category string

const (
	CategoryMonitoring  Category = "monitoring"
	CategoryMaintenance Category = "maintenance"
	CategoryExtended    Category = "extended"
)

// Command describes one dispatchable nodetool subcommand
type Command struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Category     Category `json:"category"`
	RequiresArgs bool     `json:"requires_args"`
	RequiredArgs []string `json:"required_args,omitempty"`
	OptionalArgs []string `json:"optional_args,omitempty"`
	Safe         bool     `json:"safe"`
}

// clone returns a copy that shares no slices with c
func (c Command) clone() Command {
	out := c
	if c.RequiredArgs != nil {
		out.RequiredArgs = append([]string(nil), c.RequiredArgs...)
	}
	if c.OptionalArgs != nil {
		out.OptionalArgs = append([]string(nil), c.OptionalArgs...)
	}
	return out
}
