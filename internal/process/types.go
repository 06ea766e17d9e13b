package process

// TreeMember is one process found while walking a spawned command tree
type TreeMember struct {
	PID     int32  `json:"pid"`
	Name    string `json:"name"`
	Cmdline string `json:"cmdline"`
}

// KillReport describes the outcome of terminating a process tree
type KillReport struct {
	Root    int32        `json:"root"`
	Killed  []TreeMember `json:"killed"`
	Failed  []TreeMember `json:"failed,omitempty"`
	Message string       `json:"message"`
}
