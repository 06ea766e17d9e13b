package parser

// Node is one row of `nodetool status`
type Node struct {
	Address    string `json:"address"`
	Status     string `json:"status"` // U or D
	State      string `json:"state"`  // N, L, J or M
	Load       string `json:"load"`
	Tokens     string `json:"tokens"`
	Owns       string `json:"owns"`
	HostID     string `json:"host_id"`
	Datacenter string `json:"datacenter,omitempty"`
	Rack       string `json:"rack,omitempty"`
}

// StatusReport is the parsed form of `nodetool status`
type StatusReport struct {
	Nodes      []Node `json:"nodes"`
	TotalNodes int    `json:"total_nodes"`
}

// Up counts nodes reporting U
func (r StatusReport) Up() int {
	return r.count("U")
}

// Down counts nodes reporting D
func (r StatusReport) Down() int {
	return r.count("D")
}

func (r StatusReport) count(status string) int {
	n := 0
	for _, node := range r.Nodes {
		if node.Status == status {
			n++
		}
	}
	return n
}

// RingEntry is one token line of `nodetool ring`
type RingEntry struct {
	Address string `json:"address"`
	Rack    string `json:"rack"`
	Status  string `json:"status"`
	State   string `json:"state"`
	Load    string `json:"load"`
	Owns    string `json:"owns"`
	Token   string `json:"token"`
}

// RingReport is the parsed form of `nodetool ring`
type RingReport struct {
	Tokens      []RingEntry `json:"tokens"`
	TotalTokens int         `json:"total_tokens"`
}
