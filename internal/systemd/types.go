package systemd

// UnitStatus is the state systemd reports for a unit
type UnitStatus struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	LoadState   string `json:"load_state"`
	ActiveState string `json:"active_state"`
	SubState    string `json:"sub_state"`
	MainPID     uint32 `json:"main_pid,omitempty"`
	Memory      uint64 `json:"memory,omitempty"`
}

// Active reports whether the unit is running
func (u UnitStatus) Active() bool {
	return u.ActiveState == "active"
}
