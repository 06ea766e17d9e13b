package process

import (
	"errors"
	"fmt"

	"github.com/shirou/gopsutil/v4/process"
)

// Tree returns pid and all of its descendants, deepest first.
// Processes that vanish while walking are skipped.
func Tree(pid int32) ([]TreeMember, error) {
	root, err := process.NewProcess(pid)
	if err != nil {
		return nil, fmt.Errorf("process not found: %w", err)
	}

	var members []TreeMember
	walk(root, &members, make(map[int32]bool))
	return members, nil
}

func walk(p *process.Process, out *[]TreeMember, seen map[int32]bool) {
	if seen[p.Pid] {
		return
	}
	seen[p.Pid] = true

	// Children reports an error when there are none
	children, _ := p.Children()
	for _, child := range children {
		walk(child, out, seen)
	}

	*out = append(*out, describe(p))
}

func describe(p *process.Process) TreeMember {
	name, _ := p.Name()
	cmdline, _ := p.Cmdline()
	return TreeMember{
		PID:     p.Pid,
		Name:    name,
		Cmdline: cmdline,
	}
}

// KillTree sends SIGKILL to pid and every descendant. The tree is captured
// before any signal is sent so reparented grandchildren are still reached.
func KillTree(pid int32) (*KillReport, error) {
	members, err := Tree(pid)
	if err != nil {
		return &KillReport{
			Root:    pid,
			Message: fmt.Sprintf("process %d not found", pid),
		}, err
	}

	report := &KillReport{Root: pid}
	var errs []error
	for _, m := range members {
		p, err := process.NewProcess(m.PID)
		if err != nil {
			// Already gone
			report.Killed = append(report.Killed, m)
			continue
		}
		if err := p.Kill(); err != nil {
			if alive, _ := process.PidExists(m.PID); !alive {
				report.Killed = append(report.Killed, m)
				continue
			}
			report.Failed = append(report.Failed, m)
			errs = append(errs, fmt.Errorf("kill %d (%s): %w", m.PID, m.Name, err))
			continue
		}
		report.Killed = append(report.Killed, m)
	}

	report.Message = fmt.Sprintf("killed %d of %d processes in tree %d", len(report.Killed), len(members), pid)
	return report, errors.Join(errs...)
}

// Alive reports whether pid exists and has not exited. Zombies count as exited.
func Alive(pid int32) bool {
	exists, err := process.PidExists(pid)
	if err != nil || !exists {
		return false
	}

	p, err := process.NewProcess(pid)
	if err != nil {
		return false
	}
	status, err := p.Status()
	if err != nil {
		return true
	}
	for _, s := range status {
		if s == process.Zombie {
			return false
		}
	}
	return true
}
