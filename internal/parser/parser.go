package parser

import "strings"

// Parse converts stdout of a known command into structured data. Commands
// without a dedicated parser get their trimmed output under "output".
func Parse(command, stdout string) any {
	switch command {
	case "status":
		return ParseStatus(stdout)
	case "ring":
		return ParseRing(stdout)
	case "info":
		return ParseInfo(stdout)
	case "netstats":
		return ParseNetstats(stdout)
	default:
		return map[string]string{"output": strings.TrimSpace(stdout)}
	}
}

// Supported reports whether command has a dedicated parser
func Supported(command string) bool {
	switch command {
	case "status", "ring", "info", "netstats":
		return true
	}
	return false
}

// ParseStatus extracts node rows. "Datacenter:" lines set the datacenter for
// following rows; anything that is not a node row is ignored.
func ParseStatus(text string) StatusReport {
	report := StatusReport{Nodes: []Node{}}
	datacenter := ""

	for _, line := range lines(text) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "Datacenter:") {
			datacenter = strings.TrimSpace(strings.TrimPrefix(line, "Datacenter:"))
			continue
		}

		switch line[0] {
		case 'U', 'D', 'N':
		default:
			continue
		}

		parts := strings.Fields(line)
		if len(parts) < 6 {
			continue
		}

		node := Node{
			Status:     parts[0][:1],
			Address:    parts[1],
			Load:       parts[2],
			Tokens:     parts[3],
			Owns:       parts[4],
			HostID:     parts[5],
			Datacenter: datacenter,
		}
		if len(parts[0]) > 1 {
			node.State = parts[0][1:2]
		}
		if len(parts) > 6 {
			node.Rack = parts[len(parts)-1]
		}
		report.Nodes = append(report.Nodes, node)
	}

	report.TotalNodes = len(report.Nodes)
	return report
}

// ParseRing extracts token lines, skipping blanks, datacenter and header lines
func ParseRing(text string) RingReport {
	report := RingReport{Tokens: []RingEntry{}}

	for _, line := range lines(text) {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "Datacenter:") || strings.HasPrefix(line, "Address") {
			continue
		}

		parts := strings.Fields(line)
		if len(parts) < 6 {
			continue
		}

		entry := RingEntry{
			Address: parts[0],
			Rack:    parts[1],
			Status:  parts[2],
			State:   parts[3],
			Load:    parts[4],
			Owns:    parts[5],
		}
		if len(parts) > 6 {
			entry.Token = parts[6]
		}
		report.Tokens = append(report.Tokens, entry)
	}

	report.TotalTokens = len(report.Tokens)
	return report
}

// ParseInfo splits every "key : value" line on its first colon. Later
// duplicates win; a line with nothing before the colon lands under "".
func ParseInfo(text string) map[string]string {
	info := make(map[string]string)

	for _, line := range lines(text) {
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		info[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}

	return info
}

// ParseNetstats groups output into sections. An unindented line opens a
// section; following indented or blank lines are its body.
func ParseNetstats(text string) map[string]string {
	sections := make(map[string]string)

	current := ""
	var body []string
	flush := func() {
		if current != "" {
			sections[current] = strings.Join(body, "\n")
		}
	}

	for _, line := range lines(strings.TrimSpace(text)) {
		if line != "" && !isIndented(line) {
			flush()
			current = strings.TrimSpace(line)
			body = nil
			continue
		}
		if current != "" {
			body = append(body, line)
		}
	}
	flush()

	return sections
}

func isIndented(line string) bool {
	return line[0] == ' ' || line[0] == '\t'
}

// lines splits text on newlines and drops trailing carriage returns
func lines(text string) []string {
	if text == "" {
		return nil
	}
	out := strings.Split(text, "\n")
	for i, l := range out {
		out[i] = strings.TrimRight(l, "\r")
	}
	return out
}
