package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const statusOutput = `Datacenter: dc1
===============
Status=Up/Down
|/ State=Normal/Leaving/Joining/Moving
--  Address    Load       Tokens  Owns (effective)  Host ID                               Rack
UN  10.0.0.1   256.4KiB   256     66.7%             aaaa-1111                             rack1
DL  10.0.0.2   198.1KiB   256     66.7%             bbbb-2222                             rack2

Datacenter: dc2
===============
Status=Up/Down
|/ State=Normal/Leaving/Joining/Moving
--  Address    Load       Tokens  Owns (effective)  Host ID                               Rack
UJ  10.1.0.1   12KiB      256     66.6%             cccc-3333                             rack1
`

func TestParseStatus_SingleNode(t *testing.T) {
	report := ParseStatus("Datacenter: dc1\nUN 127.0.0.1 100KB 256 100% abc123 rack1\n")

	require.Equal(t, 1, report.TotalNodes)
	node := report.Nodes[0]
	assert.Equal(t, "U", node.Status)
	assert.Equal(t, "N", node.State)
	assert.Equal(t, "127.0.0.1", node.Address)
	assert.Equal(t, "100KB", node.Load)
	assert.Equal(t, "256", node.Tokens)
	assert.Equal(t, "100%", node.Owns)
	assert.Equal(t, "abc123", node.HostID)
	assert.Equal(t, "dc1", node.Datacenter)
	assert.Equal(t, "rack1", node.Rack)
}

func TestParseStatus_MultipleDatacenters(t *testing.T) {
	report := ParseStatus(statusOutput)

	require.Equal(t, 3, report.TotalNodes)
	assert.Equal(t, "10.0.0.1", report.Nodes[0].Address)
	assert.Equal(t, "dc1", report.Nodes[0].Datacenter)

	assert.Equal(t, "D", report.Nodes[1].Status)
	assert.Equal(t, "L", report.Nodes[1].State)
	assert.Equal(t, "rack2", report.Nodes[1].Rack)

	assert.Equal(t, "J", report.Nodes[2].State)
	assert.Equal(t, "dc2", report.Nodes[2].Datacenter)

	assert.Equal(t, 2, report.Up())
	assert.Equal(t, 1, report.Down())
}

func TestParseStatus_NoRackWithSixTokens(t *testing.T) {
	report := ParseStatus("UN 127.0.0.1 100KB 256 100% abc123")

	require.Equal(t, 1, report.TotalNodes)
	assert.Empty(t, report.Nodes[0].Rack)
	assert.Empty(t, report.Nodes[0].Datacenter)
}

func TestParseStatus_SplitLoadUsesLastTokenAsRack(t *testing.T) {
	report := ParseStatus("UN 127.0.0.1 100.5 KiB 256 100% abc123 rack9")

	require.Equal(t, 1, report.TotalNodes)
	assert.Equal(t, "100.5", report.Nodes[0].Load)
	assert.Equal(t, "rack9", report.Nodes[0].Rack)
}

func TestParseStatus_SkipsMalformed(t *testing.T) {
	report := ParseStatus("UN 127.0.0.1 short\nX garbage line here with many tokens\n\n--  Address Load\n")

	assert.Equal(t, 0, report.TotalNodes)
	assert.NotNil(t, report.Nodes)
}

func TestParseStatus_Empty(t *testing.T) {
	report := ParseStatus("")

	assert.Equal(t, 0, report.TotalNodes)
	assert.Empty(t, report.Nodes)
}

func TestParseStatus_Pure(t *testing.T) {
	first := ParseStatus(statusOutput)
	second := ParseStatus(statusOutput)

	assert.Equal(t, first, second)
}

func TestParseRing(t *testing.T) {
	output := `
Datacenter: dc1
==========
Address    Rack   Status State   Load       Owns     Token
                                                     3074457345618258602
10.0.0.1   rack1  Up     Normal  256.4KiB   33.33%   -9223372036854775808
10.0.0.2   rack1  Down   Normal  198.1KiB   33.33%   -3074457345618258603
10.0.0.3   rack2  Up     Leaving 12KiB      33.33%
`
	report := ParseRing(output)

	require.Equal(t, 3, report.TotalTokens)
	assert.Equal(t, RingEntry{
		Address: "10.0.0.1", Rack: "rack1", Status: "Up", State: "Normal",
		Load: "256.4KiB", Owns: "33.33%", Token: "-9223372036854775808",
	}, report.Tokens[0])
	assert.Equal(t, "Down", report.Tokens[1].Status)
	assert.Empty(t, report.Tokens[2].Token)
}

func TestParseRing_Empty(t *testing.T) {
	report := ParseRing("")

	assert.Equal(t, 0, report.TotalTokens)
	assert.Empty(t, report.Tokens)
}

func TestParseInfo(t *testing.T) {
	info := ParseInfo("ID : abc123\nLoad : 100 KB\n")

	assert.Equal(t, map[string]string{"ID": "abc123", "Load": "100 KB"}, info)
}

func TestParseInfo_FirstColonAndDuplicates(t *testing.T) {
	info := ParseInfo("Uptime (seconds) : 12\nKey Cache : entries 10, hit rate 0.5: recent\nno colon here\nUptime (seconds) : 13\n : orphan")

	assert.Equal(t, "13", info["Uptime (seconds)"])
	assert.Equal(t, "entries 10, hit rate 0.5: recent", info["Key Cache"])
	assert.Equal(t, "orphan", info[""])
	assert.Len(t, info, 3)
}

func TestParseInfo_Empty(t *testing.T) {
	assert.Empty(t, ParseInfo(""))
}

func TestParseNetstats(t *testing.T) {
	output := `Mode: NORMAL
Not sending any streams.
Read Repair Statistics:
Attempted: 0
Mismatch (Blocking): 0
Pool Name                    Active   Pending      Completed   Dropped
Large messages                  n/a         0              0         0
`
	sections := ParseNetstats(output)

	assert.Contains(t, sections, "Mode: NORMAL")
	assert.Contains(t, sections, "Read Repair Statistics:")
	assert.Equal(t, "", sections["Mode: NORMAL"])
}

func TestParseNetstats_IndentedBody(t *testing.T) {
	output := "Mode: NORMAL\nStreams:\n    /10.0.0.2\n        Receiving 3 files\n\tSending 1 file\nPool Name\n    Large messages 0\n"

	sections := ParseNetstats(output)

	require.Len(t, sections, 3)
	assert.Equal(t, "    /10.0.0.2\n        Receiving 3 files\n\tSending 1 file", sections["Streams:"])
	assert.Equal(t, "    Large messages 0", sections["Pool Name"])
	assert.Equal(t, "", sections["Mode: NORMAL"])
}

func TestParseNetstats_Empty(t *testing.T) {
	assert.Empty(t, ParseNetstats(""))
	assert.Empty(t, ParseNetstats("   \n  \n"))
}

func TestParse_Dispatch(t *testing.T) {
	assert.IsType(t, StatusReport{}, Parse("status", ""))
	assert.IsType(t, RingReport{}, Parse("ring", ""))
	assert.IsType(t, map[string]string{}, Parse("info", ""))
	assert.Equal(t, map[string]string{"output": "16"}, Parse("getconcurrentcompactors", "  16\n"))

	assert.True(t, Supported("netstats"))
	assert.False(t, Supported("repair"))
}
