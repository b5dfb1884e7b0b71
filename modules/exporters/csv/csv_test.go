package csv

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iluxa/sflow-rt/flows"
)

func TestCSVExport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	rest, mod, err := newCSVExporter([]string{path, "tail"})
	require.NoError(t, err)
	assert.Equal(t, []string{"tail"}, rest)
	assert.Equal(t, "CSV|"+path, mod.ID())

	pe := mod.(*csvExporter)
	pe.Init()
	pe.Flow(nil, &flows.CompletedFlow{
		FlowID: 1, Name: "tcp", Agent: "10.0.0.20", DataSource: "5",
		FlowKeys: "10.1.1.1,10.2.2.2", Value: 1500,
		Start: 1700000000000, End: 1700000060000, EndReason: flows.EndIdle,
	})
	pe.Flow(nil, &flows.CompletedFlow{
		FlowID: 2, Name: "uri", Agent: "10.0.0.20",
		FlowKeys: `say "hi"`, Value: 0.5, EndReason: flows.EndEvicted,
	})
	pe.Finish()

	out, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(out), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "flowID,name,agent,dataSource,flowKeys,value,start,end,endReason", lines[0])
	assert.Equal(t, `1,tcp,10.0.0.20,5,"10.1.1.1,10.2.2.2",1500,1700000000000,1700000060000,idle`, lines[1])
	assert.Equal(t, `2,uri,10.0.0.20,,"say ""hi""",0.5,0,0,evicted`, lines[2])
}

func TestCSVNeedsFilename(t *testing.T) {
	_, _, err := newCSVExporter(nil)
	assert.Error(t, err)
}
