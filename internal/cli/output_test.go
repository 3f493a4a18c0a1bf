package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type outputFixture struct {
	Job     string `json:"job" yaml:"job"`
	Updated int    `json:"updated" yaml:"updated"`
}

func TestPrint(t *testing.T) {
	data := outputFixture{Job: "statuses", Updated: 4}
	asTable := func() (*Table, error) {
		table := NewTable("job", "updated", "took")
		return table, table.NewRow(data.Job, data.Updated, 1500*time.Millisecond)
	}

	var buffer bytes.Buffer
	require.NoError(t, Print(&buffer, OutputJson, data, asTable))
	require.JSONEq(t, `{"job":"statuses","updated":4}`, buffer.String())

	buffer.Reset()
	require.NoError(t, Print(&buffer, OutputYaml, data, asTable))
	require.Equal(t, "job: statuses\nupdated: 4\n", buffer.String())

	buffer.Reset()
	require.NoError(t, Print(&buffer, OutputText, data, asTable))
	require.Contains(t, buffer.String(), "statuses")
	require.Contains(t, buffer.String(), "1.5s")

	require.ErrorIs(t, Print(&buffer, "xml", data, asTable), ErrorInvalidOutput)
}
