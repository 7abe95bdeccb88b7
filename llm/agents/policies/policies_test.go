package policies

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinPolicies(t *testing.T) {
	store := NewStore("")
	want := []string{
		"containment_agent", "coordinator", "detection_agent", "intelligence_agent",
		"investigator_agent", "remediator_agent", "reporter_agent", "threat_hunter_agent",
	}
	assert.ElementsMatch(t, want, Names())

	for _, name := range want {
		t.Run(name, func(t *testing.T) {
			p, err := store.Load(name)
			require.NoError(t, err)
			assert.Equal(t, name, p.Name)
			assert.NotEmpty(t, p.Description)
			assert.NotEmpty(t, p.Instruction)
		})
	}

	coord := store.MustLoad("coordinator")
	assert.Contains(t, coord.Classifier, "incident_response")
}

func TestOverrideDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "detection_agent.yaml"),
		[]byte("name: detection_agent\ndescription: custom\ninstruction: Only scan 10 rows.\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "reporter_agent.yaml"),
		[]byte("name: reporter_agent\nunknown_key: x\ninstruction: hi\n"), 0o600))

	store := NewStore(dir)

	p, err := store.Load("detection_agent")
	require.NoError(t, err)
	assert.Equal(t, "Only scan 10 rows.", p.Instruction)

	p, err = store.Load("investigator_agent")
	require.NoError(t, err)
	assert.Contains(t, p.Instruction, "trace(limit)")

	_, err = store.Load("reporter_agent")
	assert.Error(t, err)

	_, err = store.Load("missing_agent")
	assert.Error(t, err)
}
