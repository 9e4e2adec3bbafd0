package shadow

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/oqtopus-team/shadow-engine/core"
	"github.com/oqtopus-team/shadow-engine/qpu"
	"github.com/stretchr/testify/assert"
)

func TestGenerateShapesAndRanges(t *testing.T) {
	g := NewGenerator(7)
	base := core.NewCircuit(3)
	circuits, bases, err := g.Generate(base, 50)
	assert.Nil(t, err)
	assert.Len(t, circuits, 50)
	assert.Len(t, bases, 50)
	for i, row := range bases {
		assert.Len(t, row, 3)
		assert.Len(t, circuits[i].Rotations, 3)
		for q, b := range row {
			assert.LessOrEqual(t, b, core.BasisY)
			rotation, err := core.RotationForBasis(b)
			assert.Nil(t, err)
			assert.Equal(t, rotation, circuits[i].Rotations[q])
		}
	}
}

func TestGenerateDeterministicWithSeed(t *testing.T) {
	base := core.NewCircuit(4)
	_, basesA, err := NewGenerator(99).Generate(base, 30)
	assert.Nil(t, err)
	_, basesB, err := NewGenerator(99).Generate(base, 30)
	assert.Nil(t, err)
	assert.Equal(t, basesA, basesB)

	_, basesC, err := NewGenerator(100).Generate(base, 30)
	assert.Nil(t, err)
	assert.NotEqual(t, basesA, basesC)
}

func TestGenerateDoesNotMutateBase(t *testing.T) {
	g := NewGenerator(1)
	base := core.NewPrepCircuit(2, 3)
	circuits, _, err := g.Generate(base, 5)
	assert.Nil(t, err)
	assert.Empty(t, base.Rotations)
	for _, c := range circuits {
		assert.Equal(t, base.PrepFlips, c.PrepFlips)
	}
}

func TestGenerateInvalidArguments(t *testing.T) {
	g := NewGenerator(1)
	_, _, err := g.Generate(core.NewCircuit(2), 0)
	assert.Error(t, err)
	_, _, err = g.Generate(nil, 10)
	assert.Error(t, err)
	_, _, err = g.Generate(core.NewCircuit(0), 10)
	assert.Error(t, err)
}

func TestCollectBuildsValidRecord(t *testing.T) {
	conf := core.Conf{NumQubits: 3, MaxShots: 100, MaxBatch: 16, BackendSeed: 5}
	backend := &qpu.SimulatorQPU{}
	assert.Nil(t, backend.Setup(&conf))

	g := NewGenerator(11)
	base := core.NewPrepCircuit(3, 0)
	record, err := g.Collect(context.Background(), backend, base, 40)
	assert.Nil(t, err)
	assert.Equal(t, 40, record.NumShadows())
	assert.Equal(t, 3, record.NumQubits())
	assert.Nil(t, record.Validate())

	// Z-basis shadows on |000> must read all zeros
	for i := 0; i < record.NumShadows(); i++ {
		for q := 0; q < record.NumQubits(); q++ {
			if record.Bases[i][q] == core.BasisZ {
				assert.Equal(t, uint8(0), record.Outcomes[i][q])
			}
		}
	}
}

func TestGetShadowSettingFromParsedFile(t *testing.T) {
	core.ResetSetting()
	core.RegisterSetting(SHADOW_SETTING_KEY, NewShadowSetting())
	path := filepath.Join(t.TempDir(), "setting.toml")
	tomlString := `
[com.shadow]
default_shadow_size = 77
confidence_level = 0.9
num_groups = 4
`
	assert.Nil(t, os.WriteFile(path, []byte(tomlString), 0o644))
	assert.Nil(t, core.ParseSettingFromPath(path))

	setting, configured := GetShadowSetting()
	assert.True(t, configured)
	assert.Equal(t, 77, setting.DefaultShadowSize)
	assert.Equal(t, 0.9, setting.ConfidenceLevel)
	assert.Equal(t, 4, setting.NumGroups)
}

func TestGetShadowSettingKeepsDefaultsForMissingKeys(t *testing.T) {
	core.ResetSetting()
	core.RegisterSetting(SHADOW_SETTING_KEY, NewShadowSetting())
	path := filepath.Join(t.TempDir(), "setting.toml")
	assert.Nil(t, os.WriteFile(path, []byte("[com.shadow]\nnum_groups = 4\n"), 0o644))
	assert.Nil(t, core.ParseSettingFromPath(path))

	setting, configured := GetShadowSetting()
	assert.True(t, configured)
	assert.Equal(t, DEFAULT_SHADOW_SIZE, setting.DefaultShadowSize)
	assert.Equal(t, DEFAULT_CONFIDENCE_LEVEL, setting.ConfidenceLevel)
	assert.Equal(t, 4, setting.NumGroups)
}

func TestGetShadowSettingWithoutParsedFile(t *testing.T) {
	core.ResetSetting()
	core.RegisterSetting(SHADOW_SETTING_KEY, NewShadowSetting())
	setting, configured := GetShadowSetting()
	assert.False(t, configured)
	assert.Equal(t, NewShadowSetting(), setting)

	core.ResetSetting()
	setting, configured = GetShadowSetting()
	assert.False(t, configured)
	assert.Equal(t, NewShadowSetting(), setting)
}
