package tasdevice

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileNames(t *testing.T) {
	assert.Equal(t, "tas2781_regbin.bin", RegbinFileName("tas2781"))
	assert.Equal(t, "tas2781_dsp.bin", DSPFileName("tas2781"))
	assert.Equal(t, "tas2781_cal_0x3a.bin", CalibrationFileName("tas2781", 0x3A))
}

func TestDirLoader(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.bin"), []byte{1, 2}, 0o644))

	l := DirLoader(dir)
	buf, err := l.Load(context.Background(), "a.bin")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, buf)

	_, err = l.Load(context.Background(), "missing.bin")
	assert.ErrorIs(t, err, os.ErrNotExist)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Load(ctx, "a.bin")
	assert.ErrorIs(t, err, context.Canceled)
}
