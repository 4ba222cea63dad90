package regbin

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegbin(ndev byte, configs ...ConfigInfo) *Regbin {
	return &Regbin{
		Header: Header{
			Checksum:      0xDEADBEEF,
			Version:       0x105,
			DriverVersion: 0x101,
			Timestamp:     1700000000,
			PlatformType:  1,
			NDev:          ndev,
			Devices:       [MaxDevices]byte{0x38, 0x39, 0x3A, 0x3B},
		},
		Configs: configs,
	}
}

func mustEncode(t *testing.T, rb *Regbin) []byte {
	t.Helper()
	buf, err := Encode(rb)
	require.NoError(t, err)
	return buf
}

func TestParse_ScenarioA(t *testing.T) {
	rb := testRegbin(1, ConfigInfo{
		Name: "music",
		Blocks: []BlockData{{
			DevIdx: 0, Type: BlockPrePowerUp, Sublocks: 1,
			Data: []byte{0x00, 0x03, 0x00, 0x05},
		}},
	})
	buf := mustEncode(t, rb)

	got, err := Parse(buf, 1)
	require.NoError(t, err)
	assert.Equal(t, uint32(len(buf)), got.Header.ImageSize)
	assert.Equal(t, uint32(0x105), got.Header.Version)
	require.Len(t, got.Configs, 1)
	assert.Equal(t, uint8(1), got.Configs[0].ActiveDev)
	assert.Equal(t, "music", got.Configs[0].Name)
}

func TestParse_RoundTrip(t *testing.T) {
	rb := testRegbin(2,
		ConfigInfo{
			Name: "speaker",
			Blocks: []BlockData{
				{DevIdx: 1, Type: BlockPrePowerUp, YRAMChecksum: 0x1234, Sublocks: 1, Data: []byte{0, 3, 0, 1}},
				{DevIdx: 2, Type: BlockPreShutdown, Sublocks: 2, Data: []byte{0, 3, 0, 1, 0, 3, 0, 2}},
			},
		},
		ConfigInfo{Name: "bypass"},
	)
	buf := mustEncode(t, rb)

	got, err := Parse(buf, 2)
	require.NoError(t, err)
	require.Len(t, got.Configs, 2)

	c := got.Configs[0]
	assert.Equal(t, uint32(2), c.NBlocks)
	require.Len(t, c.Blocks, 2)
	assert.Equal(t, byte(1), c.Blocks[0].DevIdx)
	assert.Equal(t, BlockPrePowerUp, c.Blocks[0].Type)
	assert.Equal(t, uint16(0x1234), c.Blocks[0].YRAMChecksum)
	assert.Equal(t, uint32(4), c.Blocks[0].Size)
	assert.Equal(t, uint32(2), c.Blocks[1].Sublocks)
	assert.Equal(t, []byte{0, 3, 0, 1, 0, 3, 0, 2}, c.Blocks[1].Data)
	assert.Equal(t, uint8(0x01), c.ActiveDev)

	assert.Empty(t, got.Configs[1].Blocks)
	assert.Zero(t, got.Configs[1].ActiveDev)

	again, err := Encode(got)
	require.NoError(t, err)
	assert.Equal(t, buf, again)
}

func TestParse_ActiveDevAccumulates(t *testing.T) {
	tests := []struct {
		name string
		ndev byte
		devs []byte
		want uint8
	}{
		{"broadcast mono", 1, []byte{0}, 0x01},
		{"broadcast stereo", 2, []byte{0}, 0x03},
		{"broadcast quad", 4, []byte{0}, 0x0F},
		{"each channel", 2, []byte{1, 2}, 0x03},
		{"second only", 4, []byte{2}, 0x02},
		{"mixed", 4, []byte{1, 4}, 0x09},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var blocks []BlockData
			for _, d := range tc.devs {
				blocks = append(blocks, BlockData{DevIdx: d, Type: BlockPrePowerUp, Sublocks: 1, Data: []byte{0, 3, 0, 0}})
			}
			// Other stages never mark channels active.
			blocks = append(blocks, BlockData{DevIdx: 0, Type: BlockPostPowerUp, Data: []byte{}})

			got, err := Parse(mustEncode(t, testRegbin(tc.ndev, ConfigInfo{Blocks: blocks})), int(tc.ndev))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.Configs[0].ActiveDev)
		})
	}
}

func TestParse_WithoutNames(t *testing.T) {
	rb := testRegbin(1, ConfigInfo{Name: "ignored", Blocks: []BlockData{{Type: BlockCoeff, Data: []byte{1, 2}}}})
	rb.Header.Version = 0x104
	buf := mustEncode(t, rb)

	got, err := Parse(buf, 1)
	require.NoError(t, err)
	assert.Empty(t, got.Configs[0].Name)
	require.Len(t, got.Configs[0].Blocks, 1)
	assert.Equal(t, []byte{1, 2}, got.Configs[0].Blocks[0].Data)
}

func TestParse_VersionTooLow(t *testing.T) {
	rb := testRegbin(1)
	rb.Header.Version = 0x102

	_, err := Parse(mustEncode(t, rb), 1)
	assert.ErrorIs(t, err, ErrVersionTooLow)
}

func TestParse_SizeMismatch(t *testing.T) {
	buf := mustEncode(t, testRegbin(1, ConfigInfo{Blocks: []BlockData{{Type: BlockCoeff, Data: []byte{1, 2, 3, 4}}}}))

	_, err := Parse(append(append([]byte(nil), buf...), 0), 1)
	assert.ErrorIs(t, err, ErrSizeMismatch)

	// Keep img_sz honest but break the configuration size table.
	bad := append([]byte(nil), buf...)
	sizeOff := 24 + MaxDevices + 4
	binary.BigEndian.PutUint32(bad[sizeOff:], binary.BigEndian.Uint32(bad[sizeOff:])+1)
	_, err = Parse(bad, 1)
	assert.ErrorIs(t, err, ErrSizeMismatch)
}

func TestParse_ChannelCountMismatch(t *testing.T) {
	buf := mustEncode(t, testRegbin(2))

	for _, ndev := range []int{1, 3, 4} {
		_, err := Parse(buf, ndev)
		assert.ErrorIs(t, err, ErrChannelCountMismatch, "ndev %d", ndev)
	}
}

func TestParse_TruncatedHeader(t *testing.T) {
	buf := mustEncode(t, testRegbin(1))
	short := append([]byte(nil), buf[:HeaderSize-1]...)
	binary.BigEndian.PutUint32(short, uint32(len(short)))

	_, err := Parse(short, 1)
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestParse_ShortBlockEndsList(t *testing.T) {
	rb := testRegbin(1, ConfigInfo{Blocks: []BlockData{
		{Type: BlockPrePowerUp, Sublocks: 1, Data: []byte{0, 3, 0, 1}},
		{Type: BlockPreShutdown, Sublocks: 1, Data: []byte{9, 9, 9, 9}},
	}})
	buf := mustEncode(t, rb)

	// Claim the second block is larger than what is left.
	second := bytes.LastIndex(buf, []byte{0, byte(BlockPreShutdown)})
	require.True(t, second > HeaderSize)
	binary.BigEndian.PutUint32(buf[second+4:], 64)

	got, err := Parse(buf, 1)
	require.NoError(t, err)
	c := got.Configs[0]
	assert.Equal(t, uint32(2), c.NBlocks)
	require.Len(t, c.Blocks, 1)
	assert.Equal(t, BlockPrePowerUp, c.Blocks[0].Type)
}

func TestParse_ShortBlockHeader(t *testing.T) {
	rb := testRegbin(1, ConfigInfo{Blocks: []BlockData{{Type: BlockCoeff, Data: []byte{9}}}})
	buf := mustEncode(t, rb)

	// Declare three blocks where only one is present.
	nblocksOff := HeaderSize + NameSize
	binary.BigEndian.PutUint32(buf[nblocksOff:], 3)

	got, err := Parse(buf, 1)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), got.Configs[0].NBlocks)
	assert.Len(t, got.Configs[0].Blocks, 1)
}

func TestBlockType_String(t *testing.T) {
	assert.Equal(t, "PRE_POWER_UP", BlockPrePowerUp.String())
	assert.Equal(t, "COEFF", BlockCoeff.String())
	assert.Equal(t, "UNKNOWN(9)", BlockType(9).String())
}

func TestWriteInfo(t *testing.T) {
	got, err := Parse(mustEncode(t, testRegbin(1, ConfigInfo{Name: "music", Blocks: []BlockData{
		{Type: BlockPrePowerUp, Sublocks: 1, Data: []byte{0, 3, 0, 1}},
	}})), 1)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, got.WriteInfo(&out))
	assert.Contains(t, out.String(), `"music"`)
	assert.Contains(t, out.String(), "PRE_POWER_UP")
}
