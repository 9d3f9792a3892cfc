package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAlgorithmRoundTrip(t *testing.T) {
	cases := map[string]Algorithm{
		"zero":    Zero,
		"random":  Random,
		"dod":     DoD,
		"gutmann": Gutmann,
	}
	for s, want := range cases {
		got, err := ParseAlgorithm(s)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		assert.Equal(t, s, got.String())
	}
}

func TestParseAlgorithmRejectsUnknown(t *testing.T) {
	_, err := ParseAlgorithm("shred")
	assert.Error(t, err)
}

func TestPassesZero(t *testing.T) {
	passes := Passes(Zero)
	require.Len(t, passes, 1)
	assert.False(t, passes[0].Random)
	assert.Equal(t, []byte{0x00}, passes[0].Bytes)
}

func TestPassesRandom(t *testing.T) {
	passes := Passes(Random)
	require.Len(t, passes, 1)
	assert.True(t, passes[0].Random)
}

func TestPassesDoD(t *testing.T) {
	passes := Passes(DoD)
	require.Len(t, passes, 3)
	assert.Equal(t, []byte{0x00}, passes[0].Bytes)
	assert.Equal(t, []byte{0xFF}, passes[1].Bytes)
	assert.True(t, passes[2].Random)
}

func TestPassesGutmannHasThirtyFivePasses(t *testing.T) {
	assert.Len(t, Passes(Gutmann), 35)
}

// TestPassesGutmannPassSevenIsMFMPattern checks the magnetic-encoding
// pass at 1-indexed position 7 (index 6): the source table's 92 49 24
// sequence, not the 0x11-stepped incrementing run some summaries start
// the table with instead.
func TestPassesGutmannPassSevenIsMFMPattern(t *testing.T) {
	passes := Passes(Gutmann)
	pass := passes[6]
	require.False(t, pass.Random)
	assert.Equal(t, []byte{0x92, 0x49, 0x24}, pass.Bytes)

	buf := make([]byte, 12)
	require.NoError(t, pass.Fill(buf, nil))
	assert.Equal(t, []byte{
		0x92, 0x49, 0x24, 0x92, 0x49, 0x24,
		0x92, 0x49, 0x24, 0x92, 0x49, 0x24,
	}, buf)
}

func TestPassesGutmannPassTenIsExplicitZero(t *testing.T) {
	passes := Passes(Gutmann)
	assert.Equal(t, []byte{0x00}, passes[9].Bytes)
}

func TestPassesGutmannIncrementingRunCoversFullRange(t *testing.T) {
	passes := Passes(Gutmann)
	// Passes 10-25 (index 9-24) step 0x00 through 0xFF by 0x11.
	want := byte(0x00)
	for i := 9; i <= 24; i++ {
		require.Equal(t, []byte{want}, passes[i].Bytes)
		want += 0x11
	}
}

func TestPassesGutmannOpensAndClosesWithFourRandomPasses(t *testing.T) {
	passes := Passes(Gutmann)
	for i := 0; i < 4; i++ {
		assert.True(t, passes[i].Random)
	}
	for i := 31; i < 35; i++ {
		assert.True(t, passes[i].Random)
	}
}

func TestPassesUnknownAlgorithmReturnsNil(t *testing.T) {
	assert.Nil(t, Passes(Algorithm(99)))
}

func TestPassFillRandomDelegatesToRNG(t *testing.T) {
	var called bool
	rng := func(b []byte) error {
		called = true
		for i := range b {
			b[i] = 0x42
		}
		return nil
	}
	p := Pass{Random: true}
	buf := make([]byte, 4)
	require.NoError(t, p.Fill(buf, rng))
	assert.True(t, called)
	assert.Equal(t, []byte{0x42, 0x42, 0x42, 0x42}, buf)
}

func TestPassFillFixedCyclesBytesAcrossBuffer(t *testing.T) {
	p := fixed(0xAA, 0xBB)
	buf := make([]byte, 5)
	require.NoError(t, p.Fill(buf, nil))
	assert.Equal(t, []byte{0xAA, 0xBB, 0xAA, 0xBB, 0xAA}, buf)
}

func TestPassFillEmptyBytesErrors(t *testing.T) {
	p := Pass{}
	err := p.Fill(make([]byte, 4), nil)
	assert.Error(t, err)
}
