package data

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorValue(t *testing.T) {
	v := Vector{0.5, -1, 2.25}
	val, err := v.Value()
	require.NoError(t, err)
	assert.Equal(t, "[0.5,-1,2.25]", val)
}

func TestVectorValueNil(t *testing.T) {
	var v Vector
	val, err := v.Value()
	require.NoError(t, err)
	assert.Nil(t, val)
}

func TestVectorScan(t *testing.T) {
	var v Vector
	require.NoError(t, v.Scan("[0.5,-1,2.25]"))
	assert.Equal(t, Vector{0.5, -1, 2.25}, v)

	require.NoError(t, v.Scan([]byte("[1,2]")))
	assert.Equal(t, Vector{1, 2}, v)

	require.NoError(t, v.Scan(nil))
	assert.Nil(t, v)
}

func TestVectorScanMalformed(t *testing.T) {
	var v Vector
	assert.Error(t, v.Scan("0.5,1"))
	assert.Error(t, v.Scan("[a,b]"))
	assert.Error(t, v.Scan(42))
}

func TestVectorRoundTrip(t *testing.T) {
	in := Vector{0.125, 3, -0.75}
	val, err := in.Value()
	require.NoError(t, err)
	var out Vector
	require.NoError(t, out.Scan(val))
	assert.Equal(t, in, out)
}

func TestNarrativePayloadRoundTrip(t *testing.T) {
	n := Narrative{CRDNumber: 42, NarrativeText: "A firm.", Source: "profile"}
	got := FromQdrantPayload(n.QdrantPayload())
	assert.Equal(t, n.CRDNumber, got.CRDNumber)
	assert.Equal(t, n.NarrativeText, got.NarrativeText)
	assert.Equal(t, n.Source, got.Source)
}
