package codec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type status string

const (
	statusActive status = "ACTIVE"
	statusIdle   status = "IDLE"
)

func init() {
	RegisterVariants(statusActive, statusIdle)
}

type profile struct {
	Name string `json:"name"`
	Age  int    `json:"age,omitempty"`
}

func TestDecodeStrict(t *testing.T) {
	got, err := DecodeValue[profile](`{"name":"ada","age":36}`)
	require.NoError(t, err)
	assert.Equal(t, profile{Name: "ada", Age: 36}, got)

	s, err := DecodeValue[string](`"hello"`)
	require.NoError(t, err)
	assert.Equal(t, "hello", s)

	n, err := DecodeValue[int](`42`)
	require.NoError(t, err)
	assert.Equal(t, 42, n)
}

func TestDecodeEnumFallback(t *testing.T) {
	// A bare tag is not a JSON document, so the strict step fails with a
	// shape mismatch and the enumeration step must decode it. The
	// fallback order is deterministic.
	got, err := DecodeValue[status]("ACTIVE")
	require.NoError(t, err)
	assert.Equal(t, statusActive, got)

	// A quoted tag already matches the plain string shape in step 1;
	// both routes end at the same value.
	got, err = DecodeValue[status](`"IDLE"`)
	require.NoError(t, err)
	assert.Equal(t, statusIdle, got)
}

func TestDecodePermissiveFallback(t *testing.T) {
	// Unknown field: strict decoding rejects it, the permissive step
	// tolerates it.
	got, err := DecodeValue[profile](`{"name":"ada","age":36,"extra":true}`)
	require.NoError(t, err)
	assert.Equal(t, profile{Name: "ada", Age: 36}, got)

	// Missing optional fields are fine in any step.
	got, err = DecodeValue[profile](`{"name":"ada"}`)
	require.NoError(t, err)
	assert.Equal(t, profile{Name: "ada"}, got)

	// A string target accepts bare text verbatim as the last resort.
	s, err := DecodeValue[string]("not json at all")
	require.NoError(t, err)
	assert.Equal(t, "not json at all", s)
}

func TestDecodeAllStepsFail(t *testing.T) {
	_, err := DecodeValue[int]("{definitely not json")
	require.Error(t, err)
	var sm *ShapeMismatchError
	assert.ErrorAs(t, err, &sm)
}

func TestDecodeRejectsTrailingData(t *testing.T) {
	// A plain json.Decoder stops after the first value, so "42 junk"
	// would slip through; the strict step must reject the remainder and
	// no later step may resurrect it for a non-string target.
	_, err := DecodeValue[int]("42 junk")
	require.Error(t, err)
	assert.True(t, IsShapeMismatch(err))

	_, err = DecodeValue[profile](`{"name":"ada"} {"name":"bob"}`)
	require.Error(t, err)

	// Whitespace after the value is not trailing data.
	n, err := DecodeValue[int]("42\n")
	require.NoError(t, err)
	assert.Equal(t, 42, n)
}

func TestDecodeNonShapeErrorsPropagate(t *testing.T) {
	// time.Time's unmarshaler fails with a parse error, not a shape
	// mismatch, and no fallback step may swallow it.
	_, err := DecodeValue[time.Time](`"not a timestamp"`)
	require.Error(t, err)
	assert.False(t, IsShapeMismatch(err))
}

func TestDecodeNull(t *testing.T) {
	got, err := DecodeValue[profile]("null")
	require.NoError(t, err)
	assert.Equal(t, profile{}, got)
}

func TestDecodeList(t *testing.T) {
	got, err := DecodeList[int]("[1,2,3]")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, got)

	statuses, err := DecodeList[status](`["ACTIVE","IDLE"]`)
	require.NoError(t, err)
	assert.Equal(t, []status{statusActive, statusIdle}, statuses)

	profiles, err := DecodeList[profile](`[{"name":"ada","extra":1},{"name":"bob"}]`)
	require.NoError(t, err)
	assert.Equal(t, []profile{{Name: "ada"}, {Name: "bob"}}, profiles)

	_, err = DecodeList[int](`{"not":"a list"}`)
	require.Error(t, err)
}

func TestRoundTrip(t *testing.T) {
	for _, v := range []profile{{Name: "ada", Age: 36}, {Name: ""}} {
		raw, err := Encode(v)
		require.NoError(t, err)
		got, err := DecodeValue[profile](raw)
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}

	raw, err := Encode([]status{statusIdle, statusActive})
	require.NoError(t, err)
	got, err := DecodeList[status](raw)
	require.NoError(t, err)
	assert.Equal(t, []status{statusIdle, statusActive}, got)
}
