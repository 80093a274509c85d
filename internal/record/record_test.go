package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePreservesKeyOrder(t *testing.T) {
	rec, err := Decode([]byte(`{"zeta":"1","alpha":"2","mid":"3"}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, rec.Keys())
	assert.Equal(t, 3, rec.Len())
}

func TestDecodeEmptyObject(t *testing.T) {
	rec, err := Decode([]byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, 0, rec.Len())

	out, err := rec.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(out))
}

func TestDecodeMalformed(t *testing.T) {
	for _, payload := range []string{``, `not json`, `[1,2]`, `"str"`, `{"a":`} {
		_, err := Decode([]byte(payload))
		assert.Error(t, err, payload)
	}
}

func TestStringValue(t *testing.T) {
	rec, err := Decode([]byte(`{"name":"Ravi","age":30,"active":true,"note":null,"tags":["a"]}`))
	require.NoError(t, err)

	v, ok := rec.StringValue("name")
	assert.True(t, ok)
	assert.Equal(t, "Ravi", v)

	for _, key := range []string{"age", "active", "note", "tags", "absent"} {
		_, ok := rec.StringValue(key)
		assert.False(t, ok, key)
	}
}

func TestMarshalRoundTripsUntouchedValues(t *testing.T) {
	// Non-string scalars and formatting-sensitive numbers must come back
	// byte-identical when never replaced.
	payload := `{"id":1.50,"big":12345678901234567890,"ok":true,"note":null,"name":"Ravi"}`
	rec, err := Decode([]byte(payload))
	require.NoError(t, err)

	out, err := rec.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, payload, string(out))
}

func TestSetStringReplacesInPlace(t *testing.T) {
	rec, err := Decode([]byte(`{"name":"Ravi Kumar","age":30}`))
	require.NoError(t, err)

	rec.SetString("name", "RXXX KXXX")

	v, ok := rec.StringValue("name")
	assert.True(t, ok)
	assert.Equal(t, "RXXX KXXX", v)

	out, err := rec.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"name":"RXXX KXXX","age":30}`, string(out))
}

func TestSetStringAppendsUnknownKey(t *testing.T) {
	rec := New()
	rec.SetString("a", "1")
	rec.SetString("b", "2")
	assert.Equal(t, []string{"a", "b"}, rec.Keys())
}

func TestCloneIsIndependent(t *testing.T) {
	rec, err := Decode([]byte(`{"name":"Ravi Kumar","city":"Mumbai"}`))
	require.NoError(t, err)

	clone := rec.Clone()
	clone.SetString("name", "masked")

	v, _ := rec.StringValue("name")
	assert.Equal(t, "Ravi Kumar", v)
	cv, _ := clone.StringValue("name")
	assert.Equal(t, "masked", cv)
	assert.Equal(t, rec.Keys(), clone.Keys())
}

func TestDecodeNestedValuesSkipped(t *testing.T) {
	rec, err := Decode([]byte(`{"meta":{"a":[1,{"b":2}]},"name":"Ravi"}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"meta", "name"}, rec.Keys())

	out, err := rec.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"meta":{"a":[1,{"b":2}]},"name":"Ravi"}`, string(out))
}

func TestDecodeDuplicateKeysLastWins(t *testing.T) {
	rec, err := Decode([]byte(`{"a":"1","a":"2"}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, rec.Keys())
	v, _ := rec.StringValue("a")
	assert.Equal(t, "2", v)
}
