package mediarepo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueAccessors(t *testing.T) {
	s, err := StringValue("alice").AsString()
	require.NoError(t, err)
	assert.Equal(t, "alice", s)

	s, err = NameValue("media:file").AsString()
	require.NoError(t, err)
	assert.Equal(t, "media:file", s)

	ss, err := StringsValue([]string{"a", "b"}).AsStrings()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ss)

	ss, err = StringValue("single").AsStrings()
	require.NoError(t, err)
	assert.Equal(t, []string{"single"}, ss)

	n, err := LongValue(42).AsLong()
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)

	local := time.Date(2024, 5, 1, 14, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	d, err := DateValue(local).AsDate()
	require.NoError(t, err)
	assert.True(t, d.Equal(local))
	assert.Equal(t, time.UTC, d.Location())

	b, err := BinaryValue([]byte("xyz")).AsBinary()
	require.NoError(t, err)
	assert.Equal(t, []byte("xyz"), b)
}

func TestValueFormatErrors(t *testing.T) {
	_, err := StringsValue([]string{"a"}).AsString()
	assert.ErrorIs(t, err, ErrValueFormat, "multi valued property read as single string")

	_, err = LongValue(1).AsString()
	assert.ErrorIs(t, err, ErrValueFormat)

	_, err = StringValue("1").AsLong()
	assert.ErrorIs(t, err, ErrValueFormat)

	_, err = StringValue("2024").AsDate()
	assert.ErrorIs(t, err, ErrValueFormat)

	_, err = StringValue("x").AsBinary()
	assert.ErrorIs(t, err, ErrValueFormat)

	_, err = Value{Type: PropertyTypeBinary, BinaryKey: "binaries/x"}.AsBinary()
	assert.ErrorIs(t, err, ErrValueFormat, "unresolved binary key")

	_, err = LongValue(1).AsStrings()
	assert.ErrorIs(t, err, ErrValueFormat)
}

func TestValueCopies(t *testing.T) {
	src := []byte("abc")
	v := BinaryValue(src)
	src[0] = 'X'
	b, _ := v.AsBinary()
	assert.Equal(t, "abc", string(b))

	tags := []string{"a"}
	v = StringsValue(tags)
	tags[0] = "changed"
	assert.Equal(t, []string{"a"}, v.Strings)

	c := v.Clone()
	c.Strings[0] = "clone"
	assert.Equal(t, []string{"a"}, v.Strings)

	empty, err := BinaryValue(nil).AsBinary()
	require.NoError(t, err)
	assert.Empty(t, empty)
}
