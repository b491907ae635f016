package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeImport(t *testing.T) {
	items, err := DecodeImport(strings.NewReader(`[{"id":"x"}, "y"]`))
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "x", items[0]["id"])
	assert.Nil(t, items[1])

	items, err = DecodeImport(strings.NewReader(`{"documents":[{"id":"a"},{"id":"b"}]}`))
	require.NoError(t, err)
	assert.Len(t, items, 2)

	items, err = DecodeImport(strings.NewReader(`{}`))
	require.NoError(t, err)
	assert.Empty(t, items)

	_, err = DecodeImport(strings.NewReader(`nope`))
	assert.Error(t, err)
}
