package util

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapErrorf(t *testing.T) {
	orig := errors.New("connection refused")
	err := WrapErrorf(orig, ErrNotFound, "node %d", 7)

	assert.Equal(t, "node 7: connection refused", err.Error())
	assert.True(t, errors.Is(err, orig))
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrBadParamInput))

	var wrapped *Error
	require.True(t, errors.As(err, &wrapped))
	assert.Equal(t, ErrNotFound, wrapped.Code())

	assert.Equal(t, "bad lat", WrapErrorf(nil, ErrBadParamInput, "bad lat").Error())
}

func TestReadLine(t *testing.T) {
	br := bufio.NewReader(strings.NewReader("first\r\nsecond\nlast"))
	for _, want := range []string{"first", "second", "last"} {
		line, err := ReadLine(br)
		require.NoError(t, err)
		assert.Equal(t, want, line)
	}
	_, err := ReadLine(br)
	assert.ErrorIs(t, err, io.EOF)
}

func TestChunks(t *testing.T) {
	cases := []struct {
		name string
		arr  []int
		size int
		want [][]int
	}{
		{name: "even", arr: []int{1, 2, 3, 4}, size: 2, want: [][]int{{1, 2}, {3, 4}}},
		{name: "remainder", arr: []int{1, 2, 3, 4, 5}, size: 2, want: [][]int{{1, 2}, {3, 4}, {5}}},
		{name: "larger than input", arr: []int{1, 2}, size: 100, want: [][]int{{1, 2}}},
		{name: "empty", arr: []int{}, size: 3, want: [][]int{}},
		{name: "non positive size", arr: []int{1, 2}, size: 0, want: [][]int{{1, 2}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Chunks(tc.arr, tc.size))
		})
	}
}
