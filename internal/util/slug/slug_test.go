package slug

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMake(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Hello Content", "hello-content"},
		{"  Crème Brûlée!  ", "creme-brulee"},
		{"tester", "tester"},
		{"C++ & Go, 2024", "c-go-2024"},
		{"already-a-slug", "already-a-slug"},
		{"!!!", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Make(tt.in))
		})
	}
}

func TestSuffix(t *testing.T) {
	n, ok := Suffix("foo", "foo")
	assert.True(t, ok)
	assert.Equal(t, 1, n)

	n, ok = Suffix("foo", "FOO-12")
	assert.True(t, ok)
	assert.Equal(t, 12, n)

	for _, other := range []string{"food", "foo-bar", "foo-", "foo-02", "foo-0", "bar"} {
		_, ok := Suffix("foo", other)
		assert.False(t, ok, other)
	}
}

func TestNext(t *testing.T) {
	assert.Equal(t, "foo", Next("foo", nil))
	assert.Equal(t, "foo", Next("foo", []string{"food", "foo-bar"}))
	assert.Equal(t, "foo-2", Next("foo", []string{"foo"}))
	assert.Equal(t, "foo-3", Next("foo", []string{"foo", "foo-2"}))
	assert.Equal(t, "foo-8", Next("foo", []string{"foo-7", "Foo"}))
	assert.Equal(t, "foo-2", Next("foo", []string{"foo", "foo-bar-7", "foo-07", "foo-0"}))
}

func TestNext_Sequence(t *testing.T) {
	var taken []string
	for _, want := range []string{"foo", "foo-2", "foo-3"} {
		got := Next("foo", taken)
		assert.Equal(t, want, got)
		taken = append(taken, got)
	}
}
