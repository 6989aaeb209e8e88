package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, NormalizeLimit(0))
	assert.Equal(t, DefaultLimit, NormalizeLimit(-5))
	assert.Equal(t, 7, NormalizeLimit(7))
	assert.Equal(t, MaxLimit, NormalizeLimit(1000))
}

func TestParamsNormalizeAndOffset(t *testing.T) {
	p := Params{Page: 0, Limit: 0}.Normalize()
	assert.Equal(t, Params{Page: 1, Limit: DefaultLimit}, p)
	assert.Equal(t, 0, p.Offset())

	assert.Equal(t, 40, Params{Page: 3, Limit: 20}.Offset())
	assert.Equal(t, 200, Params{Page: 3, Limit: 500}.Offset())
}
