package orders

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewOrderNumberFormat(t *testing.T) {
	n := NewOrderNumber(time.UnixMilli(1_700_000_000_000))
	parts := strings.Split(n, "-")
	assert.Len(t, parts, 3)
	assert.Equal(t, "OB", parts[0])
	assert.Equal(t, "LOYW3V28", parts[1])
	assert.Len(t, parts[2], 3)
}

func TestNewOrderNumberSortsByTime(t *testing.T) {
	earlier := NewOrderNumber(time.UnixMilli(1_700_000_000_000))
	later := NewOrderNumber(time.UnixMilli(1_700_000_000_001))
	assert.Less(t, earlier[:len(earlier)-4], later[:len(later)-4])
}
