package orders

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"time"
)

const (
	orderNumberPrefix = "OB"
	suffixAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	suffixLen         = 3
)

// NewOrderNumber renders OB-<base36 unix millis>-<3 random chars>. The
// timestamp part keeps numbers sortable by creation time; collisions are
// caught by ux_orders_order_number and retried by the caller.
func NewOrderNumber(now time.Time) string {
	ts := strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36))
	var b strings.Builder
	b.Grow(len(orderNumberPrefix) + len(ts) + suffixLen + 2)
	b.WriteString(orderNumberPrefix)
	b.WriteByte('-')
	b.WriteString(ts)
	b.WriteByte('-')
	for i := 0; i < suffixLen; i++ {
		b.WriteByte(suffixAlphabet[rand.IntN(len(suffixAlphabet))])
	}
	return b.String()
}
