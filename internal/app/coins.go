package app

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// FormatCoins renders an amount of copper as gold, silver and copper,
// e.g. 123456 -> "12g 34s 56c". Negative amounts keep a single leading sign.
func FormatCoins(copper int) string {
	if copper == 0 {
		return "0c"
	}
	var sign string
	if copper < 0 {
		sign = "-"
		copper = -copper
	}
	gold := copper / 10000
	silver := copper % 10000 / 100
	copper = copper % 100
	parts := make([]string, 0, 3)
	if gold > 0 {
		parts = append(parts, fmt.Sprintf("%sg", humanize.Comma(int64(gold))))
	}
	if silver > 0 {
		parts = append(parts, fmt.Sprintf("%ds", silver))
	}
	if copper > 0 {
		parts = append(parts, fmt.Sprintf("%dc", copper))
	}
	return sign + strings.Join(parts, " ")
}
