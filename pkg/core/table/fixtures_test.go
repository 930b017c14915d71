package table

import (
	"fmt"
	"strings"
)

// Column widths of the test table: issuer, class, cusip, value, shares.
var fixtureWidths = []int{20, 11, 13, 12, 13}

func pad(s string, w int) string {
	return fmt.Sprintf("%-*s", w, s)
}

func fixtureHeader() string {
	return pad("<S>", 20) + pad("<C>", 11) + pad("<C>", 13) + pad("<C>", 12) + pad("<C>", 13) + "<C>"
}

func fixtureLine(issuer, class, id, value, shares, rest string) string {
	cells := []string{issuer, class, id, value, shares}
	var b strings.Builder
	for i, c := range cells {
		b.WriteString(pad(c, fixtureWidths[i]))
	}
	b.WriteString(rest)
	return strings.TrimRight(b.String(), " ")
}

func fixtureBlock(lines ...string) string {
	all := []string{
		"<TABLE>",
		"<CAPTION>",
		fixtureLine("NAME OF ISSUER", "TITLE", "CUSIP", "VALUE", "SHARES", "DISCRETION"),
		fixtureHeader(),
	}
	all = append(all, lines...)
	all = append(all, "</TABLE>")
	return strings.Join(all, "\n")
}

func holdingsBlock() string {
	return fixtureBlock(
		fixtureLine("American Express Co", "Com", "025816 10 9", "$1,952,944", "151,610,700", "Shared-Defined"),
		fixtureLine("", "", "", "146,700", "11,390,582", "Shared-Defined"),
		fixtureLine("Coca Cola Co", "Com", "191216 10 0", "8,090,000", "200,000,000", "Shared-Defined"),
		fixtureLine("  (continued name)", "", "", "", "", ""),
		fixtureLine("", "", "", "=========", "", ""),
		fixtureLine("Gillette Co", "Com", "375766 10 2", "3,526,000", "96,000,000", "Shared-Defined"),
		"                                                 ----------",
		fixtureLine("GRAND TOTAL", "", "", "13,714,644", "", ""),
	)
}

const signatureBlock = `<TABLE>
<S>                         <C>
Signature                   Date
/s/ Marc D. Hamburg         May 15, 2001
</TABLE>`
