package billing

import "fmt"

// FormatAmount renders pence as a plain decimal amount, e.g. 3000 -> 30.00
func FormatAmount(amountP int64) string {
	sign := ""
	if amountP < 0 {
		sign = "-"
		amountP = -amountP
	}
	return fmt.Sprintf("%s%d.%02d", sign, amountP/100, amountP%100)
}
