package theme

import (
	"fmt"
)

// Banner returns the warm terminal banner shown on startup.
func Banner() string {
	const cyan = "\033[36m"
	const magenta = "\033[35m"
	const yellow = "\033[33m"
	const reset = "\033[0m"

	art := "" +
		"  ☎     " + magenta + "CLOSER" + reset + "     ☎\n" +
		cyan + "   ◜◝ find the hour you are both free ◜◝\n" + reset +
		yellow + "     ────────────────────────────\n" + reset +
		"   a call-time companion for far-flung friends\n"

	return art
}

// PrintBanner prints the banner to stdout.
func PrintBanner() {
	fmt.Print(Banner())
}
