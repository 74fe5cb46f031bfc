package tui

import (
	"fmt"
	"io"
	"os"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// BannerURL is the address announced on startup.
func BannerURL(addr string) string {
	return "http://" + addr + "/"
}

// PrintBanner announces the bound address. The URL is coloured only when w is a terminal.
func PrintBanner(w io.Writer, addr string) {
	url := BannerURL(addr)
	if !isTerminal(w) {
		fmt.Fprintf(w, "Stop-on-Call is running on %s\n", url)
		return
	}

	out := termenv.NewOutput(w)
	name := out.String("Stop-on-Call").Foreground(out.Color("#818cf8")).Bold()
	link := out.String(url).Foreground(out.Color("#f472b6")).Underline()
	fmt.Fprintf(w, "%s is running on %s\n", name, link)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
