// Package cli is the REPL main loop shared by the commissioning tools.
package cli

import (
	"bufio"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	prompt "github.com/c-bata/go-prompt"
	"github.com/mattn/go-isatty"
)

// MainLoop feeds lines to exec until EOF. On a tty it runs an
// interactive prompt with completion, on piped stdin it replays the
// script line by line.
func MainLoop(tag string, exec func(line string), complete func(d prompt.Document) []prompt.Suggest) {
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)
	go func() {
		for range signalCh {
			os.Exit(1)
		}
	}()

	if isatty.IsTerminal(os.Stdin.Fd()) {
		prompt.New(exec, complete, prompt.OptionPrefix(tag+"> ")).Run()
		return
	}
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		exec(strings.TrimSpace(sc.Text()))
	}
	if err := sc.Err(); err != nil {
		log.Fatal(err)
	}
}
