// Interactive meter REPL for commissioning and debugging.
package main

import (
	"encoding/hex"
	"flag"
	"os"
	"strconv"
	"strings"
	"time"

	prompt "github.com/c-bata/go-prompt"
	"github.com/juju/errors"

	"github.com/matthijsvisser/kamstrup-402-mqtt/helpers/cli"
	"github.com/matthijsvisser/kamstrup-402-mqtt/kamstrup"
	"github.com/matthijsvisser/kamstrup-402-mqtt/log2"
)

const usage = `syntax: commands separated by whitespace
(main)
- read=N[,N...]  read parameters in one request, by name or hex id,
                 e.g. read=energy,volume or read=0x003c
- regs           list known parameter names
- @XX...         transmit payload from hex XX..., show decoded response
- sN             pause N milliseconds

(meta)
- log=yes  enable debug logging
- log=no   disable debug logging
- loop=N   repeat N times all commands on this line
`

var log = log2.NewStderr(log2.LDebug)

func main() {
	cmdline := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	devicePath := cmdline.String("device", "/dev/ttyUSB0", "serial port with the optical head")
	baud := cmdline.Int("baud", kamstrup.DefaultBaud, "")
	timeoutMs := cmdline.Int("timeout", 2000, "reply timeout, milliseconds")
	cmdline.Parse(os.Args[1:])

	log.SetFlags(log2.LInteractiveFlags)

	session := kamstrup.NewSession(kamstrup.NewSerialUart(log), kamstrup.SessionOptions{
		Device:       *devicePath,
		Baud:         *baud,
		Attempts:     1,
		ReplyTimeout: time.Duration(*timeoutMs) * time.Millisecond,
	}, log)
	defer session.Close()

	cli.MainLoop("kamstrup-cli", newExecutor(session), newCompleter())
}

func doUsage() error { log.Infof(usage); return nil }

func doRegs() error {
	for _, r := range kamstrup.Registers {
		log.Infof("%s %-14s %s", r.Id, r.Name, r.Help)
	}
	return nil
}

func newCompleter() func(d prompt.Document) []prompt.Suggest {
	suggests := []prompt.Suggest{
		prompt.Suggest{Text: "regs", Description: "list known parameter names"},
		prompt.Suggest{Text: "sN", Description: "pause for N ms"},
		prompt.Suggest{Text: "loop=N", Description: "repeat line N times"},
		prompt.Suggest{Text: "@XX", Description: "transmit raw payload, show response"},
	}
	for _, r := range kamstrup.Registers {
		suggests = append(suggests, prompt.Suggest{Text: "read=" + r.Name, Description: r.Help})
	}

	return func(d prompt.Document) []prompt.Suggest {
		return prompt.FilterFuzzy(suggests, d.GetWordBeforeCursor(), true)
	}
}

func newExecutor(session *kamstrup.Session) func(string) {
	return func(line string) {
		cmds, loopn, err := parseLine(session, line)
		if err != nil {
			log.Errorf(errors.ErrorStack(err))
			// TODO continue when input is interactive (tty)
			return
		}
		for i := uint(0); i < loopn; i++ {
			for _, cmd := range cmds {
				if err = cmd(); err != nil {
					log.Errorf(errors.ErrorStack(err))
					return
				}
			}
		}
	}
}

func parseLine(session *kamstrup.Session, line string) ([]func() error, uint, error) {
	words := strings.Fields(line)
	loopn := uint(1)
	loopSet := false
	cmds := make([]func() error, 0, len(words))
	for _, word := range words {
		switch {
		case word == "help":
			return []func() error{doUsage}, 1, nil
		case strings.HasPrefix(word, "loop="):
			if loopSet {
				return nil, 0, errors.Errorf("multiple loop commands, expected at most one")
			}
			i, err := strconv.ParseUint(word[5:], 10, 32)
			if err != nil {
				return nil, 0, errors.Annotatef(err, "word=%s", word)
			}
			loopn = uint(i)
			loopSet = true
		default:
			cmd, err := parseCommand(session, word)
			if err != nil {
				return nil, 0, err
			}
			cmds = append(cmds, cmd)
		}
	}
	return cmds, loopn, nil
}

func parseCommand(session *kamstrup.Session, word string) (func() error, error) {
	switch {
	case word == "log=yes":
		return func() error { log.SetLevel(log2.LDebug); return nil }, nil
	case word == "log=no":
		return func() error { log.SetLevel(log2.LInfo); return nil }, nil
	case word == "regs":
		return doRegs, nil
	case strings.HasPrefix(word, "read="):
		return newRead(session, word[len("read="):])
	case word[0] == 's':
		i, err := strconv.ParseUint(word[1:], 10, 32)
		if err != nil {
			return nil, errors.Annotatef(err, "word=%s", word)
		}
		return func() error {
			time.Sleep(time.Duration(i) * time.Millisecond)
			return nil
		}, nil
	case word[0] == '@':
		payload, err := hex.DecodeString(word[1:])
		if err != nil {
			return nil, errors.Annotatef(err, "word=%s", word)
		}
		return newTx(session, payload), nil
	default:
		return nil, errors.Errorf("error: invalid command: '%s'", word)
	}
}

func newRead(session *kamstrup.Session, arg string) (func() error, error) {
	tokens := strings.Split(arg, ",")
	ids := make([]kamstrup.RegisterId, 0, len(tokens))
	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		if strings.HasPrefix(tok, "0x") || strings.HasPrefix(tok, "0X") {
			n, err := strconv.ParseUint(tok[2:], 16, 16)
			if err != nil {
				return nil, errors.Annotatef(err, "register id %s", tok)
			}
			ids = append(ids, kamstrup.RegisterId(n))
			continue
		}
		r, ok := kamstrup.RegisterByName(tok)
		if !ok {
			return nil, errors.Errorf("unknown parameter '%s', try regs", tok)
		}
		ids = append(ids, r.Id)
	}
	if len(ids) == 0 {
		return nil, errors.Errorf("read= needs at least one parameter")
	}

	return func() error {
		values, err := session.ReadRegisters(nil, ids)
		if err != nil {
			return err
		}
		for _, v := range values {
			name := v.Register.String()
			if r, ok := kamstrup.RegisterById(v.Register); ok {
				name = r.Name
			}
			unit, _ := v.Unit()
			log.Infof("%s = %s %s", name, strconv.FormatFloat(v.Value(), 'f', -1, 64), unit)
		}
		return nil
	}, nil
}

func newTx(session *kamstrup.Session, payload []byte) func() error {
	return func() error {
		response, err := session.TxRaw(nil, payload)
		if err != nil {
			return err
		}
		log.Infof("< %x", response)
		return nil
	}
}
