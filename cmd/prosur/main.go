// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/ezrec/prosur/bios"
	"github.com/ezrec/prosur/emulator"
)

// DEFAULT_FIRMWARE is the firmware image booted when none is named.
const DEFAULT_FIRMWARE = "./../../../../SCPH1001.BIN"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	status := run(ctx, os.Args[0], os.Args[1:], os.Stderr)

	stop()
	os.Exit(status)
}

// newLogger creates the diagnostic logger, coloured when writing to a terminal.
func newLogger(output io.Writer) (log *logrus.Logger) {
	color := false
	if file, ok := output.(*os.File); ok {
		color = term.IsTerminal(int(file.Fd()))
	}

	log = logrus.New()
	log.SetOutput(output)
	log.SetFormatter(&logrus.TextFormatter{
		ForceColors:      color,
		DisableColors:    !color,
		DisableTimestamp: true,
	})

	return
}

// run executes the command line, returning the process exit status.
func run(ctx context.Context, name string, args []string, output io.Writer) int {
	var compile string
	var save string
	var verbose bool
	var cycles int

	flags := flag.NewFlagSet(name, flag.ContinueOnError)
	flags.SetOutput(output)
	flags.StringVar(&compile, "c", "", ".s file to assemble into the firmware image")
	flags.StringVar(&save, "s", "", "Save the assembled firmware image, do not execute")
	flags.BoolVar(&verbose, "v", false, "Verbose mode")
	flags.IntVar(&cycles, "n", 0, "Stop after this many cycles (0 runs until halted)")
	flags.Usage = func() {
		fmt.Fprintf(flags.Output(), "Usage: %v [options] [firmware]\n\n", name)
		fmt.Fprintf(flags.Output(), "Boots firmware (default %v).\n\nOptions:\n", DEFAULT_FIRMWARE)
		flags.PrintDefaults()
	}

	err := flags.Parse(args)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		return 2
	}

	log := newLogger(output)

	if flags.NArg() > 1 {
		log.Errorf("%v: unknown arguments: %v", name, flags.Args()[1:])
		return 2
	}

	if len(save) != 0 && len(compile) == 0 {
		log.Errorf("%v: -s needs a source file to assemble (-c)", name)
		return 2
	}

	emu := emulator.NewEmulator(nil, log)
	emu.Verbose = verbose

	if len(compile) != 0 {
		inf, err := os.Open(compile)
		if err != nil {
			log.Errorf("%v: %v", compile, err)
			return 1
		}
		defer inf.Close()

		err = emu.Assemble(inf)
		if err != nil {
			log.Errorf("%v: %v", compile, err)
			return 1
		}

		if len(save) != 0 {
			err = os.WriteFile(save, emu.Bios.Bytes(), 0o644)
			if err != nil {
				log.Errorf("%v: %v", save, err)
				return 1
			}
			return 0
		}
	} else {
		path := DEFAULT_FIRMWARE
		if flags.NArg() == 1 {
			path = flags.Arg(0)
		}

		// A firmware that fails to load boots as all-zero.
		rom, _ := bios.Load(path, log)
		emu.Bios = rom
		emu.Cpu.Bios = rom
	}

	emu.Reset()

	err = emu.Run(ctx, cycles)
	if verbose {
		log.Debugf("cpu state:\n%v", emu.Cpu)
	}
	if err != nil {
		log.Errorf("%v", err)
		return 1
	}

	return 0
}
