// Command proteus is the Proteus CLI: it runs simulations, assembles and
// disassembles genomes, and inspects checkpoint files. Flag parsing follows
// rcornwell/S370's getopt-based main(), adapted to a verb-first CLI ("proteus
// run -c soup.conf") since Proteus has several distinct operations rather
// than one long-running emulator process.
package main

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	getopt "github.com/pborman/getopt/v2"

	"proteus/asm"
	"proteus/checkpoint"
	"proteus/config"
	"proteus/disasm"
	"proteus/liveview"
	"proteus/sim"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		usage()
		return 1
	}
	verb, rest := args[0], args[1:]

	// getopt treats the first element as the program name, so the verb
	// stays at the front of the slice handed to each verb's flag set.
	switch verb {
	case "run":
		return cmdRun(args)
	case "assemble":
		return cmdAssemble(args)
	case "disassemble":
		return cmdDisassemble(args)
	case "checkpoint":
		return cmdCheckpoint(rest)
	case "analyze":
		return cmdAnalyze(args)
	case "info":
		return cmdInfo(rest)
	case "-h", "--help", "help":
		usage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "proteus: unknown verb %q\n", verb)
		usage()
		return 1
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: proteus <verb> [options]

Verbs:
  run           run a simulation from a configuration file
  assemble      assemble a .asm genome source file into soup words
  disassemble   render soup words back to assembly text
  checkpoint    inspect or compare checkpoint files (info | diff)
  analyze       report soup entropy and fragmentation over a checkpoint
  info          print a one-line description of the program`)
}

func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// cmdRun executes "proteus run": load config, inject genomes (or resume
// from a checkpoint), run the requested number of cycles, optionally
// streaming frames to a liveview websocket hub, and optionally writing a
// final checkpoint.
func cmdRun(args []string) int {
	set := getopt.New()
	cfgPath := set.StringLong("config", 'c', "", "configuration file")
	resumePath := set.StringLong("resume", 'r', "", "resume from a checkpoint file instead of the config's injections")
	outPath := set.StringLong("out", 'o', "", "write a final checkpoint to this path")
	serve := set.StringLong("serve", 's', "", "address to serve a liveview websocket on, e.g. :8080")
	debug := set.BoolLong("debug", 'd', "enable debug logging")
	help := set.BoolLong("help", 'h', "help")
	if err := set.Getopt(args, nil); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *help {
		set.PrintUsage(os.Stderr)
		return 0
	}
	if *cfgPath == "" {
		fmt.Fprintln(os.Stderr, "proteus run: --config is required")
		return 1
	}

	log := newLogger(*debug)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Error("load config", "err", err)
		return 1
	}

	var s *sim.Simulator
	if *resumePath != "" {
		f, err := os.Open(*resumePath)
		if err != nil {
			log.Error("open checkpoint", "err", err)
			return 1
		}
		s, err = checkpoint.Load(f, log)
		f.Close()
		if err != nil {
			log.Error("load checkpoint", "err", err)
			return 1
		}
	} else {
		s = sim.New(cfg.Sim, log)
		for _, inj := range cfg.Injections {
			genome, err := loadGenome(inj.Path)
			if err != nil {
				log.Error("load genome", "path", inj.Path, "err", err)
				return 1
			}
			if _, err := s.Inject(genome, inj.Addr); err != nil {
				log.Error("inject genome", "path", inj.Path, "err", err)
				return 1
			}
		}
	}

	var hub *liveview.Hub
	if *serve != "" {
		hub = liveview.NewHub(log)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go hub.Run(ctx)

		mux := http.NewServeMux()
		mux.HandleFunc("/ws", hub.ServeWS)
		server := &http.Server{Addr: *serve, Handler: mux}
		go func() {
			log.Info("liveview listening", "addr", *serve)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("liveview server", "err", err)
			}
		}()
		defer server.Close()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	cycles := cfg.Cycles
	if cycles <= 0 {
		cycles = 1
	}

	var i int64
	for ; i < cycles; i++ {
		select {
		case <-sigCh:
			log.Info("interrupted, stopping early", "cycle", s.Cycle())
			i = cycles
		default:
		}
		if i >= cycles {
			break
		}
		fr := s.RunOneCycle()
		if hub != nil {
			hub.Publish(fr)
		}
		if fr.Population == 0 {
			log.Info("population extinct", "cycle", s.Cycle())
			break
		}
	}

	log.Info("run complete", "cycle", s.Cycle(), "population", s.Table.Count(), "stats", s.Stats())

	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			log.Error("create checkpoint", "err", err)
			return 1
		}
		defer f.Close()
		if err := checkpoint.Save(f, s); err != nil {
			log.Error("save checkpoint", "err", err)
			return 1
		}
		log.Info("checkpoint written", "path", *outPath)
	}
	return 0
}

func cmdAssemble(args []string) int {
	set := getopt.New()
	in := set.StringLong("in", 'i', "", "assembly source file")
	out := set.StringLong("out", 'o', "", "output soup-word file")
	help := set.BoolLong("help", 'h', "help")
	if err := set.Getopt(args, nil); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *help || *in == "" || *out == "" {
		set.PrintUsage(os.Stderr)
		return 1
	}

	src, err := os.ReadFile(*in)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	words, err := asm.Assemble(string(src))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if err := writeWords(*out, words); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func cmdDisassemble(args []string) int {
	set := getopt.New()
	in := set.StringLong("in", 'i', "", "soup-word file")
	help := set.BoolLong("help", 'h', "help")
	if err := set.Getopt(args, nil); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *help || *in == "" {
		set.PrintUsage(os.Stderr)
		return 1
	}
	words, err := readWords(*in)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()
	return boolToExit(disasm.Write(w, disasm.Disassemble(words)) == nil)
}

func cmdCheckpoint(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "proteus checkpoint: expected a subcommand (info | diff)")
		return 1
	}
	switch args[0] {
	case "info":
		return cmdCheckpointInfo(args)
	case "diff":
		return cmdCheckpointDiff(args)
	default:
		fmt.Fprintf(os.Stderr, "proteus checkpoint: unknown subcommand %q\n", args[0])
		return 1
	}
}

func cmdCheckpointInfo(args []string) int {
	set := getopt.New()
	in := set.StringLong("in", 'i', "", "checkpoint file")
	if err := set.Getopt(args, nil); err != nil || *in == "" {
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
		set.PrintUsage(os.Stderr)
		return 1
	}

	f, err := os.Open(*in)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer f.Close()
	s, err := checkpoint.Load(f, slog.New(slog.NewTextHandler(os.Stderr, nil)))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("cycle:       %d\n", s.Cycle())
	fmt.Printf("population:  %d\n", s.Table.Count())
	fmt.Printf("soup size:   %d\n", s.Soup.Len())
	fmt.Printf("stats:       %+v\n", s.Stats())
	fmt.Printf("soup occupancy: %+v\n", s.Soup.Stats())
	return 0
}

func cmdCheckpointDiff(args []string) int {
	set := getopt.New()
	a := set.StringLong("a", 'a', "", "first checkpoint file")
	b := set.StringLong("b", 'b', "", "second checkpoint file")
	if err := set.Getopt(args, nil); err != nil || *a == "" || *b == "" {
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
		set.PrintUsage(os.Stderr)
		return 1
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	sa, err := loadCheckpoint(*a, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	sb, err := loadCheckpoint(*b, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	fmt.Printf("cycle:      %d -> %d\n", sa.Cycle(), sb.Cycle())
	fmt.Printf("population: %d -> %d\n", sa.Table.Count(), sb.Table.Count())
	fmt.Printf("stats:      %+v -> %+v\n", sa.Stats(), sb.Stats())
	return 0
}

func loadCheckpoint(path string, log *slog.Logger) (*sim.Simulator, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return checkpoint.Load(f, log)
}

// cmdAnalyze is the batch-mode analogue of the teacher's live entropy
// display (RunStatistics): load a checkpoint and report soup occupancy,
// fragmentation, and word-value entropy without running any cycles.
func cmdAnalyze(args []string) int {
	set := getopt.New()
	in := set.StringLong("in", 'i', "", "checkpoint file")
	if err := set.Getopt(args, nil); err != nil || *in == "" {
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
		set.PrintUsage(os.Stderr)
		return 1
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	s, err := loadCheckpoint(*in, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	occ := s.Soup.Stats()
	fmt.Printf("cycle:         %d\n", s.Cycle())
	fmt.Printf("population:    %d\n", s.Table.Count())
	fmt.Printf("soup size:     %d\n", s.Soup.Len())
	fmt.Printf("free cells:    %d\n", occ.FreeCells)
	fmt.Printf("largest free:  %d\n", occ.LargestFree)
	fmt.Printf("free runs:     %d\n", occ.FreeRuns)
	fmt.Printf("fragmentation: %.4f\n", occ.Fragmentation)
	fmt.Printf("entropy:       %.4f bits/word\n", s.Soup.Entropy())
	return 0
}

func cmdInfo(args []string) int {
	fmt.Println("proteus: Tierra-style artificial-life simulator")
	return 0
}

// loadGenome reads a genome file: ".asm" files are assembled from source,
// anything else is read as raw big-endian int32 soup words (the format
// cmdAssemble writes).
func loadGenome(path string) ([]int32, error) {
	if strings.EqualFold(filepath.Ext(path), ".asm") {
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return asm.Assemble(string(src))
	}
	return readWords(path)
}

func writeWords(path string, words []int32) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	for _, word := range words {
		if err := binary.Write(w, binary.BigEndian, word); err != nil {
			return err
		}
	}
	return w.Flush()
}

func readWords(path string) ([]int32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("%s: length %d not a multiple of 4", path, len(data))
	}
	words := make([]int32, len(data)/4)
	for i := range words {
		words[i] = int32(binary.BigEndian.Uint32(data[i*4:]))
	}
	return words, nil
}

func boolToExit(ok bool) int {
	if ok {
		return 0
	}
	return 1
}
