// Package config implements the line-oriented "key = value" configuration
// file format of spec.md §9 (soup size, seed, mutation rate, population
// cap, defrag threshold, spawn ownership check, lethal error threshold,
// injected genomes, cycle limit). It reads
// line-by-line with a tracked line number for error reporting, the way
// rcornwell/S370's device config parser reads its own line-oriented format,
// simplified here to flat key/value pairs since Proteus has no device
// model registry to dispatch through.
package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"proteus/sim"
)

// Injection is one genome file to load into the soup at startup.
type Injection struct {
	Path string
	Addr int32
}

// Parsed is the full result of parsing a configuration file: the
// simulator policy knobs plus the run-level settings config.go alone
// knows about (cycle limit, injected genomes).
type Parsed struct {
	Sim        sim.Config
	Cycles     int64
	Injections []Injection
}

// Load reads and parses the configuration file at path.
func Load(path string) (*Parsed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads key/value configuration lines from r. '#' begins a
// comment that runs to end of line; blank lines are ignored. Recognized
// keys not present in the file keep sim.DefaultConfig's value.
func Parse(r io.Reader) (*Parsed, error) {
	p := &Parsed{Sim: sim.DefaultConfig()}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		text := scanner.Text()
		if idx := strings.IndexByte(text, '#'); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		key, value, ok := strings.Cut(text, "=")
		if !ok {
			return nil, fmt.Errorf("config: line %d: expected key = value, got %q", lineNo, text)
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		if err := p.apply(key, value); err != nil {
			return nil, fmt.Errorf("config: line %d: %w", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return p, nil
}

func (p *Parsed) apply(key, value string) error {
	switch key {
	case "soup_size":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("soup_size: %w", err)
		}
		p.Sim.SoupSize = n
	case "seed":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		p.Sim.Seed = n
	case "mutation_rate":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("mutation_rate: %w", err)
		}
		p.Sim.MutationRate = v
	case "max_organisms":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("max_organisms: %w", err)
		}
		p.Sim.MaxOrganisms = n
	case "defrag_theta":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("defrag_theta: %w", err)
		}
		p.Sim.DefragTheta = v
	case "check_spawn_ownership":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("check_spawn_ownership: %w", err)
		}
		p.Sim.CheckSpawnOwnership = v
	case "error_threshold":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("error_threshold: %w", err)
		}
		p.Sim.ErrorThreshold = n
	case "cycles":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("cycles: %w", err)
		}
		p.Cycles = n
	case "inject":
		path, addrStr, has := strings.Cut(value, "@")
		inj := Injection{Path: strings.TrimSpace(path)}
		if has {
			n, err := strconv.ParseInt(strings.TrimSpace(addrStr), 10, 32)
			if err != nil {
				return fmt.Errorf("inject address: %w", err)
			}
			inj.Addr = int32(n)
		}
		p.Injections = append(p.Injections, inj)
	default:
		return fmt.Errorf("unknown key %q", key)
	}
	return nil
}
