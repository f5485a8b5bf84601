// Copyright (C) 2024  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Command binbloom searches a raw firmware image for its endianness,
// its most likely load (base) address, and the location of a UDS
// diagnostic request-ID database, with no symbols or file headers to
// go on.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/datawire/dlib/dgroup"
	"github.com/datawire/dlib/dlog"
	"github.com/datawire/ocibuild/pkg/cliutil"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/binbloom-go/binbloom/lib/analysis"
	"github.com/binbloom-go/binbloom/lib/binaddr"
	"github.com/binbloom-go/binbloom/lib/binbuf"
	"github.com/binbloom-go/binbloom/lib/indexer"
	"github.com/binbloom-go/binbloom/lib/profile"
)

// archFlag parses "-a 32|64".
type archFlag struct{ arch binbuf.Arch }

func (f *archFlag) String() string { return strconv.Itoa(int(f.arch.Size() * 8)) }
func (f *archFlag) Type() string   { return "32|64" }
func (f *archFlag) Set(s string) error {
	switch s {
	case "32":
		f.arch = binbuf.Arch32
	case "64":
		f.arch = binbuf.Arch64
	default:
		return fmt.Errorf("architecture must be 32 or 64, got %q", s)
	}
	return nil
}

// endianFlag parses "-e le|be".
type endianFlag struct{ endian binbuf.Endianness }

func (f *endianFlag) String() string {
	if f.endian == binbuf.EndianUnknown {
		return ""
	}
	return strings.ToLower(f.endian.String())
}
func (f *endianFlag) Type() string { return "le|be" }
func (f *endianFlag) Set(s string) error {
	switch strings.ToLower(s) {
	case "le":
		f.endian = binbuf.EndianLE
	case "be":
		f.endian = binbuf.EndianBE
	default:
		return fmt.Errorf("endianness must be le or be, got %q", s)
	}
	return nil
}

// addrFlag parses "-b 0xADDR".  The value is read as hex whether or
// not it carries a "0x" prefix, so an all-digit string such as "4096"
// means 0x4096; only a string that is not valid hex falls back to
// strconv's base-prefix parsing.
type addrFlag struct {
	set  bool
	addr uint64
}

func (f *addrFlag) String() string {
	if !f.set {
		return ""
	}
	return fmt.Sprintf("%#x", f.addr)
}
func (f *addrFlag) Type() string { return "addr" }
func (f *addrFlag) Set(s string) error {
	v, err := strconv.ParseUint(strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X"), 16, 64)
	if err != nil {
		v2, err2 := strconv.ParseUint(s, 0, 64)
		if err2 != nil {
			return fmt.Errorf("invalid address %q: %w", s, err)
		}
		v = v2
	}
	f.addr = v
	f.set = true
	return nil
}

func main() {
	var (
		arch       = archFlag{arch: binbuf.Arch32}
		endianness endianFlag
		base       addrFlag
		alignFlag  string
		deep       bool
		workers    int
		symbols    string
		jsonOut    bool
		verbosity  int
	)

	cmd := &cobra.Command{
		Use:   "binbloom FIRMWARE",
		Short: "Find endianness, base address, and UDS database location in a raw firmware image",
		Args:  cliutil.WrapPositionalArgs(cobra.ExactArgs(1)),

		SilenceErrors: true,
		SilenceUsage:  true,

		CompletionOptions: cobra.CompletionOptions{ //nolint:exhaustivestruct
			DisableDefaultCmd: true,
		},
	}
	cmd.SetFlagErrorFunc(cliutil.FlagErrorFunc)
	cmd.SetHelpTemplate(cliutil.HelpTemplate)

	flags := cmd.Flags()
	flags.VarP(&arch, "arch", "a", "target architecture, 32 or 64")
	flags.VarP(&endianness, "endian", "e", "force endianness instead of detecting it")
	flags.VarP(&base, "base", "b", "skip base-address search; locate UDS data under this base")
	flags.StringVarP(&alignFlag, "align", "m", "0x1000", "candidate memory alignment (decimal or 0x...)")
	flags.BoolVarP(&deep, "deep", "d", false, "deep mode: don't trim the candidate working set to 30")
	flags.IntVarP(&workers, "threads", "t", runtime.NumCPU(), "worker thread count for candidate refinement (capped at online CPU count)")
	flags.StringVarP(&symbols, "functions", "f", "", "symbols `file` (lines of \"0x<hex> name\")")
	flags.BoolVar(&jsonOut, "json", false, "also print the results as a single JSON object after the text lines")
	flags.CountVarP(&verbosity, "verbose", "v", "increase log verbosity (repeatable up to 4)")
	stopProfiling := profile.AddProfileFlags(flags, "profile-")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		firmwarePath := args[0]

		if workers < 1 {
			workers = 1
		}
		if cpus := runtime.NumCPU(); workers > cpus {
			workers = cpus
		}

		align, err := parseAlign(alignFlag)
		if err != nil {
			return err
		}

		logger := logrus.New()
		logger.SetLevel(verbosityToLevel(verbosity))
		ctx := dlog.WithLogger(cmd.Context(), dlog.WrapLogrus(logger))

		grp := dgroup.NewGroup(ctx, dgroup.GroupConfig{
			EnableSignalHandling: true,
		})
		grp.Go("main", func(ctx context.Context) error {
			defer func() {
				if err := stopProfiling(); err != nil {
					dlog.Errorf(ctx, "stopping profilers: %v", err)
				}
			}()
			return run(ctx, runConfig{
				firmwarePath: firmwarePath,
				arch:         arch.arch,
				endian:       endianness.endian,
				base:         base,
				align:        align,
				deep:         deep,
				workers:      workers,
				symbolsPath:  symbols,
				jsonOut:      jsonOut,
			})
		})
		return grp.Wait()
	}

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "binbloom:", err)
		os.Exit(1)
	}
}

func parseAlign(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
		base = 16
	}
	v, err := strconv.ParseUint(s, base, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid alignment %q: %w", s, err)
	}
	if v == 0 {
		v = 1
	}
	return v, nil
}

func verbosityToLevel(v int) logrus.Level {
	switch {
	case v <= 0:
		return logrus.WarnLevel
	case v == 1:
		return logrus.InfoLevel
	case v == 2:
		return logrus.DebugLevel
	default:
		return logrus.TraceLevel
	}
}

type runConfig struct {
	firmwarePath string
	arch         binbuf.Arch
	endian       binbuf.Endianness
	base         addrFlag
	align        uint64
	deep         bool
	workers      int
	symbolsPath  string
	jsonOut      bool
}

// jsonResult is the shape emitted under --json, after the text lines.
// It carries the facts those lines print; fields left at their zero
// value are omitted, so "confident" appears only when it is true.
type jsonResult struct {
	Endianness string `json:"endianness,omitempty"`
	BaseAddr   string `json:"base_address,omitempty"`
	Confident  bool   `json:"confident,omitempty"`
	POICount   int    `json:"poi_count,omitempty"`
	UDSAddr    string `json:"uds_address,omitempty"`
	UDSCount   int    `json:"uds_rid_count,omitempty"`
}

func run(ctx context.Context, cfg runConfig) error {
	content, err := os.ReadFile(cfg.firmwarePath)
	if err != nil {
		return fmt.Errorf("cannot access file %q: %w", cfg.firmwarePath, err)
	}
	if len(content) < cfg.arch.Size() {
		return fmt.Errorf("input file must be at least %d bytes", cfg.arch.Size())
	}
	dlog.Infof(ctx, "file read (%d bytes)", len(content))

	var symbols map[uint64]string
	if cfg.symbolsPath != "" {
		f, err := os.Open(cfg.symbolsPath)
		if err != nil {
			return fmt.Errorf("cannot open symbols file %q: %w", cfg.symbolsPath, err)
		}
		symbols, err = indexer.ParseSymbols(f)
		_ = f.Close()
		if err != nil {
			return fmt.Errorf("reading symbols file %q: %w", cfg.symbolsPath, err)
		}
	}

	a := analysis.New(content, analysis.Config{
		Arch:    cfg.arch,
		Endian:  cfg.endian,
		Align:   cfg.align,
		Deep:    cfg.deep,
		Workers: cfg.workers,
		Symbols: symbols,
	})

	result := jsonResult{}

	base := binaddr.Address(0)
	if cfg.base.set {
		base = binaddr.Address(cfg.base.addr)
		if a.Endian == binbuf.EndianUnknown {
			return fmt.Errorf("-b requires -e: endianness must be known to locate UDS data at a fixed base")
		}
		fmt.Printf("[i] Using base address %v\n", base)
		result.BaseAddr = fmt.Sprintf("%#x", uint64(base))
	} else {
		baseResult, err := a.BaseAddress(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("[i] Endianness is %v\n", baseResult.Endian)
		fmt.Printf("[i] Base address found: %v (confidence=%v, %d POIs indexed)\n", baseResult.PtrBase, baseResult.Refined.Confident, baseResult.POICount)
		base = baseResult.PtrBase

		result.Endianness = strings.ToLower(baseResult.Endian.String())
		result.BaseAddr = fmt.Sprintf("%#x", uint64(baseResult.PtrBase))
		result.Confident = baseResult.Refined.Confident
		result.POICount = baseResult.POICount
	}

	coherent, err := a.CoherentData(ctx, base)
	if err != nil {
		return err
	}
	if coherent.UDSFound {
		fmt.Printf("Most probable UDS DB is located at %v, found %d different UDS RID\n", coherent.UDSAddress, coherent.UDS.Count)
		result.UDSAddr = fmt.Sprintf("%#x", uint64(coherent.UDSAddress))
		result.UDSCount = coherent.UDS.Count
	} else {
		dlog.Infof(ctx, "no UDS database found")
	}

	if cfg.jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}
	}

	return nil
}
