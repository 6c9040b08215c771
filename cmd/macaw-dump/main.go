// macaw-dump inspects signature snapshots and call-shape profile databases.
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/mattn/go-isatty"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/macaw/config"
	"github.com/chazu/macaw/profile"
	"github.com/chazu/macaw/vm"
	"github.com/chazu/macaw/vm/snapshot"
)

func main() {
	snapshotPath := flag.String("snapshot", "", "Signature snapshot file to dump")
	profilePath := flag.String("profile", "", "Call-shape profile database to dump")
	top := flag.Int("top", 10, "Number of shapes to list from the profile")
	configDir := flag.String("config", "", "Directory containing macaw.toml (default: search upward from the working directory)")
	verbosity := flag.Int("verbosity", 0, "Log verbosity (higher is noisier)")
	noColor := flag.Bool("no-color", false, "Disable color output even on a terminal")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: macaw-dump [options]\n\n")
		fmt.Fprintf(os.Stderr, "Renders signature snapshots and call-shape profiles as text.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  macaw-dump -snapshot call.sig          # Dump one captured signature\n")
		fmt.Fprintf(os.Stderr, "  macaw-dump -profile shapes.db -top 20  # List the 20 hottest call shapes\n")
	}
	flag.Parse()

	commonlog.Configure(*verbosity, nil)

	if *snapshotPath == "" && *profilePath == "" {
		flag.Usage()
		os.Exit(2)
	}

	color := !*noColor && isatty.IsTerminal(os.Stdout.Fd())

	cfg, err := loadConfig(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	if *snapshotPath != "" {
		if err := dumpSnapshot(*snapshotPath, cfg, color); err != nil {
			fmt.Fprintf(os.Stderr, "Error dumping snapshot: %v\n", err)
			os.Exit(1)
		}
	}
	if *profilePath != "" {
		if err := dumpProfile(*profilePath, *top, color); err != nil {
			fmt.Fprintf(os.Stderr, "Error dumping profile: %v\n", err)
			os.Exit(1)
		}
	}
}

func loadConfig(dir string) (*config.Config, error) {
	if dir != "" {
		return config.Load(dir)
	}
	wd, err := os.Getwd()
	if err != nil {
		return config.Default(), nil
	}
	return config.FindAndLoad(wd)
}

func tuningFromConfig(cfg *config.Config) vm.Tuning {
	return vm.Tuning{
		PoolSlotThreshold: cfg.Memory.PoolSlotThreshold,
		PoolMaxBlocks:     cfg.Memory.PoolMaxBlocks,
		SignatureFreeList: cfg.Memory.SignatureFreeList,
		GCTrace:           cfg.GC.Trace,
		GCStress:          cfg.GC.Stress,
	}
}

func heading(text string, color bool) string {
	if color {
		return "\x1b[1m" + text + "\x1b[0m"
	}
	return text
}

func dumpSnapshot(path string, cfg *config.Config, color bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	img, err := snapshot.Unmarshal(data)
	if err != nil {
		return err
	}

	ip := vm.NewInterpWithTuning(tuningFromConfig(cfg))
	sig := snapshot.Restore(ip, img)
	defer sig.Free()

	fmt.Println(heading(fmt.Sprintf("Signature %s", path), color))
	fmt.Printf("  positionals: %d\n", sig.NumPositionals())
	sig.Cells(func(idx int, c vm.Cell) {
		fmt.Printf("    [%d] %s\n", idx, c)
	})

	if n := sig.NumNamed(); n > 0 {
		fmt.Printf("  named: %d\n", n)
		type entry struct {
			key  string
			cell vm.Cell
		}
		var entries []entry
		sig.NamedCells(func(key *vm.String, c vm.Cell) {
			entries = append(entries, entry{key.Text(), c})
		})
		sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })
		for _, e := range entries {
			fmt.Printf("    %s = %s\n", e.key, e.cell)
		}
	}

	if ss := sig.ShortSig(); ss != nil {
		fmt.Printf("  short signature: %s\n", ss.Text())
	}
	if tt := sig.TypeTuple(); tt != nil {
		if elems, ok := ip.IntArrayElements(tt); ok {
			fmt.Printf("  type tuple: %v\n", elems)
		} else {
			fmt.Printf("  type tuple: %s\n", tt.ClassName())
		}
	}
	if af := sig.ArgFlags(); af != nil {
		if elems, ok := ip.IntArrayElements(af); ok {
			fmt.Printf("  arg flags: %v\n", elems)
		}
	}
	if rf := sig.ReturnFlags(); rf != nil {
		if elems, ok := ip.IntArrayElements(rf); ok {
			fmt.Printf("  return flags: %v\n", elems)
		}
	}
	return nil
}

func dumpProfile(path string, top int, color bool) error {
	shapes, err := profile.ReadTopShapes(path, top)
	if err != nil {
		return err
	}

	fmt.Println(heading(fmt.Sprintf("Top %d call shapes in %s", top, path), color))
	if len(shapes) == 0 {
		fmt.Println("  (no recorded shapes)")
		return nil
	}
	fmt.Printf("  %-12s %-8s %-16s %s\n", "positionals", "named", "kinds", "calls")
	for _, s := range shapes {
		kinds := s.Kinds
		if kinds == "" {
			kinds = "-"
		}
		fmt.Printf("  %-12d %-8d %-16s %d\n", s.Positionals, s.Named, kinds, s.Calls)
	}
	return nil
}
