// Command rulecheck compile-checks OrbiCheck rule packs before deploy.
// Expressions compile against the same engine the server runs, so a
// pack that passes here loads cleanly under RULES_FILE.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/guillemso1er/orbitcheck-sub001/pkg/rules"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: rulecheck <pack.yaml> [pack.yaml ...]")
		os.Exit(2)
	}

	engine, err := rules.NewEngine(slog.New(slog.DiscardHandler))
	if err != nil {
		fmt.Fprintf(os.Stderr, "rulecheck: engine: %v\n", err)
		os.Exit(1)
	}

	failed := false
	for _, path := range os.Args[1:] {
		pack, err := rules.LoadPack(path, engine)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed = true
			continue
		}
		fmt.Printf("%s: %d rules\n", path, len(pack))
		for _, r := range pack {
			state := "enabled"
			if !r.Enabled {
				state = "disabled"
			}
			fmt.Printf("  %-24s %-8s priority=%-3d %s\n", r.ID, r.Action, r.Priority, state)
		}
	}

	if failed {
		os.Exit(1)
	}
	fmt.Println("Rule pack check passed.")
}
