package cmd

import (
	"encoding/json"
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Version is the release string, stamped into release builds:
//
//	go build -ldflags "-X github.com/salasarservices/pulse/cmd.Version=v0.3.1"
//
// Builds without it report the module version recorded by `go install`, or
// "dev".
var Version = ""

// buildInfo describes the running binary.
type buildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	Committed string `json:"committed,omitempty"`
	Modified  bool   `json:"modified,omitempty"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// readBuildInfo combines Version with the VCS stamp the Go toolchain embeds.
func readBuildInfo(info *debug.BuildInfo, ok bool) buildInfo {
	b := buildInfo{
		Version:   Version,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if ok {
		if info.GoVersion != "" {
			b.GoVersion = info.GoVersion
		}
		if b.Version == "" && info.Main.Version != "" && info.Main.Version != "(devel)" {
			b.Version = info.Main.Version
		}
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				b.Commit = s.Value[:min(12, len(s.Value))]
			case "vcs.time":
				b.Committed = s.Value
			case "vcs.modified":
				b.Modified = s.Value == "true"
			}
		}
	}
	if b.Version == "" {
		b.Version = "dev"
	}
	return b
}

// values lays the build info out for printKVTable.
func (b buildInfo) values() map[string]string {
	out := map[string]string{
		"version": b.Version,
		"go":      b.GoVersion,
		"os/arch": b.Platform,
	}
	if b.Commit != "" {
		commit := b.Commit
		if b.Modified {
			commit += " (modified)"
		}
		out["commit"] = commit
	}
	if b.Committed != "" {
		out["committed"] = b.Committed
	}
	return out
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the pulse version and build information",
	Long: `Print the pulse release, the commit it was built from and the Go toolchain.

Use --format json or jsonl for structured output.`,
	Example: `  pulse version
  pulse version --format json | jq .commit`,
	RunE: func(cmd *cobra.Command, args []string) error {
		b := readBuildInfo(debug.ReadBuildInfo())
		w := cmd.OutOrStdout()
		switch globalFlags.Format {
		case "json":
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(b)
		case "jsonl":
			return json.NewEncoder(w).Encode(b)
		default:
			fmt.Fprintln(w, "pulse")
			printKVTable(w, b.values())
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
