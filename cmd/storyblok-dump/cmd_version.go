/*
Copyright © 2024 paul <paul@denknerd.org>
*/
package main

import (
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var versionUsage = strings.TrimSpace(`
Show version information
`)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: versionUsage,
	Long:  versionUsage,
	RunE:  versionRun,
	Args:  cobra.ExactArgs(0),
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// buildInfo is what we could learn about the running binary.
type buildInfo struct {
	version    string
	revision   string
	lastCommit time.Time
	dirty      bool
	goVersion  string
}

func readBuildInfo() (buildInfo, error) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return buildInfo{}, fmt.Errorf("cmd_version: could not read build info")
	}

	// Main.Version is the tag when built with "go install url/tool@version", "(devel)" otherwise.
	b := buildInfo{version: info.Main.Version, goVersion: info.GoVersion}
	for _, kv := range info.Settings {
		switch kv.Key {
		case "vcs.revision":
			b.revision = kv.Value
		case "vcs.time":
			b.lastCommit, _ = time.Parse(time.RFC3339, kv.Value)
		case "vcs.modified":
			b.dirty = kv.Value == "true"
		}
	}
	return b, nil
}

func (b buildInfo) String() string {
	parts := []string{}
	if b.version != "" && b.version != "(devel)" {
		parts = append(parts, b.version)
	}
	if b.revision != "" {
		parts = append(parts, "rev", b.revision)
		if b.dirty {
			parts = append(parts, "dirty")
		}
	}
	if len(parts) == 0 {
		return "devel"
	}
	return strings.Join(parts, "-")
}

func versionRun(cmd *cobra.Command, args []string) error {
	b, err := readBuildInfo()
	if err != nil {
		return err
	}

	fmt.Printf("storyblok-dump version %s (%s)\n", b, b.goVersion)
	if !b.lastCommit.IsZero() {
		debugLog("last commit: %s\n", b.lastCommit.Format(time.RFC3339))
	}
	return nil
}
