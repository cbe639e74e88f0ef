// Command tablepb-gen reads a serialized google.protobuf.FileDescriptorSet
// and emits a Go source file of named, typed accessors over the tablepb
// runtime (spec §6, "generator command surface"): two positional
// arguments, a descriptor-set path and an output path, plus an optional
// -config flag for schema-wide naming overrides.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tablepb/tablepb/internal/compiler"
)

var (
	configPath = flag.String("config", "", "path to an optional YAML generator config file")
	goPackage  = flag.String("go_package", "", "override the emitted package name")
)

func run(descriptorSetPath, outputPath string) error {
	raw, err := os.ReadFile(descriptorSetPath)
	if err != nil {
		return fmt.Errorf("tablepb-gen: reading descriptor set: %w", err)
	}

	var cfg *compiler.GenConfig
	if *configPath != "" {
		cfgBytes, err := os.ReadFile(*configPath)
		if err != nil {
			return fmt.Errorf("tablepb-gen: reading config: %w", err)
		}
		cfg, err = compiler.LoadGenConfig(cfgBytes)
		if err != nil {
			return fmt.Errorf("tablepb-gen: parsing config: %w", err)
		}
	}

	fd, err := parseDescriptorSet(raw)
	if err != nil {
		return fmt.Errorf("tablepb-gen: parsing descriptor set: %w", err)
	}

	src, err := compiler.Generate(fd, *goPackage, cfg)
	if err != nil {
		return fmt.Errorf("tablepb-gen: generating source: %w", err)
	}

	if err := os.WriteFile(outputPath, src, 0o644); err != nil {
		return fmt.Errorf("tablepb-gen: writing output: %w", err)
	}
	return nil
}

func main() {
	flag.Parse()
	if flag.NArg() != 2 {
		fmt.Fprintln(os.Stderr, "usage: tablepb-gen [-config file] <descriptor-set> <output.go>")
		os.Exit(2)
	}

	if err := run(flag.Arg(0), flag.Arg(1)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
