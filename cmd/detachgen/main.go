// Command detachgen writes Detached methods for the struct types of a
// package that carry a //liverepo:model comment.
//
//	//go:generate go run github.com/fulldump/liverepo/cmd/detachgen
package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/fulldump/goconfig"
	"github.com/natefinch/atomic"
)

type Config struct {
	Dir    string `usage:"package directory to scan"`
	DryRun bool   `usage:"print the generated code instead of writing it"`
}

func main() {
	c := Config{
		Dir: ".",
	}
	goconfig.Read(&c)

	err := run(c)
	if err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, "detachgen:", err.Error())
		os.Exit(1)
	}
}

func run(c Config) error {
	pkg, models, err := parseModels(c.Dir)
	if err != nil {
		return err
	}
	if len(models) == 0 {
		return fmt.Errorf("no //%s types found in %s", marker, c.Dir)
	}

	code, err := render(pkg, models)
	if err != nil {
		return fmt.Errorf("format: %w", err)
	}

	if c.DryRun {
		_, err := os.Stdout.Write(code)
		return err
	}

	err = atomic.WriteFile(outputPath(c.Dir), bytes.NewReader(code))
	if err != nil {
		return err
	}

	color.Green("detachgen: %d models written to %s", len(models), outputPath(c.Dir))
	return nil
}
