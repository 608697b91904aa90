package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/fulldump/goconfig"
)

type Config struct {
	Test    string `usage:"name of the test: ALL | INSERT | REMOVE"`
	Base    string `usage:"base URL, empty starts a server on a temp dir"`
	N       int64  `usage:"number of users"`
	Workers int    `usage:"number of workers"`
}

var cleanups []func()

func main() {

	defer func() {
		fmt.Println("Cleaning up...")
		for _, cleanup := range cleanups {
			cleanup()
		}
	}()

	c := Config{
		Test:    "insert",
		N:       10_000,
		Workers: 16,
	}
	goconfig.Read(&c)

	switch strings.ToUpper(c.Test) {
	case "ALL":
		TestInsert(c)
		TestRemove(c)
	case "INSERT":
		TestInsert(c)
	case "REMOVE":
		TestRemove(c)
	default:
		color.Red("Unknown test %s", c.Test)
	}
}
