package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/fulldump/goconfig"
	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"

	"github.com/fulldump/liverepo/bootstrap"
	"github.com/fulldump/liverepo/configuration"
)

var banner = `
 _ _                                    
| (_)_   _____ _ __ ___ _ __   ___      
| | \ \ / / _ \ '__/ _ \ '_ \ / _ \     
| | |\ V /  __/ | |  __/ |_) | (_) |    
|_|_| \_/ \___|_|  \___| .__/ \___/     
                       |_|  version ` + bootstrap.VERSION + `
`

func main() {

	c := configuration.Default()
	goconfig.Read(&c)

	if c.Version {
		fmt.Println("Version:", bootstrap.VERSION)
		return
	}

	if c.ShowBanner {
		color.Cyan(banner)
	}

	if c.ShowConfig {
		shown := c
		if shown.Password != "" {
			shown.Password = "********"
		}
		if shown.ApiSecret != "" {
			shown.ApiSecret = "********"
		}
		json.MarshalWrite(os.Stdout, shown, jsontext.WithIndent("    "))
		fmt.Println()
	}

	start, _, err := bootstrap.Bootstrap(&c)
	if err != nil {
		color.Red("ERROR: %s", err)
		os.Exit(1)
	}

	start()
}
