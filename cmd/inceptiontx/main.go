package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fulldump/goconfig"

	"github.com/fulldump/inceptiontx/bootstrap"
	"github.com/fulldump/inceptiontx/configuration"
	"github.com/fulldump/inceptiontx/logger"
)

var banner = `
 ___                     _   _          _______  __
|_ _|_ __   ___ ___ _ __ | |_(_) ___  _ _|_   _\ \/ /
 | || '_ \ / __/ _ \ '_ \| __| |/ _ \| '_ \| |  \  / 
 | || | | | (_|  __/ |_) | |_| | (_) | | | | |  /  \ 
|___|_| |_|\___\___| .__/ \__|_|\___/|_| |_|_| /_/\_\
                   |_|           version ` + bootstrap.VERSION + `
`

func main() {

	c := configuration.Default()
	goconfig.Read(&c)

	if c.Version {
		fmt.Println("Version:", bootstrap.VERSION)
		return
	}

	if c.ShowBanner {
		fmt.Println(banner)
	}

	if c.ShowConfig {
		e := json.NewEncoder(os.Stdout)
		e.SetIndent("", "    ")
		e.Encode(c)
	}

	l := logger.Init(c.LogLevel, c.LogFormat)
	defer l.Sync()

	start, _, err := bootstrap.Bootstrap(&c)
	if err != nil {
		l.Sugar().Errorw("bootstrap", "err", err)
		os.Exit(-1)
	}

	start()
}
