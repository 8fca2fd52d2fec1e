// Copyright (c) 2012-2014 Jeremy Latt
// Copyright (c) 2014-2015 Edmund Huber
// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// Copyright (c) 2026 Rearguard contributors
// released under the MIT license

package main

import (
	"fmt"
	"log"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/docopt/docopt-go"

	"github.com/ergochat/rearguard/irc"
	"github.com/ergochat/rearguard/irc/datastore"
	"github.com/ergochat/rearguard/irc/logger"
)

// set via linker flags, either by make or by goreleaser:
var commit = ""  // git hash
var version = "" // tagged version

// implements the `rearguard sessions` command
func doSessions(config *irc.Config) {
	if !config.Datastore.Enabled {
		log.Fatal("The session datastore is not enabled in ", config.Filename)
	}
	store, err := datastore.Open(config.Datastore.Path, config.Datastore.Retention)
	if err != nil {
		log.Fatal("Could not open datastore: ", err.Error())
	}
	defer store.Close()

	sessions, err := store.Sessions()
	if err != nil {
		log.Fatal("Could not read sessions: ", err.Error())
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPEER\tNICK\tSTARTED\tENDED\tRELAYED\tREASON")
	for _, session := range sessions {
		ended := "-"
		if !session.Open() {
			ended = session.Ended.Format(time.RFC3339)
		}
		nick := session.Nick
		if nick == "" {
			nick = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n", session.ID, session.Peer, nick,
			session.Started.Format(time.RFC3339), ended, session.Relayed, session.Reason)
	}
	w.Flush()
}

func main() {
	irc.SetVersionString(version, commit)
	usage := `rearguard.
Usage:
	rearguard initdb [--conf <filename>] [--quiet]
	rearguard sessions [--conf <filename>]
	rearguard run [--conf <filename>] [--quiet] [--smoke]
	rearguard -h | --help
	rearguard --version
Options:
	--conf <filename>  Configuration file to use [default: rearguard.yaml].
	--quiet            Don't show startup/shutdown lines.
	--smoke            Load the config and open the datastore, then exit.
	-h --help          Show this screen.
	--version          Show version.`

	arguments, _ := docopt.ParseArgs(usage, nil, irc.Ver)

	configfile := arguments["--conf"].(string)
	config, err := irc.LoadConfig(configfile)
	if err != nil {
		log.Fatal("Config file did not load successfully: ", err.Error())
	}

	logman, err := logger.NewManager(config.Logging)
	if err != nil {
		log.Fatal("Logger did not load successfully:", err.Error())
	}
	defer logman.Close()

	quiet, _ := arguments["--quiet"].(bool)

	if arguments["initdb"].(bool) {
		err = datastore.InitDB(config.Datastore.Path)
		if err != nil {
			log.Fatal("Error while initializing db:", err.Error())
		}
		if !quiet {
			log.Println("database initialized: ", config.Datastore.Path)
		}
	} else if arguments["sessions"].(bool) {
		doSessions(config)
	} else if arguments["run"].(bool) {
		if !quiet {
			logman.Info("server", fmt.Sprintf("%s starting", irc.BuildInfo()))
		}

		// warning if running a non-final version
		if strings.Contains(irc.Ver, "unreleased") {
			logman.Warning("server", "You are currently running an unreleased version of rearguard that may be unstable.")
		}

		server, err := irc.NewServer(config, logman)
		if err != nil {
			logman.Error("server", fmt.Sprintf("Could not load server: %s", err.Error()))
			logman.Close()
			os.Exit(1)
		}
		if arguments["--smoke"].(bool) {
			server.Shutdown()
			return
		}
		if err := server.Run(); err != nil {
			logman.Error("server", fmt.Sprintf("Server failed: %s", err.Error()))
			logman.Close()
			os.Exit(1)
		}
		if !quiet {
			logman.Info("server", "exiting")
		}
	}
}
