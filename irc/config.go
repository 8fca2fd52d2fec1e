// Copyright (c) 2012-2014 Jeremy Latt
// Copyright (c) 2014-2015 Edmund Huber
// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// Copyright (c) 2026 Rearguard contributors
// released under the MIT license

package irc

import (
	"fmt"
	"net/netip"
	"os"
	"regexp"
	"strings"
	"time"

	"code.cloudfoundry.org/bytefmt"
	"github.com/ergochat/irc-go/ircutils"
	"gopkg.in/yaml.v2"

	"github.com/ergochat/rearguard/irc/logger"
	"github.com/ergochat/rearguard/irc/utils"
)

// here's how this works: exported (capitalized) members of the config structs
// are defined in the YAML file and deserialized directly from there. They may
// be postprocessed and overwritten by LoadConfig. Unexported (lowercase) members
// are derived from the exported members in LoadConfig.

const (
	defaultMaxLineLength = "8k"
	defaultSendQ         = 256
	// the 512-byte line of RFC 1459; anything shorter can't carry a PRIVMSG
	minMaxLineLength = 512
)

// ListenerConfig is the config for a single listening address.
type ListenerConfig struct {
	WebSocket bool `yaml:"websocket"`
}

// FakelagConfig controls per-connection flood control.
type FakelagConfig struct {
	Enabled           bool
	Window            time.Duration
	BurstLimit        int `yaml:"burst-limit"`
	MessagesPerWindow int `yaml:"messages-per-window"`
}

// Config defines the overall configuration.
type Config struct {
	Server struct {
		Name                string
		Listeners           map[string]ListenerConfig
		UnixBindMode        os.FileMode `yaml:"unix-bind-mode"`
		MaxLineLengthString string      `yaml:"max-line-length"`
		MaxLineLength       int         `yaml:"-"`
		SendQ               int         `yaml:"sendq"`

		ProxyAllowedFrom     []string `yaml:"proxy-allowed-from"`
		proxyAllowedFromNets []netip.Prefix

		WebSockets struct {
			AllowedOrigins       []string `yaml:"allowed-origins"`
			allowedOriginRegexps []*regexp.Regexp
		}
		Fakelag FakelagConfig
	}

	Datastore struct {
		Enabled   bool
		Path      string
		Retention time.Duration
	}

	Logging []logger.LoggingConfig

	Filename string `yaml:"-"`
}

// LoadConfig loads the given YAML configuration file.
func LoadConfig(filename string) (config *Config, err error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	config = new(Config)
	if err = yaml.Unmarshal(data, config); err != nil {
		return nil, err
	}
	config.Filename = filename

	if err = config.postprocess(); err != nil {
		return nil, err
	}
	return config, nil
}

// postprocess validates the deserialized config and fills in derived fields.
func (config *Config) postprocess() (err error) {
	if config.Server.Name == "" {
		return ErrServerNameMissing
	}
	if !ircutils.HostnameIsValid(config.Server.Name) {
		return ErrServerNameNotHostname
	}
	if len(config.Server.Listeners) == 0 {
		return ErrNoListenersDefined
	}

	if config.Server.MaxLineLengthString == "" {
		config.Server.MaxLineLengthString = defaultMaxLineLength
	}
	maxLineLength, err := bytefmt.ToBytes(config.Server.MaxLineLengthString)
	if err != nil {
		return fmt.Errorf("Could not parse max-line-length (make sure it only contains whole numbers): %w", err)
	}
	config.Server.MaxLineLength = int(maxLineLength)
	if config.Server.MaxLineLength < minMaxLineLength {
		config.Server.MaxLineLength = minMaxLineLength
	}

	if config.Server.SendQ <= 0 {
		config.Server.SendQ = defaultSendQ
	}

	config.Server.proxyAllowedFromNets, err = utils.ParseNetList(config.Server.ProxyAllowedFrom)
	if err != nil {
		return fmt.Errorf("Could not parse proxy-allowed-from nets: %w", err)
	}

	config.Server.WebSockets.allowedOriginRegexps = nil
	for _, origin := range config.Server.WebSockets.AllowedOrigins {
		// scheme and host are case-insensitive
		re, err := utils.CompileGlob(strings.TrimSpace(origin), true)
		if err != nil {
			return fmt.Errorf("invalid websocket allowed-origin %s: %w", origin, err)
		}
		config.Server.WebSockets.allowedOriginRegexps = append(config.Server.WebSockets.allowedOriginRegexps, re)
	}

	if fakelag := &config.Server.Fakelag; fakelag.Enabled {
		if fakelag.Window <= 0 {
			fakelag.Window = time.Second
		}
		if fakelag.BurstLimit <= 0 {
			fakelag.BurstLimit = 5
		}
		if fakelag.MessagesPerWindow <= 0 {
			fakelag.MessagesPerWindow = 2
		}
	}

	if config.Datastore.Enabled && config.Datastore.Path == "" {
		return ErrDatastorePathMissing
	}

	var newLogConfigs []logger.LoggingConfig
	for _, logConfig := range config.Logging {
		// methods
		methods := make(map[string]bool)
		for _, method := range strings.Fields(logConfig.Method) {
			methods[strings.ToLower(method)] = true
		}
		if methods["file"] && logConfig.Filename == "" {
			return ErrLoggerFilenameMissing
		}
		logConfig.MethodFile = methods["file"]
		logConfig.MethodStdout = methods["stdout"]
		logConfig.MethodStderr = methods["stderr"]

		// levels
		level, exists := logger.LogLevelNames[strings.ToLower(logConfig.LevelString)]
		if !exists {
			return fmt.Errorf("Could not translate log level [%s]", logConfig.LevelString)
		}
		logConfig.Level = level

		// types
		logConfig.Types, logConfig.ExcludedTypes = nil, nil
		for _, typeStr := range strings.Fields(logConfig.TypeString) {
			if typeStr == "-" {
				return ErrLoggerExcludeEmpty
			}
			if typeStr[0] == '-' {
				logConfig.ExcludedTypes = append(logConfig.ExcludedTypes, typeStr[1:])
			} else {
				logConfig.Types = append(logConfig.Types, typeStr)
			}
		}
		if len(logConfig.Types) < 1 {
			return ErrLoggerHasNoTypes
		}

		newLogConfigs = append(newLogConfigs, logConfig)
	}
	config.Logging = newLogConfigs

	return nil
}

// originAllowed reports whether a websocket handshake from origin may proceed.
func (config *Config) originAllowed(origin string) bool {
	if len(config.Server.WebSockets.allowedOriginRegexps) == 0 {
		return true
	}
	origin = strings.TrimSpace(origin)
	if origin == "" {
		return false
	}
	for _, re := range config.Server.WebSockets.allowedOriginRegexps {
		if re.MatchString(origin) {
			return true
		}
	}
	return false
}
