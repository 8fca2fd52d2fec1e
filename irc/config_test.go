// Copyright (c) 2020 Shivaram Lingamneni
// Copyright (c) 2026 Rearguard contributors
// released under the MIT license

package irc

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/ergochat/rearguard/irc/logger"
)

const fullConfig = `
server:
  name: rearguard.local
  listeners:
    "127.0.0.1:4567": {}
    "127.0.0.1:8097":
      websocket: true
  unix-bind-mode: 0770
  max-line-length: 16k
  sendq: 64
  proxy-allowed-from: ["localhost", "10.0.0.0/8"]
  websockets:
    allowed-origins: ["https://*.example.com"]
  fakelag:
    enabled: true
    burst-limit: 10

datastore:
  enabled: true
  path: rearguard.db
  retention: 24h

logging:
  - method: stderr file
    filename: rearguard.log
    type: "* -userinput -useroutput"
    level: info
`

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rearguard.yaml")
	if err := os.WriteFile(path, []byte(contents), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, fullConfig)
	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("couldn't load config: %v", err)
	}

	if config.Filename != path {
		t.Errorf("unexpected filename %s", config.Filename)
	}
	if config.Server.Name != "rearguard.local" {
		t.Errorf("unexpected server name %s", config.Server.Name)
	}
	expectedListeners := map[string]ListenerConfig{
		"127.0.0.1:4567": {},
		"127.0.0.1:8097": {WebSocket: true},
	}
	if !reflect.DeepEqual(config.Server.Listeners, expectedListeners) {
		t.Errorf("unexpected listeners %#v", config.Server.Listeners)
	}
	if config.Server.UnixBindMode != 0770 {
		t.Errorf("unexpected bind mode %o", config.Server.UnixBindMode)
	}
	if config.Server.MaxLineLength != 16*1024 {
		t.Errorf("unexpected max line length %d", config.Server.MaxLineLength)
	}
	if config.Server.SendQ != 64 {
		t.Errorf("unexpected sendq %d", config.Server.SendQ)
	}
	if len(config.Server.proxyAllowedFromNets) != 3 {
		t.Errorf("expected loopback v4, v6 and 10/8, got %v", config.Server.proxyAllowedFromNets)
	}

	fakelag := config.Server.Fakelag
	if !fakelag.Enabled || fakelag.Window != time.Second || fakelag.BurstLimit != 10 || fakelag.MessagesPerWindow != 2 {
		t.Errorf("unexpected fakelag config %#v", fakelag)
	}

	if !config.Datastore.Enabled || config.Datastore.Path != "rearguard.db" || config.Datastore.Retention != 24*time.Hour {
		t.Errorf("unexpected datastore config %#v", config.Datastore)
	}

	if len(config.Logging) != 1 {
		t.Fatalf("expected one logger, got %d", len(config.Logging))
	}
	logConf := config.Logging[0]
	if !logConf.MethodStderr || !logConf.MethodFile || logConf.MethodStdout {
		t.Errorf("unexpected logging methods %#v", logConf)
	}
	if logConf.Level != logger.LogInfo {
		t.Errorf("unexpected log level %v", logConf.Level)
	}
	if !reflect.DeepEqual(logConf.Types, []string{"*"}) || !reflect.DeepEqual(logConf.ExcludedTypes, []string{"userinput", "useroutput"}) {
		t.Errorf("unexpected log types %v / %v", logConf.Types, logConf.ExcludedTypes)
	}
}

func TestConfigDefaults(t *testing.T) {
	config, err := LoadConfig(writeConfig(t, `
server:
  name: rearguard.local
  listeners:
    ":6667": {}
`))
	if err != nil {
		t.Fatal(err)
	}
	if config.Server.MaxLineLength != 8*1024 {
		t.Errorf("unexpected default max line length %d", config.Server.MaxLineLength)
	}
	if config.Server.SendQ != defaultSendQ {
		t.Errorf("unexpected default sendq %d", config.Server.SendQ)
	}
	if config.Server.Fakelag.Enabled {
		t.Errorf("fakelag should be off by default")
	}
	if !config.originAllowed("") || !config.originAllowed("https://anything") {
		t.Errorf("an empty allow-list should allow every origin")
	}
}

func TestConfigErrors(t *testing.T) {
	cases := []struct {
		name     string
		contents string
		expected error
	}{
		{"no name", "server:\n  listeners: {\":6667\": {}}\n", ErrServerNameMissing},
		{"bad name", "server:\n  name: \"not a hostname\"\n  listeners: {\":6667\": {}}\n", ErrServerNameNotHostname},
		{"no listeners", "server:\n  name: rearguard.local\n", ErrNoListenersDefined},
		{"no datastore path", "server:\n  name: rearguard.local\n  listeners: {\":6667\": {}}\ndatastore:\n  enabled: true\n", ErrDatastorePathMissing},
		{"no log filename", "server:\n  name: rearguard.local\n  listeners: {\":6667\": {}}\nlogging:\n  - method: file\n    type: \"*\"\n    level: info\n", ErrLoggerFilenameMissing},
		{"bare exclusion", "server:\n  name: rearguard.local\n  listeners: {\":6667\": {}}\nlogging:\n  - method: stderr\n    type: \"* -\"\n    level: info\n", ErrLoggerExcludeEmpty},
		{"no log types", "server:\n  name: rearguard.local\n  listeners: {\":6667\": {}}\nlogging:\n  - method: stderr\n    type: \"-userinput\"\n    level: info\n", ErrLoggerHasNoTypes},
	}
	for _, c := range cases {
		_, err := LoadConfig(writeConfig(t, c.contents))
		if err != c.expected {
			t.Errorf("%s: expected %v, got %v", c.name, c.expected, err)
		}
	}

	if _, err := LoadConfig(writeConfig(t, "server:\n  name: rearguard.local\n  listeners: {\":6667\": {}}\n  max-line-length: lots\n")); err == nil {
		t.Errorf("accepted an unparseable max-line-length")
	}
	if _, err := LoadConfig(writeConfig(t, "server:\n  name: rearguard.local\n  listeners: {\":6667\": {}}\nlogging:\n  - method: stderr\n    type: \"*\"\n    level: loud\n")); err == nil {
		t.Errorf("accepted an unknown log level")
	}
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Errorf("loaded a nonexistent file")
	}
}

func TestMaxLineLengthFloor(t *testing.T) {
	config, err := LoadConfig(writeConfig(t, "server:\n  name: rearguard.local\n  listeners: {\":6667\": {}}\n  max-line-length: 100B\n"))
	if err != nil {
		t.Fatal(err)
	}
	if config.Server.MaxLineLength != minMaxLineLength {
		t.Errorf("expected max line length to be raised to %d, got %d", minMaxLineLength, config.Server.MaxLineLength)
	}
}

func TestOriginAllowed(t *testing.T) {
	var config Config
	config.Server.WebSockets.AllowedOrigins = []string{"https://*.example.com", "http://localhost:8080"}
	config.Server.Name = "rearguard.local"
	config.Server.Listeners = map[string]ListenerConfig{":8097": {WebSocket: true}}
	if err := config.postprocess(); err != nil {
		t.Fatal(err)
	}

	cases := map[string]bool{
		"https://chat.example.com": true,
		" https://a.example.com ":  true,
		"http://localhost:8080":    true,
		"https://example.com.evil": false,
		"http://chat.example.com":  false,
		"":                         false,
	}
	for origin, expected := range cases {
		if got := config.originAllowed(origin); got != expected {
			t.Errorf("originAllowed(%q): expected %v, got %v", origin, expected, got)
		}
	}
}
