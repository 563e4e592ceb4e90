package main

import (
	"testing"

	elog "github.com/labstack/gommon/log"
)

func TestEchoLogLevel(t *testing.T) {
	cases := map[string]elog.Lvl{
		"debug":   elog.DEBUG,
		"info":    elog.INFO,
		"warn":    elog.WARN,
		"error":   elog.ERROR,
		"":        elog.INFO,
		"unknown": elog.INFO,
	}
	for level, want := range cases {
		if got := echoLogLevel(level); got != want {
			t.Errorf("echoLogLevel(%q) = %v, want %v", level, got, want)
		}
	}
}
