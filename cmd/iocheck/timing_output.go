package main

import (
	"io"

	"iocheck/internal/observ"
)

func printTimings(out io.Writer, timer *observ.Timer) {
	if out == nil || timer == nil {
		return
	}
	if _, err := timer.WriteTo(out); err != nil {
		panic(err)
	}
}
