// Command xdevls performs a one-shot scan of a device-tree subtree and
// prints each surviving device's name, driver, unit and parent.
package main

import (
	"fmt"
	"os"

	getopt "github.com/pborman/getopt/v2"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/go-xdev/xdev"
	"github.com/go-xdev/xdev/internal/logging"
)

func main() {
	optDevice := getopt.StringLong("device", 'd', "", "driver-control device path (default: platform default)")
	optRoot := getopt.StringLong("root", 'r', "", "device name to start scanning from (default: tree root)")
	optDepth := getopt.IntLong("depth", 'D', xdev.InfiniteDepth, "maximum recursion depth (-1: unlimited)")
	optVerbose := getopt.BoolLong("verbose", 'v', "enable debug logging")
	optQuiet := getopt.BoolLong("quiet", 'q', "suppress the progress bar")
	optHelp := getopt.BoolLong("help", 'h', "show this help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}

	if *optVerbose {
		logging.SetDefault(logging.NewLogger(&logging.Config{Level: logging.LevelDebug, Output: os.Stderr}))
	}

	ctx, err := xdev.Open(*optDevice)
	if err != nil {
		fmt.Fprintf(os.Stderr, "xdevls: open: %v\n", err)
		os.Exit(1)
	}
	defer ctx.Unref()

	enum, err := xdev.NewEnumerator(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "xdevls: new enumerator: %v\n", err)
		os.Exit(1)
	}
	defer enum.Unref()

	var progress *mpb.Progress
	var bar *mpb.Bar
	if !*optQuiet {
		progress = mpb.New(mpb.WithWidth(60))
		bar = progress.AddBar(0,
			mpb.PrependDecorators(decor.Name("scanning: ")),
			mpb.AppendDecorators(decor.CurrentNoUnit("%d devices")),
		)
		enum.Filter(xdev.PredicateFunc(func(d *xdev.Device) bool {
			bar.Increment()
			return true
		}), nil)
	}

	count, err := enum.Scan(*optRoot, *optDepth)
	if err != nil {
		fmt.Fprintf(os.Stderr, "xdevls: scan: %v\n", err)
		os.Exit(1)
	}

	if bar != nil {
		bar.SetTotal(bar.Current(), true)
		progress.Wait()
	}

	for e := enum.GetListEntry(); e != nil; e = e.Next() {
		dev := e.GetDevice()
		fmt.Printf("%-16s driver=%-10s unit=%-6d parent=%s\n",
			dev.Devname(), dev.Driver(), dev.Unit(), dev.Parent())
		dev.Unref()
	}

	fmt.Fprintf(os.Stderr, "xdevls: %d devices\n", count)
}
