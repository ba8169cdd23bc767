// delayctl sends a SETDELAY command to a running delayline admin port.
// The protocol is fire-and-forget, so there is nothing to read back.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/matst80/delayline/internal/obs"
)

func main() {
	var addr string
	flag.StringVar(&addr, "addr", "127.0.0.1:6382", "relay admin address")
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "usage: delayctl [-addr host:port] <delay_ms>")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}
	ms, err := strconv.ParseFloat(flag.Arg(0), 64)
	if err != nil || ms < 0 {
		obs.Error("delayctl.args", obs.Fields{"delay_ms": flag.Arg(0)})
		os.Exit(1)
	}
	c, err := net.Dial("tcp", addr)
	if err != nil {
		obs.Error("delayctl.dial", obs.Fields{"addr": addr, "err": err.Error()})
		os.Exit(1)
	}
	defer c.Close()
	if _, err := fmt.Fprintf(c, "SETDELAY %g\n", ms); err != nil {
		obs.Error("delayctl.send", obs.Fields{"err": err.Error()})
		os.Exit(1)
	}
	obs.Info("delayctl.sent", obs.Fields{"addr": addr, "delay_ms": ms})
}
