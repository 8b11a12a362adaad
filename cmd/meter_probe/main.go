// Meter probe is a small test harness for poking an ISW8001 by hand:
// it sends one command or query and prints whatever comes back.
package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fqueze/isw8001-power-profiling/pkg/iswmeter"
)

func main() {
	device := flag.String("device", "/dev/ttyUSB0", "serial port path")
	baud := flag.Uint("baud", 9600, "baud rate")
	query := flag.String("query", "", "query to send, prints the reply")
	command := flag.String("cmd", "", "fire-and-forget setter command")
	identify := flag.Bool("id", false, "ask the device to identify itself")
	timeout := flag.Duration("timeout", time.Second, "reply deadline for -query")
	flag.Parse()

	driver, err := iswmeter.Open(iswmeter.Config{
		Device:              *device,
		BaudRate:            *baud,
		SoftwareFlowControl: true,
	})
	if err != nil {
		logrus.Fatalf("Failed to open meter: %v", err)
	}
	defer driver.Close()

	switch {
	case *identify:
		reply, err := driver.Identify()
		if err != nil {
			logrus.Fatalf("Identification failed: %v", err)
		}
		fmt.Println(reply)
	case *query != "":
		reply, err := driver.Query(*query, *timeout)
		if err != nil {
			logrus.Fatalf("Query failed: %v", err)
		}
		fmt.Println(reply)
	case *command != "":
		if err := driver.SendCommand(*command); err != nil {
			logrus.Fatalf("Command failed: %v", err)
		}
	default:
		flag.Usage()
	}
}
