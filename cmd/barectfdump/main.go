// Command barectfdump decodes a CTF trace stream against a barectf effective
// configuration document and prints, for each packet, a summary line followed
// by one line per decoded event to stdout.
//
// Exit codes: 0 on a clean end-of-stream, 1 if the config document fails to
// compile, 2 if any packet fails to decode.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"gopkg.in/yaml.v3"

	barectfparser "github.com/auxoncorp/barectf-parser"
	"github.com/auxoncorp/barectf-parser/decode"
)

func main() {
	if len(os.Args) != 3 {
		log.Fatalf("usage: %s <config.yaml> <trace-file>", os.Args[0])
	}
	configPath, tracePath := os.Args[1], os.Args[2]

	configBytes, err := os.ReadFile(configPath)
	if err != nil {
		log.Fatalf("reading config: %v", err)
	}

	var doc interface{}
	if err := yaml.Unmarshal(configBytes, &doc); err != nil {
		log.Fatalf("parsing config yaml: %v", err)
	}

	schema, err := barectfparser.Compile(doc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config compile error: %v\n", err)
		os.Exit(1)
	}

	trace, err := os.Open(tracePath)
	if err != nil {
		log.Fatalf("opening trace file: %v", err)
	}
	defer trace.Close()

	framer := barectfparser.FrameStream(schema, trace)
	ctx := context.Background()

	for {
		buf, err := framer.Next(ctx)
		if err == io.EOF {
			os.Exit(0)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "frame error: %v\n", err)
			os.Exit(2)
		}

		packet, err := barectfparser.DecodePacket(schema, buf)
		if err != nil {
			fmt.Fprintf(os.Stderr, "packet decode error: %v\n", err)
			os.Exit(2)
		}

		printPacket(packet)
	}
}

func printPacket(p *decode.Packet) {
	fmt.Printf("packet stream=%s events=%d\n", p.StreamName, len(p.Events))
	for _, e := range p.Events {
		fmt.Printf("  event id=%d name=%s\n", e.ID, e.Name)
	}
}
