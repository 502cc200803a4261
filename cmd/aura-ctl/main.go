package main

import (
	"fmt"
	"os"
	"strings"

	cli "github.com/spf13/pflag"

	"aura/internal/ipc"
)

const usage = `aura-ctl <command> [arg]

Commands:
  listen            start one interaction now
  stop              interrupt the current interaction
  text <message>    run an interaction over typed input
  say <message>     alias for text
  clear             drop conversation memory
  status            print daemon status
  wake-on|wake-off  toggle wake-word listening
  wake-word <w>     change the wake word
  voice <id>        pin a voice
  voices            list available voices
  rate <0.5-2.0>    set speech rate
`

func main() {
	socket := cli.StringP("socket", "s", "", "Daemon socket path")
	cli.Parse()

	args := cli.Args()
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cmd := args[0]
	arg := strings.Join(args[1:], " ")
	if cmd == "say" {
		cmd = "text"
	}

	resp, err := ipc.Send(*socket, ipc.ControlMessage{Cmd: cmd, Arg: arg})
	if err != nil {
		fmt.Fprintln(os.Stderr, "aura-daemon not running:", err)
		os.Exit(1)
	}
	if !resp.OK {
		fmt.Fprintln(os.Stderr, "error:", resp.Message)
		os.Exit(1)
	}
	if resp.Message != "" {
		fmt.Print(resp.Message)
		if !strings.HasSuffix(resp.Message, "\n") {
			fmt.Println()
		}
	}
}
