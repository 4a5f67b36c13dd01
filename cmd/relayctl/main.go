package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Tyrowin/wsrelay/internal/relayclient"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
)

const usage = `Usage:
  relayctl [-addr URL] clients
  relayctl [-addr URL] send <identifier> <message>
`

func main() {
	addr := flag.String("addr", "http://localhost:8000", "relay base URL")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := run(ctx, relayclient.New(*addr, nil), flag.Args(), os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, color.New(color.FgRed).Render("error: "+err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, client *relayclient.Client, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("missing command\n%s", usage)
	}

	switch args[0] {
	case "clients":
		ids, err := client.ListClients(ctx)
		if err != nil {
			return err
		}
		printClients(out, ids)
		return nil

	case "send":
		if len(args) != 3 {
			return fmt.Errorf("send takes an identifier and a message\n%s", usage)
		}
		ack, err := client.Send(ctx, args[1], args[2])
		if err != nil {
			return err
		}
		fmt.Fprintln(out, color.New(color.FgGreen).Render(ack))
		return nil

	default:
		return fmt.Errorf("unknown command %q\n%s", args[0], usage)
	}
}

func printClients(out io.Writer, ids []string) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"#", "Identifier"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	for i, id := range ids {
		table.Append([]string{fmt.Sprint(i + 1), id})
	}
	table.Render()
	fmt.Fprintf(out, "%d connected\n", len(ids))
}
