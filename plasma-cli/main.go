/*
Copyright (C) 2026  Plasma Store Contributors

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Command plasma-cli is an interactive admin REPL for a running store,
// grounded on scm/prompt.go's Repl: readline-driven, one line per command,
// recovering from a panicking command instead of exiting.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"runtime/debug"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/google/uuid"

	"github.com/objectstore-go/plasma/journal"
	"github.com/objectstore-go/plasma/plasmaclient"
	"github.com/objectstore-go/plasma/wire"
)

const newprompt = "\033[32mplasma>\033[0m "
const resultprompt = "\033[31m=\033[0m "

func main() {
	socketPath := flag.String("socket", "/tmp/plasma.sock", "unix domain socket path")
	flag.Parse()

	client, err := plasmaclient.Dial(*socketPath)
	if err != nil {
		fmt.Println("failed to connect:", err)
		return
	}
	defer client.Close()
	fmt.Printf("connected, capacity = %d bytes\n", client.Capacity())

	l, err := readline.NewEx(&readline.Config{
		Prompt:            newprompt,
		HistoryFile:       ".plasma-cli-history.tmp",
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		panic(err)
	}
	defer l.Close()
	l.CaptureExitSignal()

	for {
		line, err := l.Readline()
		if err == readline.ErrInterrupt {
			continue
		} else if err == io.EOF {
			break
		} else if err != nil {
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		func() {
			defer func() {
				if r := recover(); r != nil {
					fmt.Println("panic:", r, string(debug.Stack()))
				}
			}()
			runCommand(client, line)
		}()
	}
}

func runCommand(client *plasmaclient.Client, line string) {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "new":
		fmt.Println(resultprompt, hex.EncodeToString(newObjectID()[:]))

	case "create":
		if len(args) < 3 {
			fmt.Println("usage: create <id> <dataSize> <metadataSize>")
			return
		}
		id := parseID(args[0])
		dataSize := mustInt(args[1])
		metaSize := mustInt(args[2])
		view, err := client.Create(id, dataSize, metaSize, 0)
		fmt.Println(resultprompt, "create:", resultLine(view, err))

	case "seal":
		if len(args) < 1 {
			fmt.Println("usage: seal <id>")
			return
		}
		err := client.Seal(parseID(args[0]))
		fmt.Println(resultprompt, "seal:", errOrOk(err))

	case "abort":
		if len(args) < 1 {
			fmt.Println("usage: abort <id>")
			return
		}
		err := client.Abort(parseID(args[0]))
		fmt.Println(resultprompt, "abort:", errOrOk(err))

	case "release":
		if len(args) < 1 {
			fmt.Println("usage: release <id>")
			return
		}
		err := client.Release(parseID(args[0]))
		fmt.Println(resultprompt, "release:", errOrOk(err))

	case "get":
		if len(args) < 1 {
			fmt.Println("usage: get <id> [timeoutMs]")
			return
		}
		timeout := int64(0)
		if len(args) > 1 {
			timeout = int64(mustInt(args[1]))
		}
		views, err := client.Get([]wire.ObjectID{parseID(args[0])}, timeout)
		if err != nil {
			fmt.Println(resultprompt, "get error:", err)
			return
		}
		for _, v := range views {
			if v == nil {
				fmt.Println(resultprompt, "<unresolved>")
				continue
			}
			fmt.Printf("%s sealed=%v dataSize=%d metadataSize=%d\n",
				resultprompt, v.Sealed(), len(v.Data), len(v.Metadata))
		}

	case "contains":
		if len(args) < 1 {
			fmt.Println("usage: contains <id>")
			return
		}
		ok, err := client.Contains(parseID(args[0]))
		fmt.Println(resultprompt, "contains:", ok, errOrOk(err))

	case "delete":
		if len(args) < 1 {
			fmt.Println("usage: delete <id>")
			return
		}
		_, err := client.Delete([]wire.ObjectID{parseID(args[0])})
		fmt.Println(resultprompt, "delete:", errOrOk(err))

	case "list":
		infos, err := client.List()
		if err != nil {
			fmt.Println(resultprompt, "list error:", err)
			return
		}
		for _, info := range infos {
			fmt.Printf("%s %s sealed=%v dataSize=%d metadataSize=%d refCount=%d\n",
				resultprompt, hex.EncodeToString(info.ID[:]), info.Sealed, info.DataSize, info.MetadataSize, info.RefCount)
		}

	case "evict":
		if len(args) < 1 {
			fmt.Println("usage: evict <numBytes>")
			return
		}
		freed, err := client.Evict(int64(mustInt(args[0])))
		fmt.Println(resultprompt, "evicted:", freed, errOrOk(err))

	case "wait":
		if len(args) < 2 {
			fmt.Println("usage: wait <id> <status-expr> [numReady] [timeoutMs]")
			return
		}
		mask, err := wire.ParseStatusExpr(args[1])
		if err != nil {
			fmt.Println("bad status expression:", err)
			return
		}
		numReady := int32(1)
		if len(args) > 2 {
			numReady = int32(mustInt(args[2]))
		}
		timeout := int64(0)
		if len(args) > 3 {
			timeout = int64(mustInt(args[3]))
		}
		reply, err := client.Wait([]wire.ObjectRequestSpec{{ID: parseID(args[0]), Status: mask}}, numReady, timeout)
		fmt.Println(resultprompt, "wait:", errOrOk(err), "numReady =", reply.NumReady)

	case "subscribe":
		ch, err := client.Subscribe()
		if err != nil {
			fmt.Println("subscribe error:", err)
			return
		}
		fmt.Println(resultprompt, "subscribed, press Ctrl-C to stop watching")
		for info := range ch {
			fmt.Printf("%s push: %s sealed=%v dataSize=%d\n",
				resultprompt, hex.EncodeToString(info.ID[:]), info.Sealed, info.DataSize)
		}

	case "fetch":
		if len(args) < 1 {
			fmt.Println("usage: fetch <id>")
			return
		}
		err := client.Fetch([]wire.ObjectID{parseID(args[0])})
		fmt.Println(resultprompt, "fetch:", errOrOk(err))

	case "tail":
		if len(args) < 1 {
			fmt.Println("usage: tail <journal-path>")
			return
		}
		events, err := journal.ReadEventLog(args[0])
		if err != nil {
			fmt.Println("tail error:", err)
			return
		}
		printEvents(events)

	case "tail-archived":
		if len(args) < 1 {
			fmt.Println("usage: tail-archived <archived-path>")
			return
		}
		events, err := journal.ReadArchivedEventLog(args[0])
		if err != nil {
			fmt.Println("tail error:", err)
			return
		}
		printEvents(events)

	case "archive":
		if len(args) < 1 {
			fmt.Println("usage: archive <rotated-journal-path>")
			return
		}
		archived, err := journal.Archive(args[0])
		if err != nil {
			fmt.Println("archive error:", err)
			return
		}
		fmt.Println(resultprompt, "archived to", archived)

	case "help":
		printHelp()

	default:
		fmt.Println("unknown command:", cmd, "(try 'help')")
	}
}

func printEvents(events []journal.Event) {
	for _, e := range events {
		fmt.Printf("%s %s %s bytes=%d at=%d\n",
			resultprompt, e.Kind, hex.EncodeToString(e.ID[:]), e.Bytes, e.AtNs)
	}
}

func printHelp() {
	fmt.Println(`commands:
  new
  create <id> <dataSize> <metadataSize>
  seal <id>
  abort <id>
  release <id>
  get <id> [timeoutMs]
  contains <id>
  delete <id>
  list
  evict <numBytes>
  wait <id> <status-expr> [numReady] [timeoutMs]
  subscribe
  fetch <id>
  tail <journal-path>
  tail-archived <archived-path>
  archive <rotated-journal-path>
  help`)
}

// newObjectID mints a fresh object id from a random UUID the way
// storage/fast_uuid.go mints fast per-row ids, zero-extended from 16 to
// the wire's 20-byte ObjectID width.
func newObjectID() wire.ObjectID {
	var id wire.ObjectID
	u := uuid.New()
	copy(id[:], u[:])
	return id
}

func parseID(s string) wire.ObjectID {
	var id wire.ObjectID
	raw, err := hex.DecodeString(s)
	if err != nil {
		panic(fmt.Sprintf("invalid id %q: %v", s, err))
	}
	copy(id[:], raw)
	return id
}

func mustInt(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		panic(fmt.Sprintf("invalid integer %q: %v", s, err))
	}
	return n
}

func errOrOk(err error) string {
	if err != nil {
		return err.Error()
	}
	return "ok"
}

func resultLine(view *plasmaclient.ClientView, err error) string {
	if err != nil {
		return err.Error()
	}
	return fmt.Sprintf("ok, dataSize=%d metadataSize=%d", len(view.Data), len(view.Metadata))
}
