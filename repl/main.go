// Command wharf is the interactive terminal client.
// It connects to the wharfd backend over a Unix domain socket, multiplexes
// terminal sessions over one event stream, and embeds an AI assistant.
//
// Usage:
//
//	./wharf              # interactive client
//	./wharf -verbose     # with protocol logging to stderr
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	wharf "github.com/wharfterm/wharf"
	"github.com/wharfterm/wharf/assistant"
	"github.com/wharfterm/wharf/channel"
	"github.com/wharfterm/wharf/correlate"
	"github.com/wharfterm/wharf/editor"
	"github.com/wharfterm/wharf/session"
)

// Version is set at build time via -ldflags.
var Version = "dev"

const prompt = "> "

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	verbose := flag.Bool("verbose", false, "log every event and reply to stderr")
	flag.Parse()

	if *showVersion {
		fmt.Println("wharf", Version)
		os.Exit(0)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	tty, err := NewTty()
	if err != nil {
		return err
	}
	defer tty.Close()

	out := newDisplay(termWriter(tty.File()))

	manifest, err := wharf.LoadManifest()
	if err != nil {
		return fmt.Errorf("load session manifest: %w", err)
	}
	registry := session.NewRegistry(manifest)

	store, err := wharf.NewCredentialStore(wharf.CredentialPath())
	if err != nil {
		return fmt.Errorf("open credential store: %w", err)
	}

	sup := channel.NewSupervisor(channel.Dial("unix", resolveSocketPath()))

	corr := correlate.New(sup, registry, out)
	bridge := assistant.New(sup, store, func(_ string, msg assistant.Message) {
		out.assistantMessage(msg)
	})

	sup.Subscribe(wharf.EventCommandResult, corr.HandleResult)
	sup.Subscribe(wharf.EventCommandError, corr.HandleError)
	sup.Subscribe(wharf.EventAIResponse, bridge.HandleResponse)
	sup.Subscribe(wharf.EventAIError, bridge.HandleError)
	sup.Subscribe(wharf.EventSystemInfo, func(data json.RawMessage) {
		var info wharf.SystemInfo
		if err := json.Unmarshal(data, &info); err != nil {
			slog.Warn("invalid system_info", "error", err)
			return
		}
		registry.SeedWorkingDirectories(info.CurrentDirectory)
		out.printf("connected: %s (%s, %d cpus)\n", info.Hostname, info.Platform, info.CPUCount)
	})
	sup.OnStateChange(func(st channel.State) {
		if st == channel.Disconnected {
			corr.FailAll("connection lost")
			bridge.FailAwaiting("connection lost")
			out.printf("disconnected from backend\n")
		}
	})

	if err := sup.Connect(context.Background()); err != nil {
		out.printf("backend unavailable: %v\n", err)
		out.printf("start wharfd, then :connect\n")
	}
	defer sup.Disconnect()

	out.printf("wharf %s\n", Version)
	printHelp(out)

	return loop(tty, out, sup, registry, corr, bridge)
}

func loop(tty *Tty, out *display, sup *channel.Supervisor, registry *session.Registry, corr *correlate.Correlator, bridge *assistant.Bridge) error {
	ed := editor.New()
	conversationID := ""

	for {
		active := registry.Active()
		text, err := tty.ReadLine(fmt.Sprintf("[%s]%s", active.Name, prompt), ed)
		if err == io.EOF || err == ErrInterrupt {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		if strings.HasPrefix(text, ":") {
			if quit := command(text, out, sup, registry, bridge, &conversationID); quit {
				return nil
			}
			continue
		}

		if _, err := corr.Submit(active.ID, text); err != nil {
			out.printf("error: %v\n", err)
		}
	}
}

// command handles a :-prefixed control line. Returns true on :quit.
func command(text string, out *display, sup *channel.Supervisor, registry *session.Registry, bridge *assistant.Bridge, conversationID *string) bool {
	cmd, rest, _ := strings.Cut(text, " ")
	rest = strings.TrimSpace(rest)

	switch cmd {
	case ":quit", ":q":
		return true

	case ":help":
		printHelp(out)

	case ":connect":
		if err := sup.Connect(context.Background()); err != nil {
			out.printf("error: %v\n", err)
		}

	case ":sessions":
		active := registry.Active()
		for _, s := range registry.List() {
			marker := " "
			if s.ID == active.ID {
				marker = "*"
			}
			out.printf("%s %d %s (%s) %s\n", marker, s.ID, s.Name, s.Shell, s.WorkingDirectory)
		}

	case ":session":
		id, err := strconv.Atoi(rest)
		if err != nil {
			out.printf("usage: :session <id>\n")
			return false
		}
		if err := registry.SetActive(id); err != nil {
			out.printf("error: %v\n", err)
		}

	case ":new":
		name, shell, _ := strings.Cut(rest, " ")
		if name == "" {
			out.printf("usage: :new <name> [shell]\n")
			return false
		}
		s := registry.Add(name, strings.TrimSpace(shell))
		out.printf("session %d %s (%s)\n", s.ID, s.Name, s.Shell)

	case ":ai":
		if rest == "" {
			out.printf("usage: :ai <message>\n")
			return false
		}
		if *conversationID == "" {
			*conversationID = bridge.NewConversation()
			for _, msg := range bridge.Messages(*conversationID) {
				out.assistantMessage(msg)
			}
		}
		if err := bridge.Send(*conversationID, rest); err != nil {
			out.printf("error: %v\n", err)
		}

	case ":key":
		provider, secret, _ := strings.Cut(rest, " ")
		secret = strings.TrimSpace(secret)
		if provider == "" || secret == "" {
			out.printf("usage: :key <provider> <secret>\n")
			return false
		}
		if err := bridge.SetCredential(wharf.Provider(provider), secret); err != nil {
			out.printf("error: %v\n", err)
			return false
		}
		out.printf("credential stored for %s\n", provider)

	default:
		out.printf("unknown command %s (try :help)\n", cmd)
	}
	return false
}

func printHelp(out *display) {
	out.block(func(w io.Writer) {
		fmt.Fprintf(w, "commands:\n")
		fmt.Fprintf(w, "  :sessions            list sessions\n")
		fmt.Fprintf(w, "  :session <id>        switch active session\n")
		fmt.Fprintf(w, "  :new <name> [shell]  create and activate a session\n")
		fmt.Fprintf(w, "  :ai <message>        ask the assistant\n")
		fmt.Fprintf(w, "  :key <provider> <s>  store an AI credential\n")
		fmt.Fprintf(w, "  :connect             reconnect to the backend\n")
		fmt.Fprintf(w, "  :quit                exit\n")
	})
}

func resolveSocketPath() string {
	if path := os.Getenv("WHARF_SOCKET"); path != "" {
		return path
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return dir + "/wharf.sock"
	}
	return fmt.Sprintf("/tmp/wharf-%d.sock", os.Getuid())
}
