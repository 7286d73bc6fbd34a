// Package main provides the remote control CLI of the player.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/chzyer/readline"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"

	apiconnect "github.com/osa030/sdplayer/internal/api/connect"
	"github.com/osa030/sdplayer/internal/domain/track"
)

var (
	app    = kingpin.New("playerctl", "Remote control for sdplayer")
	server = app.Flag("server", "Player remote API address").Default("http://127.0.0.1:8765").Envar("PLAYER_REMOTE_URL").String()
	token  = app.Flag("token", "Control token").Envar("PLAYER_REMOTE_TOKEN").String()

	statusCmd = app.Command("status", "Show the player state").Default()
	playCmd   = app.Command("play", "Play the current track")
	pauseCmd  = app.Command("pause", "Toggle pause")
	stopCmd   = app.Command("stop", "Stop playback")
	nextCmd   = app.Command("next", "Play the next track")
	prevCmd   = app.Command("prev", "Play the previous track")

	selectCmd   = app.Command("select", "Play the track at a playlist position")
	selectIndex = selectCmd.Arg("index", "Playlist position (starting at 1)").Required().Int()

	seekCmd     = app.Command("seek", "Jump to a position in the current track")
	seekSeconds = seekCmd.Arg("seconds", "Position in seconds").Required().Int()

	volumeCmd     = app.Command("volume", "Set the volume")
	volumePercent = volumeCmd.Arg("percent", "Volume from 0 to 100").Required().Int()

	addCmd   = app.Command("add", "Add files or directories on the player host")
	addPaths = addCmd.Arg("paths", "Paths to add").Required().Strings()

	watchCmd = app.Command("watch", "Print player events")
	shellCmd = app.Command("shell", "Interactive control shell")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	// Parse command
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	// Create client
	client := apiconnect.NewClient(http.DefaultClient, *server, *token)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch command {
	case watchCmd.FullCommand():
		err = watch(ctx, client)
	case shellCmd.FullCommand():
		err = shell(ctx, client)
	default:
		err = execute(ctx, client, command, commandArgs(command))
	}
	if err != nil {
		fmt.Printf("Error: %s\n", describe(err))
		cancel()
		os.Exit(1)
	}
}

// commandArgs returns the parsed arguments of a one-shot command in the
// form the shell accepts them.
func commandArgs(command string) []string {
	switch command {
	case selectCmd.FullCommand():
		return []string{strconv.Itoa(*selectIndex)}
	case seekCmd.FullCommand():
		return []string{strconv.Itoa(*seekSeconds)}
	case volumeCmd.FullCommand():
		return []string{strconv.Itoa(*volumePercent)}
	case addCmd.FullCommand():
		return *addPaths
	}
	return nil
}

// execute runs one control command and prints the resulting state.
func execute(ctx context.Context, client *apiconnect.Client, command string, args []string) error {
	var (
		status apiconnect.Status
		err    error
	)

	switch command {
	case "status":
		status, err = client.Status(ctx)
	case "play":
		status, err = client.Play(ctx)
	case "pause":
		status, err = client.Pause(ctx)
	case "stop":
		status, err = client.Stop(ctx)
	case "next":
		status, err = client.Next(ctx)
	case "prev":
		status, err = client.Previous(ctx)
	case "select", "seek", "volume":
		var n int
		if n, err = intArg(args); err != nil {
			return err
		}
		switch command {
		case "select":
			// Positions are shown starting at 1.
			status, err = client.Select(ctx, n-1)
		case "seek":
			status, err = client.Seek(ctx, n)
		default:
			status, err = client.SetVolume(ctx, n)
		}
	case "add":
		if len(args) == 0 {
			return errors.New("add needs at least one path")
		}
		status, err = client.AddTracks(ctx, args...)
	default:
		return errors.Newf("unknown command %q", command)
	}
	if err != nil {
		return err
	}

	printStatus(os.Stdout, status)
	return nil
}

func intArg(args []string) (int, error) {
	if len(args) != 1 {
		return 0, errors.New("expected one number")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, errors.Wrapf(err, "invalid number %q", args[0])
	}
	return n, nil
}

func watch(ctx context.Context, client *apiconnect.Client) error {
	fmt.Println("Watching player events. Press Ctrl+C to exit.")
	return client.Watch(ctx, func(e apiconnect.EventMessage) error {
		printEvent(os.Stdout, e)
		return nil
	})
}

func shell(ctx context.Context, client *apiconnect.Client) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt: "sdplayer> ",
		AutoComplete: readline.NewPrefixCompleter(
			readline.PcItem("status"),
			readline.PcItem("play"),
			readline.PcItem("pause"),
			readline.PcItem("stop"),
			readline.PcItem("next"),
			readline.PcItem("prev"),
			readline.PcItem("select"),
			readline.PcItem("seek"),
			readline.PcItem("volume"),
			readline.PcItem("add"),
			readline.PcItem("help"),
			readline.PcItem("quit"),
		),
	})
	if err != nil {
		return errors.Wrap(err, "failed to start shell")
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "quit", "exit":
			return nil
		case "help":
			fmt.Println("commands: status play pause stop next prev select N seek SECONDS volume PERCENT add PATH... quit")
			continue
		}

		if err := execute(ctx, client, fields[0], fields[1:]); err != nil {
			fmt.Printf("Error: %s\n", describe(err))
		}
	}
}

// describe turns RPC errors into short messages.
func describe(err error) string {
	switch connect.CodeOf(err) {
	case connect.CodeUnauthenticated:
		return "invalid or missing control token"
	case connect.CodeUnavailable:
		return "player is not reachable at " + *server
	case connect.CodeFailedPrecondition, connect.CodeInvalidArgument:
		var connectErr *connect.Error
		if errors.As(err, &connectErr) {
			return connectErr.Message()
		}
	}
	return err.Error()
}

func printStatus(w io.Writer, s apiconnect.Status) {
	position := "-"
	if s.Index >= 0 {
		position = fmt.Sprintf("%d/%d", s.Index+1, len(s.Paths))
	}
	fmt.Fprintf(w, "%s [%s] volume %d%%\n", s.Status, position, s.Volume)
	if s.Track != nil {
		fmt.Fprintf(w, "Playing: %s\nArtist: %s\nAlbum: %s\n", s.Track.Title, s.Track.Artist, s.Track.Album)
	}
	fmt.Fprintf(w, "%s / %s\n", track.FormatTime(s.Elapsed), track.FormatTime(s.Duration))
}

func printEvent(w io.Writer, e apiconnect.EventMessage) {
	fmt.Fprintf(w, "[%d] %s: ", e.SequenceNo, e.Type)
	switch e.Type {
	case "track_started":
		title := "?"
		if e.Track != nil {
			title = e.Track.Title
		}
		fmt.Fprintf(w, "#%d %s (%s)\n", e.Index+1, title, track.FormatTime(e.Duration))
	case "progress":
		fmt.Fprintf(w, "%s / %s\n", track.FormatTime(e.Elapsed), track.FormatTime(e.Duration))
	case "volume_changed":
		fmt.Fprintf(w, "%d%%\n", e.Volume)
	case "playlist_changed":
		fmt.Fprintf(w, "+%d tracks (%d total)\n", len(e.Paths), e.Count)
	case "load_failed":
		fmt.Fprintf(w, "%s\n", e.Error)
	default:
		fmt.Fprintf(w, "%s, %d tracks\n", e.Status, e.Count)
	}
}
