// Command wsserverd hosts the wsserver engine behind a plain net/http
// server, translating each EXTERNAL INTERFACES configuration option into a
// CLI flag with the same default.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	wsserver "github.com/jadsonlucena/gows"
)

func main() {
	cmd := &cli.Command{
		Name:  "wsserverd",
		Usage: "serve the WebSocket upgrade endpoint",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Value: ":8080"},
			&cli.StringSliceFlag{Name: "allow-origin"},
			&cli.StringFlag{Name: "encoding", Value: wsserver.EncodingUTF8},
			&cli.IntFlag{Name: "limit-by-ip", Value: 256},
			&cli.IntFlag{Name: "max-payload", Value: 2621440},
			&cli.DurationFlag{Name: "ping-delay", Value: 180 * time.Second},
			&cli.DurationFlag{Name: "pong-timeout", Value: 5 * time.Second},
			&cli.DurationFlag{Name: "session-expires", Value: 12 * time.Hour},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	srv := wsserver.NewServer(
		wsserver.WithAllowOrigin(cmd.StringSlice("allow-origin")...),
		wsserver.WithEncoding(cmd.String("encoding")),
		wsserver.WithLimitByIP(int(cmd.Int("limit-by-ip"))),
		wsserver.WithMaxPayload(int(cmd.Int("max-payload"))),
		wsserver.WithPingDelay(cmd.Duration("ping-delay")),
		wsserver.WithPongTimeout(cmd.Duration("pong-timeout")),
		wsserver.WithSessionExpires(cmd.Duration("session-expires")),
	)

	srv.OnOpen(func(id string) {
		fmt.Printf("open %s\n", id)
	})
	srv.OnClose(func(id string, reason wsserver.CloseReason) {
		fmt.Printf("close %s %d %s\n", id, reason.Code, reason.Message)
	})
	srv.OnError(func(id string, err error) {
		fmt.Printf("error %s %v\n", id, err)
	})
	srv.On("message", func(id string, payload []byte) {
		_ = srv.Send(id, payload, true)
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/", srv.HandleUpgrade)

	addr := cmd.String("addr")
	fmt.Printf("listening on %s\n", addr)
	return http.ListenAndServe(addr, mux)
}
