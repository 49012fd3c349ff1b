// fer-watch - print the live result stream of a fer server
//
// Connects to /ws/results and prints every result, notice and status
// message. Optionally resumes the session and triggers captures.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/teslashibe/go-fer/internal/config"
	"github.com/teslashibe/go-fer/internal/httpc"
	"github.com/teslashibe/go-fer/internal/log"
	"github.com/teslashibe/go-fer/pkg/protocol"
)

func main() {
	envErr := config.LoadEnv()

	server := flag.String("server", config.String("SERVER", "localhost:8080"), "fer server host:port (FER_SERVER)")
	resume := flag.Bool("resume", false, "Resume the session before watching")
	every := flag.Duration("capture", 0, "Trigger a capture at this period, 0 to only watch")
	ping := flag.Duration("ping", 30*time.Second, "Round-trip probe period, 0 disables")
	logLevel := flag.String("log-level", config.String("LOG_LEVEL", "info"), "Log level (FER_LOG_LEVEL)")
	flag.Parse()

	log.Init(*logLevel)
	if envErr != nil {
		log.Warn("failed to load .env", "error", envErr)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	base := "http://" + *server
	if *resume {
		var st protocol.StatusData
		if err := httpc.PostJSON(ctx, base+"/api/session/resume", nil, &st); err != nil {
			log.Error("resume failed", "error", err)
			os.Exit(1)
		}
		log.Info("session resumed", "session", sessionID(&st))
	}
	if *every > 0 {
		go triggerLoop(ctx, base, *every)
	}

	u := url.URL{Scheme: "ws", Host: *server, Path: "/ws/results"}
	backoff := time.Second
	for ctx.Err() == nil {
		err := watch(ctx, u.String(), *ping, os.Stdout)
		if ctx.Err() != nil {
			break
		}
		log.Warn("stream disconnected, retrying", "error", err, "in", backoff)
		select {
		case <-ctx.Done():
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, 30*time.Second)
	}
}

// watch streams messages from addr to w until the connection fails or ctx ends.
func watch(ctx context.Context, addr string, pingEvery time.Duration, w io.Writer) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, addr, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()
	log.Info("connected", "url", addr)

	go func() {
		<-ctx.Done()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		conn.Close()
	}()

	if pingEvery > 0 {
		go pingLoop(ctx, conn, pingEvery)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		msg, err := protocol.ParseMessage(data)
		if err != nil {
			log.Debug("ignoring message", "error", err)
			continue
		}
		if line := format(msg); line != "" {
			fmt.Fprintln(w, line)
		}
	}
}

// pingLoop sends protocol pings. It is the only writer besides the close frame.
func pingLoop(ctx context.Context, conn *websocket.Conn, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	n := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n++
			msg, err := protocol.NewPingMessage(fmt.Sprintf("watch-%d", n))
			if err != nil {
				continue
			}
			data, err := msg.Bytes()
			if err != nil {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}
}

func triggerLoop(ctx context.Context, base string, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := httpc.PostJSON(ctx, base+"/api/capture", nil, nil); err != nil && ctx.Err() == nil {
				log.Warn("capture trigger failed", "error", err)
			}
		}
	}
}

func sessionID(st *protocol.StatusData) string {
	if st.Session == nil {
		return ""
	}
	return st.Session.ID
}
