package main

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net"
	"time"

	"gitlab.com/zephyrtronium/tmi"
	"golang.org/x/time/rate"
)

// contextDialer is typically either *net.Dialer or *tls.Dialer.
type contextDialer interface {
	DialContext(ctx context.Context, network, addr string) (net.Conn, error)
}

type connectConfig struct {
	dialer  contextDialer
	addr    string // format accepted by DialContext
	retries []time.Duration
	nick    string // also used for user
	pass    string
	timeout time.Duration
	// rate limits PRIVMSGs. If nil, there is no limit.
	rate *rate.Limiter
}

// connect connects to an IRC server. It should be used in a go statement. Once
// the connection is finished, connect closes recv.
//
// connect automatically handles reconnecting after net errors. To disconnect
// and not reconnect, send a QUIT message, or close the context; in the latter
// case, connect will automatically send a QUIT to the server.
func connect(ctx context.Context, config connectConfig, send <-chan *tmi.Message, recv chan<- *tmi.Message, log *slog.Logger) {
	pctx, cancel := context.WithCancel(ctx)
	sem := make(chan struct{}, 2)
	for pctx.Err() == nil {
		log.InfoContext(ctx, "connecting", slog.String("addr", config.addr))
		conn, err := config.dialer.DialContext(ctx, "tcp", config.addr)
		if err != nil {
			log.ErrorContext(ctx, "connection error", slog.Any("err", err))
			for _, wait := range config.retries {
				select {
				case <-ctx.Done():
				case <-time.After(wait):
				}
				conn, err = config.dialer.DialContext(ctx, "tcp", config.addr)
				if err != nil {
					log.ErrorContext(ctx, "connection error", slog.Any("err", err), slog.Duration("waited", wait))
					continue
				}
				break
			}
			if err != nil {
				log.ErrorContext(ctx, "out of retries, giving up")
				break
			}
		}
		ppctx, pcancel := context.WithCancel(pctx)
		go connSender(ppctx, cancel, config, send, sem, conn, log)
		go connRecver(ppctx, pcancel, config, recv, sem, conn, log)
		select {
		case <-ctx.Done():
			// Context closed. Close the connection so the reader and writer
			// unblock, then receive a value from the semaphore in place of the
			// one we'd normally receive on the other case.
			conn.Close()
			<-sem
		case <-sem: // do nothing
		}
		// Repeat of the same select for the same reasons. We might double-,
		// triple-, maybe even quadruple-close the connection, but that's ok.
		select {
		case <-ctx.Done():
			conn.Close()
			<-sem
		case <-sem: // do nothing
		}
		pcancel()
	}
	cancel()
	close(recv)
}

func connSender(ctx context.Context, cancel context.CancelFunc, config connectConfig, send <-chan *tmi.Message, sem chan struct{}, conn net.Conn, log *slog.Logger) {
	defer func() { sem <- struct{}{} }()
	defer conn.Close()
	write := func(msg string) error {
		log.DebugContext(ctx, "send", slog.String("msg", msg))
		conn.SetWriteDeadline(time.Now().Add(config.timeout))
		_, err := io.WriteString(conn, msg+"\r\n")
		return err
	}
	li := []*tmi.Message{
		{Command: "NICK", Params: []string{config.nick}},
		{Command: "USER", Params: []string{config.nick, "0", "*"}, Trailing: config.nick},
	}
	if config.pass != "" {
		li = append([]*tmi.Message{{Command: "PASS", Params: []string{config.pass}}}, li...)
	}
	for _, m := range li {
		if err := write(m.String()); err != nil {
			log.ErrorContext(ctx, "error while writing", slog.Any("err", err))
			conn.Close()
			return
		}
	}
	for {
		select {
		case <-ctx.Done():
			cancel()
			log.InfoContext(ctx, "sender: context closed")
			go write("QUIT :goodbye") // error doesn't matter
			return
		case msg, ok := <-send:
			if !ok {
				cancel()
				log.InfoContext(ctx, "sender: message channel closed")
				go write("QUIT :goodbye") // error doesn't matter
				return
			}
			switch msg.Command {
			case "":
				// do nothing, ignore zero values
			case "QUIT":
				cancel()
				write(msg.String()) // error doesn't matter
				return
			case "PRIVMSG":
				if config.rate != nil {
					if err := config.rate.Wait(ctx); err != nil {
						// Only the context closing makes Wait fail. Loop back
						// around to handle that.
						continue
					}
				}
				fallthrough
			default:
				err := write(msg.String())
				if err != nil {
					log.ErrorContext(ctx, "error while writing", slog.Any("err", err))
					conn.Close()
					return
				}
			}
		}
	}
}

func connRecver(ctx context.Context, cancel context.CancelFunc, config connectConfig, recv chan<- *tmi.Message, sem chan struct{}, conn net.Conn, log *slog.Logger) {
	defer func() { sem <- struct{}{} }()
	defer cancel()
	r := bufio.NewReaderSize(conn, 8192+512+2)
	for {
		conn.SetReadDeadline(time.Now().Add(config.timeout))
		msg, err := tmi.Parse(r)
		if err != nil {
			log.ErrorContext(ctx, "error while recving", slog.Any("err", err))
			conn.Close()
			return
		}
		switch msg.Command {
		case "PING":
			conn.SetWriteDeadline(time.Now().Add(config.timeout))
			_, err := io.WriteString(conn, "PONG :"+msg.Trailing+"\r\n")
			if err != nil {
				log.ErrorContext(ctx, "error while sending PONG", slog.Any("err", err))
				conn.Close()
				return
			}
			// Check the context for cancellation.
			if ctx.Err() != nil {
				log.InfoContext(ctx, "recver: context closed")
				// sender handles disconnecting in this case
				return
			}
			continue
		case "ERROR":
			log.WarnContext(ctx, "server closed the connection", slog.String("reason", msg.Trailing))
			conn.Close()
			return
		default:
			log.DebugContext(ctx, "recv", slog.String("msg", msg.String()))
			select {
			case <-ctx.Done():
				log.InfoContext(ctx, "recver: context closed")
				return
			case recv <- msg:
				// do nothing
			}
		}
	}
}
