package main

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gitlab.com/zephyrtronium/tmi"

	"github.com/zephyrtronium/relaybot/message"
	"github.com/zephyrtronium/relaybot/metrics"
	"github.com/zephyrtronium/relaybot/source"
	"github.com/zephyrtronium/relaybot/watchlist"
)

const testConfig = `
[main]
server = 'irc.libera.chat:6697'
nick = 'relaybot'
channel = '#kessoku'

[relay]
server = 'irc.example.net:6667'
nick = 'relaybot-relay'
channel = '#bots'

[source.weatherbot]
kind = 'relay'
commands = ['!weather']
`

func testMetrics() *metrics.Metrics {
	return &metrics.Metrics{
		MainMessages:      metrics.Discard(),
		RelayMessages:     metrics.Discard(),
		Commands:          metrics.Discard(),
		Forwarded:         metrics.Discard(),
		Returned:          metrics.Discard(),
		WatchlistFailures: metrics.Discard(),
		Dropped:           metrics.Discard(),
	}
}

func testRobot(t *testing.T) *Robot {
	t.Helper()
	ctx := context.Background()
	cfg, _, err := Load(ctx, strings.NewReader(testConfig))
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	stor := &watchlist.File{Path: filepath.Join(t.TempDir(), "watchlist.json")}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	robo, err := New(ctx, cfg, stor, testMetrics(), log)
	if err != nil {
		t.Fatal(err)
	}
	return robo
}

// drain returns the messages queued to n as "target text" strings.
func drain(n *network) []string {
	var r []string
	for {
		select {
		case m := <-n.send:
			r = append(r, m.Command+" "+strings.Join(m.Params, " ")+" :"+m.Trailing)
		default:
			return r
		}
	}
}

func parse(t *testing.T, s string) *tmi.Message {
	t.Helper()
	m, err := tmi.Parse(strings.NewReader(s + "\r\n"))
	if err != nil && err != io.EOF {
		t.Fatal(err)
	}
	return m
}

func TestParseCommand(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	var reg source.Registry
	reg.Register(log,
		source.Source{Name: "relaybot", Kind: source.Self, Commands: []string{"!watch", "!help"}},
		source.Source{Name: "weatherbot", Kind: source.Relay, Commands: []string{"!weather"}},
	)
	cases := []struct {
		name   string
		msg    message.Received
		ok     bool
		src    string
		action string
		reply  string
		params []string
	}{
		{
			name: "empty",
			msg:  message.Received{From: "bocchi", To: "#kessoku", Text: ""},
		},
		{
			name: "spaces",
			msg:  message.Received{From: "bocchi", To: "#kessoku", Text: "   "},
		},
		{
			name: "unknown",
			msg:  message.Received{From: "bocchi", To: "#kessoku", Text: "!dance now"},
		},
		{
			name: "not-first",
			msg:  message.Received{From: "bocchi", To: "#kessoku", Text: "please !watch kita"},
		},
		{
			name:   "channel",
			msg:    message.Received{From: "bocchi", To: "#kessoku", Text: "!watch kita"},
			ok:     true,
			src:    "relaybot",
			action: "!watch",
			reply:  "#kessoku",
			params: []string{"kita"},
		},
		{
			name:   "private",
			msg:    message.Received{From: "bocchi", To: "RelayBot", Text: "!Weather  tokyo   tomorrow"},
			ok:     true,
			src:    "weatherbot",
			action: "!weather",
			reply:  "bocchi",
			params: []string{"tokyo", "tomorrow"},
		},
		{
			name:   "bare",
			msg:    message.Received{From: "bocchi", To: "#kessoku", Text: "  !HELP"},
			ok:     true,
			src:    "relaybot",
			action: "!help",
			reply:  "#kessoku",
			params: []string{},
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			call, ok := parseCommand(context.Background(), log, &reg, "relaybot", &c.msg)
			if ok != c.ok {
				t.Fatalf("wrong commandness: want %t, got %t", c.ok, ok)
			}
			if !ok {
				return
			}
			if call.Source.Name != c.src {
				t.Errorf("wrong source: want %q, got %q", c.src, call.Source.Name)
			}
			if call.Action != c.action {
				t.Errorf("wrong action: want %q, got %q", c.action, call.Action)
			}
			if call.Reply != c.reply {
				t.Errorf("wrong reply: want %q, got %q", c.reply, call.Reply)
			}
			if call.Text != c.msg.Text {
				t.Errorf("wrong full text: want %q, got %q", c.msg.Text, call.Text)
			}
			if diff := cmp.Diff(c.params, call.Params); diff != "" {
				t.Errorf("wrong params (+got/-want):\n%s", diff)
			}
		})
	}
}

func TestRelayRoundTrip(t *testing.T) {
	ctx := context.Background()
	robo := testRobot(t)
	robo.mainEvent(ctx, parse(t, ":bocchi!b@example.net PRIVMSG #kessoku :!weather tokyo"))
	robo.mainEvent(ctx, parse(t, ":ryou!r@example.net PRIVMSG relaybot :!WEATHER osaka"))
	wantRelay := []string{
		"PRIVMSG weatherbot :!weather tokyo",
		"PRIVMSG weatherbot :!WEATHER osaka",
	}
	if diff := cmp.Diff(wantRelay, drain(robo.relay)); diff != "" {
		t.Errorf("wrong relay messages (+got/-want):\n%s", diff)
	}
	robo.relayEvent(ctx, parse(t, ":weatherbot!w@example.net PRIVMSG relaybot-relay :tokyo: rain"))
	robo.relayEvent(ctx, parse(t, ":weatherbot!w@example.net PRIVMSG relaybot-relay :osaka: sun"))
	// Unsolicited and not watched, so dropped.
	robo.relayEvent(ctx, parse(t, ":weatherbot!w@example.net PRIVMSG #bots :kita is outside"))
	// Not a peer.
	robo.relayEvent(ctx, parse(t, ":stranger!s@example.net PRIVMSG relaybot-relay :hello"))
	wantMain := []string{
		"PRIVMSG #kessoku :tokyo: rain",
		"PRIVMSG ryou :osaka: sun",
	}
	if diff := cmp.Diff(wantMain, drain(robo.main)); diff != "" {
		t.Errorf("wrong main messages (+got/-want):\n%s", diff)
	}
}

func TestWatchBroadcast(t *testing.T) {
	ctx := context.Background()
	robo := testRobot(t)
	robo.mainEvent(ctx, parse(t, ":bocchi!b@example.net PRIVMSG #kessoku :!watch Kita"))
	robo.relayEvent(ctx, parse(t, ":weatherbot!w@example.net PRIVMSG #bots :KITA is outside"))
	robo.mainEvent(ctx, parse(t, ":bocchi!b@example.net PRIVMSG #kessoku :!watched"))
	want := []string{
		"PRIVMSG #kessoku :Now watching Kita.",
		"PRIVMSG #kessoku :KITA is outside",
		"PRIVMSG #kessoku :Watching: kita",
	}
	if diff := cmp.Diff(want, drain(robo.main)); diff != "" {
		t.Errorf("wrong main messages (+got/-want):\n%s", diff)
	}
}

func TestKickedGreeting(t *testing.T) {
	ctx := context.Background()
	robo := testRobot(t)
	robo.mainEvent(ctx, parse(t, ":relaybot!r@example.net JOIN #kessoku"))
	robo.mainEvent(ctx, parse(t, ":seika!s@example.net KICK #kessoku relaybot :no bots"))
	robo.mainEvent(ctx, parse(t, ":relaybot!r@example.net JOIN #kessoku"))
	robo.mainEvent(ctx, parse(t, ":relaybot!r@example.net JOIN #kessoku"))
	// Someone else joining and someone else being kicked don't count.
	robo.mainEvent(ctx, parse(t, ":nijika!n@example.net JOIN #kessoku"))
	robo.mainEvent(ctx, parse(t, ":seika!s@example.net KICK #kessoku nijika :drums too loud"))
	robo.mainEvent(ctx, parse(t, ":relaybot!r@example.net JOIN #kessoku"))
	want := []string{
		"PRIVMSG #kessoku :Hello! Say !help to see what I can do.",
		"JOIN #kessoku :",
		"PRIVMSG #kessoku :That was rude. I'm back anyway.",
		"PRIVMSG #kessoku :Hello! Say !help to see what I can do.",
		"PRIVMSG #kessoku :Hello! Say !help to see what I can do.",
	}
	if diff := cmp.Diff(want, drain(robo.main)); diff != "" {
		t.Errorf("wrong main messages (+got/-want):\n%s", diff)
	}
}

func TestMOTDJoins(t *testing.T) {
	ctx := context.Background()
	robo := testRobot(t)
	robo.mainEvent(ctx, parse(t, ":irc.libera.chat 376 relaybot :End of /MOTD command."))
	robo.relayEvent(ctx, parse(t, ":irc.example.net 422 relaybot-relay :MOTD File is missing"))
	if diff := cmp.Diff([]string{"JOIN #kessoku :"}, drain(robo.main)); diff != "" {
		t.Errorf("wrong main messages (+got/-want):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"JOIN #bots :"}, drain(robo.relay)); diff != "" {
		t.Errorf("wrong relay messages (+got/-want):\n%s", diff)
	}
}

func TestFullSendQueue(t *testing.T) {
	ctx := context.Background()
	robo := testRobot(t)
	// Nothing drains the relay network, as when its connection is waiting to
	// retry. Handling events must still return.
	n := 2 * cap(robo.relay.send)
	for range n {
		robo.mainEvent(ctx, parse(t, ":bocchi!b@example.net PRIVMSG #kessoku :!weather tokyo"))
	}
	if got := len(robo.relay.send); got != cap(robo.relay.send) {
		t.Errorf("wrong relay queue length: want %d, got %d", cap(robo.relay.send), got)
	}
	// Only commands that were actually sent wait for replies.
	if got := robo.engine.Pending("weatherbot"); got != cap(robo.relay.send) {
		t.Errorf("wrong pending count: want %d, got %d", cap(robo.relay.send), got)
	}
	robo.mainEvent(ctx, parse(t, ":bocchi!b@example.net PRIVMSG #kessoku :!watch kita"))
	if diff := cmp.Diff([]string{"PRIVMSG #kessoku :Now watching kita."}, drain(robo.main)); diff != "" {
		t.Errorf("wrong main messages (+got/-want):\n%s", diff)
	}
}

func TestNetworkDown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	robo := testRobot(t)
	done := make(chan error)
	go func() { done <- robo.loop(ctx) }()
	// The relay connection gives up.
	close(robo.relay.recv)
	for down := false; !down; {
		if err := robo.do(ctx, func(ctx context.Context) { down = robo.relay.down }); err != nil {
			t.Fatal(err)
		}
	}
	msg := parse(t, ":bocchi!b@example.net PRIVMSG #kessoku :!weather tokyo")
	var pending int
	f := func(ctx context.Context) {
		robo.mainEvent(ctx, msg)
		pending = robo.engine.Pending("weatherbot")
	}
	if err := robo.do(ctx, f); err != nil {
		t.Fatal(err)
	}
	if pending != 0 {
		t.Errorf("command to a closed network is pending")
	}
	if got := drain(robo.relay); len(got) != 0 {
		t.Errorf("queued messages to a closed network: %q", got)
	}
	cancel()
	<-done
}
