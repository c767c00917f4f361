// Command graphforge-discordviewer is a thin Broadcast Client front-end: it
// subscribes to one (workspaceId, systemId) pair and posts a short
// summary message of every graph_update/chat_update it receives to a Discord
// channel. It has no write path back into GraphForge and never touches the
// long-term store directly — it is a viewer process in the same sense a
// browser tab connected to the Broadcast Server is, just with Discord as
// the rendering surface.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/bwmarrin/discordgo"

	"github.com/flowtwo/graphforge/internal/broadcast"
)

func main() {
	os.Exit(run())
}

func run() int {
	token := flag.String("discord-token", os.Getenv("DISCORD_TOKEN"), "Discord bot token")
	channelID := flag.String("channel", "", "Discord channel ID to post updates to")
	broadcastURL := flag.String("broadcast-url", "ws://localhost:8080/ws", "GraphForge broadcast server WebSocket URL")
	workspaceID := flag.String("workspace", "", "workspace ID to subscribe to")
	systemID := flag.String("system", "", "system ID to subscribe to")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if *token == "" || *channelID == "" || *workspaceID == "" || *systemID == "" {
		fmt.Fprintln(os.Stderr, "graphforge-discordviewer: -discord-token, -channel, -workspace, and -system are all required")
		return 1
	}

	session, err := discordgo.New("Bot " + *token)
	if err != nil {
		slog.Error("discordviewer: create session", "error", err)
		return 1
	}
	if err := session.Open(); err != nil {
		slog.Error("discordviewer: open session", "error", err)
		return 1
	}
	defer session.Close()

	poster := &diffPoster{session: session, channelID: *channelID, logger: logger}

	client := broadcast.NewClient(broadcast.ClientConfig{
		URL: *broadcastURL,
		Subscription: broadcast.Subscription{
			WorkspaceID: *workspaceID,
			SystemID:    *systemID,
		},
		OnUpdate: poster.post,
		OnReconnect: func() {
			logger.Info("discordviewer: reconnected to broadcast server")
		},
		Logger: logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("discordviewer: subscribing",
		"broadcast_url", *broadcastURL, "workspace", *workspaceID, "system", *systemID, "channel", *channelID)

	if err := client.Run(ctx); err != nil {
		slog.Error("discordviewer: client stopped with error", "error", err)
		return 1
	}
	return 0
}

// diffPoster renders each broadcast.Message into a short human-readable
// summary and posts it to the configured Discord channel.
type diffPoster struct {
	session   *discordgo.Session
	channelID string
	logger    *slog.Logger
}

func (p *diffPoster) post(msg broadcast.Message) {
	summary := summarize(msg)
	if summary == "" {
		return
	}
	if _, err := p.session.ChannelMessageSend(p.channelID, summary); err != nil {
		p.logger.Warn("discordviewer: failed to post message", "error", err)
	}
}

// summarize renders msg as a short Discord message: the origin, who
// triggered it, and a fenced code block holding the raw Format E diff text
// capped at a length Discord will actually render without truncation
// mid-line.
func summarize(msg broadcast.Message) string {
	switch msg.Type {
	case broadcast.TypeGraphUpdate:
		origin := "system"
		user := ""
		if msg.Source != nil {
			origin = string(msg.Source.Origin)
			user = msg.Source.UserID
		}
		who := origin
		if user != "" {
			who = fmt.Sprintf("%s by %s", origin, user)
		}
		return fmt.Sprintf("**graph update** (%s)\n```\n%s\n```", who, truncate(msg.Diff, 1800))
	case broadcast.TypeChatUpdate:
		who := "unknown"
		if msg.Source != nil && msg.Source.UserID != "" {
			who = msg.Source.UserID
		}
		return fmt.Sprintf("**chat update** from %s", who)
	default:
		return ""
	}
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max] + "\n… (truncated)"
}
