package main

import (
	"bufio"
	"context"
	"fmt"
	"hive-chat/client"
	"hive-chat/domain"
	"hive-chat/domain/event"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

type Config struct {
	LogLevel  string `env:"LOG_LEVEL,default=WARN"`
	ServerURL string `env:"CHAT_SERVER_URL,default=http://localhost:5000"`
	UserID    string `env:"CHAT_USER_ID"`
	PeerID    string `env:"CHAT_PEER_ID"`
	Token     string `env:"CHAT_TOKEN"`
	Colours   bool   `env:"CHAT_COLOURS,default=true"`
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client terminated with error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if config.UserID == "" {
		return exitConfig, fmt.Errorf("CHAT_USER_ID is required")
	}
	log := logs.GetLoggerFromString(config.LogLevel)
	color.Enable = config.Colours

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session, err := client.Dial(ctx, log, config.ServerURL, config.Token)
	if err != nil {
		return exitRuntime, err
	}
	defer session.Close()
	if err := session.Identify(config.UserID); err != nil {
		return exitRuntime, err
	}
	color.Green.Printf("Connected to %s as %s\n", config.ServerURL, config.UserID)
	printHelp()

	if config.PeerID != "" {
		if err := openConversation(ctx, session, config.PeerID); err != nil {
			color.Red.Println(err)
		}
	}

	lines := make(chan string)
	go readLines(lines)

	for {
		select {
		case <-ctx.Done():
			return exitOK, nil
		case evt, ok := <-session.Notifications():
			if !ok {
				return exitRuntime, fmt.Errorf("connection closed by server")
			}
			render(session, evt)
		case line, ok := <-lines:
			if !ok {
				return exitOK, nil
			}
			if quit := handle(ctx, session, config.UserID, line); quit {
				return exitOK, nil
			}
		}
	}
}

func readLines(lines chan<- string) {
	defer close(lines)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		lines <- scanner.Text()
	}
}

func handle(ctx context.Context, session *client.Session, userID, line string) bool {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
	case line == "/quit":
		return true
	case line == "/help":
		printHelp()
	case line == "/users":
		if err := session.RequestUsers(userID); err != nil {
			color.Red.Println(err)
		}
	case line == "/close":
		session.CloseConversation()
		color.Gray.Println("Conversation closed")
	case strings.HasPrefix(line, "/open "):
		if err := openConversation(ctx, session, strings.TrimSpace(strings.TrimPrefix(line, "/open "))); err != nil {
			color.Red.Println(err)
		}
	case strings.HasPrefix(line, "/"):
		color.Yellow.Printf("Unknown command %s\n", line)
	default:
		if err := session.Send(line); err != nil {
			color.Red.Println(err)
		}
	}
	return false
}

func openConversation(ctx context.Context, session *client.Session, peer string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := session.Open(ctx, peer); err != nil {
		return fmt.Errorf("could not open conversation with %s: %w", peer, err)
	}
	color.Cyan.Printf("====== conversation with %s ======\n", peer)
	for _, m := range session.Messages() {
		printMessage(session.View().Identity(), m)
	}
	return nil
}

func render(session *client.Session, evt event.LiveEvent) {
	switch e := evt.(type) {
	case event.MessageReceived:
		printMessage(session.View().Identity(), e.Message)
	case event.UsersListed:
		color.Cyan.Println("Users:")
		for _, u := range e.Users {
			fmt.Printf("  %s  %s <%s>\n", u.ID, u.Username, u.Email)
		}
	case event.SendFailed:
		color.Red.Printf("Send failed (%s): %s\n", e.Reason, e.Text)
	}
}

func printMessage(identity string, m domain.Message) {
	stamp := m.Timestamp.Local().Format("15:04:05")
	if m.SenderID == identity {
		color.Green.Printf("[%s] me: %s\n", stamp, m.Text)
		return
	}
	color.Blue.Printf("[%s] %s: %s\n", stamp, m.SenderID, m.Text)
}

func printHelp() {
	color.Gray.Println("Commands: /open <user>, /close, /users, /help, /quit. Anything else is sent to the open conversation.")
}
