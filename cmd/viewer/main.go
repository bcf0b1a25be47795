package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"cinelive/domain"
	"cinelive/domain/event"
	"cinelive/projection"

	"github.com/goccy/go-json"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// The viewer is a terminal client: it dials the gateway, joins a room,
// and renders the live stream while keeping a deduplicated local
// timeline, the same logic real clients apply.
type Config struct {
	GatewayURL string `envconfig:"VIEWER_GATEWAY_URL" default:"ws://localhost:8080/ws"`
	Token      string `envconfig:"VIEWER_TOKEN" required:"true"`
	RoomID     string `envconfig:"VIEWER_ROOM_ID" required:"true"`
	Colours    bool   `envconfig:"VIEWER_COLOURS" default:"true"`
}

type wireEvent struct {
	Kind     string          `json:"kind"`
	RoomID   string          `json:"roomId"`
	Payload  json.RawMessage `json:"payload"`
	DedupKey string          `json:"dedupKey"`
	Ts       time.Time       `json:"ts"`
}

func main() {
	_ = godotenv.Load()
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("Config error: %v", err)
	}

	url := fmt.Sprintf("%s?token=%s", cfg.GatewayURL, cfg.Token)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		log.Fatalf("Failed to dial gateway: %v", err)
	}
	defer conn.Close()

	join, _ := json.Marshal(map[string]any{"action": "join", "roomId": cfg.RoomID})
	if err := conn.WriteMessage(websocket.TextMessage, join); err != nil {
		log.Fatalf("Failed to join room: %v", err)
	}
	fmt.Printf("Watching %s (Ctrl+C to quit)\n", cfg.RoomID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	timeline := projection.NewTimeline()
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			fmt.Printf("\nDisconnected (%d events seen)\n", timeline.Len())
			return
		}
		var wire wireEvent
		if err := json.Unmarshal(raw, &wire); err != nil {
			continue
		}

		evt := event.Event{
			Kind:     event.Kind(wire.Kind),
			Target:   event.RoomTarget{Room: domain.RoomID(wire.RoomID)},
			Payload:  wire.Payload,
			DedupKey: wire.DedupKey,
			At:       wire.Ts,
		}
		before := timeline.Len()
		_ = timeline.Consume(ctx, evt)
		if timeline.Len() == before {
			// Duplicate suppressed locally, nothing to render.
			continue
		}
		render(cfg.Colours, wire)
	}
}

func render(colours bool, wire wireEvent) {
	line := fmt.Sprintf("[%s] %-16s %s",
		wire.Ts.Format("15:04:05"), wire.Kind, string(wire.Payload))
	if !colours {
		fmt.Println(line)
		return
	}
	switch wire.Kind {
	case "typing.changed":
		color.Gray.Println(line)
	case "message.deleted":
		color.Red.Println(line)
	case "activity.created":
		color.Yellow.Println(line)
	default:
		color.Green.Println(line)
	}
}
