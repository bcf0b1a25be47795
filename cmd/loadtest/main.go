package main

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/olekukonko/tablewriter"
)

// The load test registers N accounts, puts them in one conversation,
// connects one socket each, then hammers the write path from the first
// account and measures fan-out on the receiving side.
type Config struct {
	BaseURL      string        `envconfig:"LOADTEST_BASE_URL" default:"http://localhost:8080"`
	GatewayURL   string        `envconfig:"LOADTEST_GATEWAY_URL" default:"ws://localhost:8080/ws"`
	Listeners    int           `envconfig:"LOADTEST_LISTENERS" default:"20"`
	Messages     int           `envconfig:"LOADTEST_MESSAGES" default:"100"`
	SendInterval time.Duration `envconfig:"LOADTEST_SEND_INTERVAL" default:"10ms"`
	DrainTimeout time.Duration `envconfig:"LOADTEST_DRAIN_TIMEOUT" default:"5s"`
}

type client struct {
	token string
	conn  *websocket.Conn
}

func main() {
	_ = godotenv.Load()
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("Config error: %v", err)
	}

	runID := time.Now().UnixNano()

	// 1. Register accounts
	clients := make([]*client, cfg.Listeners)
	for i := range clients {
		token, err := register(cfg.BaseURL, fmt.Sprintf("load-%d-%d@cinelive.test", runID, i))
		if err != nil {
			log.Fatalf("Register failed for listener %d: %v", i, err)
		}
		clients[i] = &client{token: token}
	}

	// 2. One conversation containing everyone
	conversationID, err := createConversation(cfg.BaseURL, clients)
	if err != nil {
		log.Fatalf("Conversation creation failed: %v", err)
	}

	// 3. Connect and join
	var received atomic.Int64
	var latencySum atomic.Int64
	var wg sync.WaitGroup
	for i, c := range clients {
		conn, _, err := websocket.DefaultDialer.Dial(
			fmt.Sprintf("%s?token=%s", cfg.GatewayURL, c.token), nil)
		if err != nil {
			log.Fatalf("Dial failed for listener %d: %v", i, err)
		}
		c.conn = conn

		join, _ := json.Marshal(map[string]any{
			"action": "join",
			"roomId": "chat:" + conversationID,
		})
		if err := conn.WriteMessage(websocket.TextMessage, join); err != nil {
			log.Fatalf("Join failed for listener %d: %v", i, err)
		}

		wg.Add(1)
		go func(conn *websocket.Conn) {
			defer wg.Done()
			for {
				_, raw, err := conn.ReadMessage()
				if err != nil {
					return
				}
				var wire struct {
					Kind string    `json:"kind"`
					Ts   time.Time `json:"ts"`
				}
				if json.Unmarshal(raw, &wire) != nil || wire.Kind != "message.created" {
					continue
				}
				received.Add(1)
				latencySum.Add(int64(time.Since(wire.Ts)))
			}
		}(conn)
	}

	// 4. Fire the write path
	start := time.Now()
	sent := 0
	for i := 0; i < cfg.Messages; i++ {
		body := fmt.Sprintf("load message %d", i)
		if err := postMessage(cfg.BaseURL, clients[0].token, conversationID, body); err != nil {
			log.Printf("Send %d failed: %v", i, err)
			continue
		}
		sent++
		time.Sleep(cfg.SendInterval)
	}
	sendDuration := time.Since(start)

	// 5. Drain, then report
	time.Sleep(cfg.DrainTimeout)
	for _, c := range clients {
		_ = c.conn.Close()
	}
	wg.Wait()

	expected := int64(sent) * int64(cfg.Listeners)
	got := received.Load()
	var avgLatency time.Duration
	if got > 0 {
		avgLatency = time.Duration(latencySum.Load() / got)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Metric", "Value"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.AppendBulk([][]string{
		{"Listeners", fmt.Sprintf("%d", cfg.Listeners)},
		{"Messages sent", fmt.Sprintf("%d", sent)},
		{"Send duration", sendDuration.String()},
		{"Deliveries expected", fmt.Sprintf("%d", expected)},
		{"Deliveries received", fmt.Sprintf("%d", got)},
		{"Delivery ratio", fmt.Sprintf("%.2f%%", 100*float64(got)/float64(expected))},
		{"Avg latency", avgLatency.String()},
	})
	table.Render()
}

func register(baseURL, email string) (string, error) {
	payload, _ := json.Marshal(map[string]string{
		"email":       email,
		"displayName": email,
		"password":    "LoadTest123!",
	})
	resp, err := http.Post(baseURL+"/auth/register", "application/json", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.Token, nil
}

func createConversation(baseURL string, clients []*client) (string, error) {
	// The creator is added server-side; the other listeners are passed
	// by id, extracted from their own JWT payloads.
	members := make([]string, 0, len(clients)-1)
	for _, c := range clients[1:] {
		id, err := subjectOf(c.token)
		if err != nil {
			return "", err
		}
		members = append(members, id)
	}
	payload, _ := json.Marshal(map[string]any{"members": members})

	req, _ := http.NewRequest(http.MethodPost, baseURL+"/conversations", bytes.NewReader(payload))
	req.Header.Set("Authorization", "Bearer "+clients[0].token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// subjectOf extracts the user id claim without verifying the signature;
// acceptable here because the token was just issued to us.
func subjectOf(token string) (string, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return "", fmt.Errorf("malformed token")
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return "", err
	}
	var claims struct {
		UserID string `json:"user_id"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return "", err
	}
	return claims.UserID, nil
}

func postMessage(baseURL, token, conversationID, content string) error {
	payload, _ := json.Marshal(map[string]string{"content": content})
	url := fmt.Sprintf("%s/conversations/%s/messages", baseURL, conversationID)
	req, _ := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
