// Package main provides a simple CLI chat client for the relay.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
)

// parseLine splits "to@example.com: message" into its recipient and body.
// "/to someone@example.com" changes the default recipient; lines without a
// recipient prefix go to the current default.
func parseLine(line, current string) (to, body, next string, ok bool) {
	line = strings.TrimSpace(line)
	if rest, found := strings.CutPrefix(line, "/to "); found {
		return "", "", strings.TrimSpace(rest), false
	}
	if addr, msg, found := strings.Cut(line, ":"); found && strings.Contains(addr, "@") && !strings.ContainsAny(addr, " \t") {
		addr, msg = strings.TrimSpace(addr), strings.TrimSpace(msg)
		return addr, msg, addr, msg != ""
	}
	if current == "" || line == "" {
		return "", "", current, false
	}
	return current, line, current, true
}

func main() {
	addr := flag.String("addr", "ws://localhost:4000/ws", "WebSocket relay address")
	email := flag.String("email", "", "Email to register as (required)")
	name := flag.String("name", "", "Display name")
	avatar := flag.String("avatar", "", "Avatar URL")
	flag.Parse()

	log.SetFlags(log.Ltime)

	if *email == "" {
		log.Fatal("-email is required")
	}

	fmt.Printf("Connecting to %s...\n", *addr)

	client, err := NewClient(*addr)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer client.Close()

	ack, err := client.Register(*email, *name, *avatar)
	if err != nil {
		log.Fatalf("Register failed: %v", err)
	}

	fmt.Printf("Registered as %s <%s>\n", ack.Name, ack.Email)
	fmt.Println("\nType \"someone@example.com: message\" to send, or /to <email> to pick a default recipient.")
	fmt.Println("Commands: /quit to exit")

	go client.ReadMessages(os.Stdout)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	scanner := bufio.NewScanner(os.Stdin)
	recipient := ""

	for {
		fmt.Print("> ")
		select {
		case <-interrupt:
			fmt.Println("\nInterrupted")
			return
		default:
			if !scanner.Scan() {
				return
			}

			input := strings.TrimSpace(scanner.Text())
			if input == "/quit" {
				fmt.Println("Bye!")
				return
			}

			to, body, next, ok := parseLine(input, recipient)
			if next != recipient {
				recipient = next
				fmt.Printf("Sending to %s\n", recipient)
			}
			if !ok {
				continue
			}

			if err := client.Send(to, body); err != nil {
				log.Printf("Send error: %v", err)
			}
		}
	}
}
