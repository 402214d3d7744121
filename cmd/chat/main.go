// Command chat is a terminal REPL that drives the orchestrator directly.
// Useful for exercising tool calling without the HTTP layer.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/CinemateAI/cinemate-mvp/engine/chat"
	"github.com/CinemateAI/cinemate-mvp/engine/domain"
	"github.com/CinemateAI/cinemate-mvp/engine/retrieve"
	"github.com/CinemateAI/cinemate-mvp/engine/semantic"
	"github.com/CinemateAI/cinemate-mvp/pkg/ollama"
)

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(logger)

	ollamaURL := envOr("OLLAMA_URL", "http://localhost:11434")
	qdrantAddr := envOr("QDRANT_URL", "localhost:6334")
	collection := envOr("QDRANT_COLLECTION", "movies")
	embedModel := envOr("EMBED_MODEL", "nomic-embed-text")
	chatModel := envOr("CHAT_MODEL", "llama3.1")

	store, err := semantic.New(qdrantAddr, collection)
	if err != nil {
		fmt.Fprintf(os.Stderr, "qdrant connect failed: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	embedder := ollama.NewEmbedClient(ollamaURL, embedModel)
	llm := ollama.NewChatClient(ollamaURL, chatModel)
	retriever := retrieve.New(embedder, store, retrieve.DefaultOptions(), logger)
	orchestrator := chat.New(llm, retriever, nil, chat.DefaultOptions(), logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Println("Cinemate chat. Ask for movie recommendations; ctrl-d to quit.")

	var history []domain.Message
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		history = append(history, domain.Message{Role: domain.RoleUser, Content: line})
		reply, err := orchestrator.Respond(ctx, history, domain.DefaultResults)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			history = history[:len(history)-1]
			if ctx.Err() != nil {
				return
			}
			continue
		}

		fmt.Println(reply.Answer)
		for _, r := range reply.Results {
			fmt.Printf("  - %s (%s)  distance=%.3f\n", r.Title, r.ReleaseDate, r.Distance)
		}
		history = append(history, domain.Message{Role: domain.RoleAssistant, Content: reply.Answer})
	}
}
