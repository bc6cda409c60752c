// Command compass runs an interactive career-guidance conversation against
// the orchestrator. Type messages on stdin; when a turn suspends for human
// review, pick one of the offered decisions to resume.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	compass "github.com/nevindra/compass"
	"github.com/nevindra/compass/internal/config"
	"github.com/nevindra/compass/observer"
	"github.com/nevindra/compass/provider/openaicompat"
	"github.com/nevindra/compass/store/postgres"
	"github.com/nevindra/compass/store/sqlite"
	"github.com/nevindra/compass/tools/resources"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Load config
	cfg := config.Load(os.Getenv("COMPASS_CONFIG"))

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	// 2. Create provider with retry middleware
	var llm compass.LlmClient = openaicompat.New(cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.BaseURL)
	llm = compass.WithRetry(llm, compass.RetryLogger(logger))

	opts := []compass.Option{
		compass.WithLogger(logger),
		compass.WithEscalationContact(cfg.Supervisor.EscalationContact),
		compass.WithResourceSearch(resources.New(resources.WithSites(cfg.Resources.Sites...))),
	}

	// 3. Optional observability
	if cfg.Observer.Enabled {
		inst, shutdown, err := observer.Init(ctx)
		if err != nil {
			log.Fatalf("observer init: %v", err)
		}
		defer shutdown(context.Background())
		llm = observer.WrapLlmClient(llm, "openai", inst)
		opts = append(opts,
			compass.WithTracer(observer.NewTracer()),
			compass.WithAnalytics(observer.NewAnalytics(inst)),
		)
	}

	// 4. Create state store
	var store compass.StateStore
	switch cfg.Database.Driver {
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.Database.PostgresURL)
		if err != nil {
			log.Fatalf("postgres connect: %v", err)
		}
		defer pool.Close()
		pg := postgres.New(pool)
		if err := pg.Init(ctx); err != nil {
			log.Fatalf("postgres init: %v", err)
		}
		mem := postgres.NewMemoryStore(pool)
		if err := mem.Init(ctx); err != nil {
			log.Fatalf("postgres memory init: %v", err)
		}
		opts = append(opts, compass.WithMemoryStore(mem))
		store = pg
	default:
		db := sqlite.New(cfg.Database.Path, sqlite.WithLogger(logger))
		defer db.Close()
		if err := db.Init(ctx); err != nil {
			log.Fatalf("sqlite init: %v", err)
		}
		mem := sqlite.NewMemoryStore(db.DB())
		if err := mem.Init(ctx); err != nil {
			log.Fatalf("sqlite memory init: %v", err)
		}
		analytics := sqlite.NewAnalytics(db.DB(), logger)
		if err := analytics.Init(ctx); err != nil {
			log.Fatalf("sqlite analytics init: %v", err)
		}
		opts = append(opts,
			compass.WithMemoryStore(mem),
			compass.WithAnalytics(analytics),
		)
		store = db
	}

	// 5. Run the chat loop
	orc := compass.NewOrchestrator(store, llm, opts...)
	if err := chat(ctx, orc); err != nil && ctx.Err() == nil {
		log.Fatal(err)
	}
}

func chat(ctx context.Context, orc *compass.Orchestrator) error {
	userID := envOr("COMPASS_USER", "local")
	conversationID := compass.NewID()
	fmt.Printf("conversation %s started. Type your message, or /quit to exit.\n", conversationID)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" {
			return nil
		}

		result, err := orc.RunTurn(ctx, userID, conversationID, line)
		if err != nil {
			return err
		}
		result, err = resolveReviews(ctx, orc, scanner, userID, conversationID, result)
		if err != nil {
			return err
		}

		if msg, ok := result.State.LastAssistantMessage(); ok {
			fmt.Println(msg.Content)
		}
		if result.Status == compass.TurnCompleted {
			fmt.Println("(conversation complete)")
			return nil
		}
		if result.Status == compass.TurnAwaitingHuman {
			fmt.Println("(escalated to a human specialist)")
			return nil
		}
	}
}

// resolveReviews loops while the turn is suspended, asking the operator
// for a review decision and resuming with it.
func resolveReviews(ctx context.Context, orc *compass.Orchestrator, scanner *bufio.Scanner, userID, conversationID string, result compass.TurnResult) (compass.TurnResult, error) {
	for result.Status == compass.TurnAwaitingHuman && result.Review != nil {
		fmt.Printf("review needed: %s\n", result.Review.Question)
		for i, opt := range result.Review.Options {
			fmt.Printf("  %d. %s\n", i+1, opt)
		}
		fmt.Print("decision> ")
		if !scanner.Scan() {
			return result, scanner.Err()
		}
		decision := strings.TrimSpace(scanner.Text())
		var err error
		result, err = orc.ResumeTurn(ctx, userID, conversationID, decision)
		if err != nil {
			return result, err
		}
	}
	return result, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
