// board is the terminal chess client that plays against a remote arbiter.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/park285/cheese-board/internal/arbiter"
	"github.com/park285/cheese-board/internal/board"
	"github.com/park285/cheese-board/internal/config"
	"github.com/park285/cheese-board/internal/msgcat"
	"github.com/park285/cheese-board/internal/obslog"
	"github.com/park285/cheese-board/internal/rules"
	"github.com/park285/cheese-board/internal/tui"
	"github.com/park285/cheese-board/pkg/chessdto"
)

var (
	flagSpectate = flag.Bool("spectate", false, "Print the board on every update instead of playing")
	flagNew      = flag.Bool("new", false, "Start a new game on launch")
	flagGame     = flag.String("game", "", "Game id (overrides GAME_ID)")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadClient()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if *flagGame != "" {
		cfg.GameID = *flagGame
	}

	// stdout belongs to the board, logs go to a file
	if cfg.LogFile != "" {
		if err := obslog.InitFile(cfg.LogFile, cfg.LogLevel); err != nil {
			log.Fatalf("logger init error: %v", err)
		}
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	cat, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		log.Fatalf("messages error: %v", err)
	}

	opts := []arbiter.Option{arbiter.WithTimeout(cfg.ArbiterTimeout)}
	if cfg.GameID != "" {
		opts = append(opts, arbiter.WithGameID(cfg.GameID))
	}
	client := arbiter.NewClient(cfg.ArbiterURL, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *flagSpectate {
		if err := spectate(ctx, client, cat); err != nil {
			logger.Error("spectate failed", zap.Error(err))
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	app := tui.New(tui.Config{
		Arbiter:        client,
		Catalog:        cat,
		Human:          cfg.Human,
		ReplyDelay:     cfg.ReplyDelay,
		ArbiterTimeout: cfg.ArbiterTimeout,
		NewGameOnStart: *flagNew || cfg.Human == rules.Black,
		Logger:         logger,
	})
	if err := app.Run(ctx); err != nil {
		logger.Error("tui stopped", zap.Error(err))
		os.Exit(1)
	}
}

func spectate(ctx context.Context, client *arbiter.Client, cat *msgcat.Catalog) error {
	fmt.Println(cat.Text("status.spectating", map[string]string{"GameID": client.GameID()}, "Watching game "+client.GameID()))
	return client.Watch(ctx, func(st chessdto.GameState) {
		g, err := rules.NewChessGameFromFEN(st.FEN)
		if err != nil {
			obslog.L().Warn("watch_bad_fen", zap.String("fen", st.FEN), zap.Error(err))
			return
		}
		fmt.Printf("\n%s\n", board.FormatText(board.Build(g, nil)))
		if st.LastMove != "" {
			fmt.Printf("last: %s  ", st.LastMove)
		}
		if st.Status == "finished" {
			fmt.Println(resultText(cat, st.Result))
			return
		}
		turn, _ := rules.ParseColor(st.Turn)
		fmt.Println(cat.Text("status.turn", map[string]string{"Turn": turn.Title()}, st.Turn+" to move"))
	})
}

func resultText(cat *msgcat.Catalog, result string) string {
	winner, err := rules.ParseColor(result)
	if err != nil {
		return cat.Text("game.over.draw", nil, "Game Over! Draw!")
	}
	return cat.Text("game.over.win", map[string]string{"Winner": winner.Title()}, "Game Over! "+winner.Title()+" wins!")
}
