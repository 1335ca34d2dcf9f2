package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"feveroracle-chatbot/internal/config"
	"feveroracle-chatbot/internal/controller"
	"feveroracle-chatbot/internal/core"
	"feveroracle-chatbot/internal/remote"
	"feveroracle-chatbot/pkg"
)

var (
	botColor    = color.New(color.FgCyan)
	optionColor = color.New(color.Faint)
	warnColor   = color.New(color.FgYellow)
	highColor   = color.New(color.FgRed, color.Bold)
	mediumColor = color.New(color.FgYellow, color.Bold)
	lowColor    = color.New(color.FgGreen, color.Bold)
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive symptom assessment in the terminal",
		Long: "Runs one symptom-assessment conversation. When CHATBOT_API_URL is set the\n" +
			"backend drives the dialogue; otherwise (or when the backend dies mid-way)\n" +
			"the embedded engine takes over without interrupting the conversation.",
		RunE: run,
	}
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	// Chat output owns stdout; only warnings interleave.
	log := zerolog.New(os.Stderr).With().Timestamp().Logger().Level(zerolog.WarnLevel)

	var authority controller.Authority
	var sink controller.ReportSink
	if cfg.ChatbotAPIURL != "" {
		client := remote.NewClient(cfg.ChatbotAPIURL, cfg.ChatbotAPIToken, cfg.RequestTimeout())
		authority = client
		sink = client
	}

	engine := core.NewEngine(core.DefaultCatalog())
	ctrl := controller.New(engine, authority, sink, controller.Callbacks{
		OnQuestion: printQuestion,
		OnAnalysis: printAnalysis,
		OnRestart: func() {
			fmt.Println()
			botColor.Println("Starting a new assessment.")
		},
	}, cfg.RequestTimeout(), log)

	ctx := cmd.Context()
	if err := ctrl.Start(ctx); err != nil {
		return err
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		text := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(text) {
		case "exit", "quit":
			return nil
		case "restart":
			if err := ctrl.Restart(ctx); err != nil {
				return err
			}
			continue
		}

		err := ctrl.Submit(ctx, text)
		switch {
		case errors.Is(err, controller.ErrBusy):
			warnColor.Println("Still thinking about your last answer, one moment.")
		case err != nil:
			return err
		}
		if ctrl.State() == controller.StateCompleted {
			optionColor.Println(`Type "restart" for a new assessment, or "exit" to leave.`)
		}
	}
}

func printQuestion(q pkg.Question, reprompt string) {
	fmt.Println()
	if reprompt != "" {
		warnColor.Println(reprompt)
	}
	botColor.Println(q.Prompt)
	if len(q.Options) > 0 {
		optionColor.Printf("  (%s)\n", strings.Join(q.Options, " / "))
	}
}

func printAnalysis(a pkg.Analysis) {
	levelColor := lowColor
	switch a.RiskLevel {
	case pkg.RiskHigh:
		levelColor = highColor
	case pkg.RiskMedium:
		levelColor = mediumColor
	}

	fmt.Println()
	botColor.Println("Assessment complete.")
	fmt.Printf("  Risk score:  %d/100 (%s)\n", a.RiskScore, levelColor.Sprint(strings.ToUpper(string(a.RiskLevel))))
	fmt.Printf("  Suspected:   %s\n", a.SuspectedFeverType)
	fmt.Printf("  Advice:      %s\n", a.Recommendation)
}
