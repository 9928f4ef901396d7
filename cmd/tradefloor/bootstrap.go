package main

import (
	"context"
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tradefloor/tradefloor/internal/access"
	"github.com/tradefloor/tradefloor/internal/account"
	"github.com/tradefloor/tradefloor/internal/cache"
	"github.com/tradefloor/tradefloor/internal/config"
	"github.com/tradefloor/tradefloor/internal/web/auth"
)

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Interactively seed the first admin and server",
	Long: `Create the initial admin account and a server with its managed roles
(admin, premium, free), a General section, and a general channel.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBootstrap()
	},
}

func runBootstrap() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	var answers struct {
		Email      string
		Username   string
		Password   string
		ServerName string
		ServerSlug string
		CustomerID string
	}

	prompts := []struct {
		message  string
		target   *string
		required bool
		secret   bool
	}{
		{"Admin email:", &answers.Email, true, false},
		{"Admin username:", &answers.Username, true, false},
		{"Admin password:", &answers.Password, true, true},
		{"Server name:", &answers.ServerName, true, false},
		{"Server slug:", &answers.ServerSlug, true, false},
		{"Billing customer id (optional):", &answers.CustomerID, false, false},
	}
	for _, p := range prompts {
		var prompt survey.Prompt
		if p.secret {
			prompt = &survey.Password{Message: p.message}
		} else {
			prompt = &survey.Input{Message: p.message}
		}
		var opts []survey.AskOpt
		if p.required {
			opts = append(opts, survey.WithValidator(survey.Required))
		}
		if err := survey.AskOne(prompt, p.target, opts...); err != nil {
			return err
		}
	}

	var confirmed bool
	confirm := &survey.Confirm{
		Message: fmt.Sprintf("Create admin %s and server %q?", answers.Email, answers.ServerName),
		Default: true,
	}
	if err := survey.AskOne(confirm, &confirmed); err != nil {
		return err
	}
	if !confirmed {
		fmt.Println("Aborted")
		return nil
	}

	logger, err := buildLogger(cfg.Log.Level)
	if err != nil {
		return err
	}
	defer logger.Sync()

	pool, err := openDatabase(cfg)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer pool.Close()

	ctx := context.Background()
	authService := auth.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	accounts := account.NewService(pool, authService, logger)
	accessService := access.NewService(pool, cache.NewMemoryCache(), accessCacheTTL, logger)

	user, err := accounts.Register(ctx, answers.Email, answers.Username, answers.Password)
	if err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	if answers.CustomerID != "" {
		if err := accounts.LinkBillingCustomer(ctx, user.ID, answers.CustomerID); err != nil {
			return fmt.Errorf("failed to link billing customer: %w", err)
		}
	}

	server, err := accessService.CreateServer(ctx, answers.ServerName, answers.ServerSlug, user.ID)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("✓ Created admin %s (%s)\n", user.Username, user.ID)
	green.Printf("✓ Created server %q (%s)\n", server.Name, server.Slug)
	fmt.Println("  Seeded roles: admin, premium, free")
	fmt.Println("  Seeded channel: General/general")

	token, err := authService.GenerateToken(user)
	if err != nil {
		return err
	}
	fmt.Printf("\nAdmin token (expires in %s):\n%s\n", cfg.Auth.TokenTTL, token)
	return nil
}
