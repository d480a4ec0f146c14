package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"colorgame/cmd"
	"colorgame/cmd/admin"
	"colorgame/cmd/simulate"
	"colorgame/config"
	"colorgame/database"
	"colorgame/domain/entities"
	"colorgame/domain/services"

	log "github.com/sirupsen/logrus"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "migrate":
			if err := handleMigrationCommand(); err != nil {
				log.Fatal("Migration error: ", err)
			}
			return

		case "admin":
			client := admin.NewClient(config.Get().AdminAPIPort)
			if err := admin.Run(client, os.Args[2:], os.Stdout); err != nil {
				log.Fatal("Admin command error: ", err)
			}
			return

		case "update-balance":
			if err := handleBalanceAdjustment(); err != nil {
				log.Fatal("Balance adjustment error: ", err)
			}
			return

		case "simulate":
			if err := handleSimulation(); err != nil {
				log.Fatal("Simulation error: ", err)
			}
			return

		case "run":
		default:
			log.Fatalf("unknown command %q (expected run, migrate, admin, update-balance or simulate)", os.Args[1])
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Received shutdown signal, shutting down gracefully...")
		cancel()
	}()

	if err := cmd.Run(ctx); err != nil {
		log.Fatal("Application error: ", err)
	}
}

func handleMigrationCommand() error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: colorgame migrate [up|down|status] [args...]")
	}

	// migrations read the database settings directly so they run without the rest of the configuration
	databaseURL := database.ConstructDatabaseURL(os.Getenv("DATABASE_URL"), os.Getenv("DATABASE_NAME"))
	migrator, err := database.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer migrator.Close()

	switch os.Args[2] {
	case "up":
		return migrator.Up()
	case "down":
		steps := 1
		if len(os.Args) > 3 {
			if steps, err = strconv.Atoi(os.Args[3]); err != nil {
				return fmt.Errorf("invalid steps value: %w", err)
			}
		}
		return migrator.Down(steps)
	case "status":
		version, dirty, applied, err := migrator.Status()
		if err != nil {
			return err
		}
		if !applied {
			log.Info("No migrations have been applied yet")
			return nil
		}
		log.WithFields(log.Fields{"version": version, "dirty": dirty}).Info("Current migration version")
		return nil
	default:
		return fmt.Errorf("unknown migration command: %s", os.Args[2])
	}
}

func handleBalanceAdjustment() error {
	if len(os.Args) < 4 {
		return fmt.Errorf("usage: colorgame update-balance <user_id> <wallet>")
	}

	userID, err := strconv.ParseInt(os.Args[2], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid user ID: %w", err)
	}
	wallet, err := strconv.ParseInt(os.Args[3], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid wallet: %w", err)
	}

	return cmd.UpdateBalance(context.Background(), userID, wallet)
}

func handleSimulation() error {
	trials := 100000
	if len(os.Args) > 2 {
		n, err := strconv.Atoi(os.Args[2])
		if err != nil {
			return fmt.Errorf("invalid trial count: %w", err)
		}
		trials = n
	}

	payout, err := services.NewPayoutCalculator(config.Get().WinFee)
	if err != nil {
		return err
	}

	rule := entities.StandardColorRule{}
	generator := services.NewOutcomeGenerator(rule, services.CryptoRandom{})
	report, err := simulate.Analyze(generator, services.NumberDistribution(rule), payout, trials)
	if err != nil {
		return err
	}
	report.Write(os.Stdout)
	return nil
}
