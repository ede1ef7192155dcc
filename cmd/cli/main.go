package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	"referral-system/internal/apiclient"
	"referral-system/internal/domain"
)

type cliConfig struct {
	BaseURL string `env:"API_BASE_URL" envDefault:"http://localhost:8080"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	var cfg cliConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatal(err)
	}

	client := apiclient.New(cfg.BaseURL, log.Default())
	reader := bufio.NewReader(os.Stdin)

	fmt.Printf("===== Referral CLI (%s) =====\n", cfg.BaseURL)
	for {
		if err := loginFlow(ctx, reader, client); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, errQuit) {
				return
			}
			fmt.Printf("Error: %v\n", err)
			continue
		}
		if err := runProfileMenu(ctx, reader, client); err != nil {
			if errors.Is(err, errQuit) {
				return
			}
			fmt.Printf("Error: %v\n", err)
		}
	}
}

var errQuit = errors.New("quit")

func prompt(reader *bufio.Reader, label string) (string, error) {
	fmt.Print(label)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", errQuit
	}
	return strings.TrimSpace(line), nil
}

func loginFlow(ctx context.Context, reader *bufio.Reader, client *apiclient.Client) error {
	phone, err := prompt(reader, "Phone number (+...), or 'q' to quit: ")
	if err != nil {
		return err
	}
	if strings.EqualFold(phone, "q") {
		return errQuit
	}

	fmt.Println("Sending code...")
	sent, err := client.SendCode(ctx, phone)
	if err != nil {
		return err
	}
	fmt.Printf("Code for %s: %s\n", sent.PhoneNumber, sent.Code)

	code, err := prompt(reader, "Enter code: ")
	if err != nil {
		return err
	}
	res, err := client.VerifyCode(ctx, sent.PhoneNumber, code)
	if err != nil {
		return err
	}
	if res.IsNewUser {
		fmt.Println("Welcome! Your account has been created.")
	} else {
		fmt.Println("Welcome back!")
	}
	fmt.Printf("Your invite code: %s\n", res.InviteCode)
	return nil
}

func runProfileMenu(ctx context.Context, reader *bufio.Reader, client *apiclient.Client) error {
	for {
		fmt.Println("\n[1] Show profile")
		fmt.Println("[2] Activate invite code")
		fmt.Println("[3] Logout")
		fmt.Println("[4] Quit")
		choice, err := prompt(reader, "Select: ")
		if err != nil {
			return err
		}

		switch choice {
		case "1":
			profile, err := client.Profile(ctx)
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				continue
			}
			printProfile(profile)
		case "2":
			code, err := prompt(reader, "Invite code: ")
			if err != nil {
				return err
			}
			profile, err := client.ActivateInvite(ctx, code)
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				continue
			}
			fmt.Println("Invite code activated.")
			printProfile(profile)
		case "3":
			if err := client.Logout(ctx); err != nil {
				fmt.Printf("Logout: %v\n", err)
			}
			fmt.Println("Logged out.")
			return nil
		case "4":
			_ = client.Logout(ctx)
			return errQuit
		default:
			fmt.Println("Invalid option.")
		}
	}
}

func printProfile(p domain.Profile) {
	fmt.Println("--- Profile ---")
	fmt.Printf("ID:            %s\n", p.ID)
	fmt.Printf("Phone:         %s\n", p.PhoneNumber)
	fmt.Printf("Invite code:   %s\n", p.InviteCode)
	if p.ActivatedInviteCode != nil {
		fmt.Printf("Activated:     %s\n", *p.ActivatedInviteCode)
	} else {
		fmt.Println("Activated:     -")
	}
	fmt.Printf("Created at:    %s\n", p.CreatedAt.Format("2006-01-02 15:04:05"))
	if len(p.Referrals) == 0 {
		fmt.Println("Referrals:     none")
		return
	}
	fmt.Println("Referrals:")
	for _, phone := range p.Referrals {
		fmt.Printf("  - %s\n", phone)
	}
}
