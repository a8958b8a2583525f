package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"nestsync/pkg/auth"
	"nestsync/pkg/ui"
)

var showGuide bool

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage Sproutbook sessions",
	Long: `Manage stored Sproutbook parent sessions securely.

Sessions are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (read-only fallback)

Never share your session cookie or config files!`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [label]",
	Short: "Store a Sproutbook session securely",
	Long: `Store a Sproutbook session in the system keychain or an encrypted file.

You will be prompted for:
  - A label for the session (if not provided; "default" works fine)
  - The session cookie value (from the sbsession cookie)
  - The account id (the number in the portal's API URLs)
  - User agent (optional, press Enter to reuse your browser's)

Run with --guide for a step-by-step walkthrough of finding these values
in your browser.`,
	Example: `  # Interactive login
  nestsync auth login

  # Login with a label, for households with several portal accounts
  nestsync auth login grandma

  # Just print the cookie extraction walkthrough
  nestsync auth login --guide`,
	Args: cobra.MaximumNArgs(1),
	Run:  runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout [label]",
	Short: "Remove a stored session",
	Long: `Remove a stored Sproutbook session.

If no label is provided, you will be shown a list of stored sessions
to choose from. You can also remove all sessions at once.`,
	Example: `  # Interactive logout
  nestsync auth logout

  # Remove a specific session
  nestsync auth logout grandma`,
	Args: cobra.MaximumNArgs(1),
	Run:  runLogout,
}

// listCmd represents the auth list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all stored sessions",
	Long:  `List all stored Sproutbook sessions with the cookie values masked.`,
	Run:   runList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)

	loginCmd.Flags().BoolVar(&showGuide, "guide", false, "print the cookie extraction walkthrough and exit")
}

func runLogin(cmd *cobra.Command, args []string) {
	if showGuide {
		auth.ShowCookieExtractionGuide()
		return
	}

	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize session manager", err.Error())
		os.Exit(exitConfig)
	}

	var label string
	if len(args) > 0 {
		label = args[0]
	}

	// Interactive prompts
	reader := bufio.NewReader(os.Stdin)

	// Show extraction guide first
	auth.ShowCookieExtractionGuide()

	// Ask if ready to continue
	fmt.Print("Ready to enter your session values? (Y/n): ")
	ready, _ := reader.ReadString('\n')
	if strings.ToLower(strings.TrimSpace(ready)) == "n" {
		fmt.Println("\nRun 'nestsync auth login' when you're ready.")
		return
	}

	fmt.Println()

	if label == "" {
		fmt.Print("Session label (press Enter for \"default\"): ")
		input, err := reader.ReadString('\n')
		if err != nil {
			ui.PrintError("Failed to read label", err.Error())
			os.Exit(exitSync)
		}
		label = strings.TrimSpace(input)
		if label == "" {
			label = "default"
		}
	}

	// Check if the label already exists
	if existing, _ := manager.Retrieve(label); existing != nil {
		fmt.Printf("\nSession '%s' already exists. Update it? (y/N): ", label)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return
		}
	}

	fmt.Println("\nEnter your session values (the cookie will be hidden as you type):")
	fmt.Println()

	// Get session cookie with validation
	var cookie string
	for {
		fmt.Print("sbsession cookie value: ")
		cookie, err = readPassword()
		if err != nil {
			ui.PrintError("Failed to read cookie", err.Error())
			os.Exit(exitSync)
		}

		// Basic validation
		if len(cookie) < 40 {
			fmt.Println("\nThat doesn't look like a valid sbsession value.")
			fmt.Println("   It should be a long string, usually ending in '='.")
			fmt.Println("   Example: VTJGc2RHVmtYMTlLTmpKb2NtVnFkR1Z5Ym1GMFpRPT0...")
			fmt.Print("\nTry again? (Y/n): ")
			retry, _ := reader.ReadString('\n')
			if strings.ToLower(strings.TrimSpace(retry)) == "n" {
				os.Exit(exitSync)
			}
			continue
		}
		break
	}

	// Get account id with validation
	var account string
	for {
		fmt.Print("\nAccount id: ")
		input, err := reader.ReadString('\n')
		if err != nil {
			ui.PrintError("Failed to read account id", err.Error())
			os.Exit(exitSync)
		}
		account = strings.TrimSpace(input)

		if account == "" || strings.Trim(account, "0123456789") != "" {
			fmt.Println("\nThe account id is the number in the portal's API URLs.")
			fmt.Println("   Example: in /api/v1/accounts/482913/enrollments it is 482913.")
			fmt.Print("\nTry again? (Y/n): ")
			retry, _ := reader.ReadString('\n')
			if strings.ToLower(strings.TrimSpace(retry)) == "n" {
				os.Exit(exitSync)
			}
			continue
		}
		break
	}

	// Optional: Get user agent
	fmt.Print("\nUser Agent (press Enter to use default): ")
	userAgent, _ := reader.ReadString('\n')
	userAgent = strings.TrimSpace(userAgent)

	session := &auth.Session{
		Label:        label,
		Cookie:       cookie,
		AccountID:    account,
		UserAgent:    userAgent,
		LastModified: time.Now(),
	}

	// Show what we're about to store, cookie masked
	sanitized := auth.SanitizeSession(session)
	fmt.Println("\nSummary:")
	fmt.Printf("   Label: %s\n", sanitized.Label)
	fmt.Printf("   Cookie: %s\n", sanitized.Cookie)
	fmt.Printf("   Account id: %s\n", sanitized.AccountID)
	if userAgent != "" {
		fmt.Printf("   User Agent: %s\n", userAgent)
	}

	fmt.Println("\nStoring session securely...")
	if err := manager.Store(session); err != nil {
		ui.PrintError("Failed to store session", err.Error())
		os.Exit(exitSync)
	}

	ui.PrintSuccess(fmt.Sprintf("Session saved: %s", label))

	// Show how to use
	fmt.Println("\nQuick start:")
	fmt.Println("   Sync every enrollment under the account:")
	fmt.Println("   $ nestsync sync")
	fmt.Println("\n   Sync one child:")
	fmt.Println("   $ nestsync sync Emma")
	if label != "default" {
		fmt.Println("\n   Use this session explicitly:")
		fmt.Printf("   $ nestsync sync --session %s\n", label)
	}
	fmt.Println("\nNever share your session cookie or config files!")
}

func runLogout(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize session manager", err.Error())
		os.Exit(exitConfig)
	}

	if len(args) == 0 {
		// List sessions and ask which to remove
		sessions, err := manager.List()
		if err != nil || len(sessions) == 0 {
			ui.PrintError("No stored sessions found", "")
			return
		}

		if len(sessions) == 1 {
			// Only one session, confirm deletion
			session := sessions[0]
			reader := bufio.NewReader(os.Stdin)
			fmt.Printf("Remove session '%s'? (y/N): ", session.Label)
			input, _ := reader.ReadString('\n')
			if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
				return
			}

			if err := manager.Delete(session.Label); err != nil {
				ui.PrintError("Failed to remove session", err.Error())
				os.Exit(exitSync)
			}
			ui.PrintSuccess("Session removed: " + session.Label)
			return
		}

		// Multiple sessions, show menu
		fmt.Println("Select session to remove:")
		for i, session := range sessions {
			fmt.Printf("  %d. %s\n", i+1, session.Label)
		}
		fmt.Printf("  %d. Remove all sessions\n", len(sessions)+1)
		fmt.Printf("  0. Cancel\n\n")

		reader := bufio.NewReader(os.Stdin)
		fmt.Print("Choice: ")
		input, _ := reader.ReadString('\n')

		var choice int
		fmt.Sscanf(strings.TrimSpace(input), "%d", &choice)

		if choice == 0 {
			return
		} else if choice == len(sessions)+1 {
			// Remove all
			fmt.Print("Remove ALL sessions? This cannot be undone! (yes/N): ")
			confirm, _ := reader.ReadString('\n')
			if strings.TrimSpace(confirm) != "yes" {
				return
			}

			if err := manager.DeleteAll(); err != nil {
				ui.PrintError("Failed to remove all sessions", err.Error())
				os.Exit(exitSync)
			}
			ui.PrintSuccess("All sessions removed")
			return
		} else if choice > 0 && choice <= len(sessions) {
			session := sessions[choice-1]
			if err := manager.Delete(session.Label); err != nil {
				ui.PrintError("Failed to remove session", err.Error())
				os.Exit(exitSync)
			}
			ui.PrintSuccess("Session removed: " + session.Label)
			return
		} else {
			ui.PrintError("Invalid choice", "")
			os.Exit(exitSync)
		}
	}

	// Label provided as argument
	label := args[0]
	if err := manager.Delete(label); err != nil {
		ui.PrintError("Failed to remove session", err.Error())
		os.Exit(exitSync)
	}
	ui.PrintSuccess("Session removed: " + label)
}

func runList(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize session manager", err.Error())
		os.Exit(exitConfig)
	}

	sessions, err := manager.List()
	if err != nil {
		ui.PrintError("Failed to list sessions", err.Error())
		os.Exit(exitSync)
	}

	if len(sessions) == 0 {
		ui.PrintInfo("No stored sessions", "Use 'nestsync auth login' to add one")
		return
	}

	ui.PrintHighlight("Stored Sessions")
	fmt.Println()

	for i, session := range sessions {
		sanitized := auth.SanitizeSession(session)
		fmt.Printf("%d. Label: %s\n", i+1, sanitized.Label)
		fmt.Printf("   Cookie: %s\n", sanitized.Cookie)
		fmt.Printf("   Account id: %s\n", sanitized.AccountID)
		if sanitized.UserAgent != "" {
			fmt.Printf("   User Agent: %s\n", sanitized.UserAgent)
		}
		fmt.Printf("   Last Modified: %s\n", sanitized.LastModified.Format("2006-01-02 15:04:05"))
		fmt.Println()
	}
}

// readPassword reads a secret from stdin without echoing
func readPassword() (string, error) {
	// Try to read without echo
	if term.IsTerminal(int(syscall.Stdin)) {
		password, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println() // New line after password
		if err == nil {
			return strings.TrimSpace(string(password)), nil
		}
	}

	// Fallback to regular input
	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
