package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"aster-cli/internal/api"
	"aster-cli/internal/config"
	"aster-cli/internal/display"
	"aster-cli/internal/render"
	"aster-cli/internal/tui"
)

const version = "0.1.0"

var activeProfile string

func main() {
	args := os.Args[1:]

	// Parse global flags first (--profile)
	args = parseGlobalFlags(args)

	// No args → launch interactive mode (default)
	if len(args) == 0 {
		if err := tui.Run(version, activeProfile); err != nil {
			display.Error(err.Error())
			os.Exit(1)
		}
		return
	}

	// Explicit -i flag also launches interactive mode
	if args[0] == "-i" || args[0] == "--interactive" || args[0] == "interactive" {
		if err := tui.Run(version, activeProfile); err != nil {
			display.Error(err.Error())
			os.Exit(1)
		}
		return
	}

	var err error

	switch args[0] {
	case "login":
		err = cmdLogin(args[1:])
	case "ask":
		err = cmdAsk(args[1:])
	case "chats":
		err = cmdChats(args[1:])
	case "models":
		err = cmdModels()
	case "upload":
		err = cmdUpload(args[1:])
	case "set":
		err = cmdSet(args[1:])
	case "config":
		err = cmdConfig()
	case "profiles":
		err = cmdProfiles()
	case "help", "--help", "-h":
		printUsage()
	case "version", "--version", "-v":
		fmt.Printf("aster %s\n", version)
	default:
		display.Error(fmt.Sprintf("Unknown command: %s", args[0]))
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		display.Error(err.Error())
		os.Exit(1)
	}
}

// ─── login ───────────────────────────────────────────────────────────────────

func cmdLogin(args []string) error {
	var server string
	var positional []string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-s", "--server":
			if i+1 < len(args) {
				i++
				server = args[i]
			} else {
				return fmt.Errorf("--server requires a value")
			}
		default:
			positional = append(positional, args[i])
		}
	}

	if len(positional) == 0 {
		fmt.Println("Usage: aster login <email>")
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  aster login you@company.com")
		fmt.Println("  aster login you@company.com --server http://localhost:8000")
		return nil
	}

	email := strings.TrimSpace(positional[0])
	if !strings.Contains(email, "@") {
		return fmt.Errorf("invalid email address: %s", email)
	}

	cfg, err := config.Load(activeProfile)
	if err != nil {
		return err
	}
	if server != "" {
		cfg.Server = strings.TrimRight(server, "/")
	}

	client := api.NewClientWithServer(cfg.Server, "")

	fmt.Println()
	display.Spinner("Sending verification code to " + email + " ...")

	if err := client.RequestEmailCode(context.Background(), email); err != nil {
		display.ClearLine()
		return fmt.Errorf("requesting code: %w", err)
	}

	display.ClearLine()
	display.Success("Code sent. Check your inbox.")

	fmt.Print("Verification code: ")
	var code string
	fmt.Scanln(&code)
	code = strings.TrimSpace(code)
	if code == "" {
		return fmt.Errorf("verification code is required")
	}

	display.Spinner("Verifying...")

	sessionID, err := client.VerifyEmailCode(context.Background(), email, code)
	if err != nil {
		display.ClearLine()
		return fmt.Errorf("verification failed: %w", err)
	}

	display.ClearLine()
	display.Success("Signed in successfully")

	cfg.Email = email
	cfg.SessionID = sessionID
	if err := cfg.Save(); err != nil {
		return err
	}

	display.Info("Server:", cfg.Server)
	display.Info("Account:", email)

	pf := ""
	if activeProfile != "" {
		pf = " --profile " + activeProfile
	}

	fmt.Println()
	fmt.Printf("  %sNext:%s Run %saster%s ask \"<question>\"%s or just %saster%s%s for interactive mode.\n\n",
		display.Dim, display.Reset, display.Cyan, pf, display.Reset, display.Cyan, pf, display.Reset)

	return nil
}

// ─── ask ────────────────────────────────────────────────────────────────────

func cmdAsk(args []string) error {
	var chatID int64
	var modelID, attachPath string
	var newChat bool
	var positional []string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-c", "--chat":
			if i+1 < len(args) {
				i++
				n, err := strconv.ParseInt(args[i], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid chat id: %s", args[i])
				}
				chatID = n
			} else {
				return fmt.Errorf("--chat requires a value")
			}
		case "-m", "--model":
			if i+1 < len(args) {
				i++
				modelID = args[i]
			} else {
				return fmt.Errorf("--model requires a value")
			}
		case "-a", "--attach":
			if i+1 < len(args) {
				i++
				attachPath = args[i]
			} else {
				return fmt.Errorf("--attach requires a value")
			}
		case "-n", "--new":
			newChat = true
		default:
			positional = append(positional, args[i])
		}
	}

	if len(positional) == 0 {
		fmt.Println("Usage: aster ask <question> [--chat <id>] [--model <id>] [--attach <file>]")
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println(`  aster ask "Explain goroutine leaks"`)
		fmt.Println(`  aster ask "Continue from before" --chat 42`)
		fmt.Println(`  aster ask "Summarize this" --attach report.pdf`)
		return nil
	}
	prompt := strings.Join(positional, " ")

	cfg, err := config.Load(activeProfile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	client := api.NewClient(cfg)
	ctx := context.Background()

	// Default to continuing the last chat; -n forces a fresh one.
	if chatID == 0 && !newChat {
		chatID = cfg.LastChat
	}
	if modelID == "" {
		modelID = cfg.Model
	}

	opts := api.SendOptions{
		Message:     prompt,
		Model:       modelID,
		Temperature: cfg.Temperature,
		WebSearch:   cfg.WebSearch,
	}

	if attachPath != "" {
		f, err := os.Open(attachPath)
		if err != nil {
			return fmt.Errorf("opening attachment: %w", err)
		}
		display.Spinner("Uploading " + filepath.Base(attachPath) + " ...")
		url, upErr := client.Upload(ctx, filepath.Base(attachPath), f)
		f.Close()
		display.ClearLine()
		if upErr != nil {
			return fmt.Errorf("uploading attachment: %w", upErr)
		}
		display.Success("Attached " + filepath.Base(attachPath))
		opts.AttachmentURL = url
	}

	result, err := client.SendMessage(ctx, chatID, opts)
	if err != nil {
		var be *api.BillingError
		if errors.As(err, &be) {
			display.Error(be.Detail)
			fmt.Printf("  %sTip:%s Top up in interactive mode with %s/topup <amount>%s.\n",
				display.Dim, display.Reset, display.Cyan, display.Reset)
			os.Exit(1)
		}
		return err
	}

	if result.ChatID != 0 {
		chatID = result.ChatID
	}

	// Media models answer with the complete result at once.
	if result.Media != nil {
		if result.Media.ChatID != 0 {
			chatID = result.Media.ChatID
		}
		for _, msg := range result.Media.Messages {
			if msg.Role != "assistant" {
				continue
			}
			if msg.Content != "" {
				fmt.Println(msg.Content)
			}
			if msg.ImageURL != "" {
				fmt.Printf("%s%s%s\n", display.Cyan, msg.ImageURL, display.Reset)
			}
		}
		if result.Media.Balance != nil {
			fmt.Printf("\n%s\n", display.Balance(*result.Media.Balance))
		}
		return saveLastChat(cfg, chatID)
	}

	defer result.Stream.Close()

	printer := display.NewStreamPrinter(os.Stdout)
	_, streamErr := printer.Run(result.Stream)

	if printer.ChatID != 0 {
		chatID = printer.ChatID
	}
	if printer.Balance != nil {
		fmt.Printf("\n%s\n", display.Balance(*printer.Balance))
	}

	if streamErr != nil {
		return fmt.Errorf("stream interrupted: %w", streamErr)
	}

	return saveLastChat(cfg, chatID)
}

func saveLastChat(cfg *config.Config, chatID int64) error {
	if chatID == 0 || chatID == cfg.LastChat {
		return nil
	}
	cfg.LastChat = chatID
	return cfg.Save()
}

// ─── chats ──────────────────────────────────────────────────────────────────

func cmdChats(args []string) error {
	cfg, err := config.Load(activeProfile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	client := api.NewClient(cfg)
	ctx := context.Background()

	if len(args) == 0 {
		return chatsList(ctx, client, cfg)
	}

	switch args[0] {
	case "show":
		id := cfg.LastChat
		if len(args) > 1 {
			n, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid chat id: %s", args[1])
			}
			id = n
		}
		if id == 0 {
			fmt.Println("Usage: aster chats show <id>")
			return nil
		}
		return chatsShow(ctx, client, cfg, id)
	case "rm", "delete":
		if len(args) < 2 {
			fmt.Println("Usage: aster chats rm <id>")
			return nil
		}
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid chat id: %s", args[1])
		}
		if err := client.DeleteChat(ctx, id); err != nil {
			return fmt.Errorf("deleting chat: %w", err)
		}
		if cfg.LastChat == id {
			cfg.LastChat = 0
			_ = cfg.Save()
		}
		display.Success(fmt.Sprintf("Chat %d deleted", id))
		return nil
	case "rename":
		if len(args) < 3 {
			fmt.Println("Usage: aster chats rename <id> <title>")
			return nil
		}
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid chat id: %s", args[1])
		}
		title := strings.Join(args[2:], " ")
		if err := client.RenameChat(ctx, id, title); err != nil {
			return fmt.Errorf("renaming chat: %w", err)
		}
		display.Success(fmt.Sprintf("Chat %d renamed to %q", id, title))
		return nil
	case "clear":
		rng := "all"
		if len(args) > 1 {
			rng = args[1]
		}
		if rng != "day" && rng != "week" && rng != "all" {
			return fmt.Errorf("invalid range: %s (valid: day, week, all)", rng)
		}
		if err := client.ClearHistory(ctx, rng); err != nil {
			return fmt.Errorf("clearing history: %w", err)
		}
		cfg.LastChat = 0
		_ = cfg.Save()
		display.Success("History cleared: " + rng)
		return nil
	default:
		return fmt.Errorf("unknown chats subcommand: %s (valid: show, rm, rename, clear)", args[0])
	}
}

func chatsList(ctx context.Context, client *api.Client, cfg *config.Config) error {
	chats, err := client.ListChats(ctx)
	if err != nil {
		return fmt.Errorf("listing chats: %w", err)
	}

	display.Header(fmt.Sprintf("Chats (%d)", len(chats)))

	if len(chats) == 0 {
		display.Warn("No chats yet.")
		return nil
	}

	for _, c := range chats {
		marker := " "
		if c.ID == cfg.LastChat {
			marker = display.Green + "●" + display.Reset
		}
		title := c.Title
		if title == "" {
			title = display.Dim + "(untitled)" + display.Reset
		}
		fmt.Printf("  %s %s%-6d%s %s  %s%s%s\n", marker, display.Dim, c.ID, display.Reset,
			truncate(title, 60), display.Gray, display.FormatTime(c.Date), display.Reset)
	}

	fmt.Println()
	fmt.Printf("  %sTip:%s Run %saster chats show <id>%s to read a chat.\n\n",
		display.Dim, display.Reset, display.Cyan, display.Reset)

	return nil
}

func chatsShow(ctx context.Context, client *api.Client, cfg *config.Config, id int64) error {
	detail, err := client.GetChat(ctx, id)
	if err != nil {
		return fmt.Errorf("loading chat: %w", err)
	}

	title := detail.Title
	if title == "" {
		title = fmt.Sprintf("Chat %d", detail.ID)
	}
	display.Header(title)
	if detail.Model != "" {
		display.Info("Model:", detail.Model)
	}
	if detail.ExpiresAt != "" {
		display.Info("Expires:", display.FormatTime(detail.ExpiresAt))
	}

	fmt.Println()
	display.SubHeader(fmt.Sprintf("── %d messages ──", len(detail.Messages)))

	for _, msg := range detail.Messages {
		fmt.Printf("\n%s\n", display.RoleLabel(msg.Role))
		body := msg.Content
		if msg.Role == "assistant" {
			if doc, err := render.Document(msg.Content, 100, cfg.ThemeOrDefault()); err == nil {
				body = strings.TrimRight(doc, "\n")
			}
			fmt.Println(body)
		} else {
			for _, line := range wrapText(body, 100) {
				fmt.Printf("  %s\n", line)
			}
		}
		if msg.AttachmentURL != "" {
			fmt.Printf("  %s📎 %s%s\n", display.Dim, msg.AttachmentURL, display.Reset)
		}
		if msg.ImageURL != "" {
			fmt.Printf("  %s%s%s\n", display.Cyan, msg.ImageURL, display.Reset)
		}
	}

	fmt.Println()
	return nil
}

// ─── models ─────────────────────────────────────────────────────────────────

func cmdModels() error {
	cfg, err := config.Load(activeProfile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	client := api.NewClient(cfg)

	groups, err := client.ListModels(context.Background())
	if err != nil {
		return fmt.Errorf("listing models: %w", err)
	}

	display.Header("Models")

	count := 0
	for _, g := range groups {
		for _, m := range g.Models {
			marker := " "
			if m.ID == cfg.Model {
				marker = display.Green + "●" + display.Reset
			}
			fmt.Printf("  %s %s %s%-24s%s %s%s%s\n", marker, g.Icon,
				display.Bold, m.Name, display.Reset, display.Dim, m.ID, display.Reset)
			count++
		}
	}

	if count == 0 {
		display.Warn("No models available.")
		return nil
	}

	fmt.Println()
	fmt.Printf("  %sTip:%s Run %saster set model <id>%s to switch the default model.\n\n",
		display.Dim, display.Reset, display.Cyan, display.Reset)

	return nil
}

// ─── upload ─────────────────────────────────────────────────────────────────

func cmdUpload(args []string) error {
	if len(args) == 0 {
		fmt.Println("Usage: aster upload <file>")
		return nil
	}

	cfg, err := config.Load(activeProfile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	path := args[0]
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	client := api.NewClient(cfg)

	display.Spinner("Uploading " + filepath.Base(path) + " ...")
	url, err := client.Upload(context.Background(), filepath.Base(path), f)
	display.ClearLine()
	if err != nil {
		return fmt.Errorf("uploading: %w", err)
	}

	display.Success("Uploaded " + filepath.Base(path))
	display.Info("URL:", url)
	fmt.Printf("\n  %sTip:%s Use it with %saster ask \"...\" --attach %s%s\n\n",
		display.Dim, display.Reset, display.Cyan, path, display.Reset)

	return nil
}

// ─── set ────────────────────────────────────────────────────────────────────

func cmdSet(args []string) error {
	if len(args) < 2 {
		fmt.Println("Usage: aster set <key> <value>")
		fmt.Println()
		fmt.Println("Keys:")
		fmt.Println("  server   API server URL     (e.g. https://aster.chat)")
		fmt.Println("  model    Default model id   (see: aster models)")
		fmt.Println("  theme    Markdown theme     (dark or light)")
		fmt.Println("  temp     Sampling temperature 0..2, or off")
		fmt.Println("  web      Web search          (on or off)")
		return nil
	}

	cfg, err := config.Load(activeProfile)
	if err != nil {
		return err
	}

	key, value := args[0], args[1]

	switch key {
	case "server":
		cfg.Server = strings.TrimRight(value, "/")
	case "model":
		cfg.Model = value
	case "theme":
		if value != "dark" && value != "light" {
			return fmt.Errorf("invalid theme: %s (valid: dark, light)", value)
		}
		cfg.Theme = value
	case "temp", "temperature":
		if value == "off" {
			cfg.Temperature = nil
			break
		}
		t, err := strconv.ParseFloat(value, 64)
		if err != nil || t < 0 || t > 2 {
			return fmt.Errorf("invalid temperature: %s (valid: 0..2 or off)", value)
		}
		cfg.Temperature = &t
	case "web":
		switch value {
		case "on", "true":
			cfg.WebSearch = true
		case "off", "false":
			cfg.WebSearch = false
		default:
			return fmt.Errorf("invalid value: %s (valid: on, off)", value)
		}
	default:
		return fmt.Errorf("unknown config key: %s (valid: server, model, theme, temp, web)", key)
	}

	if err := cfg.Save(); err != nil {
		return err
	}

	display.Success(fmt.Sprintf("%s set to %s", key, value))
	return nil
}

// ─── config ─────────────────────────────────────────────────────────────────

func cmdConfig() error {
	cfg, err := config.Load(activeProfile)
	if err != nil {
		return err
	}

	display.Header("Aster CLI Configuration")

	display.Info("Profile:", config.ProfileName(activeProfile))
	display.Info("Server:", cfg.Server)

	email := cfg.Email
	if email == "" {
		email = display.Dim + "(not signed in)" + display.Reset
	}
	display.Info("Account:", email)

	session := display.Dim + "(not set)" + display.Reset
	if cfg.SessionID != "" {
		end := 12
		if len(cfg.SessionID) < end {
			end = len(cfg.SessionID)
		}
		session = cfg.SessionID[:end] + "..."
	}
	display.Info("Session:", session)

	model := cfg.Model
	if model == "" {
		model = display.Dim + "(server default)" + display.Reset
	}
	display.Info("Model:", model)

	display.Info("Theme:", cfg.ThemeOrDefault())

	temp := display.Dim + "(default)" + display.Reset
	if cfg.Temperature != nil {
		temp = strconv.FormatFloat(*cfg.Temperature, 'g', -1, 64)
	}
	display.Info("Temperature:", temp)

	web := "off"
	if cfg.WebSearch {
		web = "on"
	}
	display.Info("Web search:", web)

	last := display.Dim + "(none)" + display.Reset
	if cfg.LastChat != 0 {
		last = strconv.FormatInt(cfg.LastChat, 10)
	}
	display.Info("Last chat:", last)
	fmt.Println()

	return nil
}

// ─── profiles ───────────────────────────────────────────────────────────────

func cmdProfiles() error {
	profiles, err := config.ListProfiles()
	if err != nil {
		return err
	}

	display.Header(fmt.Sprintf("Profiles (%d)", len(profiles)))

	if len(profiles) == 0 {
		display.Warn("No profiles found.")
		return nil
	}

	for _, p := range profiles {
		marker := " "
		if p == config.ProfileName(activeProfile) {
			marker = display.Green + "●" + display.Reset
		}
		fmt.Printf("  %s %s\n", marker, p)
	}
	fmt.Println()

	return nil
}

// ─── helpers ────────────────────────────────────────────────────────────────

func wrapText(text string, width int) []string {
	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		if paragraph == "" {
			lines = append(lines, "")
			continue
		}
		words := strings.Fields(paragraph)
		current := ""
		for _, word := range words {
			if current == "" {
				current = word
			} else if len(current)+1+len(word) <= width {
				current += " " + word
			} else {
				lines = append(lines, current)
				current = word
			}
		}
		if current != "" {
			lines = append(lines, current)
		}
	}
	return lines
}

func parseGlobalFlags(args []string) []string {
	var remaining []string
	for i := 0; i < len(args); i++ {
		if args[i] == "--profile" {
			if i+1 < len(args) {
				i++
				activeProfile = args[i]
			}
			continue
		}
		remaining = append(remaining, args[i])
	}
	return remaining
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

// ─── usage ──────────────────────────────────────────────────────────────────

func printUsage() {
	fmt.Printf(`%sAster CLI%s — terminal client for Aster chat (v%s)

%sUsage:%s
  aster                                              Launch interactive mode (default)
  aster [--profile <name>] <command> [arguments]     Run a specific command

%sGetting Started:%s
  login <email>             Sign in with an email verification code
    -s, --server <url>      Use a non-default server
  config                    Show current configuration

%sAsking:%s
  ask "<question>"          Send a message and stream the reply
    -c, --chat <id>         Continue a specific chat (default: last chat)
    -n, --new               Start a fresh chat
    -m, --model <id>        Override the default model
    -a, --attach <file>     Attach a file to the message

%sChats:%s
  chats                     List chats
  chats show [id]           Print a chat transcript (defaults to last chat)
  chats rm <id>             Delete a chat
  chats rename <id> <t>     Rename a chat
  chats clear [range]       Clear history: day, week, or all (default: all)

%sModels & Files:%s
  models                    List available models
  upload <file>             Upload a file and print its URL

%sSettings:%s
  set server <url>          Override the server URL
  set model <id>            Set the default model
  set theme <dark|light>    Set the markdown theme
  set temp <0..2|off>       Set the sampling temperature
  set web <on|off>          Toggle web search

%sProfiles:%s
  profiles                  List all config profiles
  --profile <name>          Use a named config profile (default: unnamed)

%sExamples:%s
  aster                                              # Start interactive mode
  aster login you@company.com                        # Sign in
  aster ask "Explain context cancellation in Go"     # One-shot question
  aster ask "And with timeouts?" --chat 42           # Continue chat 42
  aster --profile work ask "Summarize the incident"  # Use the work profile
`,
		display.Bold+display.Cyan, display.Reset, version,
		display.Bold, display.Reset,
		display.Bold, display.Reset,
		display.Bold, display.Reset,
		display.Bold, display.Reset,
		display.Bold, display.Reset,
		display.Bold, display.Reset,
		display.Bold, display.Reset,
		display.Bold, display.Reset)
}
