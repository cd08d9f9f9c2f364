package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"neurochat/internal/app"
	"neurochat/internal/config"
	"neurochat/internal/ratelimit"
	"neurochat/internal/util"
	"neurochat/pkg/ai"
	"neurochat/pkg/audit"
	"neurochat/pkg/auth"
	"neurochat/pkg/domain"
	"neurochat/pkg/mailer"
	"neurochat/pkg/storage"
	"neurochat/pkg/store"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to load config: %v\n", err)
		os.Exit(1)
	}

	util.InitLogger(cfg.LogLevel)

	identity, err := store.NewIdentityStore(filepath.Join(cfg.DataDir, "users.db"))
	if err != nil {
		util.Fatal("failed to open identity store", "err", err)
	}
	chats, err := store.NewChatStore(filepath.Join(cfg.DataDir, "chatdata.db"), filepath.Join(cfg.DataDir, "user_documents"))
	if err != nil {
		util.Fatal("failed to open chat store", "err", err)
	}
	images, err := store.NewImageStore(filepath.Join(cfg.DataDir, "imagedata.db"))
	if err != nil {
		util.Fatal("failed to open image store", "err", err)
	}
	recorder := audit.New(chats, filepath.Join(cfg.DataDir, "usage.log"))
	chats.SetRecorder(recorder)
	images.SetRecorder(recorder)

	files, err := storage.NewFileStore(filepath.Join(cfg.DataDir, "artifacts"))
	if err != nil {
		util.Fatal("failed to init file storage", "err", err)
	}
	var backup storage.ObjectStore
	if cfg.Backup.Enabled {
		backup, err = storage.NewMinioStore(cfg.Backup.Endpoint, cfg.Backup.AccessKey, cfg.Backup.SecretKey, cfg.Backup.Bucket, cfg.Backup.UseSSL)
		if err != nil {
			util.Fatal("failed to init backup storage", "err", err)
		}
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
	})
	limiter, err := ratelimit.NewRedisFixedWindowLimiter(redisClient, "", 10, time.Minute)
	if err != nil {
		util.Fatal("failed to init rate limiter", "err", err)
	}
	otpStore, err := auth.NewOTPStore(redisClient)
	if err != nil {
		util.Fatal("failed to init otp store", "err", err)
	}
	sessions, err := auth.NewSessionStore(filepath.Join(cfg.DataDir, "session.key"), time.Duration(cfg.SessionTTLHours)*time.Hour)
	if err != nil {
		util.Fatal("failed to init session store", "err", err)
	}
	var mail mailer.Mailer = mailer.Nop{}
	if cfg.SMTP.Host != "" {
		mail, err = mailer.NewSMTPMailer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)
		if err != nil {
			util.Fatal("failed to init mailer", "err", err)
		}
	}
	authSvc, err := auth.NewService(identity, otpStore, sessions, mail, limiter, recorder)
	if err != nil {
		util.Fatal("failed to init auth service", "err", err)
	}

	generator := ai.NewOllamaClient(cfg.Ollama.BaseURL, time.Duration(cfg.Ollama.TimeoutSeconds)*time.Second, cfg.Ollama.Stream)

	user, err := login(authSvc, filepath.Join(cfg.DataDir, "session.token"))
	if err != nil {
		util.Fatal("login failed", "err", err)
	}

	ctrl, err := app.New(app.Config{
		User:            user,
		Chats:           chats,
		Images:          images,
		Generator:       generator,
		Files:           files,
		Backup:          backup,
		Recorder:        recorder,
		DefaultModel:    cfg.Ollama.Model,
		GenerateTimeout: time.Duration(cfg.Ollama.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		util.Fatal("failed to init controller", "err", err)
	}
	defer ctrl.Close()

	if err := repl(ctrl); err != nil {
		util.Fatal("session error", "err", err)
	}
}

// login resumes a remembered session when a valid token is on disk,
// otherwise prompts for credentials.
func login(svc *auth.Service, tokenPath string) (domain.User, error) {
	if data, err := os.ReadFile(tokenPath); err == nil {
		if user, ok, err := svc.Resume(strings.TrimSpace(string(data))); err == nil && ok {
			fmt.Printf("Welcome back, %s!\n", user.Username)
			return user, nil
		}
	}

	in := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("Username, email or phone: ")
		identifier, err := in.ReadString('\n')
		if err != nil {
			return domain.User{}, err
		}
		fmt.Print("Password: ")
		password, err := in.ReadString('\n')
		if err != nil {
			return domain.User{}, err
		}
		user, token, err := svc.Login(strings.TrimSpace(identifier), strings.TrimSpace(password), true)
		if err != nil {
			fmt.Printf("Login failed: %v\n", err)
			continue
		}
		if token != "" {
			if err := os.WriteFile(tokenPath, []byte(token), 0o600); err != nil {
				fmt.Printf("Could not persist session: %v\n", err)
			}
		}
		fmt.Printf("Welcome, %s!\n", user.Username)
		return user, nil
	}
}

func repl(ctrl *app.Controller) error {
	chat, err := ctrl.EnsureChat()
	if err != nil {
		return err
	}
	if err := ctrl.OpenChat(chat.ID); err != nil {
		return err
	}
	fmt.Printf("Chat %q (%s). Type /help for commands.\n", chat.Name, chat.Model)

	in := bufio.NewScanner(os.Stdin)
	in.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Print("> ")
		if !in.Scan() {
			return in.Err()
		}
		line := strings.TrimSpace(in.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			done, err := runCommand(ctrl, &chat, line)
			if err != nil {
				fmt.Printf("Error: %v\n", err)
			}
			if done {
				return nil
			}
			continue
		}
		if err := ctrl.SendMessage(context.Background(), chat.ID, line); err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}
		text, err := ctrl.Await(chat.ID)
		if err != nil {
			fmt.Printf("Failed to generate response: %v\n", err)
			continue
		}
		fmt.Println(text)
	}
}

func runCommand(ctrl *app.Controller, current *domain.Chat, line string) (bool, error) {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]
	switch cmd {
	case "/quit", "/exit":
		return true, nil
	case "/help":
		fmt.Println("/chats  /new [name]  /open <id>  /rename <name>  /model <model>")
		fmt.Println("/delete  /export <txt|json>  /stats [days]  /images  /quit")
		return false, nil
	case "/chats":
		chats, err := ctrl.ListChats()
		if err != nil {
			return false, err
		}
		for _, c := range chats {
			marker := " "
			if c.ID == current.ID {
				marker = "*"
			}
			fmt.Printf("%s %s  %s (%s)\n", marker, c.ID, c.Name, c.Model)
		}
		return false, nil
	case "/new":
		name := strings.Join(args, " ")
		chat, err := ctrl.CreateChat(name, "")
		if err != nil {
			return false, err
		}
		if err := ctrl.OpenChat(chat.ID); err != nil {
			return false, err
		}
		*current = chat
		fmt.Printf("Created chat %q\n", chat.Name)
		return false, nil
	case "/open":
		if len(args) != 1 {
			return false, errors.New("usage: /open <chat-id>")
		}
		if args[0] == current.ID {
			return false, nil
		}
		if err := ctrl.OpenChat(args[0]); err != nil {
			return false, err
		}
		ctrl.CloseSurface(current.ID)
		chats, err := ctrl.ListChats()
		if err != nil {
			return false, err
		}
		for _, c := range chats {
			if c.ID == args[0] {
				*current = c
				break
			}
		}
		msgs, err := ctrl.Messages(current.ID)
		if err != nil {
			return false, err
		}
		for _, m := range msgs {
			sender := "You"
			if m.Role == domain.RoleAssistant {
				sender = "NeuroChat"
			}
			fmt.Printf("%s: %s\n", sender, m.Content)
		}
		return false, nil
	case "/rename":
		if len(args) == 0 {
			return false, errors.New("usage: /rename <new name>")
		}
		return false, ctrl.RenameChat(current.ID, strings.Join(args, " "))
	case "/model":
		if len(args) != 1 {
			return false, errors.New("usage: /model <model>")
		}
		return false, ctrl.ChangeChatModel(current.ID, args[0])
	case "/delete":
		if err := ctrl.DeleteChat(current.ID); err != nil {
			return false, err
		}
		chat, err := ctrl.EnsureChat()
		if err != nil {
			return false, err
		}
		if err := ctrl.OpenChat(chat.ID); err != nil {
			return false, err
		}
		*current = chat
		fmt.Printf("Switched to chat %q\n", chat.Name)
		return false, nil
	case "/export":
		if len(args) != 1 {
			return false, errors.New("usage: /export <txt|json>")
		}
		path, err := ctrl.ExportChat(current.ID, domain.ExportFormat(args[0]))
		if err != nil {
			return false, err
		}
		fmt.Printf("Exported to %s\n", path)
		return false, nil
	case "/stats":
		days := 30
		if len(args) == 1 {
			if n, err := strconv.Atoi(args[0]); err == nil {
				days = n
			}
		}
		stats, err := ctrl.Stats(days)
		if err != nil {
			return false, err
		}
		fmt.Printf("Messages in the last %d days: %d (you: %d, assistant: %d)\n",
			stats.PeriodDays, stats.TotalMessages, stats.UserMessages, stats.AssistantMessages)
		for model, count := range stats.ModelUsage {
			fmt.Printf("  %s: %d responses\n", model, count)
		}
		return false, nil
	case "/images":
		records, err := ctrl.ListImages()
		if err != nil {
			return false, err
		}
		for _, r := range records {
			fmt.Printf("%s  %s\n", r.Prompt, r.Path)
		}
		return false, nil
	default:
		return false, fmt.Errorf("unknown command %s", cmd)
	}
}
