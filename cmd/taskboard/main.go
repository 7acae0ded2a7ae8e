package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ldiaz/taskboard/internal/app"
	"github.com/ldiaz/taskboard/internal/capture"
	"github.com/ldiaz/taskboard/internal/credential"
	"github.com/ldiaz/taskboard/internal/dataservice/hosted"
	"github.com/ldiaz/taskboard/internal/logging"
	"github.com/ldiaz/taskboard/internal/model"
	"github.com/ldiaz/taskboard/internal/session"
	"github.com/ldiaz/taskboard/internal/store"
	appsync "github.com/ldiaz/taskboard/internal/sync"
)

var version = "dev"

var (
	configFlag string
	onceFlag   bool
)

var rootCmd = &cobra.Command{
	Use:          "taskboard",
	Short:        "taskboard - a shared task board in the terminal",
	RunE:         runBoard,
	SilenceUsage: true,
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage the platform access token",
}

var tokenSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Store an access token in the system keyring",
	RunE:  runTokenSet,
}

var tokenShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show who the stored token signs in as",
	RunE:  runTokenShow,
}

var tokenClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the stored access token",
	RunE:  runTokenClear,
}

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "File tasks from unread mailbox messages",
	RunE:  runCapture,
}

var capturePasswordCmd = &cobra.Command{
	Use:   "password",
	Short: "Store the capture mailbox password in the system keyring",
	RunE:  runCapturePassword,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the taskboard version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("taskboard", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", model.DefaultConfigPath(), "path to the config file")
	captureCmd.Flags().BoolVar(&onceFlag, "once", false, "run a single sweep and exit")
	tokenCmd.AddCommand(tokenSetCmd, tokenShowCmd, tokenClearCmd)
	captureCmd.AddCommand(capturePasswordCmd)
	rootCmd.AddCommand(tokenCmd, captureCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runBoard starts the interactive board.
func runBoard(cmd *cobra.Command, args []string) error {
	cfg, err := model.LoadConfig(configFlag)
	if err != nil {
		return err
	}
	if cfg.Platform.BaseURL == "" {
		return fmt.Errorf("platform.base_url is not set; edit %s", configFlag)
	}

	stateDir := model.DefaultStateDir()
	logger, closeLog, err := logging.Open(stateDir, cfg.Log.Level)
	if err != nil {
		return err
	}
	defer closeLog()

	sess, token, err := currentSession()
	if err != nil {
		if errors.Is(err, session.ErrNotAuthenticated) {
			return fmt.Errorf("%w; run 'taskboard token set' to sign in", err)
		}
		return err
	}

	svc := hosted.NewClient(cfg.Platform.BaseURL, cfg.Platform.APIKey, token, logger)
	tasks := appsync.NewTaskSync(svc, sess, logger)
	notifications := appsync.NewNotificationSync(svc, sess, logger)

	// A broken snapshot cache costs only the warm start, so the board
	// opens either way.
	snapshots, err := store.Open(filepath.Join(stateDir, "snapshot.db"))
	if err != nil {
		logger.Warn("snapshot cache unavailable", "error", err)
		snapshots = nil
	} else {
		defer snapshots.Close()
		seedFromSnapshot(snapshots, sess.UserID, tasks, notifications, logger)
	}

	m := app.New(app.Deps{
		Tasks:         tasks,
		Notifications: notifications,
		Service:       svc,
		Snapshots:     snapshots,
		Session:       sess,
		Logger:        logger,
		RefreshEvery:  time.Duration(cfg.Display.RefreshIntervalSec) * time.Second,
	})

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running ui: %w", err)
	}
	return nil
}

// runCapture sweeps the configured mailbox, either once or on the
// configured cron schedule.
func runCapture(cmd *cobra.Command, args []string) error {
	cfg, err := model.LoadConfig(configFlag)
	if err != nil {
		return err
	}
	if cfg.Platform.BaseURL == "" {
		return fmt.Errorf("platform.base_url is not set; edit %s", configFlag)
	}
	if cfg.Capture.Host == "" || cfg.Capture.Username == "" {
		return fmt.Errorf("capture.host and capture.username must be set; edit %s", configFlag)
	}

	// Capture is a foreground job, so logs go to stderr rather than
	// the state directory.
	logger, closeLog, err := logging.Open("", cfg.Log.Level)
	if err != nil {
		return err
	}
	defer closeLog()

	sess, token, err := currentSession()
	if err != nil {
		if errors.Is(err, session.ErrNotAuthenticated) {
			return fmt.Errorf("%w; run 'taskboard token set' to sign in", err)
		}
		return err
	}

	password, err := credential.Get(credential.KeyIMAPPassword)
	if err != nil {
		return fmt.Errorf("no mailbox password stored; run 'taskboard capture password' first")
	}

	svc := hosted.NewClient(cfg.Platform.BaseURL, cfg.Platform.APIKey, token, logger)
	mailbox := capture.NewIMAPMailbox(cfg.Capture, password)
	capturer := capture.New(mailbox, svc, sess, logger)

	if onceFlag {
		ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
		defer cancel()
		return capturer.Run(ctx)
	}

	if !cfg.Capture.Enabled {
		return fmt.Errorf("capture is disabled; set capture.enabled in %s or use --once", configFlag)
	}

	sched, err := capture.NewScheduler(capturer, cfg.Capture.Schedule, logger)
	if err != nil {
		return err
	}
	sched.Start()
	fmt.Printf("capture running on schedule %q, ctrl+c to stop\n", cfg.Capture.Schedule)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	sched.Stop()
	return nil
}

func runTokenSet(cmd *cobra.Command, args []string) error {
	token, err := readSecret("Paste access token: ")
	if err != nil {
		return err
	}
	if token == "" {
		return fmt.Errorf("no token given")
	}

	// Reject tokens that would not produce a session before storing
	// them.
	provider := session.NewTokenProvider(func() (string, error) { return token, nil })
	sess, err := provider.Current()
	if err != nil {
		return err
	}

	if err := credential.Set(credential.KeyAccessToken, token); err != nil {
		return err
	}
	fmt.Printf("Signed in as %s\n", identityLine(sess))
	return nil
}

func runTokenShow(cmd *cobra.Command, args []string) error {
	sess, token, err := currentSession()
	if err != nil {
		if errors.Is(err, session.ErrNotAuthenticated) {
			fmt.Println("Not signed in. Run 'taskboard token set'.")
			return nil
		}
		return err
	}

	fmt.Printf("Signed in as %s\n", identityLine(sess))
	fmt.Printf("Token: %s\n", maskToken(token))
	return nil
}

func runTokenClear(cmd *cobra.Command, args []string) error {
	if err := credential.Delete(credential.KeyAccessToken); err != nil {
		return err
	}
	fmt.Println("Access token removed.")
	return nil
}

func runCapturePassword(cmd *cobra.Command, args []string) error {
	password, err := readSecret("Mailbox password: ")
	if err != nil {
		return err
	}
	if password == "" {
		return fmt.Errorf("no password given")
	}
	if err := credential.Set(credential.KeyIMAPPassword, password); err != nil {
		return err
	}
	fmt.Println("Mailbox password stored.")
	return nil
}

// currentSession resolves the stored token into a session, returning
// the raw token as well for the API client.
func currentSession() (session.Session, string, error) {
	token, err := credential.AccessToken()
	if err != nil {
		return session.Session{}, "", err
	}
	provider := session.NewTokenProvider(func() (string, error) { return token, nil })
	sess, err := provider.Current()
	if err != nil {
		return session.Session{}, "", err
	}
	return sess, token, nil
}

// seedFromSnapshot warm-starts the synchronizers from the local cache.
func seedFromSnapshot(
	snapshots *store.SnapshotStore,
	userID string,
	tasks *appsync.TaskSync,
	notifications *appsync.NotificationSync,
	logger *slog.Logger,
) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if cached, err := snapshots.LoadTasks(ctx, userID); err != nil {
		logger.Warn("task snapshot load failed", "error", err)
	} else if len(cached) > 0 {
		tasks.Seed(cached)
	}

	if cached, err := snapshots.LoadNotifications(ctx, userID); err != nil {
		logger.Warn("notification snapshot load failed", "error", err)
	} else if len(cached) > 0 {
		notifications.Seed(cached)
	}
}

// readSecret reads a line without echo when stdin is a terminal, and a
// plain line otherwise so the value can be piped in.
func readSecret(prompt string) (string, error) {
	fmt.Print(prompt)
	if term.IsTerminal(int(os.Stdin.Fd())) {
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("reading input: %w", err)
		}
		return strings.TrimSpace(string(raw)), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func identityLine(sess session.Session) string {
	name := sess.DisplayName
	if name == "" {
		name = sess.UserID
	}
	if sess.Email != "" {
		return fmt.Sprintf("%s <%s>", name, sess.Email)
	}
	return name
}

func maskToken(token string) string {
	if len(token) > 12 {
		return token[:6] + "..." + token[len(token)-4:]
	}
	return "(short token)"
}
